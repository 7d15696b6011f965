// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/unclebandit/mailblast-backend/internal/controller"
	"github.com/unclebandit/mailblast-backend/internal/dispatch"
	"github.com/unclebandit/mailblast-backend/internal/handler"
	"github.com/unclebandit/mailblast-backend/internal/mail"
	"github.com/unclebandit/mailblast-backend/internal/queue"
	"github.com/unclebandit/mailblast-backend/internal/service"
	"github.com/unclebandit/mailblast-backend/internal/store"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	campaignStore := store.NewCampaignStore(os.Getenv("CAMPAIGN_DB_FILE"))
	counterStore := store.NewCounterStore(os.Getenv("SENT_COUNT_FILE"))

	// Read-only service for the HTTP surface; sending happens in the
	// worker that drains the dispatch queue.
	campaignService := &service.CampaignService{
		Store:   campaignStore,
		Counter: counterStore,
	}

	var q queue.Queue
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		aq, err := queue.DialAMQP(amqpURL)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ:", err)
		}
		defer aq.Close()
		q = aq
		log.Println("✅ Dispatch jobs go to RabbitMQ; run cmd/worker to send")
	} else {
		// No broker configured: send from this process, one batch at a
		// time, through the in-memory queue.
		log.Println("⚠️ AMQP_URL not set, dispatching in-process")
		sender := os.Getenv("SMTP_EMAIL")
		settings := mail.SettingsFor(sender, os.Getenv("SMTP_HOST"), envInt("SMTP_PORT"))
		engine := dispatch.NewEngine(mail.Factory(settings, sender, os.Getenv("SMTP_PASSWORD")))

		sendingService := &service.CampaignService{
			Store:   campaignStore,
			Counter: counterStore,
			Engine:  engine,
		}
		dispatcher := &service.Dispatcher{
			Service:       sendingService,
			Sender:        sender,
			AttachmentDir: os.Getenv("ATTACHMENT_DIR"),
			PDFFile:       os.Getenv("PDF_FILE"),
			InlineFile:    os.Getenv("INLINE_IMAGE_FILE"),
		}
		mq := queue.NewInMemoryQueue()
		mq.Subscribe(queue.DispatchQueue, dispatcher.Execute)
		q = mq
	}

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		Queue:           q,
	}
	campaignHandler := handler.NewCampaignHandler(campaignService)

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignController.LaunchCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Delete("/campaigns", campaignController.ClearCampaigns)
	r.Get("/campaigns/{name}", campaignHandler.GetCampaignHandlerWithStats)
	r.Post("/campaigns/{name}/followups", campaignController.SendFollowups)
	r.Post("/campaigns/{name}/personalized-preview", campaignController.PersonalizedPreview)
	r.Get("/stats", campaignController.GetStats)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Println("🚀 Server running on", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️ invalid %s=%q, ignoring", key, v)
		return 0
	}
	return n
}
