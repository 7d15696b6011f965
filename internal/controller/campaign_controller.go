// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/queue"
	"github.com/unclebandit/mailblast-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Queue           queue.Queue
}

// LaunchCampaign validates the request and enqueues a launch job. The worker
// draining the queue performs the actual batch, one at a time.
func (c *CampaignController) LaunchCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name             string `json:"name"`
		Sender           string `json:"sender"`
		SubjectTemplate  string `json:"subject_template"`
		BodyTemplate     string `json:"body_template"`
		FollowupsPlanned int    `json:"followups_planned"`
		IntervalDays     int    `json:"interval_days"`
		RecipientsFile   string `json:"recipients_file"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Name) == "" || strings.TrimSpace(body.SubjectTemplate) == "" ||
		strings.TrimSpace(body.BodyTemplate) == "" || strings.TrimSpace(body.RecipientsFile) == "" {
		http.Error(w, "name, subject_template, body_template and recipients_file are required", http.StatusBadRequest)
		return
	}

	// Fast collision feedback; the service re-checks before sending.
	if c.CampaignService != nil && c.CampaignService.Store.Exists(body.Name) {
		http.Error(w, appErrors.NewCampaignExists(body.Name).Error(), http.StatusConflict)
		return
	}

	job := queue.DispatchJob{
		Kind:             queue.KindLaunch,
		Campaign:         body.Name,
		Sender:           body.Sender,
		SubjectTemplate:  body.SubjectTemplate,
		BodyTemplate:     body.BodyTemplate,
		FollowupsPlanned: body.FollowupsPlanned,
		IntervalDays:     body.IntervalDays,
		RecipientsFile:   body.RecipientsFile,
	}
	if err := c.Queue.Publish(queue.DispatchQueue, job); err != nil {
		http.Error(w, "failed to enqueue campaign: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"campaign": body.Name,
		"status":   "queued",
	})
}

// SendFollowups enqueues a follow-up batch for an existing campaign.
func (c *CampaignController) SendFollowups(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var body struct {
		Force        bool   `json:"force"`
		BodyTemplate string `json:"body_template"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
	}

	if _, _, err := c.CampaignService.GetCampaignDetails(name); err != nil {
		writeServiceError(w, err)
		return
	}

	job := queue.DispatchJob{
		Kind:         queue.KindFollowup,
		Campaign:     name,
		BodyTemplate: body.BodyTemplate,
		Force:        body.Force,
	}
	if err := c.Queue.Publish(queue.DispatchQueue, job); err != nil {
		http.Error(w, "failed to enqueue follow-ups: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"campaign": name,
		"force":    body.Force,
		"status":   "queued",
	})
}

// ListCampaigns returns every campaign with scheduling stats.
func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	summaries := c.CampaignService.ListCampaigns()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": summaries,
	})
}

// PersonalizedPreview renders a campaign's templates (or overrides) against
// one recipient row without sending anything.
func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var body struct {
		Row             map[string]string `json:"row"`
		OverrideSubject *string           `json:"override_subject"`
		OverrideBody    *string           `json:"override_body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, _, err := c.CampaignService.GetCampaignDetails(name)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	subjectTemplate := campaign.SubjectTemplate
	if body.OverrideSubject != nil && strings.TrimSpace(*body.OverrideSubject) != "" {
		subjectTemplate = *body.OverrideSubject
	}
	bodyTemplate := campaign.BodyTemplate
	if body.OverrideBody != nil && strings.TrimSpace(*body.OverrideBody) != "" {
		bodyTemplate = *body.OverrideBody
	}

	subject, rendered, err := c.CampaignService.RenderPreview(subjectTemplate, bodyTemplate, body.Row)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"rendered_subject": subject,
		"rendered_body":    rendered,
	})
}

// GetStats reports the lifetime sent counter.
func (c *CampaignController) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total_sent": c.CampaignService.TotalSent(),
	})
}

// ClearCampaigns wipes the campaign store.
func (c *CampaignController) ClearCampaigns(w http.ResponseWriter, r *http.Request) {
	if err := c.CampaignService.ClearCampaigns(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "cleared",
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	var notFound *appErrors.ErrCampaignNotFound
	if errors.As(err, &notFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
