// internal/service/dispatcher.go
package service

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/unclebandit/mailblast-backend/internal/mail"
	"github.com/unclebandit/mailblast-backend/internal/queue"
	"github.com/unclebandit/mailblast-backend/internal/recipients"
)

// Dispatcher executes queued dispatch jobs. Exactly one dispatcher consumes
// the queue, which is what keeps batches from overlapping on the store.
type Dispatcher struct {
	Service *CampaignService

	Sender        string // authenticated account; jobs without a sender use it
	AttachmentDir string // where signature/PDF files are looked up
	PDFFile       string // optional PDF attached to every message
	InlineFile    string // optional secondary inline image
}

// Execute runs one job end to end. It is used both as the broker consumer
// callback and directly by the in-memory queue.
func (d *Dispatcher) Execute(payload any) error {
	job, err := queue.DecodeDispatchJob(payload)
	if err != nil {
		return err
	}

	switch job.Kind {
	case queue.KindLaunch:
		return d.launch(job)
	case queue.KindFollowup:
		return d.followup(job)
	default:
		return fmt.Errorf("unknown dispatch job kind %q", job.Kind)
	}
}

func (d *Dispatcher) launch(job queue.DispatchJob) error {
	rows, err := recipients.LoadCSVFile(job.RecipientsFile)
	if err != nil {
		return fmt.Errorf("campaign %q: %w", job.Campaign, err)
	}

	sender := job.Sender
	if sender == "" {
		sender = d.Sender
	}

	log.Printf("📧 launching campaign %q: %d recipients", job.Campaign, len(rows))
	report, err := d.Service.LaunchCampaign(LaunchRequest{
		Name:             job.Campaign,
		Sender:           sender,
		SubjectTemplate:  job.SubjectTemplate,
		BodyTemplate:     job.BodyTemplate,
		FollowupsPlanned: job.FollowupsPlanned,
		IntervalDays:     job.IntervalDays,
		Rows:             rows,
		Signature:        d.findSignature("firstmail"),
		PDF:              d.loadAttachment(d.PDFFile),
		Inline:           d.loadAttachment(d.InlineFile),
	})
	if err != nil {
		return fmt.Errorf("campaign %q: %w", job.Campaign, err)
	}
	log.Printf("✅ campaign %q launched: sent=%d failed=%d", job.Campaign, report.Sent, report.Failed)
	return nil
}

func (d *Dispatcher) followup(job queue.DispatchJob) error {
	log.Printf("📧 follow-up batch for campaign %q (force=%v)", job.Campaign, job.Force)
	report, err := d.Service.SendFollowups(FollowupRequest{
		Campaign:     job.Campaign,
		Force:        job.Force,
		BodyTemplate: job.BodyTemplate,
		Signature:    d.findSignature("followup"),
		PDF:          d.loadAttachment(d.PDFFile),
		Inline:       d.loadAttachment(d.InlineFile),
	})
	if err != nil {
		return fmt.Errorf("campaign %q follow-ups: %w", job.Campaign, err)
	}
	log.Printf("✅ campaign %q follow-ups: sent=%d failed=%d", job.Campaign, report.Sent, report.Failed)
	return nil
}

// findSignature looks for <base>.jpg/.png/.jpeg in the attachment dir.
// Launches use "firstmail", follow-ups "followup". Missing signatures just
// mean plain-text mail.
func (d *Dispatcher) findSignature(base string) *mail.Attachment {
	for _, ext := range []string{".jpg", ".png", ".jpeg"} {
		path := filepath.Join(d.AttachmentDir, base+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return &mail.Attachment{Filename: base + ext, Data: data}
	}
	return nil
}

func (d *Dispatcher) loadAttachment(path string) *mail.Attachment {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("⚠️ attachment %s unreadable, skipping: %v", path, err)
		return nil
	}
	return &mail.Attachment{Filename: filepath.Base(path), Data: data}
}
