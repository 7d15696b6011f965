// internal/service/campaign_service.go
package service

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/unclebandit/mailblast-backend/internal/dispatch"
	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/mail"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/recipients"
	"github.com/unclebandit/mailblast-backend/internal/render"
	"github.com/unclebandit/mailblast-backend/internal/schedule"
	"github.com/unclebandit/mailblast-backend/internal/store"
)

// CampaignService orchestrates launches and follow-up batches. Engine may be
// nil for read-only deployments (the API server); the worker owns the one
// engine that actually sends.
type CampaignService struct {
	Store   store.CampaignStoreInterface
	Counter store.CounterStoreInterface
	Engine  *dispatch.Engine
	Now     func() time.Time
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// LaunchRequest describes one initial campaign send.
type LaunchRequest struct {
	Name             string
	Sender           string
	SubjectTemplate  string
	BodyTemplate     string
	FollowupsPlanned int
	IntervalDays     int
	Rows             []recipients.Row
	Signature        *mail.Attachment
	PDF              *mail.Attachment
	Inline           *mail.Attachment
}

// LaunchCampaign runs the initial batch and records the campaign. A name
// collision is rejected before anything is sent. Only recipients whose send
// succeeded are recorded; launch failures appear in the report but never
// enter the store, so they get no follow-ups (the original's policy).
func (s *CampaignService) LaunchCampaign(req LaunchRequest) (*model.BatchReport, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("campaign name cannot be empty")
	}
	if strings.TrimSpace(req.SubjectTemplate) == "" || strings.TrimSpace(req.BodyTemplate) == "" {
		return nil, fmt.Errorf("subject and body templates cannot be empty")
	}
	if s.Store.Exists(req.Name) {
		return nil, appErrors.NewCampaignExists(req.Name)
	}
	if req.FollowupsPlanned <= 0 {
		req.FollowupsPlanned = model.DefaultFollowupsPlanned
	}
	if req.IntervalDays <= 0 {
		req.IntervalDays = model.DefaultIntervalDays
	}

	jobs := make([]dispatch.Job, 0, len(req.Rows))
	for _, row := range req.Rows {
		jobs = append(jobs, dispatch.Job{
			Name:    row.Name(),
			Email:   row.Email(),
			Context: map[string]string(row),
		})
	}

	report, err := s.Engine.Run(dispatch.Batch{
		Sender:          req.Sender,
		SubjectTemplate: req.SubjectTemplate,
		BodyTemplate:    req.BodyTemplate,
		Jobs:            jobs,
		Signature:       req.Signature,
		PDF:             req.PDF,
		Inline:          req.Inline,
	})
	if err != nil {
		return nil, err
	}

	campaign := &model.Campaign{
		Name:                  req.Name,
		CreatedAt:             s.now(),
		Sender:                req.Sender,
		SubjectTemplate:       req.SubjectTemplate,
		BodyTemplate:          req.BodyTemplate,
		TotalFollowupsPlanned: req.FollowupsPlanned,
		FollowupIntervalDays:  req.IntervalDays,
		Recipients:            map[string]*model.Recipient{},
	}
	for _, job := range jobs {
		info, ok := report.Threads[job.Email]
		if !ok {
			continue
		}
		campaign.Recipients[job.Email] = &model.Recipient{
			Name:             job.Name,
			MessageID:        info.MessageID,
			Subject:          info.Subject,
			ThreadIndex:      info.ThreadIndex,
			FollowupsSent:    0,
			LastSentDate:     info.SentAt,
			NextFollowupDate: info.SentAt.AddDate(0, 0, req.IntervalDays),
		}
	}

	if len(campaign.Recipients) > 0 {
		if err := s.Store.Create(campaign); err != nil {
			return report.BatchReport(), err
		}
	}
	s.recordSent(report.Sent)
	return report.BatchReport(), nil
}

// FollowupRequest describes one follow-up batch over an existing campaign.
type FollowupRequest struct {
	Campaign     string
	Force        bool   // treat all non-terminal recipients as due
	BodyTemplate string // optional override; defaults to the campaign's
	Signature    *mail.Attachment
	PDF          *mail.Attachment
	Inline       *mail.Attachment
}

// SendFollowups sends the next follow-up to every due recipient. An empty
// due-set is a no-op that never opens a session. A failed send leaves that
// recipient's scheduling fields untouched for the next run.
func (s *CampaignService) SendFollowups(req FollowupRequest) (*model.BatchReport, error) {
	campaign, err := s.Store.Get(req.Campaign)
	if err != nil {
		return nil, err
	}

	now := s.now()
	part := schedule.Split(campaign, now, req.Force)
	if len(part.Due) == 0 {
		log.Printf("followups: campaign %q has no due recipients", req.Campaign)
		return &model.BatchReport{Results: []model.SendResult{}}, nil
	}

	bodyTemplate := req.BodyTemplate
	if strings.TrimSpace(bodyTemplate) == "" {
		bodyTemplate = campaign.BodyTemplate
	}

	jobs := make([]dispatch.Job, 0, len(part.Due))
	for _, email := range part.Due {
		r := campaign.Recipients[email]
		jobs = append(jobs, dispatch.Job{
			Name:  r.Name,
			Email: email,
			// Extra columns are not persisted, so follow-up rendering
			// contexts carry Name and Email only.
			Context: map[string]string{"Name": r.Name, "Email": email},
			Reply: &dispatch.Reply{
				MessageID:   r.MessageID,
				ThreadIndex: r.ThreadIndex,
				Subject:     r.Subject,
			},
		})
	}

	report, err := s.Engine.Run(dispatch.Batch{
		Sender:       campaign.Sender,
		BodyTemplate: bodyTemplate,
		Jobs:         jobs,
		Signature:    req.Signature,
		PDF:          req.PDF,
		Inline:       req.Inline,
	})
	if err != nil {
		return nil, err
	}

	if len(report.Threads) > 0 {
		err = s.Store.Update(req.Campaign, func(c *model.Campaign) error {
			for email, info := range report.Threads {
				r, ok := c.Recipients[email]
				if !ok {
					continue
				}
				schedule.Advance(r, info.MessageID, info.ThreadIndex, info.Subject, info.SentAt, c.FollowupIntervalDays)
			}
			return nil
		})
		if err != nil {
			return report.BatchReport(), err
		}
	}
	s.recordSent(report.Sent)
	return report.BatchReport(), nil
}

// recordSent adds to the lifetime counter. Reporting only, so a write
// failure is logged rather than failing the batch.
func (s *CampaignService) recordSent(n int) {
	if n == 0 {
		return
	}
	if err := s.Counter.Add(n); err != nil {
		log.Println("⚠️ failed to update sent counter:", err)
	}
}

// RenderPreview renders the subject/body pair against one recipient row.
func (s *CampaignService) RenderPreview(subjectTemplate, bodyTemplate string, row recipients.Row) (subject, body string, err error) {
	if strings.TrimSpace(subjectTemplate) == "" || strings.TrimSpace(bodyTemplate) == "" {
		return "", "", fmt.Errorf("template cannot be empty")
	}
	return render.Pair(subjectTemplate, bodyTemplate, map[string]string(row))
}

// CampaignStats counts a campaign's recipients by follow-up state.
type CampaignStats struct {
	Recipients int `json:"recipients"`
	Completed  int `json:"completed"`
	Due        int `json:"due"`
	Pending    int `json:"pending"`
}

// CampaignSummary is one row of the campaign listing.
type CampaignSummary struct {
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
	Sender    string        `json:"sender"`
	Stats     CampaignStats `json:"stats"`
}

func (s *CampaignService) statsFor(c *model.Campaign, now time.Time) CampaignStats {
	part := schedule.Split(c, now, false)
	return CampaignStats{
		Recipients: len(c.Recipients),
		Completed:  len(part.Completed),
		Due:        len(part.Due),
		Pending:    len(part.Pending),
	}
}

// ListCampaigns returns every campaign with its scheduling stats, sorted by
// creation time, newest first.
func (s *CampaignService) ListCampaigns() []CampaignSummary {
	now := s.now()
	summaries := []CampaignSummary{}
	for _, c := range s.Store.List() {
		summaries = append(summaries, CampaignSummary{
			Name:      c.Name,
			CreatedAt: c.CreatedAt,
			Sender:    c.Sender,
			Stats:     s.statsFor(c, now),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries
}

// GetCampaignDetails fetches a campaign and its scheduling stats.
func (s *CampaignService) GetCampaignDetails(name string) (*model.Campaign, CampaignStats, error) {
	c, err := s.Store.Get(name)
	if err != nil {
		return nil, CampaignStats{}, err
	}
	return c, s.statsFor(c, s.now()), nil
}

// ClearCampaigns wipes the whole campaign store. Operator reset only.
func (s *CampaignService) ClearCampaigns() error {
	return s.Store.Clear()
}

// TotalSent reports the lifetime successful-send count.
func (s *CampaignService) TotalSent() int {
	return s.Counter.Total()
}
