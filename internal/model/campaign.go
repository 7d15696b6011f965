// internal/model/campaign.go
package model

import "time"

const (
	DefaultFollowupsPlanned = 5
	DefaultIntervalDays     = 3
)

// Campaign is one named bulk-send with its follow-up policy. Only recipients
// whose initial send succeeded are recorded; a campaign name is never reused.
type Campaign struct {
	Name                  string                `json:"name"`
	CreatedAt             time.Time             `json:"created_at"`
	Sender                string                `json:"sender"`
	SubjectTemplate       string                `json:"subject_template"`
	BodyTemplate          string                `json:"body_template"`
	TotalFollowupsPlanned int                   `json:"total_followups_planned"`
	FollowupIntervalDays  int                   `json:"followup_interval_days"`
	Recipients            map[string]*Recipient `json:"recipients"`
}
