// internal/model/recipient.go
package model

import "time"

// Recipient is keyed by address inside its campaign. MessageID, Subject and
// ThreadIndex always describe the most recent mail in the recipient's thread.
type Recipient struct {
	Name             string    `json:"name"`
	MessageID        string    `json:"message_id"`
	Subject          string    `json:"subject"`
	ThreadIndex      string    `json:"thread_index"`
	FollowupsSent    int       `json:"followups_sent"`
	LastSentDate     time.Time `json:"last_sent_date"`
	NextFollowupDate time.Time `json:"next_followup_date"`
}

// Completed reports whether the recipient has exhausted the planned
// follow-ups and is excluded from all future scheduling.
func (r *Recipient) Completed(planned int) bool {
	return r.FollowupsSent >= planned
}
