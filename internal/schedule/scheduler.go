// internal/schedule/scheduler.go
package schedule

import (
	"sort"
	"time"

	"github.com/unclebandit/mailblast-backend/internal/model"
)

// Partition groups a campaign's recipients by follow-up eligibility.
// Completed recipients are terminal regardless of their next date.
type Partition struct {
	Due       []string
	Pending   []string
	Completed []string
}

// Split classifies every recipient of c at the given time. Force treats all
// non-terminal recipients as due regardless of timestamps. Each group is
// sorted by address so batch order is deterministic.
func Split(c *model.Campaign, now time.Time, force bool) Partition {
	var p Partition
	for email, r := range c.Recipients {
		switch {
		case r.Completed(c.TotalFollowupsPlanned):
			p.Completed = append(p.Completed, email)
		case force || !r.NextFollowupDate.After(now):
			p.Due = append(p.Due, email)
		default:
			p.Pending = append(p.Pending, email)
		}
	}
	sort.Strings(p.Due)
	sort.Strings(p.Pending)
	sort.Strings(p.Completed)
	return p
}

// Advance records a successful follow-up send: the follow-up count goes up
// by one, the thread identity moves to the new message, and the next
// eligibility is exactly sentAt plus the campaign interval. Failed sends
// never call this, so their scheduling fields stay untouched.
func Advance(r *model.Recipient, messageID, threadIndex, topic string, sentAt time.Time, intervalDays int) {
	r.FollowupsSent++
	r.MessageID = messageID
	r.ThreadIndex = threadIndex
	r.Subject = topic
	r.LastSentDate = sentAt
	r.NextFollowupDate = sentAt.AddDate(0, 0, intervalDays)
}
