// internal/dispatch/engine.go
package dispatch

import (
	"fmt"
	"log"
	"time"

	"github.com/unclebandit/mailblast-backend/internal/mail"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/render"
	"github.com/unclebandit/mailblast-backend/internal/thread"
)

// LogTail is how many result lines the rolling progress log keeps.
const LogTail = 200

// Reply references the previous mail in a recipient's thread. Subject is the
// topic recorded when the parent was sent.
type Reply struct {
	MessageID   string
	ThreadIndex string
	Subject     string
}

// Job is one recipient in a batch. Reply is nil on an initial send.
type Job struct {
	Name    string
	Email   string
	Context map[string]string
	Reply   *Reply
}

// Batch is one dispatch pass over a recipient set. Jobs are processed in
// input order.
type Batch struct {
	Sender          string
	SubjectTemplate string
	BodyTemplate    string
	Jobs            []Job
	Signature       *mail.Attachment
	PDF             *mail.Attachment
	Inline          *mail.Attachment
}

// SentInfo is the thread identity of one successful submission. The caller
// uses it to update the campaign store; a recipient's state is never touched
// before its send is confirmed.
type SentInfo struct {
	MessageID   string
	ThreadIndex string
	Subject     string // thread topic, Re:-prefixes stripped
	SentAt      time.Time
}

// Report is the outcome of one batch.
type Report struct {
	Sent    int
	Failed  int
	Results []model.SendResult
	Threads map[string]SentInfo // keyed by address, successful sends only
}

// BatchReport flattens a Report for callers that only need the results.
func (r *Report) BatchReport() *model.BatchReport {
	return &model.BatchReport{Sent: r.Sent, Failed: r.Failed, Results: r.Results}
}

// Progress is a purely observational snapshot emitted after each recipient.
type Progress struct {
	Done     int
	Total    int
	Fraction float64
	Line     string
	Log      []string // rolling tail, at most LogTail lines
}

// Engine runs batches strictly sequentially over a single mail session: the
// session is a stateful connection that does not tolerate concurrent use.
// The cumulative counter feeding the throttle is explicit per-engine state,
// shared by every batch the engine runs in this process.
type Engine struct {
	Sessions mail.SessionFactory
	Throttle *Throttle
	Observer func(Progress) // optional
	Now      func() time.Time

	cumulative int
}

func NewEngine(sessions mail.SessionFactory) *Engine {
	return &Engine{Sessions: sessions, Throttle: NewThrottle()}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// CumulativeSent is the number of successful transmissions since the engine
// was created.
func (e *Engine) CumulativeSent() int { return e.cumulative }

// Run executes one batch. Authentication happens once; an auth or connect
// failure aborts with zero sends attempted. Per-recipient render and
// transport failures are recorded and skipped, never aborting the rest. An
// empty batch performs no session connection at all.
func (e *Engine) Run(b Batch) (*Report, error) {
	report := &Report{
		Results: []model.SendResult{},
		Threads: map[string]SentInfo{},
	}
	if len(b.Jobs) == 0 {
		return report, nil
	}

	log.Printf("dispatch: connecting session for %d recipients", len(b.Jobs))
	session, err := e.Sessions()
	if err != nil {
		return nil, err
	}
	defer func() {
		// Best-effort close; a close failure never reaches the caller.
		if cerr := session.Close(); cerr != nil {
			log.Println("dispatch: session close:", cerr)
		}
	}()

	var tail []string
	for i, job := range b.Jobs {
		result, info := e.sendOne(session, b, job)
		if result.Status == model.StatusSent {
			report.Sent++
			e.cumulative++
			report.Threads[job.Email] = *info
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, result)

		line := fmt.Sprintf("[%s] %s <%s> - %s", result.Status, result.Name, result.Email, result.Message)
		tail = append(tail, line)
		if len(tail) > LogTail {
			tail = tail[len(tail)-LogTail:]
		}
		log.Printf("dispatch: %d/%d %s", i+1, len(b.Jobs), line)
		if e.Observer != nil {
			e.Observer(Progress{
				Done:     i + 1,
				Total:    len(b.Jobs),
				Fraction: float64(i+1) / float64(len(b.Jobs)),
				Line:     line,
				Log:      tail,
			})
		}

		if result.Status == model.StatusSent {
			e.Throttle.Pause(e.cumulative)
		}
	}
	return report, nil
}

func (e *Engine) sendOne(session mail.Session, b Batch, job Job) (model.SendResult, *SentInfo) {
	now := e.now()

	var subject, topic string
	th := mail.Thread{}
	if job.Reply == nil {
		rendered, err := render.Render(b.SubjectTemplate, job.Context)
		if err != nil {
			return failed(job, err.Error()), nil
		}
		subject = rendered
		topic = thread.Topic(rendered)
		th.Index = thread.NewConversationIndex(now)
	} else {
		topic = thread.Topic(job.Reply.Subject)
		subject = "Re: " + topic
		th.InReplyTo = job.Reply.MessageID
		th.References = job.Reply.MessageID
		th.Topic = topic
		idx, err := thread.ChildConversationIndex(job.Reply.ThreadIndex, now)
		if err != nil {
			log.Printf("dispatch: %s: %v, thread continuity lost for this message", job.Email, err)
		}
		th.Index = idx
	}

	body, err := render.Render(b.BodyTemplate, job.Context)
	if err != nil {
		return failed(job, err.Error()), nil
	}

	th.MessageID = thread.NewMessageID(b.Sender)
	msg := mail.Build(mail.Compose{
		From:      b.Sender,
		To:        job.Email,
		Subject:   subject,
		Body:      body,
		Thread:    th,
		Signature: b.Signature,
		PDF:       b.PDF,
		Inline:    b.Inline,
	})

	if err := session.Submit(msg); err != nil {
		return failed(job, "SMTP error: "+err.Error()), nil
	}

	return model.SendResult{
			Name:    job.Name,
			Email:   job.Email,
			Status:  model.StatusSent,
			Message: "Email sent successfully.",
		}, &SentInfo{
			MessageID:   th.MessageID,
			ThreadIndex: th.Index,
			Subject:     topic,
			SentAt:      now,
		}
}

func failed(job Job, msg string) model.SendResult {
	return model.SendResult{
		Name:    job.Name,
		Email:   job.Email,
		Status:  model.StatusFailed,
		Message: msg,
	}
}
