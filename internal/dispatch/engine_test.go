package dispatch_test

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/unclebandit/mailblast-backend/internal/dispatch"
	"github.com/unclebandit/mailblast-backend/internal/mail"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/thread"
)

// --- Fake transport ---

type sentMail struct {
	from string
	to   []string
	raw  string
}

type fakeTransport struct {
	sent   []sentMail
	failTo map[string]bool
	closed int
}

func (f *fakeTransport) Send(from string, to []string, msg io.WriterTo) error {
	for _, addr := range to {
		if f.failTo[addr] {
			return fmt.Errorf("550 mailbox unavailable")
		}
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return err
	}
	f.sent = append(f.sent, sentMail{from: from, to: to, raw: buf.String()})
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed++
	return nil
}

func newTestEngine(ft *fakeTransport) *dispatch.Engine {
	e := dispatch.NewEngine(func() (mail.Session, error) {
		return mail.WrapSendCloser(ft), nil
	})
	e.Throttle.Sleep = func(time.Duration) {}
	e.Now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return e
}

// --- Tests ---

func TestRunSendsWholeBatch(t *testing.T) {
	ft := &fakeTransport{}
	e := newTestEngine(ft)

	report, err := e.Run(dispatch.Batch{
		Sender:          "ops@example.com",
		SubjectTemplate: "Hello {Name}",
		BodyTemplate:    "Hi {Name}, this is for {Email}.",
		Jobs: []dispatch.Job{
			{Name: "Alice", Email: "alice@example.com", Context: map[string]string{"Name": "Alice", "Email": "alice@example.com"}},
			{Name: "Bob", Email: "bob@example.com", Context: map[string]string{"Name": "Bob", "Email": "bob@example.com"}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Sent != 2 || report.Failed != 0 {
		t.Fatalf("expected 2 sent, got sent=%d failed=%d", report.Sent, report.Failed)
	}
	if len(ft.sent) != 2 {
		t.Fatalf("expected 2 transmissions, got %d", len(ft.sent))
	}
	if ft.closed != 1 {
		t.Errorf("session close called %d times, want 1", ft.closed)
	}

	info, ok := report.Threads["alice@example.com"]
	if !ok {
		t.Fatal("expected thread info for alice")
	}
	if info.MessageID == "" || info.ThreadIndex == "" {
		t.Error("thread identity must be recorded on success")
	}
	if info.Subject != "Hello Alice" {
		t.Errorf("expected rendered topic, got %q", info.Subject)
	}
	if !strings.Contains(ft.sent[0].raw, "Subject: Hello Alice") {
		t.Errorf("serialized mail missing rendered subject:\n%s", ft.sent[0].raw)
	}
	if !strings.Contains(ft.sent[0].raw, "Thread-Index: ") {
		t.Error("initial send must carry a Thread-Index header")
	}
	if strings.Contains(ft.sent[0].raw, "In-Reply-To") {
		t.Error("initial send must not carry reply headers")
	}
}

func TestRunTransportFailureDoesNotAbortBatch(t *testing.T) {
	ft := &fakeTransport{failTo: map[string]bool{"bob@example.com": true}}
	e := newTestEngine(ft)

	report, err := e.Run(dispatch.Batch{
		Sender:          "ops@example.com",
		SubjectTemplate: "Hello {Name}",
		BodyTemplate:    "Hi {Name}.",
		Jobs: []dispatch.Job{
			{Name: "Alice", Email: "alice@example.com", Context: map[string]string{"Name": "Alice"}},
			{Name: "Bob", Email: "bob@example.com", Context: map[string]string{"Name": "Bob"}},
			{Name: "Carol", Email: "carol@example.com", Context: map[string]string{"Name": "Carol"}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Sent != 2 || report.Failed != 1 {
		t.Fatalf("expected sent=2 failed=1, got sent=%d failed=%d", report.Sent, report.Failed)
	}
	if _, ok := report.Threads["bob@example.com"]; ok {
		t.Error("failed recipient must not be recorded in Threads")
	}
	if _, ok := report.Threads["carol@example.com"]; !ok {
		t.Error("recipients after the failure must still be sent")
	}

	var bob model.SendResult
	for _, res := range report.Results {
		if res.Email == "bob@example.com" {
			bob = res
		}
	}
	if bob.Status != model.StatusFailed {
		t.Fatalf("bob should have failed, got %q", bob.Status)
	}
	if !strings.HasPrefix(bob.Message, "SMTP error: ") {
		t.Errorf("transport failures carry the SMTP error prefix, got %q", bob.Message)
	}
}

func TestRunRenderFailureIsPerRecipient(t *testing.T) {
	ft := &fakeTransport{}
	e := newTestEngine(ft)

	report, err := e.Run(dispatch.Batch{
		Sender:          "ops@example.com",
		SubjectTemplate: "Hello {Name}",
		BodyTemplate:    "Your company: {Company}",
		Jobs: []dispatch.Job{
			{Name: "Alice", Email: "alice@example.com", Context: map[string]string{"Name": "Alice"}},
			{Name: "Bob", Email: "bob@example.com", Context: map[string]string{"Name": "Bob", "Company": "Globex"}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Sent != 1 || report.Failed != 1 {
		t.Fatalf("expected sent=1 failed=1, got sent=%d failed=%d", report.Sent, report.Failed)
	}
	if !strings.Contains(report.Results[0].Message, "missing placeholder {Company}") {
		t.Errorf("render failure should name the key, got %q", report.Results[0].Message)
	}
	if len(ft.sent) != 1 {
		t.Fatalf("only bob should have gone out, got %d transmissions", len(ft.sent))
	}
}

func TestRunFactoryErrorIsFatal(t *testing.T) {
	called := 0
	e := dispatch.NewEngine(func() (mail.Session, error) {
		called++
		return nil, fmt.Errorf("535 authentication failed")
	})
	e.Throttle.Sleep = func(time.Duration) {}

	report, err := e.Run(dispatch.Batch{
		Sender:          "ops@example.com",
		SubjectTemplate: "Hi",
		BodyTemplate:    "Hi",
		Jobs:            []dispatch.Job{{Name: "Alice", Email: "alice@example.com", Context: map[string]string{}}},
	})
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if report != nil {
		t.Error("no report on a fatal connect failure")
	}
	if called != 1 {
		t.Errorf("factory called %d times, want 1", called)
	}
}

func TestRunEmptyBatchSkipsSession(t *testing.T) {
	called := 0
	e := dispatch.NewEngine(func() (mail.Session, error) {
		called++
		return nil, fmt.Errorf("should not be reached")
	})

	report, err := e.Run(dispatch.Batch{Sender: "ops@example.com", SubjectTemplate: "Hi", BodyTemplate: "Hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called != 0 {
		t.Error("empty batch must not open a session")
	}
	if report.Sent != 0 || report.Failed != 0 || len(report.Results) != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
}

func TestRunReplyHeaders(t *testing.T) {
	ft := &fakeTransport{}
	e := newTestEngine(ft)

	parentIndex := thread.NewConversationIndex(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	_, err := e.Run(dispatch.Batch{
		Sender:       "ops@example.com",
		BodyTemplate: "Just checking in, {Name}.",
		Jobs: []dispatch.Job{{
			Name:    "Alice",
			Email:   "alice@example.com",
			Context: map[string]string{"Name": "Alice"},
			Reply: &dispatch.Reply{
				MessageID:   "<parent-id@example.com>",
				ThreadIndex: parentIndex,
				Subject:     "Quick question",
			},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw := ft.sent[0].raw
	for _, want := range []string{
		"Subject: Re: Quick question",
		"In-Reply-To: <parent-id@example.com>",
		"References: <parent-id@example.com>",
		"Thread-Topic: Quick question",
		"Thread-Index: ",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("reply mail missing %q:\n%s", want, raw)
		}
	}
}

func TestRunBadParentIndexStillSends(t *testing.T) {
	ft := &fakeTransport{}
	e := newTestEngine(ft)

	report, err := e.Run(dispatch.Batch{
		Sender:       "ops@example.com",
		BodyTemplate: "Checking in.",
		Jobs: []dispatch.Job{{
			Name:    "Alice",
			Email:   "alice@example.com",
			Context: map[string]string{"Name": "Alice"},
			Reply: &dispatch.Reply{
				MessageID:   "<parent-id@example.com>",
				ThreadIndex: "!!garbage!!",
				Subject:     "Quick question",
			},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Sent != 1 {
		t.Fatalf("undecodable parent index must not fail the send, got %+v", report)
	}
	if report.Threads["alice@example.com"].ThreadIndex == "" {
		t.Error("fallback index must be recorded")
	}
}

func TestRunThrottlesOnCumulativeCount(t *testing.T) {
	ft := &fakeTransport{}
	e := newTestEngine(ft)
	var slept []time.Duration
	e.Throttle.Sleep = func(d time.Duration) { slept = append(slept, d) }

	jobs := make([]dispatch.Job, 12)
	for i := range jobs {
		addr := fmt.Sprintf("r%02d@example.com", i)
		jobs[i] = dispatch.Job{Name: "R", Email: addr, Context: map[string]string{"Name": "R"}}
	}
	if _, err := e.Run(dispatch.Batch{Sender: "ops@example.com", SubjectTemplate: "Hi", BodyTemplate: "Hi", Jobs: jobs}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(slept) != 1 || slept[0] != 2500*time.Millisecond {
		t.Fatalf("expected one 2.5s pause at the 10th send, got %v", slept)
	}
	if e.CumulativeSent() != 12 {
		t.Errorf("cumulative count = %d, want 12", e.CumulativeSent())
	}

	// The counter carries across batches within the same engine.
	slept = nil
	jobs2 := make([]dispatch.Job, 8)
	for i := range jobs2 {
		addr := fmt.Sprintf("s%02d@example.com", i)
		jobs2[i] = dispatch.Job{Name: "S", Email: addr, Context: map[string]string{"Name": "S"}}
	}
	if _, err := e.Run(dispatch.Batch{Sender: "ops@example.com", SubjectTemplate: "Hi", BodyTemplate: "Hi", Jobs: jobs2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slept) != 1 || slept[0] != 2500*time.Millisecond {
		t.Fatalf("expected one 2.5s pause at cumulative 20, got %v", slept)
	}
}

func TestRunObserverSeesProgress(t *testing.T) {
	ft := &fakeTransport{}
	e := newTestEngine(ft)
	var snaps []dispatch.Progress
	e.Observer = func(p dispatch.Progress) { snaps = append(snaps, p) }

	_, err := e.Run(dispatch.Batch{
		Sender:          "ops@example.com",
		SubjectTemplate: "Hi",
		BodyTemplate:    "Hi",
		Jobs: []dispatch.Job{
			{Name: "Alice", Email: "alice@example.com", Context: map[string]string{}},
			{Name: "Bob", Email: "bob@example.com", Context: map[string]string{}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 progress snapshots, got %d", len(snaps))
	}
	last := snaps[1]
	if last.Done != 2 || last.Total != 2 || last.Fraction != 1.0 {
		t.Errorf("unexpected final snapshot: %+v", last)
	}
	if len(last.Log) != 2 {
		t.Errorf("expected 2 log lines, got %d", len(last.Log))
	}
	if !strings.Contains(last.Line, "bob@example.com") {
		t.Errorf("last line should be bob's: %q", last.Line)
	}
}
