package queue_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/unclebandit/mailblast-backend/internal/queue"
)

func TestDecodeDispatchJobFromStruct(t *testing.T) {
	in := queue.DispatchJob{Kind: queue.KindLaunch, Campaign: "spring-launch"}

	got, err := queue.DecodeDispatchJob(in)
	if err != nil || got.Campaign != "spring-launch" {
		t.Errorf("value decode failed: %+v, %v", got, err)
	}
	got, err = queue.DecodeDispatchJob(&in)
	if err != nil || got.Campaign != "spring-launch" {
		t.Errorf("pointer decode failed: %+v, %v", got, err)
	}
}

func TestDecodeDispatchJobFromJSON(t *testing.T) {
	body, _ := json.Marshal(queue.DispatchJob{
		Kind:     queue.KindFollowup,
		Campaign: "spring-launch",
		Force:    true,
	})
	got, err := queue.DecodeDispatchJob(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != queue.KindFollowup || !got.Force {
		t.Errorf("unexpected job: %+v", got)
	}
}

func TestDecodeDispatchJobRejectsGarbage(t *testing.T) {
	if _, err := queue.DecodeDispatchJob([]byte("{not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := queue.DecodeDispatchJob(42); err == nil {
		t.Error("expected error for unknown payload type")
	}
}

func TestInMemoryQueueRequiresSubscriber(t *testing.T) {
	q := queue.NewInMemoryQueue()
	if err := q.Publish("nowhere", queue.DispatchJob{}); err == nil {
		t.Error("publishing without subscribers should fail")
	}
}

func TestInMemoryQueueDeliversInOrder(t *testing.T) {
	q := queue.NewInMemoryQueue()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 3)

	q.Subscribe(queue.DispatchQueue, func(payload any) error {
		job, err := queue.DecodeDispatchJob(payload)
		if err != nil {
			t.Errorf("decode: %v", err)
		}
		mu.Lock()
		got = append(got, job.Campaign)
		mu.Unlock()
		done <- struct{}{}
		return nil
	})

	for _, name := range []string{"one", "two", "three"} {
		if err := q.Publish(queue.DispatchQueue, queue.DispatchJob{Kind: queue.KindLaunch, Campaign: name}); err != nil {
			t.Fatalf("publish %s: %v", name, err)
		}
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != "one" || got[1] != "two" || got[2] != "three" {
		t.Errorf("jobs must run one at a time in publish order, got %v", got)
	}
}

func TestInMemoryQueueSerializesHandlers(t *testing.T) {
	q := queue.NewInMemoryQueue()

	var mu sync.Mutex
	running := 0
	maxRunning := 0
	done := make(chan struct{}, 5)

	q.Subscribe(queue.DispatchQueue, func(payload any) error {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		done <- struct{}{}
		return nil
	})

	for i := 0; i < 5; i++ {
		if err := q.Publish(queue.DispatchQueue, queue.DispatchJob{}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	if maxRunning != 1 {
		t.Errorf("two batches overlapped (max concurrent = %d)", maxRunning)
	}
}
