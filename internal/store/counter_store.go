// internal/store/counter_store.go
package store

import (
	"encoding/json"
	"log"
	"os"
	"sync"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
)

const DefaultCounterFile = "total_emails_sent.json"

// CounterStoreInterface is the lifetime send counter, a sibling file to the
// campaign database. It feeds reporting only, never scheduling correctness.
type CounterStoreInterface interface {
	Total() int
	Add(n int) error
}

type counterRecord struct {
	TotalSent int `json:"total_sent"`
}

// CounterStore persists the all-time successful-send count.
type CounterStore struct {
	Path string
	mu   sync.Mutex
}

func NewCounterStore(path string) *CounterStore {
	if path == "" {
		path = DefaultCounterFile
	}
	return &CounterStore{Path: path}
}

func (s *CounterStore) readLocked() int {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Println("⚠️ sent counter unreadable, starting from 0:", err)
		}
		return 0
	}
	var rec counterRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Println("⚠️ sent counter corrupt, starting from 0:", err)
		return 0
	}
	return rec.TotalSent
}

// Total returns the persisted lifetime count, 0 when unreadable.
func (s *CounterStore) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Add increments the counter additively after a batch that sent n messages.
func (s *CounterStore) Add(n int) error {
	if n <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := counterRecord{TotalSent: s.readLocked() + n}
	data, err := json.Marshal(rec)
	if err != nil {
		return appErrors.NewStoreWrite(s.Path, err)
	}
	if err := os.WriteFile(s.Path, data, 0644); err != nil {
		return appErrors.NewStoreWrite(s.Path, err)
	}
	return nil
}

var _ CounterStoreInterface = (*CounterStore)(nil)
