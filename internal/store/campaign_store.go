// internal/store/campaign_store.go
package store

import (
	"encoding/json"
	"log"
	"os"
	"sync"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/model"
)

const DefaultCampaignFile = "campaign_db.json"

// CampaignStoreInterface defines the methods services need from the store.
type CampaignStoreInterface interface {
	List() map[string]*model.Campaign
	Get(name string) (*model.Campaign, error)
	Exists(name string) bool
	Create(c *model.Campaign) error
	Update(name string, fn func(*model.Campaign) error) error
	Clear() error
}

// CampaignStore owns the campaign database file. Every operation is a whole
// file read (or read-modify-write) under one mutex: the file is the sole
// shared mutable resource, so all batch operations must serialize through a
// single store instance.
type CampaignStore struct {
	Path string
	mu   sync.Mutex
}

func NewCampaignStore(path string) *CampaignStore {
	if path == "" {
		path = DefaultCampaignFile
	}
	return &CampaignStore{Path: path}
}

// load reads the whole file. A missing or unreadable file is an empty store,
// never a fatal error.
func (s *CampaignStore) load() map[string]*model.Campaign {
	db := map[string]*model.Campaign{}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Println("⚠️ campaign db unreadable, treating as empty:", err)
		}
		return db
	}
	if err := json.Unmarshal(data, &db); err != nil {
		log.Println("⚠️ campaign db corrupt, treating as empty:", err)
		return map[string]*model.Campaign{}
	}
	return db
}

func (s *CampaignStore) save(db map[string]*model.Campaign) error {
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return appErrors.NewStoreWrite(s.Path, err)
	}
	if err := os.WriteFile(s.Path, data, 0644); err != nil {
		return appErrors.NewStoreWrite(s.Path, err)
	}
	return nil
}

// List returns every stored campaign.
func (s *CampaignStore) List() map[string]*model.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *CampaignStore) Get(name string) (*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.load()[name]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(name)
	}
	return c, nil
}

func (s *CampaignStore) Exists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.load()[name]
	return ok
}

// Create records a new campaign. A name already present is rejected: an
// existing campaign is never silently overwritten.
func (s *CampaignStore) Create(c *model.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db := s.load()
	if _, ok := db[c.Name]; ok {
		return appErrors.NewCampaignExists(c.Name)
	}
	db[c.Name] = c
	return s.save(db)
}

// Update applies fn to the named campaign and persists the whole file. A
// write failure propagates so the mutation is never silently lost.
func (s *CampaignStore) Update(name string, fn func(*model.Campaign) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db := s.load()
	c, ok := db[name]
	if !ok {
		return appErrors.NewCampaignNotFound(name)
	}
	if err := fn(c); err != nil {
		return err
	}
	return s.save(db)
}

// Clear replaces the file content with an empty mapping. Operator-triggered
// full reset only; campaigns are never deleted automatically.
func (s *CampaignStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(map[string]*model.Campaign{})
}

var _ CampaignStoreInterface = (*CampaignStore)(nil)
