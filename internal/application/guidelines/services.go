package guidelines

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	domain "github.com/bryanwahyu/mlr-studio/internal/domain/guidelines"
)

// Service is the guideline store. One rubric per client, last write wins.
type Service struct {
	Snapshots domain.SnapshotStore
	Namespace string

	mu    sync.Mutex
	cache map[string]domain.Rubric
}

func NewService(snapshots domain.SnapshotStore) *Service {
	return &Service{Snapshots: snapshots, Namespace: domain.Namespace}
}

// Get returns the client's rubric, loading the persisted snapshot on first use.
func (s *Service) Get(ctx context.Context, client string) domain.Rubric {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current(ctx, client).Clone()
}

// Set updates one field and persists the whole snapshot.
func (s *Service) Set(ctx context.Context, client string, key domain.Key, value string) (domain.Rubric, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownKey, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.current(ctx, client).Clone()
	r[key] = value
	s.cache[client] = r
	s.persist(ctx, client, r)
	return r.Clone(), nil
}

// Reset restores the seeded defaults.
func (s *Service) Reset(ctx context.Context, client string) domain.Rubric {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := domain.Defaults()
	if s.cache == nil {
		s.cache = make(map[string]domain.Rubric)
	}
	s.cache[client] = r
	s.persist(ctx, client, r)
	return r.Clone()
}

// Schema returns the editor layout.
func (s *Service) Schema() []domain.Group {
	return domain.Groups()
}

// current must be called with mu held.
func (s *Service) current(ctx context.Context, client string) domain.Rubric {
	if s.cache == nil {
		s.cache = make(map[string]domain.Rubric)
	}
	if r, ok := s.cache[client]; ok {
		return r
	}
	r := s.load(ctx, client)
	s.cache[client] = r
	return r
}

// load never fails: a missing or corrupt snapshot means defaults.
func (s *Service) load(ctx context.Context, client string) domain.Rubric {
	defaults := domain.Defaults()
	if s.Snapshots == nil {
		return defaults
	}
	data, err := s.Snapshots.Load(ctx, s.namespace(), client)
	if err != nil {
		log.Printf("event=guidelines_load client=%s err=%v", client, err)
		return defaults
	}
	if len(data) == 0 {
		return defaults
	}
	var snap domain.Rubric
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Printf("event=guidelines_corrupt client=%s err=%v", client, err)
		return defaults
	}
	return snap.Normalize(defaults)
}

func (s *Service) persist(ctx context.Context, client string, r domain.Rubric) {
	if s.Snapshots == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		log.Printf("event=guidelines_save client=%s err=%v", client, err)
		return
	}
	if err := s.Snapshots.Save(ctx, s.namespace(), client, data); err != nil {
		log.Printf("event=guidelines_save client=%s err=%v", client, err)
	}
}

func (s *Service) namespace() string {
	if s.Namespace == "" {
		return domain.Namespace
	}
	return s.Namespace
}
