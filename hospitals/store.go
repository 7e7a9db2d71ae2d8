// Package hospitals owns the hospital registry: a cache-plus-write-through
// store over the hospitals collection.
package hospitals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/medipass/hospital-worker/store"
)

var Module = fx.Provide(New)

type Params struct {
	fx.In

	Store  store.Store
	Logger *zap.SugaredLogger
}

type Store struct {
	store  store.Store
	logger *zap.SugaredLogger

	mu        sync.Mutex
	hospitals []Hospital
	loading   bool
	err       error
}

func New(p Params) *Store {
	return &Store{
		store:  p.Store,
		logger: p.Logger,
	}
}

// Fetch loads the hospital registry into the cache. It is idempotent:
// when the cache is already populated no backend read happens. There is
// no staleness tracking and no manual refresh path.
func (s *Store) Fetch(ctx context.Context) error {
	s.mu.Lock()
	if len(s.hospitals) > 0 {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	snapshot, err := s.store.Query(ctx, Collection)
	if err != nil {
		s.setError(fmt.Errorf("unable to load hospitals: %w", err))
		return err
	}
	hospitals, err := store.DecodeAll[Hospital](snapshot)
	if err != nil {
		s.setError(fmt.Errorf("unable to decode hospitals: %w", err))
		return err
	}

	s.mu.Lock()
	s.hospitals = hospitals
	s.loading = false
	s.mu.Unlock()
	return nil
}

// Add registers a hospital. New hospitals always start active.
func (s *Store) Add(ctx context.Context, params NewHospitalParams) (Hospital, error) {
	hospital := Hospital{
		ID:        uuid.NewString(),
		Name:      params.Name,
		Address:   params.Address,
		Phone:     params.Phone,
		Email:     params.Email,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.SetDocument(ctx, Collection, hospital.ID, hospital); err != nil {
		return Hospital{}, fmt.Errorf("unable to add hospital: %w", err)
	}

	s.mu.Lock()
	s.hospitals = append(s.hospitals, hospital)
	s.mu.Unlock()

	s.logger.Infow("hospital added", "hospitalId", hospital.ID, "name", hospital.Name)
	return hospital, nil
}

func (s *Store) Update(ctx context.Context, id string, update Update) error {
	now := time.Now().UTC()
	if err := s.store.UpdateDocument(ctx, Collection, id, update.Fields(now)); err != nil {
		return fmt.Errorf("unable to update hospital: %w", err)
	}

	s.mu.Lock()
	for i := range s.hospitals {
		if s.hospitals[i].ID == id {
			update.Apply(&s.hospitals[i])
			s.hospitals[i].UpdatedAt = now
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// Delete removes a hospital. Dependent users and patients keep their
// hospitalId references; cascade behavior is deliberately unspecified.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteDocument(ctx, Collection, id); err != nil {
		return fmt.Errorf("unable to delete hospital: %w", err)
	}

	s.mu.Lock()
	kept := s.hospitals[:0]
	for _, h := range s.hospitals {
		if h.ID != id {
			kept = append(kept, h)
		}
	}
	s.hospitals = kept
	s.mu.Unlock()
	return nil
}

// ToggleStatus flips the active flag. The current value is read from the
// local cache, not re-fetched, so it relies on cache freshness.
func (s *Store) ToggleStatus(ctx context.Context, id string) error {
	hospital, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("unknown hospital %q", id)
	}
	next := !hospital.IsActive
	return s.Update(ctx, id, Update{IsActive: &next})
}

// Get looks a hospital up in the local cache.
func (s *Store) Get(id string) (Hospital, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.hospitals {
		if h.ID == id {
			return h, true
		}
	}
	return Hospital{}, false
}

func (s *Store) Hospitals() []Hospital {
	s.mu.Lock()
	defer s.mu.Unlock()
	hospitals := make([]Hospital, len(s.hospitals))
	copy(hospitals, s.hospitals)
	return hospitals
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) setError(err error) {
	s.mu.Lock()
	s.err = err
	s.loading = false
	s.mu.Unlock()
}
