package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/medipass/hospital-worker/hospitals"
	"github.com/medipass/hospital-worker/rfid"
	"github.com/medipass/hospital-worker/store"
	"github.com/medipass/hospital-worker/users"
)

var ErrAlreadyInitialized = errors.New("dashboard store is already initialized")

var Module = fx.Provide(New)

type Params struct {
	fx.In

	Store  store.Store
	Logger *zap.SugaredLogger
}

// Store composes three independent realtime feeds into one statistics
// aggregate plus a notification list. The feeds update asynchronously,
// so every callback merges a partial update instead of replacing the
// aggregate wholesale.
type Store struct {
	store  store.Store
	logger *zap.SugaredLogger

	mu            sync.Mutex
	stats         Stats
	notifications []Notification
	err           error
	initialized   bool
	disposers     []store.Unsubscribe
}

func New(p Params) *Store {
	return &Store{
		store:  p.Store,
		logger: p.Logger,
	}
}

// Initialize opens the four subscriptions. Calling it on an already
// initialized store is an error so a remount cannot stack listeners.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.initialized = true
	s.mu.Unlock()

	subscriptions := []struct {
		collection string
		predicates []store.Predicate
		handle     func(store.Snapshot)
	}{
		{hospitals.Collection, nil, s.handleHospitals},
		{users.Collection, []store.Predicate{
			store.Where("role", store.OpNotEqual, string(users.RoleSuperAdmin)),
		}, s.handleUsers},
		{rfid.Collection, nil, s.handleCards},
		{NotificationsCollection, []store.Predicate{
			store.Where("isRead", store.OpEqual, false),
		}, s.handleNotifications},
	}

	for _, sub := range subscriptions {
		detach, err := s.store.Subscribe(ctx, sub.collection, sub.predicates, s.guarded(sub.handle))
		if err != nil {
			s.teardown()
			return fmt.Errorf("unable to subscribe to %s: %w", sub.collection, err)
		}
		s.mu.Lock()
		s.disposers = append(s.disposers, detach)
		s.mu.Unlock()
	}

	return nil
}

// Cleanup detaches every subscription and resets the aggregate to its
// zero value. Safe to call on a store that was never initialized.
func (s *Store) Cleanup() {
	s.teardown()
}

func (s *Store) teardown() {
	s.mu.Lock()
	disposers := s.disposers
	s.disposers = nil
	s.stats = Stats{}
	s.notifications = nil
	s.err = nil
	s.initialized = false
	s.mu.Unlock()

	for _, detach := range disposers {
		detach()
	}
}

// guarded turns a panic in a feed handler into a recorded error. The
// failing feed stops applying for that delivery; the others keep running.
func (s *Store) guarded(handle func(store.Snapshot)) func(store.Snapshot) {
	return func(snapshot store.Snapshot) {
		defer func() {
			if reason := recover(); reason != nil {
				s.recordError(fmt.Errorf("dashboard feed panicked: %v", reason))
			}
		}()
		handle(snapshot)
	}
}

func (s *Store) handleHospitals(snapshot store.Snapshot) {
	items, err := store.DecodeAll[hospitals.Hospital](snapshot)
	if err != nil {
		s.recordError(fmt.Errorf("unable to decode hospitals feed: %w", err))
		return
	}

	now := time.Now().UTC()
	section := HospitalStats{Total: len(items)}
	for _, hospital := range items {
		if hospital.IsActive {
			section.Active++
		}
		if now.Sub(hospital.CreatedAt) <= HospitalsNewWindow {
			section.New++
		}
	}
	s.apply(StatsUpdate{Hospitals: &section}, now)
}

func (s *Store) handleUsers(snapshot store.Snapshot) {
	items, err := store.DecodeAll[users.User](snapshot)
	if err != nil {
		s.recordError(fmt.Errorf("unable to decode users feed: %w", err))
		return
	}

	section := UserStats{Total: len(items), ByRole: map[string]int{}}
	for _, user := range items {
		section.ByRole[string(user.Role)]++
		if user.IsActive() {
			section.Active++
		}
	}
	s.apply(StatsUpdate{Users: &section}, time.Now().UTC())
}

func (s *Store) handleCards(snapshot store.Snapshot) {
	items, err := store.DecodeAll[rfid.Card](snapshot)
	if err != nil {
		s.recordError(fmt.Errorf("unable to decode rfid feed: %w", err))
		return
	}

	section := CardStats{Total: len(items)}
	for _, card := range items {
		if card.IsActive {
			section.Active++
		}
	}
	s.apply(StatsUpdate{Cards: &section}, time.Now().UTC())
}

func (s *Store) handleNotifications(snapshot store.Snapshot) {
	items, err := store.DecodeAll[Notification](snapshot)
	if err != nil {
		s.recordError(fmt.Errorf("unable to decode notifications feed: %w", err))
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	s.mu.Lock()
	s.notifications = items
	s.mu.Unlock()
}

// apply merges one feed's partial result into the aggregate. Feeds for
// the other sections keep their last-known values.
func (s *Store) apply(update StatsUpdate, now time.Time) {
	s.mu.Lock()
	update.Apply(&s.stats, now)
	s.err = nil
	s.mu.Unlock()
}

// recordError keeps the store serving the healthy feeds: the error is
// surfaced to the view while subsequent events continue to apply.
func (s *Store) recordError(err error) {
	s.logger.Errorw("dashboard feed error", zap.Error(err))
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	if s.stats.Users.ByRole != nil {
		stats.Users.ByRole = make(map[string]int, len(s.stats.Users.ByRole))
		for role, count := range s.stats.Users.ByRole {
			stats.Users.ByRole[role] = count
		}
	}
	return stats
}

func (s *Store) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	notifications := make([]Notification, len(s.notifications))
	copy(notifications, s.notifications)
	return notifications
}

func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}
