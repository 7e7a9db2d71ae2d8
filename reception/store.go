package reception

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/medipass/hospital-worker/store"
)

var ErrAlreadyInitialized = errors.New("reception store is already initialized")

var Module = fx.Provide(New)

type Params struct {
	fx.In

	Store  store.Store
	Logger *zap.SugaredLogger
}

// Store mirrors the reception desk's view of today: appointments, the
// patient queue and the message feed, scoped to one hospital.
type Store struct {
	store  store.Store
	logger *zap.SugaredLogger

	// now is stubbed in tests to pin the day bounds.
	now func() time.Time

	mu           sync.Mutex
	appointments []Appointment
	queue        []QueueEntry
	messages     []Message
	err          error
	initialized  bool
	disposers    []store.Unsubscribe
}

func New(p Params) *Store {
	return &Store{
		store:  p.Store,
		logger: p.Logger,
		now:    time.Now,
	}
}

// Initialize opens the three feeds for the hospital, bounded to the
// current local day.
func (s *Store) Initialize(ctx context.Context, hospitalID string) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.initialized = true
	s.mu.Unlock()

	dayStart, dayEnd := dayBounds(s.now())

	subscriptions := []struct {
		collection string
		predicates []store.Predicate
		handle     func(store.Snapshot)
	}{
		{AppointmentsCollection, []store.Predicate{
			store.Where("hospitalId", store.OpEqual, hospitalID),
			store.Where("date", store.OpGreaterOrEqual, dayStart),
			store.Where("date", store.OpLess, dayEnd),
		}, s.handleAppointments},
		{QueueCollection, []store.Predicate{
			store.Where("hospitalId", store.OpEqual, hospitalID),
			store.Where("arrivalTime", store.OpGreaterOrEqual, dayStart),
			store.Where("arrivalTime", store.OpLess, dayEnd),
		}, s.handleQueue},
		{MessagesCollection, []store.Predicate{
			store.Where("type", store.OpIn, []interface{}{string(MessageChat), string(MessageAnnouncement)}),
		}, s.handleMessages},
	}

	for _, sub := range subscriptions {
		detach, err := s.store.Subscribe(ctx, sub.collection, sub.predicates, s.guarded(sub.handle))
		if err != nil {
			s.Cleanup()
			return fmt.Errorf("unable to subscribe to %s: %w", sub.collection, err)
		}
		s.mu.Lock()
		s.disposers = append(s.disposers, detach)
		s.mu.Unlock()
	}

	return nil
}

// Cleanup detaches every feed and resets the mirrored state.
func (s *Store) Cleanup() {
	s.mu.Lock()
	disposers := s.disposers
	s.disposers = nil
	s.appointments = nil
	s.queue = nil
	s.messages = nil
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
				s.recordError(fmt.Errorf("reception feed panicked: %v", reason))
			}
		}()
		handle(snapshot)
	}
}

func (s *Store) handleAppointments(snapshot store.Snapshot) {
	items, err := store.DecodeAll[Appointment](snapshot)
	if err != nil {
		s.recordError(fmt.Errorf("unable to decode appointments feed: %w", err))
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.Before(items[j].Date)
	})

	s.mu.Lock()
	s.appointments = items
	s.mu.Unlock()
}

func (s *Store) handleQueue(snapshot store.Snapshot) {
	items, err := store.DecodeAll[QueueEntry](snapshot)
	if err != nil {
		s.recordError(fmt.Errorf("unable to decode queue feed: %w", err))
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ArrivalTime.Before(items[j].ArrivalTime)
	})

	s.mu.Lock()
	s.queue = items
	s.mu.Unlock()
}

func (s *Store) handleMessages(snapshot store.Snapshot) {
	items, err := store.DecodeAll[Message](snapshot)
	if err != nil {
		s.recordError(fmt.Errorf("unable to decode messages feed: %w", err))
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	s.mu.Lock()
	s.messages = items
	s.mu.Unlock()
}

func (s *Store) recordError(err error) {
	s.logger.Errorw("reception feed error", zap.Error(err))
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// TodayStats recomputes the desk summary from the mirrored feeds.
func (s *Store) TodayStats() TodayStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := TodayStats{TotalPatients: len(s.queue)}
	now := s.now()
	for _, appointment := range s.appointments {
		if appointment.Date.After(now) && appointment.Status != AppointmentCancelled {
			stats.UpcomingAppointments++
		}
	}
	for _, message := range s.messages {
		if !message.Read {
			stats.UnreadNotifications++
		}
	}
	return stats
}

func (s *Store) Appointments() []Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	appointments := make([]Appointment, len(s.appointments))
	copy(appointments, s.appointments)
	return appointments
}

func (s *Store) Queue() []QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := make([]QueueEntry, len(s.queue))
	copy(queue, s.queue)
	return queue
}

func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := make([]Message, len(s.messages))
	copy(messages, s.messages)
	return messages
}

func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func dayBounds(now time.Time) (time.Time, time.Time) {
	year, month, day := now.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	return start, start.Add(24 * time.Hour)
}
