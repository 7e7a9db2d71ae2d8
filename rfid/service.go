package rfid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/medipass/hospital-worker/store"
)

var ErrCardInUse = errors.New("rfid card is already registered to an active record")

var Module = fx.Provide(New)

type Params struct {
	fx.In

	Store  store.Store
	Logger *zap.SugaredLogger
}

type Service struct {
	store  store.Store
	logger *zap.SugaredLogger
}

func New(p Params) *Service {
	return &Service{
		store:  p.Store,
		logger: p.Logger,
	}
}

// Validate reports whether the card uid is free to assign. The check is a
// plain read, so two callers validating the same uid concurrently can both
// pass and the second write wins.
func (s *Service) Validate(ctx context.Context, uid string) error {
	snapshot, err := s.store.Query(ctx, Collection,
		store.Where("uid", store.OpEqual, uid),
		store.Where("isActive", store.OpEqual, true),
	)
	if err != nil {
		return fmt.Errorf("unable to look up rfid card %s: %w", uid, err)
	}
	if len(snapshot) > 0 {
		return ErrCardInUse
	}
	return nil
}

// Create registers the card for a patient after re-running the uniqueness
// check. Assignment to staff goes through AssignToUser.
func (s *Service) Create(ctx context.Context, uid, hospitalID, patientID string) (*Card, error) {
	if err := s.Validate(ctx, uid); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	card := Card{
		ID:         uuid.NewString(),
		UID:        uid,
		IsActive:   true,
		PatientID:  patientID,
		HospitalID: hospitalID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.SetDocument(ctx, Collection, card.ID, card); err != nil {
		return nil, fmt.Errorf("unable to create rfid card %s: %w", uid, err)
	}

	s.logger.Infow("registered rfid card", "uid", uid, "hospitalId", hospitalID)
	return &card, nil
}

// AssignToUser registers the card for a staff member.
func (s *Service) AssignToUser(ctx context.Context, uid, hospitalID, userID string) (*Card, error) {
	if err := s.Validate(ctx, uid); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	card := Card{
		ID:         uuid.NewString(),
		UID:        uid,
		IsActive:   true,
		UserID:     userID,
		HospitalID: hospitalID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.SetDocument(ctx, Collection, card.ID, card); err != nil {
		return nil, fmt.Errorf("unable to assign rfid card %s: %w", uid, err)
	}

	s.logger.Infow("assigned rfid card", "uid", uid, "userId", userID)
	return &card, nil
}

// CardsForUser returns every card registered to the given staff member.
func (s *Service) CardsForUser(ctx context.Context, userID string) ([]Card, error) {
	snapshot, err := s.store.Query(ctx, Collection, store.Where("userId", store.OpEqual, userID))
	if err != nil {
		return nil, fmt.Errorf("unable to list rfid cards for user %s: %w", userID, err)
	}
	return store.DecodeAll[Card](snapshot)
}

// Deactivate soft-releases a card so its uid can be reused.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	err := s.store.UpdateDocument(ctx, Collection, id, map[string]interface{}{
		"isActive":  false,
		"updatedAt": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("unable to deactivate rfid card %s: %w", id, err)
	}
	return nil
}
