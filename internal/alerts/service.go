package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/logger"
)

// Service validates alert mutations and scopes them to their owner.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
}

func (s *Service) List(ctx context.Context, owner string) ([]JobAlert, error) {
	owner, err := ownerOf(owner)
	if err != nil {
		return nil, err
	}

	alerts, err := s.store.List(ctx, owner)
	return alerts, storeErr("list alerts", err)
}

func (s *Service) Get(ctx context.Context, owner, id string) (*JobAlert, error) {
	owner, err := ownerOf(owner)
	if err != nil {
		return nil, err
	}

	a, err := s.store.Get(ctx, owner, id)
	return a, storeErr("get alert", err)
}

func (s *Service) Create(ctx context.Context, owner string, in Input) (*JobAlert, error) {
	owner, err := ownerOf(owner)
	if err != nil {
		return nil, err
	}

	now := s.now()
	a := &JobAlert{
		ID:        s.newID(),
		Owner:     owner,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := in.apply(a); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, a); err != nil {
		return nil, storeErr("create alert", err)
	}

	logger.ForAlert(s.logger, a.ID, owner).Info("alert created",
		logger.QueryFields(a.Keywords, a.Location)...,
	)
	return a, nil
}

// Update replaces every editable field. Active=false disables the alert
// without deleting it.
func (s *Service) Update(ctx context.Context, owner, id string, in Input) (*JobAlert, error) {
	owner, err := ownerOf(owner)
	if err != nil {
		return nil, err
	}

	a, err := s.store.Get(ctx, owner, id)
	if err != nil {
		return nil, storeErr("get alert", err)
	}

	if err := in.apply(a); err != nil {
		return nil, err
	}
	a.UpdatedAt = s.now()

	if err := s.store.Update(ctx, a); err != nil {
		return nil, storeErr("update alert", err)
	}

	logger.ForAlert(s.logger, a.ID, owner).Info("alert updated", zap.Bool("active", a.Active))
	return a, nil
}

// Delete is idempotent: deleting a missing alert succeeds.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	owner, err := ownerOf(owner)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, owner, id); err != nil {
		return storeErr("delete alert", err)
	}

	logger.ForAlert(s.logger, id, owner).Info("alert deleted")
	return nil
}
