package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/invoice-workflow/internal/application/delegation"
	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
	"github.com/garyjia/invoice-workflow/pkg/utils"
)

// CreateDelegationInput is a request to hand over approval authority
type CreateDelegationInput struct {
	DelegatorUserID string `json:"delegator_user_id" validate:"required"`
	DelegateUserID  string `json:"delegate_user_id" validate:"required"`
	DateFrom        string `json:"date_from" validate:"required,date"`
	DateTo          string `json:"date_to" validate:"required,date"`
}

// DelegationService manages delegations
type DelegationService interface {
	Create(ctx context.Context, actorID string, in CreateDelegationInput) (*entity.Delegation, error)
	List(ctx context.Context, delegatorUserID string) ([]*entity.Delegation, error)
}

type delegationServiceImpl struct {
	delegationRepo port.DelegationRepository
	userRepo       port.UserRepository
	txManager      port.TransactionManager
	logger         Logger
	clock          func() time.Time
}

// NewDelegationService creates a new DelegationService
func NewDelegationService(
	delegationRepo port.DelegationRepository,
	userRepo port.UserRepository,
	txManager port.TransactionManager,
	logger Logger,
) DelegationService {
	return &delegationServiceImpl{
		delegationRepo: delegationRepo,
		userRepo:       userRepo,
		txManager:      txManager,
		logger:         logger,
		clock:          time.Now,
	}
}

// Create stores a delegation. Only the delegator or an admin may create one,
// and it must not overlap the delegator's existing delegations.
func (s *delegationServiceImpl) Create(ctx context.Context, actorID string, in CreateDelegationInput) (*entity.Delegation, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domainwf.ErrMissingRequiredField, err)
	}

	from, err := time.Parse(entity.DateLayout, in.DateFrom)
	if err != nil {
		return nil, fmt.Errorf("%w: date_from: %v", domainwf.ErrMissingRequiredField, err)
	}
	to, err := time.Parse(entity.DateLayout, in.DateTo)
	if err != nil {
		return nil, fmt.Errorf("%w: date_to: %v", domainwf.ErrMissingRequiredField, err)
	}

	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("get actor: %w", err)
	}
	if actor == nil || !actor.Active || (actor.ID != in.DelegatorUserID && actor.Role != domainwf.RoleAdmin) {
		return nil, fmt.Errorf("%w: only the delegator or an admin can delegate", domainwf.ErrForbidden)
	}

	delegate, err := s.userRepo.GetByID(ctx, in.DelegateUserID)
	if err != nil {
		return nil, fmt.Errorf("get delegate: %w", err)
	}
	if delegate == nil || !delegate.Active {
		return nil, fmt.Errorf("%w: delegate %s", domainwf.ErrNotFound, in.DelegateUserID)
	}

	d := &entity.Delegation{
		ID:              uuid.NewString(),
		DelegatorUserID: in.DelegatorUserID,
		DelegateUserID:  in.DelegateUserID,
		DateFrom:        from,
		DateTo:          to,
		CreatedAt:       s.clock().UTC(),
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.delegationRepo.ListByDelegator(txCtx, in.DelegatorUserID)
		if err != nil {
			return fmt.Errorf("list delegations: %w", err)
		}
		if err := delegation.Validate(d, existing); err != nil {
			return err
		}
		if err := s.delegationRepo.Create(txCtx, d); err != nil {
			return fmt.Errorf("create delegation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Delegation created",
		"delegation_id", d.ID,
		"delegator", d.DelegatorUserID,
		"delegate", d.DelegateUserID,
		"from", in.DateFrom,
		"to", in.DateTo,
	)
	return d, nil
}

// List returns the delegations of a delegator
func (s *delegationServiceImpl) List(ctx context.Context, delegatorUserID string) ([]*entity.Delegation, error) {
	delegations, err := s.delegationRepo.ListByDelegator(ctx, delegatorUserID)
	if err != nil {
		return nil, fmt.Errorf("list delegations: %w", err)
	}
	return delegations, nil
}
