package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gasflowhq/gasflow-backend/pkg/db/models"
	pkgerrors "github.com/gasflowhq/gasflow-backend/pkg/errors"
	"github.com/gasflowhq/gasflow-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service defines customer account operations.
type Service interface {
	Create(ctx context.Context, input CreateCustomerInput) (*models.Customer, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	List(ctx context.Context, params pagination.Params, includeRetired bool) ([]models.Customer, string, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateCustomerInput) (*models.Customer, error)
	Retire(ctx context.Context, id uuid.UUID) error
}

// CreateCustomerInput carries the fields accepted at signup/admin creation.
type CreateCustomerInput struct {
	Name       string
	Phone      *string
	Email      *string
	Location   *string
	PricePerKg decimal.Decimal
	Tags       []string
}

// UpdateCustomerInput updates contact details and the going rate. A price
// change here affects future deliveries only; existing deliveries keep their
// snapshot.
type UpdateCustomerInput struct {
	Name       *string
	Phone      *string
	Email      *string
	Location   *string
	PricePerKg *decimal.Decimal
	Tags       []string
}

type service struct {
	repo Repository
}

// NewService wires a customers service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customers repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateCustomerInput) (*models.Customer, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name is required")
	}
	if !input.PricePerKg.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price per kg must be positive")
	}

	customer := &models.Customer{
		Name:       name,
		Phone:      input.Phone,
		Email:      input.Email,
		Location:   input.Location,
		PricePerKg: input.PricePerKg,
		Balance:    decimal.Zero,
		Tags:       pq.StringArray(input.Tags),
	}
	created, err := s.repo.Create(ctx, customer)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating customer")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading customer")
	}
	return customer, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, includeRetired bool) ([]models.Customer, string, error) {
	rows, next, err := s.repo.List(ctx, params, includeRetired)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing customers")
	}
	return rows, next, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateCustomerInput) (*models.Customer, error) {
	customer, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer.Retired() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "customer is retired")
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Phone != nil {
		updates["phone"] = *input.Phone
	}
	if input.Email != nil {
		updates["email"] = *input.Email
	}
	if input.Location != nil {
		updates["location"] = *input.Location
	}
	if input.PricePerKg != nil {
		if !input.PricePerKg.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price per kg must be positive")
		}
		updates["price_per_kg"] = *input.PricePerKg
	}
	if input.Tags != nil {
		updates["tags"] = pq.StringArray(input.Tags)
	}
	if len(updates) == 0 {
		return customer, nil
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating customer")
	}
	return s.Get(ctx, id)
}

func (s *service) Retire(ctx context.Context, id uuid.UUID) error {
	customer, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if customer.Retired() {
		return nil
	}
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, id, map[string]any{"retired_at": now}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "retiring customer")
	}
	return nil
}
