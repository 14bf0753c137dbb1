package ledger

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/gasflowhq/gasflow-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service owns the signed customer balance. Positive balances are arrears,
// negative balances are credit. Everything that changes the number goes
// through AdjustBalance; no other code writes customers.balance.
type Service interface {
	// AdjustBalance applies delta inside the caller's transaction when tx is
	// non-nil, otherwise against the base connection.
	AdjustBalance(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	GetBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error)
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) AdjustBalance(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	if customerID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}

	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}

	balance, found, err := repo.AdjustBalance(ctx, customerID, delta)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adjusting customer balance")
	}
	if !found {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return balance, nil
}

func (s *service) GetBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	if customerID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	balance, err := s.repo.GetBalance(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading customer balance")
	}
	return balance, nil
}
