package deliveries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gasflowhq/gasflow-backend/pkg/db/models"
	"github.com/gasflowhq/gasflow-backend/pkg/enums"
	pkgerrors "github.com/gasflowhq/gasflow-backend/pkg/errors"
	"github.com/gasflowhq/gasflow-backend/pkg/logger"
	"github.com/gasflowhq/gasflow-backend/pkg/outbox"
	"github.com/gasflowhq/gasflow-backend/pkg/outbox/payloads"
	"github.com/gasflowhq/gasflow-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gasflowhq/gasflow-backend/internal/ledger"
)

// LockStatus reports whether a delivery's price may still be edited.
type LockStatus struct {
	Locked bool   `json:"locked"`
	Reason string `json:"reason,omitempty"`
}

// Service drives the delivery lifecycle: creation and deletion adjust the
// customer balance, status moves forward only, and price edits are guarded by
// the lock re-check.
type Service interface {
	Create(ctx context.Context, input CreateDeliveryInput) (*models.Delivery, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Delivery, string, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Delivery, error)
	Delete(ctx context.Context, id uuid.UUID, actor ActorRef) error
	CheckLock(ctx context.Context, id uuid.UUID) (*LockStatus, error)
	UpdatePrice(ctx context.Context, input UpdatePriceInput) (*models.Delivery, error)
}

// ActorRef identifies the authenticated caller for audit and events.
type ActorRef struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// DeliveryItemInput is one requested cylinder line.
type DeliveryItemInput struct {
	CylinderCapacityID uuid.UUID
	Quantity           int
}

// CreateDeliveryInput carries everything needed to log a delivery.
type CreateDeliveryInput struct {
	CustomerID       uuid.UUID
	Items            []DeliveryItemInput
	ManualAdjustment decimal.Decimal
	DeliveryDate     time.Time
	Actor            ActorRef
}

// UpdateStatusInput requests a forward status transition.
type UpdateStatusInput struct {
	DeliveryID uuid.UUID
	NewStatus  enums.DeliveryStatus
	Actor      ActorRef
}

// UpdatePriceInput revises the per-kg rate on an unlocked delivery.
type UpdatePriceInput struct {
	DeliveryID    uuid.UUID
	NewPricePerKg decimal.Decimal
	Actor         ActorRef
}

type service struct {
	repo    Repository
	tx      txRunner
	ledger  ledger.Service
	outbox  outboxPublisher
	settler CreditSettler
	logg    *logger.Logger
}

// NewService builds a delivery service with the required dependencies. The
// settler is optional; without it overpayment credit stays on the balance
// until the next manual payment.
func NewService(repo Repository, tx txRunner, ledgerSvc ledger.Service, ob outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("deliveries repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		ledger: ledgerSvc,
		outbox: ob,
		logg:   logg,
	}, nil
}

// SetCreditSettler wires the auto-settlement hook after both services exist.
func (s *service) SetCreditSettler(settler CreditSettler) {
	s.settler = settler
}

// CreditSettlerSetter is implemented by services that accept a late-bound settler.
type CreditSettlerSetter interface {
	SetCreditSettler(settler CreditSettler)
}

func (s *service) Create(ctx context.Context, input CreateDeliveryInput) (*models.Delivery, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one delivery item is required")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if item.CylinderCapacityID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cylinder capacity id is required")
		}
	}

	customer, err := s.repo.FindCustomer(ctx, input.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading customer")
	}
	if customer.Retired() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "customer is retired")
	}

	capacityIDs := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		capacityIDs = append(capacityIDs, item.CylinderCapacityID)
	}
	capacities, err := s.repo.FindCapacities(ctx, capacityIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cylinder capacities")
	}

	totalKg := decimal.Zero
	items := make([]models.DeliveryItem, 0, len(input.Items))
	for _, item := range input.Items {
		capacity, ok := capacities[item.CylinderCapacityID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown cylinder capacity %s", item.CylinderCapacityID))
		}
		contribution := capacity.Kg.Mul(decimal.NewFromInt(int64(item.Quantity)))
		totalKg = totalKg.Add(contribution)
		items = append(items, models.DeliveryItem{
			CylinderCapacityID: item.CylinderCapacityID,
			Quantity:           item.Quantity,
			KgContribution:     contribution,
		})
	}

	totalCharge := totalKg.Mul(customer.PricePerKg)
	appliedDelta := totalCharge.Add(input.ManualAdjustment)

	deliveryDate := input.DeliveryDate
	if deliveryDate.IsZero() {
		deliveryDate = time.Now().UTC()
	}

	delivery := &models.Delivery{
		CustomerID:       input.CustomerID,
		TotalKg:          totalKg,
		PricePerKgAtTime: customer.PricePerKg,
		TotalCharge:      totalCharge,
		ManualAdjustment: input.ManualAdjustment,
		Status:           enums.DeliveryStatusPending,
		DeliveryDate:     deliveryDate,
		CreatedBy:        input.Actor.UserID,
	}

	var newBalance decimal.Decimal
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.CreateDelivery(ctx, delivery); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting delivery")
		}
		for i := range items {
			items[i].DeliveryID = delivery.ID
		}
		if err := repo.CreateDeliveryItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting delivery items")
		}
		balance, err := s.ledger.AdjustBalance(ctx, tx, input.CustomerID, appliedDelta)
		if err != nil {
			return err
		}
		newBalance = balance
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryCreated,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   delivery.ID,
			Actor:         actorRef(input.Actor),
			Version:       1,
			Data: payloads.DeliveryCreatedEvent{
				DeliveryID:  delivery.ID,
				CustomerID:  input.CustomerID,
				TotalKg:     totalKg,
				TotalCharge: totalCharge,
				NewBalance:  newBalance,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	delivery.Items = items

	s.maybeSettleCredit(ctx, delivery, newBalance, appliedDelta)

	return delivery, nil
}

// maybeSettleCredit applies pre-existing credit against the fresh charge.
// Failure is logged and swallowed: the delivery is already committed and a
// missed settlement only means manual reconciliation later.
func (s *service) maybeSettleCredit(ctx context.Context, delivery *models.Delivery, newBalance, appliedDelta decimal.Decimal) {
	if s.settler == nil {
		return
	}
	priorBalance := newBalance.Sub(appliedDelta)
	if !priorBalance.IsNegative() {
		return
	}
	if err := s.settler.SettleCredit(ctx, delivery.CustomerID, delivery.ID, priorBalance, delivery.TotalCharge); err != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"delivery_id": delivery.ID.String(),
			"customer_id": delivery.CustomerID.String(),
			"error":       err.Error(),
		})
		s.logg.Warn(logCtx, "credit auto-settlement failed, manual reconciliation needed")
	}
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id is required")
	}
	delivery, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading delivery")
	}
	return delivery, nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Delivery, string, error) {
	if customerID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	rows, next, err := s.repo.ListByCustomer(ctx, customerID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing deliveries")
	}
	return rows, next, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Delivery, error) {
	if !input.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid delivery status %q", input.NewStatus))
	}

	if input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id is required")
	}

	var delivery *models.Delivery
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		// Validate against a locked read so a concurrent transition cannot
		// land between the check and the write.
		row, err := repo.FindByIDForUpdate(ctx, input.DeliveryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading delivery")
		}
		delivery = row
		if row.Status == input.NewStatus {
			return nil
		}
		if !row.Status.CanTransitionTo(input.NewStatus) {
			return pkgerrors.New(
				pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move delivery from %s to %s", row.Status, input.NewStatus),
			)
		}

		oldStatus := row.Status
		if err := repo.UpdateStatus(ctx, input.DeliveryID, input.NewStatus); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating delivery status")
		}
		row.Status = input.NewStatus
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryStatusChanged,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   row.ID,
			Actor:         actorRef(input.Actor),
			Version:       1,
			Data: payloads.DeliveryStatusChangedEvent{
				DeliveryID: row.ID,
				CustomerID: row.CustomerID,
				OldStatus:  oldStatus,
				NewStatus:  input.NewStatus,
				ChangedAt:  time.Now().UTC(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID, actor ActorRef) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery id is required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		delivery, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading delivery")
		}
		if delivery.Status != enums.DeliveryStatusPending {
			return pkgerrors.New(
				pkgerrors.CodeConflict,
				fmt.Sprintf("only pending deliveries can be deleted, delivery is %s", delivery.Status),
			)
		}

		// Reverse the full amount the creation applied, adjustment included.
		reversal := delivery.TotalCharge.Add(delivery.ManualAdjustment).Neg()
		if _, err := s.ledger.AdjustBalance(ctx, tx, delivery.CustomerID, reversal); err != nil {
			return err
		}
		if err := repo.DeleteDelivery(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting delivery")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryDeleted,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   delivery.ID,
			Actor:         actorRef(actor),
			Version:       1,
			Data: payloads.DeliveryDeletedEvent{
				DeliveryID:     delivery.ID,
				CustomerID:     delivery.CustomerID,
				ReversedAmount: reversal.Neg(),
			},
		})
	})
}

func (s *service) CheckLock(ctx context.Context, id uuid.UUID) (*LockStatus, error) {
	delivery, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.lockStatus(ctx, s.repo, delivery)
}

// lockStatus is the authoritative check. UpdatePrice calls it again inside the
// write transaction because a payment can land between a client-side check and
// the edit.
func (s *service) lockStatus(ctx context.Context, repo Repository, delivery *models.Delivery) (*LockStatus, error) {
	if delivery.Status != enums.DeliveryStatusPending {
		return &LockStatus{
			Locked: true,
			Reason: fmt.Sprintf("delivery is %s", delivery.Status),
		}, nil
	}
	count, err := repo.CountPaymentsForDelivery(ctx, delivery.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking payments for delivery")
	}
	if count > 0 {
		return &LockStatus{Locked: true, Reason: "payment received"}, nil
	}
	return &LockStatus{}, nil
}

func (s *service) UpdatePrice(ctx context.Context, input UpdatePriceInput) (*models.Delivery, error) {
	if input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id is required")
	}
	if !input.NewPricePerKg.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price per kg must be positive")
	}

	var updated *models.Delivery
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		delivery, err := repo.FindByIDForUpdate(ctx, input.DeliveryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading delivery")
		}

		lock, err := s.lockStatus(ctx, repo, delivery)
		if err != nil {
			return err
		}
		if lock.Locked {
			return pkgerrors.New(
				pkgerrors.CodeConflict,
				fmt.Sprintf("delivery price is locked: %s", lock.Reason),
			)
		}

		oldPrice := delivery.PricePerKgAtTime
		oldCharge := delivery.TotalCharge
		newCharge := input.NewPricePerKg.Mul(delivery.TotalKg)
		delta := newCharge.Sub(oldCharge)

		if err := repo.UpdateCharge(ctx, input.DeliveryID, input.NewPricePerKg, newCharge); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating delivery charge")
		}
		if _, err := s.ledger.AdjustBalance(ctx, tx, delivery.CustomerID, delta); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryPriceRevised,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   delivery.ID,
			Actor:         actorRef(input.Actor),
			Version:       1,
			Data: payloads.DeliveryPriceRevisedEvent{
				DeliveryID:     delivery.ID,
				CustomerID:     delivery.CustomerID,
				OldPricePerKg:  oldPrice,
				NewPricePerKg:  input.NewPricePerKg,
				OldTotalCharge: oldCharge,
				NewTotalCharge: newCharge,
				Delta:          delta,
			},
		}); err != nil {
			return err
		}

		delivery.PricePerKgAtTime = input.NewPricePerKg
		delivery.TotalCharge = newCharge
		updated = delivery
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func actorRef(actor ActorRef) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}
