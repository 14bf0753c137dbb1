package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gasflowhq/gasflow-backend/pkg/db"
	"github.com/gasflowhq/gasflow-backend/pkg/db/models"
	"github.com/gasflowhq/gasflow-backend/pkg/enums"
	pkgerrors "github.com/gasflowhq/gasflow-backend/pkg/errors"
	"github.com/gasflowhq/gasflow-backend/pkg/intasend"
	"github.com/gasflowhq/gasflow-backend/pkg/logger"
	"github.com/gasflowhq/gasflow-backend/pkg/metrics"
	"github.com/gasflowhq/gasflow-backend/pkg/outbox"
	"github.com/gasflowhq/gasflow-backend/pkg/outbox/payloads"
	"github.com/gasflowhq/gasflow-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gasflowhq/gasflow-backend/internal/ledger"
)

const (
	cashReferencePrefix   = "CASH-"
	creditReferencePrefix = "CREDIT-"

	providerReferenceConstraint = "uq_payments_provider_reference"
)

// Service is the single entry point for money coming in. Every channel
// funnels into RecordPayment so dedupe and ledger effects live in one place.
type Service interface {
	RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.Payment, error)
	RecordCashPayment(ctx context.Context, input CashPaymentInput) (*models.Payment, error)
	InitiateCheckout(ctx context.Context, input InitiateCheckoutInput) (*intasend.CheckoutResponse, error)
	CompleteFromWebhook(ctx context.Context, input WebhookInput) error
	SettleCredit(ctx context.Context, customerID, deliveryID uuid.UUID, priorBalance, newCharge decimal.Decimal) error
	Get(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Payment, string, error)
}

// ActorRef identifies the authenticated caller for audit and events.
type ActorRef struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// RecordPaymentInput is the normalized shape every intake channel produces.
type RecordPaymentInput struct {
	CustomerID        uuid.UUID
	DeliveryID        *uuid.UUID
	Amount            decimal.Decimal
	Method            enums.PaymentMethod
	Status            enums.PaymentStatus
	ProviderReference string
	Currency          string
	PaidAt            *time.Time
	HandledBy         *uuid.UUID
	Actor             ActorRef
}

// CashPaymentInput records money handed to a staff member in person.
type CashPaymentInput struct {
	CustomerID uuid.UUID
	DeliveryID *uuid.UUID
	Amount     decimal.Decimal
	HandledBy  uuid.UUID
	Actor      ActorRef
}

// InitiateCheckoutInput starts a hosted mobile-money checkout for a delivery.
type InitiateCheckoutInput struct {
	DeliveryID  uuid.UUID
	Amount      decimal.Decimal
	PhoneNumber string
	Email       string
}

// WebhookInput is the processor callback payload after challenge validation.
type WebhookInput struct {
	InvoiceID string
	State     string
	Amount    string
	Currency  string
	APIRef    string
}

type service struct {
	repo     Repository
	tx       txRunner
	ledger   ledger.Service
	outbox   outboxPublisher
	checkout CheckoutCreator
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
}

// NewService wires the payment intake gateway. The checkout client may be nil
// for deployments that only take cash and bank records.
func NewService(
	repo Repository,
	tx txRunner,
	ledgerSvc ledger.Service,
	ob outboxPublisher,
	checkout CheckoutCreator,
	m *metrics.PaymentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
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
		repo:     repo,
		tx:       tx,
		ledger:   ledgerSvc,
		outbox:   ob,
		checkout: checkout,
		metrics:  m,
		logg:     logg,
	}, nil
}

func (s *service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.Payment, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveDuration("record_payment", time.Since(start))
	}()

	if err := s.validateRecordInput(input); err != nil {
		return nil, err
	}

	// Replays return the stored payment untouched. The provider reference is
	// the dedupe key for every channel.
	existing, err := s.repo.FindByProviderReference(ctx, input.ProviderReference)
	if err == nil {
		s.logReplay(ctx, existing)
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up provider reference")
	}

	if input.DeliveryID != nil {
		if err := s.validateDeliveryLink(ctx, input.CustomerID, *input.DeliveryID); err != nil {
			return nil, err
		}
	}

	currency := input.Currency
	if currency == "" {
		currency = "KES"
	}
	paidAt := input.PaidAt
	if paidAt == nil && input.Status == enums.PaymentStatusCompleted {
		now := time.Now().UTC()
		paidAt = &now
	}

	payment := &models.Payment{
		CustomerID:        input.CustomerID,
		DeliveryID:        input.DeliveryID,
		AmountPaid:        input.Amount,
		Method:            input.Method,
		Status:            input.Status,
		ProviderReference: input.ProviderReference,
		Currency:          currency,
		PaidAt:            paidAt,
		HandledBy:         input.HandledBy,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Create(ctx, payment); err != nil {
			return err
		}
		if payment.Status != enums.PaymentStatusCompleted {
			return nil
		}

		newBalance, err := s.ledger.AdjustBalance(ctx, tx, input.CustomerID, input.Amount.Neg())
		if err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRecorded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         actorRef(input.Actor),
			Version:       1,
			Data: payloads.PaymentRecordedEvent{
				PaymentID:         payment.ID,
				CustomerID:        payment.CustomerID,
				DeliveryID:        payment.DeliveryID,
				Amount:            payment.AmountPaid,
				Method:            payment.Method,
				ProviderReference: payment.ProviderReference,
				NewBalance:        newBalance,
			},
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReceiptRequested,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         actorRef(input.Actor),
			Version:       1,
			Data: payloads.ReceiptRequestedEvent{
				PaymentID:  payment.ID,
				CustomerID: payment.CustomerID,
				Amount:     payment.AmountPaid,
				Method:     payment.Method,
				PaidAt:     *paidAt,
			},
		})
	})
	if err != nil {
		// Two intakes raced on the same reference. The unique index picked a
		// winner, return its row.
		if db.IsUniqueViolation(err, providerReferenceConstraint) {
			winner, findErr := s.repo.FindByProviderReference(ctx, input.ProviderReference)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "resolving duplicate provider reference")
			}
			s.logReplay(ctx, winner)
			return winner, nil
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording payment")
	}

	if payment.Status == enums.PaymentStatusCompleted {
		s.metrics.IncRecorded(string(payment.Method))
	}
	return payment, nil
}

func (s *service) validateRecordInput(input RecordPaymentInput) error {
	if input.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if !input.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if !input.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.Method))
	}
	if !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", input.Status))
	}
	if input.ProviderReference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider reference is required")
	}
	return nil
}

func (s *service) validateDeliveryLink(ctx context.Context, customerID, deliveryID uuid.UUID) error {
	delivery, err := s.repo.FindDelivery(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading delivery")
	}
	if delivery.CustomerID != customerID {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery belongs to a different customer")
	}
	return nil
}

func (s *service) logReplay(ctx context.Context, payment *models.Payment) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payment_id":         payment.ID.String(),
		"provider_reference": payment.ProviderReference,
	})
	s.logg.Info(logCtx, "duplicate payment intake, returning existing record")
}

func (s *service) RecordCashPayment(ctx context.Context, input CashPaymentInput) (*models.Payment, error) {
	if input.HandledBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "handled_by staff id is required for cash payments")
	}
	handledBy := input.HandledBy
	return s.RecordPayment(ctx, RecordPaymentInput{
		CustomerID:        input.CustomerID,
		DeliveryID:        input.DeliveryID,
		Amount:            input.Amount,
		Method:            enums.PaymentMethodCash,
		Status:            enums.PaymentStatusCompleted,
		ProviderReference: cashReferencePrefix + uuid.NewString(),
		HandledBy:         &handledBy,
		Actor:             input.Actor,
	})
}

func (s *service) InitiateCheckout(ctx context.Context, input InitiateCheckoutInput) (*intasend.CheckoutResponse, error) {
	if s.checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway is not configured")
	}
	if input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout amount must be positive")
	}

	delivery, err := s.repo.FindDelivery(ctx, input.DeliveryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading delivery")
	}
	customer, err := s.repo.FindCustomer(ctx, delivery.CustomerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading customer")
	}

	req := intasend.CheckoutRequest{
		Amount: input.Amount.StringFixed(2),
		APIRef: delivery.ID.String(),
		Name:   customer.Name,
	}
	if input.PhoneNumber != "" {
		req.PhoneNumber = input.PhoneNumber
	} else if customer.Phone != nil {
		req.PhoneNumber = *customer.Phone
	}
	if input.Email != "" {
		req.Email = input.Email
	} else if customer.Email != nil {
		req.Email = *customer.Email
	}

	// The payment row is only written when the processor confirms through the
	// webhook. Starting a checkout never touches the ledger.
	return s.checkout.CreateCheckout(ctx, req)
}

func (s *service) CompleteFromWebhook(ctx context.Context, input WebhookInput) error {
	if input.State != intasend.StateComplete {
		s.metrics.IncWebhook("ignored")
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"invoice_id": input.InvoiceID,
				"state":      input.State,
			})
			s.logg.Info(logCtx, "ignoring non-complete payment webhook")
		}
		return nil
	}

	deliveryID, err := uuid.Parse(input.APIRef)
	if err != nil {
		s.metrics.IncWebhook("unmatched")
		s.warnWebhook(ctx, input, "webhook api_ref is not a delivery id")
		return nil
	}
	delivery, err := s.repo.FindDelivery(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.IncWebhook("unmatched")
			s.warnWebhook(ctx, input, "webhook references unknown delivery")
			return nil
		}
		s.metrics.IncWebhook("error")
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading delivery for webhook")
	}

	amount, err := decimal.NewFromString(input.Amount)
	if err != nil || !amount.IsPositive() {
		s.metrics.IncWebhook("invalid")
		s.warnWebhook(ctx, input, "webhook carries an unusable amount")
		return nil
	}

	_, err = s.RecordPayment(ctx, RecordPaymentInput{
		CustomerID:        delivery.CustomerID,
		DeliveryID:        &deliveryID,
		Amount:            amount,
		Method:            enums.PaymentMethodMobileMoney,
		Status:            enums.PaymentStatusCompleted,
		ProviderReference: input.InvoiceID,
		Currency:          input.Currency,
	})
	if err != nil {
		s.metrics.IncWebhook("error")
		return err
	}
	s.metrics.IncWebhook("recorded")
	return nil
}

func (s *service) warnWebhook(ctx context.Context, input WebhookInput, msg string) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"invoice_id": input.InvoiceID,
		"api_ref":    input.APIRef,
	})
	s.logg.Warn(logCtx, msg)
}

// SettleCredit books existing customer credit against a fresh charge. The
// credit already sits on the balance, so no ledger adjustment happens here;
// the payment row and event only make the offset visible.
func (s *service) SettleCredit(ctx context.Context, customerID, deliveryID uuid.UUID, priorBalance, newCharge decimal.Decimal) error {
	if customerID == uuid.Nil || deliveryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer and delivery ids are required")
	}
	if !priorBalance.IsNegative() {
		return nil
	}

	settlement := decimal.Min(priorBalance.Abs(), newCharge)
	if !settlement.IsPositive() {
		return nil
	}

	now := time.Now().UTC()
	payment := &models.Payment{
		CustomerID:        customerID,
		DeliveryID:        &deliveryID,
		AmountPaid:        settlement,
		Method:            enums.PaymentMethodCreditApplication,
		Status:            enums.PaymentStatusCompleted,
		ProviderReference: creditReferencePrefix + deliveryID.String(),
		PaidAt:            &now,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Create(ctx, payment); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCreditApplied,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Data: payloads.CreditAppliedEvent{
				PaymentID:  payment.ID,
				CustomerID: customerID,
				DeliveryID: deliveryID,
				Amount:     settlement,
			},
		})
	})
	if err != nil {
		// One settlement per delivery; a replayed create is already done.
		if db.IsUniqueViolation(err, providerReferenceConstraint) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settling customer credit")
	}

	s.metrics.IncRecorded(string(enums.PaymentMethodCreditApplication))
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment")
	}
	return payment, nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Payment, string, error) {
	if customerID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	rows, next, err := s.repo.ListByCustomer(ctx, customerID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing payments")
	}
	return rows, next, nil
}

func actorRef(actor ActorRef) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}
