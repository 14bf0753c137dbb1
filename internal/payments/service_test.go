package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/gasflowhq/gasflow-backend/pkg/db/models"
	"github.com/gasflowhq/gasflow-backend/pkg/enums"
	pkgerrors "github.com/gasflowhq/gasflow-backend/pkg/errors"
	"github.com/gasflowhq/gasflow-backend/pkg/intasend"
	"github.com/gasflowhq/gasflow-backend/pkg/outbox"
	"github.com/gasflowhq/gasflow-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fakeRepository keeps created payments in memory keyed by provider
// reference, which makes replay scenarios straightforward to express.
type fakeRepository struct {
	byReference map[string]*models.Payment

	createFn       func(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	findDeliveryFn func(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	findCustomerFn func(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{byReference: map[string]*models.Payment{}}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if f.createFn != nil {
		return f.createFn(ctx, payment)
	}
	if _, exists := f.byReference[payment.ProviderReference]; exists {
		return nil, errors.New(`ERROR: duplicate key value violates unique constraint "uq_payments_provider_reference"`)
	}
	payment.ID = uuid.New()
	f.byReference[payment.ProviderReference] = payment
	return payment, nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	for _, payment := range f.byReference {
		if payment.ID == id {
			return payment, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindByProviderReference(ctx context.Context, reference string) (*models.Payment, error) {
	if payment, ok := f.byReference[reference]; ok {
		return payment, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Payment, string, error) {
	return nil, "", nil
}

func (f *fakeRepository) FindDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	if f.findDeliveryFn != nil {
		return f.findDeliveryFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	if f.findCustomerFn != nil {
		return f.findCustomerFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeTxRunner struct {
	calls int
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	f.calls++
	return fn(nil)
}

type fakeLedger struct {
	deltas  []decimal.Decimal
	balance decimal.Decimal
}

func (f *fakeLedger) AdjustBalance(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	f.deltas = append(f.deltas, delta)
	f.balance = f.balance.Add(delta)
	return f.balance, nil
}

func (f *fakeLedger) GetBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	return f.balance, nil
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeCheckout struct {
	request  intasend.CheckoutRequest
	response *intasend.CheckoutResponse
	err      error
}

func (f *fakeCheckout) CreateCheckout(ctx context.Context, req intasend.CheckoutRequest) (*intasend.CheckoutResponse, error) {
	f.request = req
	if f.err != nil {
		return nil, f.err
	}
	if f.response != nil {
		return f.response, nil
	}
	return &intasend.CheckoutResponse{ID: "chk_1", URL: "https://pay.test/chk_1"}, nil
}

type paymentsTestEnv struct {
	repo     *fakeRepository
	tx       *fakeTxRunner
	ledger   *fakeLedger
	outbox   *fakeOutbox
	checkout *fakeCheckout
	svc      Service
}

func newPaymentsTestEnv(t *testing.T) *paymentsTestEnv {
	t.Helper()
	env := &paymentsTestEnv{
		repo:     newFakeRepository(),
		tx:       &fakeTxRunner{},
		ledger:   &fakeLedger{},
		outbox:   &fakeOutbox{},
		checkout: &fakeCheckout{},
	}
	svc, err := NewService(env.repo, env.tx, env.ledger, env.outbox, env.checkout, nil, nil)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	env.svc = svc
	return env
}

func eventTypes(events []outbox.DomainEvent) []enums.OutboxEventType {
	types := make([]enums.OutboxEventType, 0, len(events))
	for _, event := range events {
		types = append(types, event.EventType)
	}
	return types
}

func TestService_RecordPayment_CompletedAdjustsLedger(t *testing.T) {
	env := newPaymentsTestEnv(t)
	customerID := uuid.New()

	payment, err := env.svc.RecordPayment(context.Background(), RecordPaymentInput{
		CustomerID:        customerID,
		Amount:            decimal.NewFromInt(2000),
		Method:            enums.PaymentMethodMobileMoney,
		Status:            enums.PaymentStatusCompleted,
		ProviderReference: "INV-1001",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("status = %s, want completed", payment.Status)
	}
	if payment.PaidAt == nil {
		t.Fatal("expected paid_at to be set")
	}
	if payment.Currency != "KES" {
		t.Fatalf("currency = %s, want KES", payment.Currency)
	}
	if len(env.ledger.deltas) != 1 || !env.ledger.deltas[0].Equal(decimal.NewFromInt(-2000)) {
		t.Fatalf("ledger deltas = %v, want one delta of -2000", env.ledger.deltas)
	}
	types := eventTypes(env.outbox.events)
	if len(types) != 2 || types[0] != enums.EventPaymentRecorded || types[1] != enums.EventReceiptRequested {
		t.Fatalf("events = %v, want payment_recorded then receipt_requested", types)
	}
}

func TestService_RecordPayment_PendingSkipsLedger(t *testing.T) {
	env := newPaymentsTestEnv(t)

	payment, err := env.svc.RecordPayment(context.Background(), RecordPaymentInput{
		CustomerID:        uuid.New(),
		Amount:            decimal.NewFromInt(500),
		Method:            enums.PaymentMethodBank,
		Status:            enums.PaymentStatusPending,
		ProviderReference: "BANK-77",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payment.PaidAt != nil {
		t.Fatal("pending payment should not carry paid_at")
	}
	if len(env.ledger.deltas) != 0 {
		t.Fatalf("ledger deltas = %v, want none", env.ledger.deltas)
	}
	if len(env.outbox.events) != 0 {
		t.Fatalf("events = %v, want none", env.outbox.events)
	}
}

func TestService_RecordPayment_ReplayReturnsExisting(t *testing.T) {
	env := newPaymentsTestEnv(t)
	customerID := uuid.New()
	input := RecordPaymentInput{
		CustomerID:        customerID,
		Amount:            decimal.NewFromInt(2000),
		Method:            enums.PaymentMethodMobileMoney,
		Status:            enums.PaymentStatusCompleted,
		ProviderReference: "INV-1001",
	}

	first, err := env.svc.RecordPayment(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := env.svc.RecordPayment(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay returned %s, want original %s", second.ID, first.ID)
	}
	if len(env.ledger.deltas) != 1 {
		t.Fatalf("ledger adjusted %d times, want 1", len(env.ledger.deltas))
	}
	if env.tx.calls != 1 {
		t.Fatalf("tx calls = %d, want 1", env.tx.calls)
	}
}

func TestService_RecordPayment_RaceResolvesToWinner(t *testing.T) {
	env := newPaymentsTestEnv(t)
	winner := &models.Payment{ID: uuid.New(), ProviderReference: "INV-9"}

	first := true
	env.repo.createFn = func(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
		if first {
			first = false
			// The concurrent writer lands between our lookup and our insert.
			env.repo.byReference["INV-9"] = winner
			return nil, errors.New(`ERROR: duplicate key value violates unique constraint "uq_payments_provider_reference"`)
		}
		return payment, nil
	}

	payment, err := env.svc.RecordPayment(context.Background(), RecordPaymentInput{
		CustomerID:        uuid.New(),
		Amount:            decimal.NewFromInt(100),
		Method:            enums.PaymentMethodMobileMoney,
		Status:            enums.PaymentStatusCompleted,
		ProviderReference: "INV-9",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.ID != winner.ID {
		t.Fatalf("got payment %s, want winner %s", payment.ID, winner.ID)
	}
}

func TestService_RecordPayment_Validation(t *testing.T) {
	env := newPaymentsTestEnv(t)

	cases := []struct {
		name  string
		input RecordPaymentInput
	}{
		{"missing customer", RecordPaymentInput{Amount: decimal.NewFromInt(1), Method: enums.PaymentMethodCash, Status: enums.PaymentStatusCompleted, ProviderReference: "X"}},
		{"zero amount", RecordPaymentInput{CustomerID: uuid.New(), Method: enums.PaymentMethodCash, Status: enums.PaymentStatusCompleted, ProviderReference: "X"}},
		{"bad method", RecordPaymentInput{CustomerID: uuid.New(), Amount: decimal.NewFromInt(1), Method: "cheque", Status: enums.PaymentStatusCompleted, ProviderReference: "X"}},
		{"missing reference", RecordPaymentInput{CustomerID: uuid.New(), Amount: decimal.NewFromInt(1), Method: enums.PaymentMethodCash, Status: enums.PaymentStatusCompleted}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.svc.RecordPayment(context.Background(), tc.input); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_RecordPayment_RejectsForeignDelivery(t *testing.T) {
	env := newPaymentsTestEnv(t)
	deliveryID := uuid.New()
	env.repo.findDeliveryFn = func(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
		return &models.Delivery{ID: id, CustomerID: uuid.New()}, nil
	}

	_, err := env.svc.RecordPayment(context.Background(), RecordPaymentInput{
		CustomerID:        uuid.New(),
		DeliveryID:        &deliveryID,
		Amount:            decimal.NewFromInt(100),
		Method:            enums.PaymentMethodCash,
		Status:            enums.PaymentStatusCompleted,
		ProviderReference: "X-1",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_RecordCashPayment(t *testing.T) {
	env := newPaymentsTestEnv(t)
	staffID := uuid.New()

	payment, err := env.svc.RecordCashPayment(context.Background(), CashPaymentInput{
		CustomerID: uuid.New(),
		Amount:     decimal.NewFromInt(1500),
		HandledBy:  staffID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payment.Method != enums.PaymentMethodCash {
		t.Fatalf("method = %s, want cash", payment.Method)
	}
	if payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("status = %s, want completed", payment.Status)
	}
	if payment.HandledBy == nil || *payment.HandledBy != staffID {
		t.Fatalf("handled_by = %v, want %s", payment.HandledBy, staffID)
	}
	if len(payment.ProviderReference) <= len(cashReferencePrefix) || payment.ProviderReference[:len(cashReferencePrefix)] != cashReferencePrefix {
		t.Fatalf("provider reference %q missing cash prefix", payment.ProviderReference)
	}
}

func TestService_RecordCashPayment_RequiresHandler(t *testing.T) {
	env := newPaymentsTestEnv(t)

	_, err := env.svc.RecordCashPayment(context.Background(), CashPaymentInput{
		CustomerID: uuid.New(),
		Amount:     decimal.NewFromInt(1500),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_InitiateCheckout(t *testing.T) {
	env := newPaymentsTestEnv(t)
	deliveryID := uuid.New()
	customerID := uuid.New()
	phone := "+254700111222"

	env.repo.findDeliveryFn = func(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
		return &models.Delivery{ID: id, CustomerID: customerID}, nil
	}
	env.repo.findCustomerFn = func(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
		return &models.Customer{ID: id, Name: "Mama Njeri Hotel", Phone: &phone}, nil
	}

	resp, err := env.svc.InitiateCheckout(context.Background(), InitiateCheckoutInput{
		DeliveryID: deliveryID,
		Amount:     decimal.NewFromInt(3840),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.URL == "" {
		t.Fatal("expected a checkout URL")
	}
	if env.checkout.request.APIRef != deliveryID.String() {
		t.Fatalf("api_ref = %s, want %s", env.checkout.request.APIRef, deliveryID)
	}
	if env.checkout.request.Amount != "3840.00" {
		t.Fatalf("amount = %s, want 3840.00", env.checkout.request.Amount)
	}
	if env.checkout.request.PhoneNumber != phone {
		t.Fatalf("phone = %s, want %s", env.checkout.request.PhoneNumber, phone)
	}
	// No payment exists until the processor calls back.
	if len(env.repo.byReference) != 0 {
		t.Fatalf("payments created = %d, want 0", len(env.repo.byReference))
	}
}

func TestService_InitiateCheckout_WithoutGateway(t *testing.T) {
	repo := newFakeRepository()
	svc, err := NewService(repo, &fakeTxRunner{}, &fakeLedger{}, &fakeOutbox{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	_, err = svc.InitiateCheckout(context.Background(), InitiateCheckoutInput{
		DeliveryID: uuid.New(),
		Amount:     decimal.NewFromInt(100),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestService_CompleteFromWebhook_RecordsPayment(t *testing.T) {
	env := newPaymentsTestEnv(t)
	deliveryID := uuid.New()
	customerID := uuid.New()
	env.repo.findDeliveryFn = func(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
		if id != deliveryID {
			return nil, gorm.ErrRecordNotFound
		}
		return &models.Delivery{ID: id, CustomerID: customerID}, nil
	}

	err := env.svc.CompleteFromWebhook(context.Background(), WebhookInput{
		InvoiceID: "INV-1001",
		State:     intasend.StateComplete,
		Amount:    "2000",
		Currency:  "KES",
		APIRef:    deliveryID.String(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payment, ok := env.repo.byReference["INV-1001"]
	if !ok {
		t.Fatal("expected payment stored under invoice reference")
	}
	if payment.Method != enums.PaymentMethodMobileMoney {
		t.Fatalf("method = %s, want mobile_money", payment.Method)
	}
	if payment.CustomerID != customerID {
		t.Fatalf("customer = %s, want %s", payment.CustomerID, customerID)
	}
	if len(env.ledger.deltas) != 1 || !env.ledger.deltas[0].Equal(decimal.NewFromInt(-2000)) {
		t.Fatalf("ledger deltas = %v, want one delta of -2000", env.ledger.deltas)
	}
}

func TestService_CompleteFromWebhook_DuplicateDeliveryIsNoOp(t *testing.T) {
	env := newPaymentsTestEnv(t)
	deliveryID := uuid.New()
	env.repo.findDeliveryFn = func(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
		return &models.Delivery{ID: id, CustomerID: uuid.New()}, nil
	}

	input := WebhookInput{
		InvoiceID: "INV-1001",
		State:     intasend.StateComplete,
		Amount:    "2000",
		APIRef:    deliveryID.String(),
	}
	if err := env.svc.CompleteFromWebhook(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := env.svc.CompleteFromWebhook(context.Background(), input); err != nil {
		t.Fatalf("unexpected error on redelivery: %v", err)
	}

	if len(env.ledger.deltas) != 1 {
		t.Fatalf("ledger adjusted %d times, want 1", len(env.ledger.deltas))
	}
	if len(env.repo.byReference) != 1 {
		t.Fatalf("payments = %d, want 1", len(env.repo.byReference))
	}
}

func TestService_CompleteFromWebhook_IgnoresNonComplete(t *testing.T) {
	env := newPaymentsTestEnv(t)

	err := env.svc.CompleteFromWebhook(context.Background(), WebhookInput{
		InvoiceID: "INV-2",
		State:     "PENDING",
		Amount:    "100",
		APIRef:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.repo.byReference) != 0 {
		t.Fatal("non-complete webhook must not create a payment")
	}
}

func TestService_CompleteFromWebhook_UnknownDeliverySwallowed(t *testing.T) {
	env := newPaymentsTestEnv(t)

	err := env.svc.CompleteFromWebhook(context.Background(), WebhookInput{
		InvoiceID: "INV-3",
		State:     intasend.StateComplete,
		Amount:    "100",
		APIRef:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("unmatched webhook should not error, got %v", err)
	}
	if len(env.repo.byReference) != 0 {
		t.Fatal("unmatched webhook must not create a payment")
	}
}

func TestService_SettleCredit_CapsAtCharge(t *testing.T) {
	env := newPaymentsTestEnv(t)
	customerID := uuid.New()
	deliveryID := uuid.New()

	err := env.svc.SettleCredit(context.Background(), customerID, deliveryID,
		decimal.NewFromInt(-1000), decimal.NewFromInt(600))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payment, ok := env.repo.byReference[creditReferencePrefix+deliveryID.String()]
	if !ok {
		t.Fatal("expected settlement payment under credit reference")
	}
	if !payment.AmountPaid.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("settlement = %s, want 600", payment.AmountPaid)
	}
	if payment.Method != enums.PaymentMethodCreditApplication {
		t.Fatalf("method = %s, want credit_application", payment.Method)
	}
	// The credit was already on the balance, the settlement must not move it.
	if len(env.ledger.deltas) != 0 {
		t.Fatalf("ledger deltas = %v, want none", env.ledger.deltas)
	}
	types := eventTypes(env.outbox.events)
	if len(types) != 1 || types[0] != enums.EventCreditApplied {
		t.Fatalf("events = %v, want credit_applied", types)
	}
}

func TestService_SettleCredit_CapsAtCredit(t *testing.T) {
	env := newPaymentsTestEnv(t)
	deliveryID := uuid.New()

	err := env.svc.SettleCredit(context.Background(), uuid.New(), deliveryID,
		decimal.NewFromInt(-500), decimal.NewFromInt(600))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payment := env.repo.byReference[creditReferencePrefix+deliveryID.String()]
	if payment == nil || !payment.AmountPaid.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("settlement = %v, want 500", payment)
	}
}

func TestService_SettleCredit_NoCreditIsNoOp(t *testing.T) {
	env := newPaymentsTestEnv(t)

	err := env.svc.SettleCredit(context.Background(), uuid.New(), uuid.New(),
		decimal.NewFromInt(200), decimal.NewFromInt(600))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.repo.byReference) != 0 || env.tx.calls != 0 {
		t.Fatal("positive prior balance must not settle anything")
	}
}

func TestService_SettleCredit_ReplayIsNoOp(t *testing.T) {
	env := newPaymentsTestEnv(t)
	deliveryID := uuid.New()

	for i := 0; i < 2; i++ {
		err := env.svc.SettleCredit(context.Background(), uuid.New(), deliveryID,
			decimal.NewFromInt(-500), decimal.NewFromInt(600))
		if err != nil {
			t.Fatalf("unexpected error on attempt %d: %v", i, err)
		}
	}
	if len(env.repo.byReference) != 1 {
		t.Fatalf("payments = %d, want 1", len(env.repo.byReference))
	}
	if len(env.outbox.events) != 1 {
		t.Fatalf("events = %d, want 1", len(env.outbox.events))
	}
}
