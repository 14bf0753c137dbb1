package deliveries

import (
	"context"
	"testing"

	"github.com/gasflowhq/gasflow-backend/pkg/db/models"
	"github.com/gasflowhq/gasflow-backend/pkg/enums"
	"github.com/gasflowhq/gasflow-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gasflowhq/gasflow-backend/internal/ledger"
	"github.com/gasflowhq/gasflow-backend/internal/payments"
)

// flowPaymentRepo keeps payment rows in memory for the sequence below; the
// real sqlite customers table backs the ledger itself.
type flowPaymentRepo struct {
	byReference map[string]*models.Payment
	delivery    *models.Delivery
}

func (f *flowPaymentRepo) WithTx(tx *gorm.DB) payments.Repository { return f }

func (f *flowPaymentRepo) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	payment.ID = uuid.New()
	f.byReference[payment.ProviderReference] = payment
	return payment, nil
}

func (f *flowPaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	for _, payment := range f.byReference {
		if payment.ID == id {
			return payment, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *flowPaymentRepo) FindByProviderReference(ctx context.Context, reference string) (*models.Payment, error) {
	if payment, ok := f.byReference[reference]; ok {
		return payment, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *flowPaymentRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Payment, string, error) {
	return nil, "", nil
}

func (f *flowPaymentRepo) FindDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	if f.delivery != nil && f.delivery.ID == id {
		return f.delivery, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *flowPaymentRepo) FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return nil, gorm.ErrRecordNotFound
}

// After any sequence of operations the balance must equal the sum of charges
// plus adjustments minus completed payments. Every delta flows through the
// same sqlite-backed ledger the repository tests exercise.
func TestRunningBalanceAcrossDeliveryAndPaymentSequence(t *testing.T) {
	db := setupDeliveriesTestDB(t)
	ctx := context.Background()

	customerID := uuid.New()
	capacityID := uuid.New()
	require.NoError(t, db.Exec(
		"INSERT INTO customers (id, name, price_per_kg, balance, created_at, updated_at) VALUES (?, 'Highridge Diner', '120', 0, datetime('now'), datetime('now'))",
		customerID.String(),
	).Error)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)

	var current *models.Delivery
	deliveryRepo := &fakeRepository{
		findCustomerFn: func(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
			return &models.Customer{ID: id, Name: "Highridge Diner", PricePerKg: decimalFromString(t, "120")}, nil
		},
		findCapacitiesFn: func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.CylinderCapacity, error) {
			return map[uuid.UUID]models.CylinderCapacity{
				capacityID: {ID: capacityID, Label: "13kg", Kg: decimalFromString(t, "13")},
			}, nil
		},
		createDeliveryFn: func(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error) {
			delivery.ID = uuid.New()
			current = delivery
			return delivery, nil
		},
		findForUpdateFn: func(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
			if current == nil || current.ID != id {
				return nil, gorm.ErrRecordNotFound
			}
			row := *current
			return &row, nil
		},
		updateChargeFn: func(ctx context.Context, id uuid.UUID, price, charge decimal.Decimal) error {
			current.PricePerKgAtTime = price
			current.TotalCharge = charge
			return nil
		},
	}
	deliverySvc, err := NewService(deliveryRepo, &fakeTxRunner{}, ledgerSvc, &fakeOutbox{}, nil)
	require.NoError(t, err)

	paymentRepo := &flowPaymentRepo{byReference: map[string]*models.Payment{}}
	paymentSvc, err := payments.NewService(paymentRepo, &fakeTxRunner{}, ledgerSvc, &fakeOutbox{}, nil, nil, nil)
	require.NoError(t, err)

	// Two 13kg cylinders at 120/kg with a 40 shilling discount.
	delivery, err := deliverySvc.Create(ctx, CreateDeliveryInput{
		CustomerID:       customerID,
		Items:            []DeliveryItemInput{{CylinderCapacityID: capacityID, Quantity: 2}},
		ManualAdjustment: decimalFromString(t, "-40"),
		Actor:            ActorRef{UserID: uuid.New(), Role: enums.ActorRoleStaff},
	})
	require.NoError(t, err)
	paymentRepo.delivery = current

	balance, err := ledgerSvc.GetBalance(ctx, customerID)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimalFromString(t, "3080")), "after create balance = %s", balance)

	// Rate correction before any payment lands.
	_, err = deliverySvc.UpdatePrice(ctx, UpdatePriceInput{
		DeliveryID:    delivery.ID,
		NewPricePerKg: decimalFromString(t, "130"),
		Actor:         ActorRef{UserID: uuid.New(), Role: enums.ActorRoleStaff},
	})
	require.NoError(t, err)

	balance, err = ledgerSvc.GetBalance(ctx, customerID)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimalFromString(t, "3340")), "after price revision balance = %s", balance)

	// Partial mobile money payment against the delivery, then a general
	// account payment.
	totalPaid := decimal.Zero
	deliveryID := delivery.ID
	intakes := []payments.RecordPaymentInput{
		{
			CustomerID:        customerID,
			DeliveryID:        &deliveryID,
			Amount:            decimalFromString(t, "2000"),
			Method:            enums.PaymentMethodMobileMoney,
			Status:            enums.PaymentStatusCompleted,
			ProviderReference: "INV-FLOW-1",
		},
		{
			CustomerID:        customerID,
			Amount:            decimalFromString(t, "1000"),
			Method:            enums.PaymentMethodBank,
			Status:            enums.PaymentStatusCompleted,
			ProviderReference: "INV-FLOW-2",
		},
	}
	for _, intake := range intakes {
		_, err := paymentSvc.RecordPayment(ctx, intake)
		require.NoError(t, err)
		totalPaid = totalPaid.Add(intake.Amount)
	}

	balance, err = ledgerSvc.GetBalance(ctx, customerID)
	require.NoError(t, err)

	want := current.TotalCharge.Add(current.ManualAdjustment).Sub(totalPaid)
	require.True(t, balance.Equal(want), "balance = %s, want charges+adjustments-payments = %s", balance, want)
	require.True(t, balance.Equal(decimalFromString(t, "340")), "balance = %s, want 340", balance)
}
