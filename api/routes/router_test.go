package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gasflowhq/gasflow-backend/internal/customers"
	"github.com/gasflowhq/gasflow-backend/internal/deliveries"
	"github.com/gasflowhq/gasflow-backend/internal/payments"
	"github.com/gasflowhq/gasflow-backend/internal/webhooks"
	pkgAuth "github.com/gasflowhq/gasflow-backend/pkg/auth"
	"github.com/gasflowhq/gasflow-backend/pkg/config"
	"github.com/gasflowhq/gasflow-backend/pkg/db/models"
	"github.com/gasflowhq/gasflow-backend/pkg/enums"
	"github.com/gasflowhq/gasflow-backend/pkg/intasend"
	"github.com/gasflowhq/gasflow-backend/pkg/logger"
	"github.com/gasflowhq/gasflow-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubCustomers struct{}

func (stubCustomers) Create(ctx context.Context, input customers.CreateCustomerInput) (*models.Customer, error) {
	return &models.Customer{ID: uuid.New(), Name: input.Name}, nil
}

func (stubCustomers) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return &models.Customer{ID: id, Name: "Stub"}, nil
}

func (stubCustomers) List(ctx context.Context, params pagination.Params, includeRetired bool) ([]models.Customer, string, error) {
	return nil, "", nil
}

func (stubCustomers) Update(ctx context.Context, id uuid.UUID, input customers.UpdateCustomerInput) (*models.Customer, error) {
	return &models.Customer{ID: id}, nil
}

func (stubCustomers) Retire(ctx context.Context, id uuid.UUID) error { return nil }

type stubDeliveries struct{}

func (stubDeliveries) Create(ctx context.Context, input deliveries.CreateDeliveryInput) (*models.Delivery, error) {
	return &models.Delivery{ID: uuid.New(), CustomerID: input.CustomerID}, nil
}

func (stubDeliveries) Get(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	return &models.Delivery{ID: id, Status: enums.DeliveryStatusPending}, nil
}

func (stubDeliveries) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Delivery, string, error) {
	return nil, "", nil
}

func (stubDeliveries) UpdateStatus(ctx context.Context, input deliveries.UpdateStatusInput) (*models.Delivery, error) {
	return &models.Delivery{ID: input.DeliveryID, Status: input.NewStatus}, nil
}

func (stubDeliveries) Delete(ctx context.Context, id uuid.UUID, actor deliveries.ActorRef) error {
	return nil
}

func (stubDeliveries) CheckLock(ctx context.Context, id uuid.UUID) (*deliveries.LockStatus, error) {
	return &deliveries.LockStatus{}, nil
}

func (stubDeliveries) UpdatePrice(ctx context.Context, input deliveries.UpdatePriceInput) (*models.Delivery, error) {
	return &models.Delivery{ID: input.DeliveryID}, nil
}

type stubPayments struct{}

func (stubPayments) RecordPayment(ctx context.Context, input payments.RecordPaymentInput) (*models.Payment, error) {
	return &models.Payment{ID: uuid.New()}, nil
}

func (stubPayments) RecordCashPayment(ctx context.Context, input payments.CashPaymentInput) (*models.Payment, error) {
	return &models.Payment{ID: uuid.New(), Method: enums.PaymentMethodCash}, nil
}

func (stubPayments) InitiateCheckout(ctx context.Context, input payments.InitiateCheckoutInput) (*intasend.CheckoutResponse, error) {
	return &intasend.CheckoutResponse{ID: "chk_1", URL: "https://pay.test/chk_1"}, nil
}

func (stubPayments) CompleteFromWebhook(ctx context.Context, input payments.WebhookInput) error {
	return nil
}

func (stubPayments) SettleCredit(ctx context.Context, customerID, deliveryID uuid.UUID, priorBalance, newCharge decimal.Decimal) error {
	return nil
}

func (stubPayments) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return &models.Payment{ID: id}, nil
}

func (stubPayments) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Payment, string, error) {
	return nil, "", nil
}

type stubLedger struct{}

func (stubLedger) AdjustBalance(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	return delta, nil
}

func (stubLedger) GetBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	return decimal.NewFromInt(340), nil
}

type stubWebhooks struct{}

func (stubWebhooks) HandleIntaSend(ctx context.Context, payload webhooks.IntaSendPayload) error {
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{
		Secret:            "router-test-secret",
		Issuer:            "gasflow",
		ExpirationMinutes: 15,
	}
	return cfg
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(Deps{
		Config:     testConfig(),
		Logger:     logger.New(logger.Options{Level: zerolog.ErrorLevel}),
		DB:         stubPinger{},
		Customers:  stubCustomers{},
		Deliveries: stubDeliveries{},
		Ledger:     stubLedger{},
		Payments:   stubPayments{},
		Webhooks:   stubWebhooks{},
	})
}

func mintToken(t *testing.T, cfg *config.Config, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("minting token: %v", err)
	}
	return token
}

func TestRouter_HealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_ProtectedRoutesRequireAuth(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRouter_CustomerRoleIsRejected(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testConfig(), enums.ActorRoleCustomer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRouter_StaffReachesDeliveries(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deliveries/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testConfig(), enums.ActorRoleStaff))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
}

func mintCustomerToken(t *testing.T, cfg *config.Config, customerID *uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:     uuid.New(),
		Role:       enums.ActorRoleCustomer,
		CustomerID: customerID,
		JTI:        uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("minting token: %v", err)
	}
	return token
}

func TestRouter_PortalAdmitsScopedCustomerToken(t *testing.T) {
	router := newTestRouter(t)
	customerID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/portal/balance", nil)
	req.Header.Set("Authorization", "Bearer "+mintCustomerToken(t, testConfig(), &customerID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), customerID.String()) {
		t.Fatalf("body should carry the scoped customer id, got %s", rec.Body.String())
	}
}

func TestRouter_PortalRejectsStaffToken(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/portal/balance", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testConfig(), enums.ActorRoleStaff))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRouter_PortalRequiresCustomerScope(t *testing.T) {
	router := newTestRouter(t)

	// Customer role without a customer scope in the token.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/portal/balance", nil)
	req.Header.Set("Authorization", "Bearer "+mintCustomerToken(t, testConfig(), nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRouter_WebhookIsPublic(t *testing.T) {
	router := newTestRouter(t)

	body := `{"invoice_id":"INV-1","state":"COMPLETE","value":100,"api_ref":"x","challenge":"c"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/intasend", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// The stub accepts anything; reaching it without credentials is the point.
	if rec.Code == http.StatusUnauthorized || rec.Code == http.StatusForbidden {
		t.Fatalf("webhook route must not require auth, got %d", rec.Code)
	}
}
