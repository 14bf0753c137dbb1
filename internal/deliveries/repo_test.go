package deliveries

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gasflowhq/gasflow-backend/pkg/db/models"
	"github.com/gasflowhq/gasflow-backend/pkg/enums"
	"github.com/gasflowhq/gasflow-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDeliveriesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS customers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  phone TEXT,
  email TEXT,
  location TEXT,
  price_per_kg TEXT NOT NULL,
  balance NUMERIC NOT NULL DEFAULT 0,
  tags TEXT,
  retired_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS cylinder_capacities (
  id TEXT PRIMARY KEY,
  label TEXT NOT NULL,
  kg NUMERIC NOT NULL,
  active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS deliveries (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  total_kg NUMERIC NOT NULL,
  price_per_kg_at_time NUMERIC NOT NULL,
  total_charge NUMERIC NOT NULL,
  manual_adjustment NUMERIC NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  delivery_date DATETIME NOT NULL,
  created_by TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS delivery_items (
  id TEXT PRIMARY KEY,
  delivery_id TEXT NOT NULL,
  cylinder_capacity_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  kg_contribution NUMERIC NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  delivery_id TEXT,
  amount_paid NUMERIC NOT NULL,
  method TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  provider_reference TEXT NOT NULL UNIQUE,
  currency TEXT NOT NULL DEFAULT 'KES',
  paid_at DATETIME,
  handled_by TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedDelivery(t *testing.T, db *gorm.DB, customerID uuid.UUID, createdAt time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, db.Exec(
		`INSERT INTO deliveries (id, customer_id, total_kg, price_per_kg_at_time, total_charge, status, delivery_date, created_by, created_at, updated_at)
     VALUES (?, ?, 13, 120, 1560, 'pending', ?, ?, ?, ?)`,
		id.String(), customerID.String(), createdAt, uuid.New().String(), createdAt, createdAt,
	).Error)
	return id
}

func newPersistedDelivery(customerID uuid.UUID) *models.Delivery {
	return &models.Delivery{
		ID:               uuid.New(),
		CustomerID:       customerID,
		TotalKg:          decimal.NewFromInt(32),
		PricePerKgAtTime: decimal.NewFromInt(120),
		TotalCharge:      decimal.NewFromInt(3840),
		ManualAdjustment: decimal.Zero,
		Status:           enums.DeliveryStatusPending,
		DeliveryDate:     time.Now().UTC(),
		CreatedBy:        uuid.New(),
	}
}

func TestRepositoryCreateAndFindDelivery(t *testing.T) {
	db := setupDeliveriesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	delivery := newPersistedDelivery(uuid.New())
	_, err := repo.CreateDelivery(ctx, delivery)
	require.NoError(t, err)

	items := []models.DeliveryItem{
		{ID: uuid.New(), DeliveryID: delivery.ID, CylinderCapacityID: uuid.New(), Quantity: 2, KgContribution: decimal.NewFromInt(26)},
		{ID: uuid.New(), DeliveryID: delivery.ID, CylinderCapacityID: uuid.New(), Quantity: 1, KgContribution: decimal.NewFromInt(6)},
	}
	require.NoError(t, repo.CreateDeliveryItems(ctx, items))

	found, err := repo.FindByID(ctx, delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.ID, found.ID)
	assert.True(t, found.TotalCharge.Equal(decimal.NewFromInt(3840)), "got %s", found.TotalCharge)
	assert.Len(t, found.Items, 2)
}

func TestRepositoryFindByIDNotFound(t *testing.T) {
	db := setupDeliveriesTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepositoryListByCustomerPaginates(t *testing.T) {
	db := setupDeliveriesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customerID := uuid.New()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seedDelivery(t, db, customerID, base.Add(time.Duration(i)*time.Hour))
	}
	seedDelivery(t, db, uuid.New(), base)

	first, cursor, err := repo.ListByCustomer(ctx, customerID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotEmpty(t, cursor)
	assert.True(t, first[0].CreatedAt.After(first[1].CreatedAt))

	rest, next, err := repo.ListByCustomer(ctx, customerID, pagination.Params{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Empty(t, next)
	assert.True(t, rest[0].CreatedAt.Before(first[1].CreatedAt))
}

func TestRepositoryUpdateStatusAndCharge(t *testing.T) {
	db := setupDeliveriesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	delivery := newPersistedDelivery(uuid.New())
	_, err := repo.CreateDelivery(ctx, delivery)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, delivery.ID, enums.DeliveryStatusEnRoute))
	require.NoError(t, repo.UpdateCharge(ctx, delivery.ID, decimal.NewFromInt(130), decimal.NewFromInt(4160)))

	found, err := repo.FindByID(ctx, delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStatusEnRoute, found.Status)
	assert.True(t, found.PricePerKgAtTime.Equal(decimal.NewFromInt(130)), "got %s", found.PricePerKgAtTime)
	assert.True(t, found.TotalCharge.Equal(decimal.NewFromInt(4160)), "got %s", found.TotalCharge)
}

func TestRepositoryDeleteDeliveryRemovesItems(t *testing.T) {
	db := setupDeliveriesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	delivery := newPersistedDelivery(uuid.New())
	_, err := repo.CreateDelivery(ctx, delivery)
	require.NoError(t, err)
	require.NoError(t, repo.CreateDeliveryItems(ctx, []models.DeliveryItem{
		{ID: uuid.New(), DeliveryID: delivery.ID, CylinderCapacityID: uuid.New(), Quantity: 1, KgContribution: decimal.NewFromInt(13)},
	}))

	require.NoError(t, repo.DeleteDelivery(ctx, delivery.ID))

	_, err = repo.FindByID(ctx, delivery.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	var itemCount int64
	require.NoError(t, db.Model(&models.DeliveryItem{}).Where("delivery_id = ?", delivery.ID).Count(&itemCount).Error)
	assert.Zero(t, itemCount)
}

func TestRepositoryCountPaymentsForDelivery(t *testing.T) {
	db := setupDeliveriesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	deliveryID := uuid.New()

	count, err := repo.CountPaymentsForDelivery(ctx, deliveryID)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, db.Exec(
		`INSERT INTO payments (id, customer_id, delivery_id, amount_paid, method, status, provider_reference, created_at, updated_at)
     VALUES (?, ?, ?, 2000, 'mobile_money', 'completed', ?, ?, ?)`,
		uuid.New().String(), uuid.New().String(), deliveryID.String(), "INV-1001", time.Now(), time.Now(),
	).Error)

	count, err = repo.CountPaymentsForDelivery(ctx, deliveryID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRepositoryFindCapacities(t *testing.T) {
	db := setupDeliveriesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	capacityID := uuid.New()
	require.NoError(t, db.Exec(
		"INSERT INTO cylinder_capacities (id, label, kg, created_at, updated_at) VALUES (?, '13kg', 13, ?, ?)",
		capacityID.String(), time.Now(), time.Now(),
	).Error)

	capacities, err := repo.FindCapacities(ctx, []uuid.UUID{capacityID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, capacities, 1)
	got, ok := capacities[capacityID]
	require.True(t, ok)
	assert.Equal(t, "13kg", got.Label)
	assert.True(t, got.Kg.Equal(decimal.NewFromInt(13)), "got %s", got.Kg)
}

func TestRepositoryFindCustomer(t *testing.T) {
	db := setupDeliveriesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customerID := uuid.New()
	require.NoError(t, db.Exec(
		"INSERT INTO customers (id, name, price_per_kg, balance, created_at, updated_at) VALUES (?, 'Kwik Eats', '120', 0, ?, ?)",
		customerID.String(), time.Now(), time.Now(),
	).Error)

	customer, err := repo.FindCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, "Kwik Eats", customer.Name)
	assert.True(t, customer.PricePerKg.Equal(decimal.NewFromInt(120)), "got %s", customer.PricePerKg)
}
