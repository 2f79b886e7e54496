package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shoppos/backend/internal/testutil"
	"github.com/shoppos/backend/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustStockRestock(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	product := testutil.SeedProduct(t, db, shop.ID, "Coffee", "SKU-001", "10.00", 5)

	svc := NewService(db)
	updated, err := svc.AdjustStock(context.Background(), shop.ID, owner.ID, product.ID, 20, "weekly delivery")
	require.NoError(t, err)
	assert.Equal(t, 25, updated.StockQuantity)

	var entry database.InventoryLog
	require.NoError(t, db.Where("product_id = ?", product.ID).First(&entry).Error)
	assert.Equal(t, "restock", entry.Action)
	assert.Equal(t, 20, entry.QuantityChange)
	assert.Equal(t, 5, entry.QuantityBefore)
	assert.Equal(t, 25, entry.QuantityAfter)
	assert.Equal(t, "weekly delivery", entry.Notes)
}

func TestAdjustStockNegativeDelta(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	product := testutil.SeedProduct(t, db, shop.ID, "Coffee", "SKU-001", "10.00", 5)

	svc := NewService(db)
	updated, err := svc.AdjustStock(context.Background(), shop.ID, owner.ID, product.ID, -3, "breakage")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.StockQuantity)

	var entry database.InventoryLog
	require.NoError(t, db.Where("product_id = ?", product.ID).First(&entry).Error)
	assert.Equal(t, "adjustment", entry.Action)
	assert.Equal(t, -3, entry.QuantityChange)
}

func TestAdjustStockFloorRejected(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	product := testutil.SeedProduct(t, db, shop.ID, "Coffee", "SKU-001", "10.00", 5)

	svc := NewService(db)
	_, err := svc.AdjustStock(context.Background(), shop.ID, owner.ID, product.ID, -8, "")

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Available)
	assert.Equal(t, 8, stockErr.Requested)

	// Stock and ledger untouched
	var reloaded database.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	assert.Equal(t, 5, reloaded.StockQuantity)

	var logs int64
	db.Model(&database.InventoryLog{}).Count(&logs)
	assert.Zero(t, logs)
}

func TestAdjustStockZeroDelta(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	product := testutil.SeedProduct(t, db, shop.ID, "Coffee", "SKU-001", "10.00", 5)

	svc := NewService(db)
	updated, err := svc.AdjustStock(context.Background(), shop.ID, owner.ID, product.ID, 0, "stocktake, no change")
	require.NoError(t, err)
	assert.Equal(t, 5, updated.StockQuantity)

	var entry database.InventoryLog
	require.NoError(t, db.Where("product_id = ?", product.ID).First(&entry).Error)
	assert.Equal(t, 0, entry.QuantityChange)
	assert.Equal(t, 5, entry.QuantityBefore)
	assert.Equal(t, 5, entry.QuantityAfter)
}

func TestAdjustStockUnknownProduct(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)

	svc := NewService(db)
	_, err := svc.AdjustStock(context.Background(), shop.ID, owner.ID, uuid.New(), 5, "")
	assert.ErrorIs(t, err, ErrProductNotFound)
}
