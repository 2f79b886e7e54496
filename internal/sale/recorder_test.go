package sale

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shoppos/backend/internal/testutil"
	"github.com/shoppos/backend/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecordComputesTotals(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	coffee := testutil.SeedProduct(t, db, shop.ID, "Coffee", "SKU-001", "10.00", 50)
	muffin := testutil.SeedProduct(t, db, shop.ID, "Muffin", "SKU-002", "5.00", 20)

	recorder := NewRecorder(db, zap.NewNop())
	result, err := recorder.Record(context.Background(), shop.ID, owner.ID, RecordInput{
		Items: []LineItem{
			{ProductID: coffee.ID, Quantity: 2},
			{ProductID: muffin.ID, Quantity: 1},
		},
		PaymentMethod:  "card",
		TaxAmount:      decimal.RequireFromString("2.00"),
		DiscountAmount: decimal.RequireFromString("0.50"),
	})
	require.NoError(t, err)

	assert.Equal(t, "INV-000001", result.InvoiceNumber)
	assert.True(t, result.Subtotal.Equal(decimal.RequireFromString("25.00")), "subtotal %s", result.Subtotal)
	assert.True(t, result.TotalAmount.Equal(decimal.RequireFromString("26.50")), "total %s", result.TotalAmount)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, "card", result.PaymentMethod)

	// Line subtotals add up to the sale subtotal
	sum := decimal.Zero
	for _, item := range result.Items {
		assert.True(t, item.Subtotal.Equal(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))))
		sum = sum.Add(item.Subtotal)
	}
	assert.True(t, sum.Equal(result.Subtotal))

	// Stock was decremented and the ledger recorded both movements
	var reloaded database.Product
	require.NoError(t, db.First(&reloaded, "id = ?", coffee.ID).Error)
	assert.Equal(t, 48, reloaded.StockQuantity)

	var logs []database.InventoryLog
	require.NoError(t, db.Where("shop_id = ?", shop.ID).Find(&logs).Error)
	require.Len(t, logs, 2)
	for _, entry := range logs {
		assert.Equal(t, "sale", entry.Action)
		assert.Equal(t, entry.QuantityBefore+entry.QuantityChange, entry.QuantityAfter)
		assert.Negative(t, entry.QuantityChange)
	}
}

func TestRecordSnapshotsProductNameAndPrice(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	product := testutil.SeedProduct(t, db, shop.ID, "Green Tea", "SKU-TEA", "3.50", 10)

	recorder := NewRecorder(db, zap.NewNop())
	result, err := recorder.Record(context.Background(), shop.ID, owner.ID, RecordInput{
		Items: []LineItem{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	// Later product edits must not change the receipt
	require.NoError(t, db.Model(&database.Product{}).Where("id = ?", product.ID).
		Updates(map[string]interface{}{"name": "Renamed", "price": "9.99"}).Error)

	var item database.SaleItem
	require.NoError(t, db.First(&item, "sale_id = ?", result.ID).Error)
	assert.Equal(t, "Green Tea", item.ProductName)
	assert.Equal(t, "SKU-TEA", item.ProductSKU)
	assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("3.50")))
}

func TestRecordInsufficientStockPersistsNothing(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	coffee := testutil.SeedProduct(t, db, shop.ID, "Coffee", "SKU-001", "10.00", 50)
	muffin := testutil.SeedProduct(t, db, shop.ID, "Muffin", "SKU-002", "5.00", 3)

	recorder := NewRecorder(db, zap.NewNop())
	_, err := recorder.Record(context.Background(), shop.ID, owner.ID, RecordInput{
		Items: []LineItem{
			{ProductID: coffee.ID, Quantity: 2},
			{ProductID: muffin.ID, Quantity: 5},
		},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Muffin", stockErr.ProductName)
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, 5, stockErr.Requested)

	// The rejected sale left nothing behind, including the decrement
	// of the first line
	var sales, items, logs int64
	db.Model(&database.Sale{}).Count(&sales)
	db.Model(&database.SaleItem{}).Count(&items)
	db.Model(&database.InventoryLog{}).Count(&logs)
	assert.Zero(t, sales)
	assert.Zero(t, items)
	assert.Zero(t, logs)

	var reloaded database.Product
	require.NoError(t, db.First(&reloaded, "id = ?", coffee.ID).Error)
	assert.Equal(t, 50, reloaded.StockQuantity)
}

func TestRecordLastUnit(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	product := testutil.SeedProduct(t, db, shop.ID, "Limited", "SKU-LTD", "99.00", 1)

	recorder := NewRecorder(db, zap.NewNop())
	input := RecordInput{Items: []LineItem{{ProductID: product.ID, Quantity: 1}}}

	_, err := recorder.Record(context.Background(), shop.ID, owner.ID, input)
	require.NoError(t, err)

	_, err = recorder.Record(context.Background(), shop.ID, owner.ID, input)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 0, stockErr.Available)
}

func TestInvoiceNumbersMonotonicPerShop(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	other, otherOwner := testutil.SeedShop(t, db)
	product := testutil.SeedProduct(t, db, shop.ID, "Coffee", "SKU-001", "10.00", 50)
	otherProduct := testutil.SeedProduct(t, db, other.ID, "Coffee", "SKU-001", "10.00", 50)

	recorder := NewRecorder(db, zap.NewNop())
	for i := 1; i <= 3; i++ {
		result, err := recorder.Record(context.Background(), shop.ID, owner.ID, RecordInput{
			Items: []LineItem{{ProductID: product.ID, Quantity: 1}},
		})
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("INV-%06d", i), result.InvoiceNumber)
	}

	// Each shop has its own counter
	result, err := recorder.Record(context.Background(), other.ID, otherOwner.ID, RecordInput{
		Items: []LineItem{{ProductID: otherProduct.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-000001", result.InvoiceNumber)
}

func TestRecordValidation(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	product := testutil.SeedProduct(t, db, shop.ID, "Coffee", "SKU-001", "10.00", 50)

	recorder := NewRecorder(db, zap.NewNop())
	ctx := context.Background()

	_, err := recorder.Record(ctx, shop.ID, owner.ID, RecordInput{})
	assert.ErrorIs(t, err, ErrEmptySale)

	_, err = recorder.Record(ctx, shop.ID, owner.ID, RecordInput{
		Items: []LineItem{{ProductID: product.ID, Quantity: 0}},
	})
	assert.ErrorIs(t, err, ErrEmptySale)

	_, err = recorder.Record(ctx, shop.ID, owner.ID, RecordInput{
		Items:         []LineItem{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod: "crypto",
	})
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)

	_, err = recorder.Record(ctx, shop.ID, owner.ID, RecordInput{
		Items:     []LineItem{{ProductID: product.ID, Quantity: 1}},
		TaxAmount: decimal.RequireFromString("-1.00"),
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// Discount larger than subtotal plus tax
	_, err = recorder.Record(ctx, shop.ID, owner.ID, RecordInput{
		Items:          []LineItem{{ProductID: product.ID, Quantity: 1}},
		DiscountAmount: decimal.RequireFromString("100.00"),
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = recorder.Record(ctx, shop.ID, owner.ID, RecordInput{
		Items: []LineItem{{ProductID: uuid.New(), Quantity: 1}},
	})
	var notFound *ProductNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRecordIgnoresOtherShopsProducts(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	other, _ := testutil.SeedShop(t, db)
	foreign := testutil.SeedProduct(t, db, other.ID, "Foreign", "SKU-X", "10.00", 50)

	recorder := NewRecorder(db, zap.NewNop())
	_, err := recorder.Record(context.Background(), shop.ID, owner.ID, RecordInput{
		Items: []LineItem{{ProductID: foreign.ID, Quantity: 1}},
	})

	var notFound *ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRefundRestoresStock(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	product := testutil.SeedProduct(t, db, shop.ID, "Coffee", "SKU-001", "10.00", 50)

	recorder := NewRecorder(db, zap.NewNop())
	sale, err := recorder.Record(context.Background(), shop.ID, owner.ID, RecordInput{
		Items: []LineItem{{ProductID: product.ID, Quantity: 4}},
	})
	require.NoError(t, err)

	refunded, err := recorder.Refund(context.Background(), shop.ID, owner.ID, sale.ID, "damaged goods")
	require.NoError(t, err)
	assert.Equal(t, "refunded", refunded.Status)

	var reloaded database.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	assert.Equal(t, 50, reloaded.StockQuantity)

	var entry database.InventoryLog
	require.NoError(t, db.Where("action = ?", "return").First(&entry).Error)
	assert.Equal(t, 4, entry.QuantityChange)
	assert.Equal(t, "damaged goods", entry.Notes)

	// A refunded sale cannot be refunded again: the conditional
	// status flip matches no row, so stock is restored exactly once
	_, err = recorder.Refund(context.Background(), shop.ID, owner.ID, sale.ID, "")
	assert.ErrorIs(t, err, ErrNotRefundable)

	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	assert.Equal(t, 50, reloaded.StockQuantity)

	var returns int64
	db.Model(&database.InventoryLog{}).Where("action = ?", "return").Count(&returns)
	assert.EqualValues(t, 1, returns)
}

func TestRefundGateIsStatusFlip(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	product := testutil.SeedProduct(t, db, shop.ID, "Coffee", "SKU-001", "10.00", 50)

	recorder := NewRecorder(db, zap.NewNop())
	sale, err := recorder.Record(context.Background(), shop.ID, owner.ID, RecordInput{
		Items: []LineItem{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	// A status changed underneath the refund (as a concurrent refund
	// would do before this one commits) makes the flip match no row
	require.NoError(t, db.Model(&database.Sale{}).Where("id = ?", sale.ID).
		Update("status", "refunded").Error)

	_, err = recorder.Refund(context.Background(), shop.ID, owner.ID, sale.ID, "")
	assert.ErrorIs(t, err, ErrNotRefundable)

	// The losing refund restored nothing
	var reloaded database.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	assert.Equal(t, 48, reloaded.StockQuantity)

	var returns int64
	db.Model(&database.InventoryLog{}).Where("action = ?", "return").Count(&returns)
	assert.Zero(t, returns)
}

func TestRecordLocksProductsInCanonicalOrder(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	first := testutil.SeedProduct(t, db, shop.ID, "First", "SKU-001", "10.00", 50)
	second := testutil.SeedProduct(t, db, shop.ID, "Second", "SKU-002", "5.00", 50)

	lo, hi := first, second
	if bytes.Compare(second.ID[:], first.ID[:]) < 0 {
		lo, hi = second, first
	}

	// Request order is reversed relative to the canonical order; the
	// recorder still processes rows low-to-high
	recorder := NewRecorder(db, zap.NewNop())
	result, err := recorder.Record(context.Background(), shop.ID, owner.ID, RecordInput{
		Items: []LineItem{
			{ProductID: hi.ID, Quantity: 1},
			{ProductID: lo.ID, Quantity: 2},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, lo.ID, result.Items[0].ProductID)
	assert.Equal(t, hi.ID, result.Items[1].ProductID)
	assert.True(t, result.Subtotal.Equal(lo.Price.Mul(decimal.NewFromInt(2)).Add(hi.Price)))
}

func TestRefundUnknownSale(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)

	recorder := NewRecorder(db, zap.NewNop())
	_, err := recorder.Refund(context.Background(), shop.ID, owner.ID, uuid.New(), "")
	assert.ErrorIs(t, err, ErrSaleNotFound)
}
