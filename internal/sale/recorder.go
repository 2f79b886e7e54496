package sale

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shoppos/backend/pkg/database"
	"github.com/shoppos/backend/pkg/stockledger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Payment methods accepted at checkout
var paymentMethods = map[string]bool{
	"cash":    true,
	"card":    true,
	"digital": true,
	"upi":     true,
	"other":   true,
}

// LineItem is one product/quantity entry in a sale request. Unit price
// and the name/sku snapshot are resolved from the product row on the
// server, never trusted from the client.
type LineItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// RecordInput carries everything the Recorder needs beyond the acting
// shop and cashier.
type RecordInput struct {
	Items            []LineItem
	PaymentMethod    string
	PaymentReference string
	CustomerName     string
	CustomerPhone    string
	CustomerEmail    string
	Notes            string
	TaxAmount        decimal.Decimal
	DiscountAmount   decimal.Decimal
}

// Recorder persists sales. The whole flow — invoice allocation, stock
// decrement, sale header, line items, ledger entries — runs in one
// database transaction, so a failure at any step leaves nothing behind.
type Recorder struct {
	db     *gorm.DB
	ledger *stockledger.Ledger
	log    *zap.Logger
}

// NewRecorder creates a sale recorder
func NewRecorder(db *gorm.DB, log *zap.Logger) *Recorder {
	return &Recorder{
		db:     db,
		ledger: stockledger.NewLedger(db),
		log:    log,
	}
}

// Record validates and persists a sale for the shop.
//
// Stock is taken with a conditional decrement
// (stock_quantity = stock_quantity - qty WHERE stock_quantity >= qty),
// so two concurrent checkouts for the last unit cannot both succeed:
// the row lock serializes them and the loser fails the floor check.
func (r *Recorder) Record(ctx context.Context, shopID, cashierID uuid.UUID, input RecordInput) (*database.Sale, error) {
	if len(input.Items) == 0 {
		return nil, ErrEmptySale
	}
	for _, line := range input.Items {
		if line.Quantity <= 0 {
			return nil, ErrEmptySale
		}
	}

	method := input.PaymentMethod
	if method == "" {
		method = "cash"
	}
	if !paymentMethods[method] {
		return nil, ErrInvalidPaymentMethod
	}

	if input.TaxAmount.IsNegative() || input.DiscountAmount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	// Lock product rows in a canonical order so two carts sharing
	// products in opposite order cannot deadlock.
	lines := make([]LineItem, len(input.Items))
	copy(lines, input.Items)
	sort.Slice(lines, func(i, j int) bool {
		return bytes.Compare(lines[i].ProductID[:], lines[j].ProductID[:]) < 0
	})

	var result database.Sale
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoiceNumber, err := nextInvoiceNumber(tx, shopID)
		if err != nil {
			return err
		}

		items := make([]database.SaleItem, 0, len(lines))
		subtotal := decimal.Zero

		for _, line := range lines {
			var product database.Product
			if err := tx.Where("id = ? AND shop_id = ? AND is_active = ?", line.ProductID, shopID, true).
				First(&product).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &ProductNotFoundError{ProductID: line.ProductID}
				}
				return err
			}

			after, err := decrementStock(tx, shopID, product.ID, line.Quantity)
			if err != nil {
				return err
			}
			if after < 0 {
				// Floor check failed; report the committed quantity.
				available, err := currentStock(tx, shopID, product.ID)
				if err != nil {
					return err
				}
				return &InsufficientStockError{
					ProductName: product.Name,
					Available:   available,
					Requested:   line.Quantity,
				}
			}

			lineSubtotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			items = append(items, database.SaleItem{
				ShopID:      shopID,
				ProductID:   product.ID,
				ProductName: product.Name,
				ProductSKU:  product.SKU,
				Quantity:    line.Quantity,
				UnitPrice:   product.Price,
				Subtotal:    lineSubtotal,
			})
			subtotal = subtotal.Add(lineSubtotal)

			if err := r.ledger.RecordSale(tx, shopID, product.ID, cashierID, line.Quantity, after+line.Quantity, invoiceNumber); err != nil {
				return err
			}
		}

		total := subtotal.Add(input.TaxAmount).Sub(input.DiscountAmount)
		if total.IsNegative() {
			return ErrInvalidAmount
		}

		result = database.Sale{
			ShopID:           shopID,
			InvoiceNumber:    invoiceNumber,
			Subtotal:         subtotal,
			TaxAmount:        input.TaxAmount,
			DiscountAmount:   input.DiscountAmount,
			TotalAmount:      total,
			PaymentMethod:    method,
			PaymentReference: input.PaymentReference,
			Status:           "completed",
			CustomerName:     input.CustomerName,
			CustomerPhone:    input.CustomerPhone,
			CustomerEmail:    input.CustomerEmail,
			Notes:            input.Notes,
			CashierID:        cashierID,
			Items:            items,
		}
		return tx.Create(&result).Error
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("sale recorded",
		zap.String("shop_id", shopID.String()),
		zap.String("invoice_number", result.InvoiceNumber),
		zap.String("total", result.TotalAmount.String()),
		zap.Int("items", len(result.Items)))

	return &result, nil
}

// Refund marks a completed sale refunded and restores the stock taken
// by each line item, with a return entry in the inventory log.
func (r *Recorder) Refund(ctx context.Context, shopID, userID, saleID uuid.UUID, reason string) (*database.Sale, error) {
	var result database.Sale
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND shop_id = ?", saleID, shopID).
			Preload("Items").
			First(&result).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSaleNotFound
			}
			return err
		}

		// The status flip is the refundability gate, conditional like
		// the stock decrement: a concurrent refund that already
		// flipped the row leaves zero affected rows here, so only one
		// transaction restores stock.
		res := tx.Model(&database.Sale{}).
			Where("id = ? AND shop_id = ? AND status = ?", saleID, shopID, "completed").
			Update("status", "refunded")
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotRefundable
		}
		result.Status = "refunded"

		for _, item := range result.Items {
			after, err := incrementStock(tx, shopID, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			notes := reason
			if notes == "" {
				notes = "Refund " + result.InvoiceNumber
			}
			if err := r.ledger.Record(tx, shopID, item.ProductID, userID, stockledger.ActionReturn,
				item.Quantity, after-item.Quantity, after, notes); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("sale refunded",
		zap.String("shop_id", shopID.String()),
		zap.String("invoice_number", result.InvoiceNumber))

	return &result, nil
}

// decrementStock atomically takes quantity units off a product and
// returns the remaining stock. Returns -1 without error when the floor
// check rejected the decrement.
func decrementStock(tx *gorm.DB, shopID, productID uuid.UUID, quantity int) (int, error) {
	var row struct {
		StockQuantity int
	}
	res := tx.Raw(
		"UPDATE products SET stock_quantity = stock_quantity - ?, updated_at = ? WHERE id = ? AND shop_id = ? AND stock_quantity >= ? RETURNING stock_quantity",
		quantity, time.Now(), productID, shopID, quantity,
	).Scan(&row)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return -1, nil
	}
	return row.StockQuantity, nil
}

func incrementStock(tx *gorm.DB, shopID, productID uuid.UUID, quantity int) (int, error) {
	var row struct {
		StockQuantity int
	}
	res := tx.Raw(
		"UPDATE products SET stock_quantity = stock_quantity + ?, updated_at = ? WHERE id = ? AND shop_id = ? RETURNING stock_quantity",
		quantity, time.Now(), productID, shopID,
	).Scan(&row)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, &ProductNotFoundError{ProductID: productID}
	}
	return row.StockQuantity, nil
}

func currentStock(tx *gorm.DB, shopID, productID uuid.UUID) (int, error) {
	var row struct {
		StockQuantity int
	}
	err := tx.Model(&database.Product{}).
		Select("stock_quantity").
		Where("id = ? AND shop_id = ?", productID, shopID).
		Scan(&row).Error
	return row.StockQuantity, err
}
