package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shoppos/backend/pkg/database"
	"github.com/shoppos/backend/pkg/stockledger"
	"gorm.io/gorm"
)

// ErrProductNotFound is returned when the product does not exist in
// the shop
var ErrProductNotFound = errors.New("product not found")

// InsufficientStockError reports an adjustment that would drive stock
// below zero. Stock is left unchanged.
type InsufficientStockError struct {
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

// Service applies manual stock adjustments. Like the sale path, the
// write is an atomic conditional update so concurrent mutations of the
// same product cannot push stock negative.
type Service struct {
	db     *gorm.DB
	ledger *stockledger.Ledger
}

// NewService creates a stock adjustment service
func NewService(db *gorm.DB) *Service {
	return &Service{
		db:     db,
		ledger: stockledger.NewLedger(db),
	}
}

// AdjustStock applies a signed delta to a product's stock and appends
// a ledger entry (restock for positive deltas, adjustment otherwise).
// A zero delta writes the no-op record and changes nothing.
func (s *Service) AdjustStock(ctx context.Context, shopID, userID, productID uuid.UUID, delta int, notes string) (*database.Product, error) {
	var product database.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND shop_id = ?", productID, shopID).First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}

		if delta == 0 {
			return s.ledger.RecordAdjustment(tx, shopID, productID, userID, 0, product.StockQuantity, notes)
		}

		var row struct {
			StockQuantity int
		}
		res := tx.Raw(
			"UPDATE products SET stock_quantity = stock_quantity + ?, updated_at = ? WHERE id = ? AND shop_id = ? AND stock_quantity + ? >= 0 RETURNING stock_quantity",
			delta, time.Now(), productID, shopID, delta,
		).Scan(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &InsufficientStockError{
				ProductName: product.Name,
				Available:   product.StockQuantity,
				Requested:   -delta,
			}
		}

		before := row.StockQuantity - delta
		if err := s.ledger.RecordAdjustment(tx, shopID, productID, userID, delta, before, notes); err != nil {
			return err
		}

		product.StockQuantity = row.StockQuantity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}
