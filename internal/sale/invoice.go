package sale

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shoppos/backend/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// nextInvoiceNumber allocates the next invoice number for a shop. It
// must run inside the sale transaction: the atomic increment serializes
// concurrent checkouts on the counter row, so numbers are unique and
// monotonic per shop, and an aborted sale rolls the number back with
// the rest of the transaction.
func nextInvoiceNumber(tx *gorm.DB, shopID uuid.UUID) (string, error) {
	next, err := incrementCounter(tx, shopID)
	if err != nil {
		return "", fmt.Errorf("allocate invoice number: %w", err)
	}
	return fmt.Sprintf("INV-%06d", next), nil
}

func incrementCounter(tx *gorm.DB, shopID uuid.UUID) (int64, error) {
	// First attempt assumes the counter row exists; the second runs
	// after creating it. ON CONFLICT DO NOTHING keeps concurrent
	// creators from failing each other.
	for attempt := 0; attempt < 2; attempt++ {
		var row struct {
			LastNumber int64
		}
		res := tx.Raw(
			"UPDATE invoice_counters SET last_number = last_number + 1, updated_at = ? WHERE shop_id = ? RETURNING last_number",
			time.Now(), shopID,
		).Scan(&row)
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected > 0 {
			return row.LastNumber, nil
		}

		counter := database.InvoiceCounter{ShopID: shopID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
			return 0, err
		}
	}

	return 0, errors.New("invoice counter row missing after create")
}
