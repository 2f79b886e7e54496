package stockledger

import (
	"github.com/google/uuid"
	"github.com/shoppos/backend/pkg/database"
	"gorm.io/gorm"
)

// Inventory actions. Every stock mutation path writes exactly one
// entry per product touched.
const (
	ActionSale       = "sale"
	ActionRestock    = "restock"
	ActionAdjustment = "adjustment"
	ActionReturn     = "return"
)

// Ledger writes the append-only inventory audit trail
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a new stock ledger writer
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Record appends one ledger entry. Callers inside a transaction pass
// the transaction handle so the entry commits or rolls back with the
// stock mutation it describes; pass nil to use the base connection.
func (l *Ledger) Record(tx *gorm.DB, shopID, productID, userID uuid.UUID, action string, change, before, after int, notes string) error {
	if tx == nil {
		tx = l.db
	}

	entry := database.InventoryLog{
		ShopID:         shopID,
		ProductID:      productID,
		UserID:         userID,
		Action:         action,
		QuantityChange: change,
		QuantityBefore: before,
		QuantityAfter:  after,
		Notes:          notes,
	}

	return tx.Create(&entry).Error
}

// RecordSale logs the stock decrement for one sold line item
func (l *Ledger) RecordSale(tx *gorm.DB, shopID, productID, userID uuid.UUID, quantity, before int, invoiceNumber string) error {
	return l.Record(tx, shopID, productID, userID, ActionSale, -quantity, before, before-quantity, "Sale "+invoiceNumber)
}

// RecordReturn logs the stock restore for one refunded line item
func (l *Ledger) RecordReturn(tx *gorm.DB, shopID, productID, userID uuid.UUID, quantity, before int, invoiceNumber string) error {
	return l.Record(tx, shopID, productID, userID, ActionReturn, quantity, before, before+quantity, "Refund "+invoiceNumber)
}

// RecordAdjustment logs a manual stock change, classified as restock
// for positive deltas and adjustment otherwise
func (l *Ledger) RecordAdjustment(tx *gorm.DB, shopID, productID, userID uuid.UUID, delta, before int, notes string) error {
	action := ActionAdjustment
	if delta > 0 {
		action = ActionRestock
	}
	return l.Record(tx, shopID, productID, userID, action, delta, before, before+delta, notes)
}
