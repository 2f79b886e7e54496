package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Base model for all entities
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Shop is the tenant root. Every other entity is scoped by ShopID.
// Shops are deactivated, never hard-deleted.
type Shop struct {
	BaseModel
	Name     string    `gorm:"not null" json:"name"`
	Slug     string    `gorm:"uniqueIndex" json:"slug"`
	OwnerID  uuid.UUID `gorm:"type:uuid;not null" json:"owner_id"`
	Address  string    `json:"address"`
	Phone    string    `json:"phone"`
	Email    string    `json:"email"`
	TaxID    string    `json:"tax_id"`
	Currency string    `gorm:"default:'USD'" json:"currency"`
	LogoURL  string    `json:"logo_url"`
	IsActive bool      `gorm:"default:true" json:"is_active"`
}

// User represents a system user
type User struct {
	BaseModel
	ShopID       uuid.UUID `gorm:"type:uuid;not null;index" json:"shop_id"`
	Shop         Shop      `gorm:"foreignKey:ShopID" json:"-"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	GoogleID     string    `gorm:"index" json:"-"` // For Google OAuth (empty for password users)
	PasswordHash string    `json:"-"`
	Name         string    `gorm:"not null" json:"name"`
	Role         string    `gorm:"default:'cashier'" json:"role"` // owner, admin, cashier, inventory_manager
	IsActive     bool      `gorm:"default:true" json:"is_active"`
}

// Category for products
type Category struct {
	BaseModel
	ShopID      uuid.UUID `gorm:"type:uuid;not null;index" json:"shop_id"`
	Shop        Shop      `gorm:"foreignKey:ShopID" json:"-"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
}

// Product represents a sellable item. SKU is unique within a shop.
// StockQuantity must never go below zero; every mutation goes through
// an atomic conditional update and writes an InventoryLog entry.
type Product struct {
	BaseModel
	ShopID            uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_products_shop_sku" json:"shop_id"`
	Shop              Shop            `gorm:"foreignKey:ShopID" json:"-"`
	CategoryID        *uuid.UUID      `gorm:"type:uuid" json:"category_id"`
	Category          *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	SKU               string          `gorm:"not null;uniqueIndex:idx_products_shop_sku" json:"sku"`
	Name              string          `gorm:"not null" json:"name"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Cost              decimal.Decimal `gorm:"type:decimal(12,2)" json:"cost"`
	StockQuantity     int             `gorm:"default:0" json:"stock_quantity"`
	LowStockThreshold int             `gorm:"default:10" json:"low_stock_threshold"`
	Barcode           string          `json:"barcode"`
	ImageURL          string          `json:"image_url"`
	IsActive          bool            `gorm:"default:true" json:"is_active"`
}

// Sale represents a completed checkout. Immutable after creation except
// for the refund path, which flips Status and restores stock.
type Sale struct {
	BaseModel
	ShopID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_sales_shop_invoice" json:"shop_id"`
	Shop             Shop            `gorm:"foreignKey:ShopID" json:"-"`
	InvoiceNumber    string          `gorm:"not null;uniqueIndex:idx_sales_shop_invoice" json:"invoice_number"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	TaxAmount        decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"tax_amount"`
	DiscountAmount   decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"discount_amount"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	PaymentMethod    string          `gorm:"default:'cash'" json:"payment_method"` // cash, card, digital, upi, other
	PaymentReference string          `json:"payment_reference"`
	Status           string          `gorm:"default:'completed'" json:"status"` // completed, refunded, partial_refund
	CustomerName     string          `json:"customer_name"`
	CustomerPhone    string          `json:"customer_phone"`
	CustomerEmail    string          `json:"customer_email"`
	Notes            string          `json:"notes"`
	CashierID        uuid.UUID       `gorm:"type:uuid;not null" json:"cashier_id"`
	Cashier          User            `gorm:"foreignKey:CashierID" json:"cashier,omitempty"`
	Items            []SaleItem      `gorm:"foreignKey:SaleID" json:"items"`
}

// SaleItem is one line of a sale. Product name and SKU are denormalized
// snapshots taken at sale time so receipts survive later product edits.
type SaleItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	ShopID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"shop_id"`
	SaleID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"sale_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	Product     Product         `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	ProductName string          `gorm:"not null" json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	CreatedAt   time.Time       `json:"created_at"`
}

// InventoryLog is the append-only stock ledger. Every stock mutation
// (sale, restock, adjustment, return) writes exactly one entry per
// product touched.
type InventoryLog struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ShopID         uuid.UUID `gorm:"type:uuid;not null;index" json:"shop_id"`
	ProductID      uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Product        Product   `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Action         string    `gorm:"not null" json:"action"` // sale, restock, adjustment, return
	QuantityChange int       `gorm:"not null" json:"quantity_change"`
	QuantityBefore int       `gorm:"not null" json:"quantity_before"`
	QuantityAfter  int       `gorm:"not null" json:"quantity_after"`
	Notes          string    `json:"notes"`
	UserID         uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// InvoiceCounter backs per-shop invoice number allocation. Numbers are
// taken with a single atomic increment inside the sale transaction, so
// they are unique and monotonic per shop.
type InvoiceCounter struct {
	ShopID     uuid.UUID `gorm:"type:uuid;primary_key" json:"shop_id"`
	LastNumber int64     `gorm:"not null;default:0" json:"last_number"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BeforeCreate assigns IDs in Go so the same models work on Postgres
// and on the sqlite databases used in tests.
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (i *SaleItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (l *InventoryLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Shop{},
		&User{},
		&Category{},
		&Product{},
		&Sale{},
		&SaleItem{},
		&InventoryLog{},
		&InvoiceCounter{},
	)
}
