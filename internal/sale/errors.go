package sale

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrEmptySale is returned when a sale has no line items
	ErrEmptySale = errors.New("sale must contain at least one item")

	// ErrInvalidPaymentMethod is returned for payment methods outside
	// the accepted set
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrInvalidAmount is returned when tax or discount is negative or
	// the discount exceeds the sale value
	ErrInvalidAmount = errors.New("invalid tax or discount amount")

	// ErrSaleNotFound is returned when a sale does not exist in the shop
	ErrSaleNotFound = errors.New("sale not found")

	// ErrNotRefundable is returned when refunding a sale that is not
	// in completed status
	ErrNotRefundable = errors.New("sale is not refundable")
)

// ProductNotFoundError reports a line item referencing a product that
// does not exist (or is inactive) in the shop.
type ProductNotFoundError struct {
	ProductID uuid.UUID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError reports a line item requesting more units
// than the product has in stock. The whole sale is rejected and
// nothing is persisted.
type InsufficientStockError struct {
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}
