package sale

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shoppos/backend/pkg/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Handler struct {
	db       *gorm.DB
	recorder *Recorder
}

func NewHandler(db *gorm.DB, log *zap.Logger) *Handler {
	return &Handler{
		db:       db,
		recorder: NewRecorder(db, log),
	}
}

type SaleItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

type CreateSaleRequest struct {
	Items            []SaleItemRequest `json:"items" binding:"required,min=1"`
	PaymentMethod    string            `json:"payment_method"`
	PaymentReference string            `json:"payment_reference"`
	CustomerName     string            `json:"customer_name"`
	CustomerPhone    string            `json:"customer_phone"`
	CustomerEmail    string            `json:"customer_email"`
	TaxAmount        decimal.Decimal   `json:"tax_amount"`
	DiscountAmount   decimal.Decimal   `json:"discount_amount"`
	Notes            string            `json:"notes"`
}

// List returns recent sales for the shop
func (h *Handler) List(c *gin.Context) {
	shopID := c.GetString("shop_id")

	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}

	var sales []database.Sale
	if err := h.db.Where("shop_id = ?", shopID).
		Preload("Items").
		Order("created_at DESC").
		Limit(limit).
		Find(&sales).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sales"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sales})
}

// Create records a new sale
func (h *Handler) Create(c *gin.Context) {
	var req CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shopID, _ := uuid.Parse(c.GetString("shop_id"))
	cashierID, _ := uuid.Parse(c.GetString("user_id"))

	items := make([]LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	sale, err := h.recorder.Record(c.Request.Context(), shopID, cashierID, RecordInput{
		Items:            items,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		CustomerEmail:    req.CustomerEmail,
		Notes:            req.Notes,
		TaxAmount:        req.TaxAmount,
		DiscountAmount:   req.DiscountAmount,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": sale})
}

// Get returns a single sale with its items
func (h *Handler) Get(c *gin.Context) {
	shopID := c.GetString("shop_id")
	saleID := c.Param("id")

	var sale database.Sale
	if err := h.db.Where("id = ? AND shop_id = ?", saleID, shopID).
		Preload("Items").
		Preload("Items.Product").
		First(&sale).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Sale not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sale})
}

type RefundRequest struct {
	Reason string `json:"reason"`
}

// Refund marks a sale refunded and restores its stock
func (h *Handler) Refund(c *gin.Context) {
	shopID, _ := uuid.Parse(c.GetString("shop_id"))
	userID, _ := uuid.Parse(c.GetString("user_id"))

	saleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sale id"})
		return
	}

	var req RefundRequest
	c.ShouldBindJSON(&req)

	sale, err := h.recorder.Refund(c.Request.Context(), shopID, userID, saleID, req.Reason)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sale})
}

func (h *Handler) renderError(c *gin.Context, err error) {
	var stockErr *InsufficientStockError
	var notFoundErr *ProductNotFoundError

	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     stockErr.Error(),
			"code":      "INSUFFICIENT_STOCK",
			"product":   stockErr.ProductName,
			"available": stockErr.Available,
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": notFoundErr.Error()})
	case errors.Is(err, ErrEmptySale), errors.Is(err, ErrInvalidPaymentMethod), errors.Is(err, ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrSaleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotRefundable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process sale"})
	}
}
