package inventory

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shoppos/backend/pkg/database"
	"gorm.io/gorm"
)

type Handler struct {
	db      *gorm.DB
	service *Service
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{
		db:      db,
		service: NewService(db),
	}
}

type InventoryItem struct {
	ProductID  uuid.UUID       `json:"product_id"`
	Name       string          `json:"name"`
	SKU        string          `json:"sku"`
	StockQty   int             `json:"stock_quantity"`
	Threshold  int             `json:"low_stock_threshold"`
	Price      decimal.Decimal `json:"price"`
	Cost       decimal.Decimal `json:"cost"`
	StockValue decimal.Decimal `json:"stock_value"`
	Status     string          `json:"status"` // ok, low, out
}

type InventorySummary struct {
	TotalProducts   int             `json:"total_products"`
	TotalStockValue decimal.Decimal `json:"total_stock_value"`
	LowStockCount   int             `json:"low_stock_count"`
	OutOfStockCount int             `json:"out_of_stock_count"`
}

// GetInventory returns stock status for all active products
func (h *Handler) GetInventory(c *gin.Context) {
	shopID := c.GetString("shop_id")
	filter := c.Query("filter") // all, low, out

	var products []database.Product
	if err := h.db.Where("shop_id = ? AND is_active = ?", shopID, true).
		Order("name ASC").
		Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch inventory"})
		return
	}

	items := []InventoryItem{}
	for _, p := range products {
		status := "ok"
		if p.StockQuantity <= 0 {
			status = "out"
		} else if p.StockQuantity < p.LowStockThreshold {
			status = "low"
		}

		if filter == "low" && status != "low" {
			continue
		}
		if filter == "out" && status != "out" {
			continue
		}

		items = append(items, InventoryItem{
			ProductID:  p.ID,
			Name:       p.Name,
			SKU:        p.SKU,
			StockQty:   p.StockQuantity,
			Threshold:  p.LowStockThreshold,
			Price:      p.Price,
			Cost:       p.Cost,
			StockValue: p.Cost.Mul(decimal.NewFromInt(int64(p.StockQuantity))),
			Status:     status,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// GetSummary returns inventory summary stats
func (h *Handler) GetSummary(c *gin.Context) {
	shopID := c.GetString("shop_id")

	var summary InventorySummary

	var totalProducts int64
	h.db.Model(&database.Product{}).
		Where("shop_id = ? AND is_active = ?", shopID, true).
		Count(&totalProducts)
	summary.TotalProducts = int(totalProducts)

	var stockValue struct {
		Total decimal.Decimal
	}
	h.db.Model(&database.Product{}).
		Select("COALESCE(SUM(stock_quantity * cost), 0) as total").
		Where("shop_id = ? AND is_active = ?", shopID, true).
		Scan(&stockValue)
	summary.TotalStockValue = stockValue.Total

	var lowStock int64
	h.db.Model(&database.Product{}).
		Where("shop_id = ? AND is_active = ? AND stock_quantity > 0 AND stock_quantity < low_stock_threshold", shopID, true).
		Count(&lowStock)
	summary.LowStockCount = int(lowStock)

	var outOfStock int64
	h.db.Model(&database.Product{}).
		Where("shop_id = ? AND is_active = ? AND stock_quantity <= 0", shopID, true).
		Count(&outOfStock)
	summary.OutOfStockCount = int(outOfStock)

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// GetAlerts returns products that need attention
func (h *Handler) GetAlerts(c *gin.Context) {
	shopID := c.GetString("shop_id")

	var lowStock []database.Product
	h.db.Where("shop_id = ? AND is_active = ? AND stock_quantity > 0 AND stock_quantity < low_stock_threshold", shopID, true).
		Order("stock_quantity ASC").
		Limit(10).
		Find(&lowStock)

	var outOfStock []database.Product
	h.db.Where("shop_id = ? AND is_active = ? AND stock_quantity <= 0", shopID, true).
		Order("name ASC").
		Limit(10).
		Find(&outOfStock)

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"low_stock":    lowStock,
			"out_of_stock": outOfStock,
		},
	})
}

type AdjustStockRequest struct {
	QuantityChange int    `json:"quantity_change"`
	Notes          string `json:"notes"`
}

// AdjustStock applies a manual stock adjustment
func (h *Handler) AdjustStock(c *gin.Context) {
	shopID, _ := uuid.Parse(c.GetString("shop_id"))
	userID, _ := uuid.Parse(c.GetString("user_id"))

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product id"})
		return
	}

	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.service.AdjustStock(c.Request.Context(), shopID, userID, productID, req.QuantityChange, req.Notes)
	if err != nil {
		var stockErr *InsufficientStockError
		switch {
		case errors.As(err, &stockErr):
			c.JSON(http.StatusConflict, gin.H{
				"error":     stockErr.Error(),
				"code":      "INSUFFICIENT_STOCK",
				"available": stockErr.Available,
			})
		case errors.Is(err, ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to adjust stock"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": product})
}

// ListLogs returns the inventory ledger, newest first
func (h *Handler) ListLogs(c *gin.Context) {
	shopID := c.GetString("shop_id")

	limit := 100
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 1000 {
		limit = v
	}

	query := h.db.Where("shop_id = ?", shopID)
	if productID := c.Query("product_id"); productID != "" {
		query = query.Where("product_id = ?", productID)
	}
	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}

	var logs []database.InventoryLog
	if err := query.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch inventory logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}
