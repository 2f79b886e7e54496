package product

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/shoppos/backend/pkg/database"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

type ProductRequest struct {
	Name              string          `json:"name" binding:"required"`
	SKU               string          `json:"sku" binding:"required"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price" binding:"required"`
	Cost              decimal.Decimal `json:"cost"`
	StockQuantity     int             `json:"stock_quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	CategoryID        *uuid.UUID      `json:"category_id"`
	Barcode           string          `json:"barcode"`
	ImageURL          string          `json:"image_url"`
}

// List returns all active products for the shop
func (h *Handler) List(c *gin.Context) {
	shopID := c.GetString("shop_id")

	query := h.db.Where("shop_id = ? AND is_active = ?", shopID, true)
	if categoryID := c.Query("category_id"); categoryID != "" {
		query = query.Where("category_id = ?", categoryID)
	}

	var products []database.Product
	if err := query.Preload("Category").Order("name ASC").Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": products})
}

// Create adds a new product
func (h *Handler) Create(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shopID, _ := uuid.Parse(c.GetString("shop_id"))

	if h.skuTaken(shopID, req.SKU, uuid.Nil) {
		c.JSON(http.StatusConflict, gin.H{"error": "SKU already in use"})
		return
	}

	threshold := req.LowStockThreshold
	if threshold <= 0 {
		threshold = 10
	}

	product := database.Product{
		ShopID:            shopID,
		Name:              req.Name,
		SKU:               req.SKU,
		Description:       req.Description,
		Price:             req.Price,
		Cost:              req.Cost,
		StockQuantity:     req.StockQuantity,
		LowStockThreshold: threshold,
		CategoryID:        req.CategoryID,
		Barcode:           req.Barcode,
		ImageURL:          req.ImageURL,
		IsActive:          true,
	}

	if err := h.db.Create(&product).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "SKU already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": product})
}

// Get returns a single product
func (h *Handler) Get(c *gin.Context) {
	shopID := c.GetString("shop_id")
	productID := c.Param("id")

	var product database.Product
	if err := h.db.Where("id = ? AND shop_id = ?", productID, shopID).
		Preload("Category").
		First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": product})
}

// Update modifies a product. Stock is not editable here; stock changes
// go through the inventory adjustment endpoint so the ledger stays
// complete.
func (h *Handler) Update(c *gin.Context) {
	shopID, _ := uuid.Parse(c.GetString("shop_id"))
	productID := c.Param("id")

	var product database.Product
	if err := h.db.Where("id = ? AND shop_id = ?", productID, shopID).First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.SKU != product.SKU && h.skuTaken(shopID, req.SKU, product.ID) {
		c.JSON(http.StatusConflict, gin.H{"error": "SKU already in use"})
		return
	}

	product.Name = req.Name
	product.SKU = req.SKU
	product.Description = req.Description
	product.Price = req.Price
	product.Cost = req.Cost
	product.CategoryID = req.CategoryID
	product.Barcode = req.Barcode
	product.ImageURL = req.ImageURL
	if req.LowStockThreshold > 0 {
		product.LowStockThreshold = req.LowStockThreshold
	}

	if err := h.db.Save(&product).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "SKU already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": product})
}

// Delete deactivates a product. Sold products stay referenced by sale
// items, so products are never hard-deleted.
func (h *Handler) Delete(c *gin.Context) {
	shopID := c.GetString("shop_id")
	productID := c.Param("id")

	var product database.Product
	if err := h.db.Where("id = ? AND shop_id = ?", productID, shopID).First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	if err := h.db.Model(&product).Update("is_active", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

func (h *Handler) skuTaken(shopID uuid.UUID, sku string, excludeID uuid.UUID) bool {
	var count int64
	query := h.db.Model(&database.Product{}).Where("shop_id = ? AND sku = ?", shopID, sku)
	if excludeID != uuid.Nil {
		query = query.Where("id != ?", excludeID)
	}
	query.Count(&count)
	return count > 0
}

// isUniqueViolation detects the Postgres unique-violation backstop for
// the per-shop SKU index (error code 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
