package shop

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shoppos/backend/pkg/database"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// Get returns the current shop's profile and settings
func (h *Handler) Get(c *gin.Context) {
	shopID := c.GetString("shop_id")

	var shop database.Shop
	if err := h.db.Where("id = ?", shopID).First(&shop).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Shop not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": shop})
}

type UpdateSettingsRequest struct {
	Name     string `json:"name" binding:"required"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	TaxID    string `json:"tax_id"`
	Currency string `json:"currency"`
	LogoURL  string `json:"logo_url"`
}

// UpdateSettings updates the shop profile. Restricted to owner/admin
// at the route level.
func (h *Handler) UpdateSettings(c *gin.Context) {
	shopID := c.GetString("shop_id")

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var shop database.Shop
	if err := h.db.Where("id = ?", shopID).First(&shop).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Shop not found"})
		return
	}

	shop.Name = req.Name
	shop.Address = req.Address
	shop.Phone = req.Phone
	shop.Email = req.Email
	shop.TaxID = req.TaxID
	shop.LogoURL = req.LogoURL
	if req.Currency != "" {
		shop.Currency = req.Currency
	}

	if err := h.db.Save(&shop).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update shop"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": shop})
}
