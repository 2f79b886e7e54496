package product

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shoppos/backend/internal/testutil"
	"github.com/shoppos/backend/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRouter(db *gorm.DB, shopID uuid.UUID) *gin.Engine {
	h := NewHandler(db)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("shop_id", shopID.String())
	})
	r.GET("/products", h.List)
	r.POST("/products", h.Create)
	r.GET("/products/:id", h.Get)
	r.PUT("/products/:id", h.Update)
	r.DELETE("/products/:id", h.Delete)
	return r
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestCreateProduct(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, _ := testutil.SeedShop(t, db)
	r := newRouter(db, shop.ID)

	w := postJSON(r, "/products", gin.H{
		"name":           "Espresso Beans",
		"sku":            "BEAN-001",
		"price":          "18.50",
		"cost":           "9.00",
		"stock_quantity": 40,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var product database.Product
	require.NoError(t, db.First(&product, "sku = ?", "BEAN-001").Error)
	assert.Equal(t, "Espresso Beans", product.Name)
	assert.Equal(t, 40, product.StockQuantity)
	assert.Equal(t, 10, product.LowStockThreshold)
	assert.True(t, product.IsActive)
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, _ := testutil.SeedShop(t, db)
	testutil.SeedProduct(t, db, shop.ID, "Original", "BEAN-001", "10.00", 5)
	r := newRouter(db, shop.ID)

	w := postJSON(r, "/products", gin.H{
		"name":  "Copy",
		"sku":   "BEAN-001",
		"price": "12.00",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateProductSameSKUDifferentShop(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, _ := testutil.SeedShop(t, db)
	other, _ := testutil.SeedShop(t, db)
	testutil.SeedProduct(t, db, other.ID, "Elsewhere", "BEAN-001", "10.00", 5)
	r := newRouter(db, shop.ID)

	// SKUs are unique per shop, not globally
	w := postJSON(r, "/products", gin.H{
		"name":  "Mine",
		"sku":   "BEAN-001",
		"price": "12.00",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestListExcludesInactiveAndOtherShops(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, _ := testutil.SeedShop(t, db)
	other, _ := testutil.SeedShop(t, db)
	testutil.SeedProduct(t, db, shop.ID, "Visible", "SKU-001", "10.00", 5)
	retired := testutil.SeedProduct(t, db, shop.ID, "Retired", "SKU-002", "10.00", 5)
	testutil.SeedProduct(t, db, other.ID, "Foreign", "SKU-003", "10.00", 5)
	require.NoError(t, db.Model(&retired).Update("is_active", false).Error)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	newRouter(db, shop.ID).ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []database.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Visible", resp.Data[0].Name)
}

func TestUpdateProductKeepsStock(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, _ := testutil.SeedShop(t, db)
	product := testutil.SeedProduct(t, db, shop.ID, "Coffee", "SKU-001", "10.00", 25)
	r := newRouter(db, shop.ID)

	payload, _ := json.Marshal(gin.H{
		"name":           "Coffee Large",
		"sku":            "SKU-001",
		"price":          "11.00",
		"stock_quantity": 999,
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/products/"+product.ID.String(), bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var reloaded database.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	assert.Equal(t, "Coffee Large", reloaded.Name)
	// Stock only moves through inventory adjustments
	assert.Equal(t, 25, reloaded.StockQuantity)
}

func TestDeleteProductDeactivates(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, _ := testutil.SeedShop(t, db)
	product := testutil.SeedProduct(t, db, shop.ID, "Coffee", "SKU-001", "10.00", 25)
	r := newRouter(db, shop.ID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/products/"+product.ID.String(), nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var reloaded database.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	assert.False(t, reloaded.IsActive)
}
