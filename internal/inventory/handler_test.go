package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shoppos/backend/internal/testutil"
	"github.com/shoppos/backend/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRouter(db *gorm.DB, shopID, userID uuid.UUID) *gin.Engine {
	h := NewHandler(db)
	importH := NewImportHandler(db)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("shop_id", shopID.String())
		c.Set("user_id", userID.String())
	})
	r.GET("/inventory", h.GetInventory)
	r.GET("/inventory/summary", h.GetSummary)
	r.GET("/inventory/alerts", h.GetAlerts)
	r.GET("/inventory/logs", h.ListLogs)
	r.PUT("/inventory/:id/stock", h.AdjustStock)
	r.POST("/inventory/import", importH.ImportFile)
	return r
}

func seedStockLevels(t *testing.T, db *gorm.DB, shopID uuid.UUID) {
	t.Helper()
	testutil.SeedProduct(t, db, shopID, "Plenty", "SKU-001", "10.00", 50)
	testutil.SeedProduct(t, db, shopID, "Scarce", "SKU-002", "10.00", 3)
	testutil.SeedProduct(t, db, shopID, "Gone", "SKU-003", "10.00", 0)
}

func TestGetInventoryFilters(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	seedStockLevels(t, db, shop.ID)
	r := newRouter(db, shop.ID, owner.ID)

	cases := []struct {
		filter string
		count  int
		status string
	}{
		{"", 3, ""},
		{"low", 1, "low"},
		{"out", 1, "out"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/inventory?filter="+tc.filter, nil)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data []InventoryItem `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Data, tc.count, "filter %q", tc.filter)
		if tc.status != "" {
			assert.Equal(t, tc.status, resp.Data[0].Status)
		}
	}
}

func TestGetSummary(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	seedStockLevels(t, db, shop.ID)
	r := newRouter(db, shop.ID, owner.ID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/inventory/summary", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data InventorySummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Data.TotalProducts)
	assert.Equal(t, 1, resp.Data.LowStockCount)
	assert.Equal(t, 1, resp.Data.OutOfStockCount)
	// Seeded cost is 5.00, 53 units on hand
	assert.True(t, resp.Data.TotalStockValue.Equal(decimal.RequireFromString("265.00")),
		"stock value %s", resp.Data.TotalStockValue)
}

func TestAdjustStockEndpoint(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	product := testutil.SeedProduct(t, db, shop.ID, "Coffee", "SKU-001", "10.00", 5)
	r := newRouter(db, shop.ID, owner.ID)

	payload, _ := json.Marshal(gin.H{"quantity_change": 10, "notes": "delivery"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/inventory/"+product.ID.String()+"/stock", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Driving stock below zero conflicts
	payload, _ = json.Marshal(gin.H{"quantity_change": -100})
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/inventory/"+product.ID.String()+"/stock", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListLogsFiltersByAction(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	product := testutil.SeedProduct(t, db, shop.ID, "Coffee", "SKU-001", "10.00", 5)

	svc := NewService(db)
	_, err := svc.AdjustStock(context.Background(), shop.ID, owner.ID, product.ID, 10, "delivery")
	require.NoError(t, err)
	_, err = svc.AdjustStock(context.Background(), shop.ID, owner.ID, product.ID, -2, "breakage")
	require.NoError(t, err)

	r := newRouter(db, shop.ID, owner.ID)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/inventory/logs?action=restock", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []database.InventoryLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "restock", resp.Data[0].Action)
}

func TestImportCSV(t *testing.T) {
	db := testutil.OpenDB(t)
	shop, owner := testutil.SeedShop(t, db)
	existing := testutil.SeedProduct(t, db, shop.ID, "Coffee", "SKU-001", "10.00", 5)
	r := newRouter(db, shop.ID, owner.ID)

	csvData := strings.Join([]string{
		"Product Name,SKU,Stock,Price,Cost",
		"Coffee,SKU-001,20,12.00,6.00",
		"New Thing,SKU-NEW,7,3.00,1.00",
	}, "\n")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "stock.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(csvData))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/inventory/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data ImportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.TotalRows)
	assert.Equal(t, 2, resp.Data.SuccessCount)
	assert.Zero(t, resp.Data.FailedCount)

	// Existing product restocked to the imported level with new price
	var reloaded database.Product
	require.NoError(t, db.First(&reloaded, "id = ?", existing.ID).Error)
	assert.Equal(t, 20, reloaded.StockQuantity)
	assert.True(t, reloaded.Price.Equal(decimal.RequireFromString("12.00")))

	// New product created and stocked through the ledger
	var created database.Product
	require.NoError(t, db.First(&created, "sku = ?", "SKU-NEW").Error)
	assert.Equal(t, 7, created.StockQuantity)

	var logs int64
	db.Model(&database.InventoryLog{}).Where("product_id = ?", created.ID).Count(&logs)
	assert.EqualValues(t, 1, logs)
}
