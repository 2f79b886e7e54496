// Package testutil provides shared helpers for package tests: an
// in-memory database with the full schema migrated, and seed functions
// for the common fixtures.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shoppos/backend/pkg/database"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// OpenDB opens a fresh in-memory database and migrates the schema.
// Each test gets its own named database so parallel tests do not
// share state.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps the named in-memory database alive for
	// the duration of the test.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// SeedShop creates a shop with an owner user and returns both.
func SeedShop(t *testing.T, db *gorm.DB) (database.Shop, database.User) {
	t.Helper()

	shop := database.Shop{
		Name:     "Test Shop",
		Slug:     "test-shop-" + uuid.New().String()[:8],
		Currency: "USD",
		IsActive: true,
	}
	shop.ID = uuid.New()

	user := database.User{
		ShopID:   shop.ID,
		Email:    fmt.Sprintf("owner-%s@example.com", uuid.New().String()[:8]),
		Name:     "Owner",
		Role:     "owner",
		IsActive: true,
	}
	user.ID = uuid.New()
	shop.OwnerID = user.ID

	require.NoError(t, db.Create(&shop).Error)
	require.NoError(t, db.Create(&user).Error)
	return shop, user
}

// SeedProduct creates an active product in the given shop.
func SeedProduct(t *testing.T, db *gorm.DB, shopID uuid.UUID, name, sku string, price string, stock int) database.Product {
	t.Helper()

	product := database.Product{
		ShopID:            shopID,
		SKU:               sku,
		Name:              name,
		Price:             decimal.RequireFromString(price),
		Cost:              decimal.RequireFromString(price).Div(decimal.NewFromInt(2)).Round(2),
		StockQuantity:     stock,
		LowStockThreshold: 10,
		IsActive:          true,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}
