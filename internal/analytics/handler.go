package analytics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
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

// DashboardStats aggregates completed sales over rolling windows
type DashboardStats struct {
	TodayRevenue    decimal.Decimal `json:"today_revenue"`
	TodaySalesCount int             `json:"today_sales_count"`
	WeekRevenue     decimal.Decimal `json:"week_revenue"`
	WeekSalesCount  int             `json:"week_sales_count"`
	MonthRevenue    decimal.Decimal `json:"month_revenue"`
	MonthSalesCount int             `json:"month_sales_count"`
	TotalProducts   int             `json:"total_products"`
	LowStockCount   int             `json:"low_stock_count"`
}

// TopProduct is one row of the best-seller ranking
type TopProduct struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	ProductSKU    string          `json:"product_sku"`
	TotalQuantity int             `json:"total_quantity"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

// ChartPoint is one day in the revenue series
type ChartPoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Sales   int             `json:"sales"`
}

// GetDashboardStats returns headline numbers for the dashboard
func (h *Handler) GetDashboardStats(c *gin.Context) {
	shopID := c.GetString("shop_id")

	now := time.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := todayStart.AddDate(0, 0, -7)
	monthStart := todayStart.AddDate(0, -1, 0)

	stats := DashboardStats{
		TodayRevenue: decimal.Zero,
		WeekRevenue:  decimal.Zero,
		MonthRevenue: decimal.Zero,
	}

	stats.TodayRevenue, stats.TodaySalesCount = h.revenueSince(shopID, todayStart)
	stats.WeekRevenue, stats.WeekSalesCount = h.revenueSince(shopID, weekStart)
	stats.MonthRevenue, stats.MonthSalesCount = h.revenueSince(shopID, monthStart)

	var totalProducts int64
	h.db.Model(&database.Product{}).
		Where("shop_id = ? AND is_active = ?", shopID, true).
		Count(&totalProducts)
	stats.TotalProducts = int(totalProducts)

	var lowStock int64
	h.db.Model(&database.Product{}).
		Where("shop_id = ? AND is_active = ? AND stock_quantity < low_stock_threshold", shopID, true).
		Count(&lowStock)
	stats.LowStockCount = int(lowStock)

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (h *Handler) revenueSince(shopID string, since time.Time) (decimal.Decimal, int) {
	var result struct {
		Total decimal.Decimal
		Count int
	}
	h.db.Model(&database.Sale{}).
		Select("COALESCE(SUM(total_amount), 0) as total, COUNT(*) as count").
		Where("shop_id = ? AND status = ? AND created_at >= ?", shopID, "completed", since).
		Scan(&result)
	return result.Total, result.Count
}

// GetTopProducts returns best sellers over the trailing 30 days
func (h *Handler) GetTopProducts(c *gin.Context) {
	shopID := c.GetString("shop_id")

	limit := 10
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}

	since := time.Now().AddDate(0, 0, -30)

	topProducts := []TopProduct{}
	h.db.Model(&database.SaleItem{}).
		Select("sale_items.product_id, sale_items.product_name, sale_items.product_sku, SUM(sale_items.quantity) as total_quantity, SUM(sale_items.subtotal) as total_revenue").
		Joins("JOIN sales ON sale_items.sale_id = sales.id").
		Where("sales.shop_id = ? AND sales.status = ? AND sales.created_at >= ?", shopID, "completed", since).
		Group("sale_items.product_id, sale_items.product_name, sale_items.product_sku").
		Order("total_quantity DESC").
		Limit(limit).
		Scan(&topProducts)

	c.JSON(http.StatusOK, gin.H{"data": topProducts})
}

// GetSalesChart returns a per-day revenue series over a trailing
// window, zero-filled for days with no sales
func (h *Handler) GetSalesChart(c *gin.Context) {
	shopID := c.GetString("shop_id")

	days := 7
	if v, err := strconv.Atoi(c.Query("days")); err == nil && v > 0 && v <= 365 {
		days = v
	}

	now := time.Now()
	endDate := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
	startDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(days - 1))

	var sales []database.Sale
	h.db.Select("total_amount, created_at").
		Where("shop_id = ? AND status = ? AND created_at >= ? AND created_at <= ?", shopID, "completed", startDate, endDate).
		Order("created_at ASC").
		Find(&sales)

	series := make([]ChartPoint, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := startDate.AddDate(0, 0, i).Format("2006-01-02")
		series[i] = ChartPoint{Date: date, Revenue: decimal.Zero}
		index[date] = i
	}

	for _, sale := range sales {
		key := sale.CreatedAt.Format("2006-01-02")
		if i, ok := index[key]; ok {
			series[i].Revenue = series[i].Revenue.Add(sale.TotalAmount)
			series[i].Sales++
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": series})
}

// GetRecentSales returns the latest sale headers
func (h *Handler) GetRecentSales(c *gin.Context) {
	shopID := c.GetString("shop_id")

	limit := 5
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 50 {
		limit = v
	}

	var sales []database.Sale
	h.db.Where("shop_id = ?", shopID).
		Order("created_at DESC").
		Limit(limit).
		Find(&sales)

	c.JSON(http.StatusOK, gin.H{"data": sales})
}
