package reports

import (
	"net/http"
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

type ReportRequest struct {
	StartDate string `form:"start_date"` // Format: 2024-01-01
	EndDate   string `form:"end_date"`   // Format: 2024-01-31
}

type DailySales struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Sales   int             `json:"sales"`
}

type SalesReport struct {
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	GrossProfit    decimal.Decimal `json:"gross_profit"`
	TotalSales     int             `json:"total_sales"`
	TotalItemsSold int             `json:"total_items_sold"`
	AveragePerSale decimal.Decimal `json:"average_per_sale"`
	DailyBreakdown []DailySales    `json:"daily_breakdown"`
}

// parseRange resolves the requested date range, defaulting to the
// current calendar month
func parseRange(req ReportRequest) (time.Time, time.Time) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := time.Date(now.Year(), now.Month()+1, 0, 23, 59, 59, 0, now.Location())

	if req.StartDate != "" {
		if parsed, err := time.ParseInLocation("2006-01-02", req.StartDate, now.Location()); err == nil {
			start = parsed
		}
	}
	if req.EndDate != "" {
		if parsed, err := time.ParseInLocation("2006-01-02", req.EndDate, now.Location()); err == nil {
			end = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, 0, parsed.Location())
		}
	}
	return start, end
}

// GetSalesReport returns the sales report for a date range
func (h *Handler) GetSalesReport(c *gin.Context) {
	shopID := c.GetString("shop_id")

	var req ReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	startDate, endDate := parseRange(req)

	report := SalesReport{
		StartDate:      startDate.Format("2006-01-02"),
		EndDate:        endDate.Format("2006-01-02"),
		TotalRevenue:   decimal.Zero,
		TotalCost:      decimal.Zero,
		GrossProfit:    decimal.Zero,
		AveragePerSale: decimal.Zero,
		DailyBreakdown: []DailySales{},
	}

	var sales []database.Sale
	if err := h.db.Select("total_amount, created_at").
		Where("shop_id = ? AND status = ? AND created_at >= ? AND created_at <= ?", shopID, "completed", startDate, endDate).
		Order("created_at ASC").
		Find(&sales).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sales"})
		return
	}

	daily := map[string]*DailySales{}
	var order []string
	for _, sale := range sales {
		report.TotalRevenue = report.TotalRevenue.Add(sale.TotalAmount)
		report.TotalSales++

		key := sale.CreatedAt.Format("2006-01-02")
		entry, ok := daily[key]
		if !ok {
			entry = &DailySales{Date: key, Revenue: decimal.Zero}
			daily[key] = entry
			order = append(order, key)
		}
		entry.Revenue = entry.Revenue.Add(sale.TotalAmount)
		entry.Sales++
	}
	for _, key := range order {
		report.DailyBreakdown = append(report.DailyBreakdown, *daily[key])
	}

	if report.TotalSales > 0 {
		report.AveragePerSale = report.TotalRevenue.
			Div(decimal.NewFromInt(int64(report.TotalSales))).
			Round(2)
	}

	var itemTotals struct {
		Quantity int
		Cost     decimal.Decimal
	}
	h.db.Model(&database.SaleItem{}).
		Select("COALESCE(SUM(sale_items.quantity), 0) as quantity, COALESCE(SUM(sale_items.quantity * products.cost), 0) as cost").
		Joins("JOIN sales ON sale_items.sale_id = sales.id").
		Joins("JOIN products ON sale_items.product_id = products.id").
		Where("sales.shop_id = ? AND sales.status = ? AND sales.created_at >= ? AND sales.created_at <= ?",
			shopID, "completed", startDate, endDate).
		Scan(&itemTotals)

	report.TotalItemsSold = itemTotals.Quantity
	report.TotalCost = itemTotals.Cost
	report.GrossProfit = report.TotalRevenue.Sub(report.TotalCost)

	c.JSON(http.StatusOK, gin.H{"data": report})
}

type ProductSalesRow struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	ProductSKU    string          `json:"product_sku"`
	TotalQuantity int             `json:"total_quantity"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	Profit        decimal.Decimal `json:"profit"`
}

// GetProductSalesReport returns per-product sales for a date range
func (h *Handler) GetProductSalesReport(c *gin.Context) {
	shopID := c.GetString("shop_id")

	var req ReportRequest
	c.ShouldBindQuery(&req)

	startDate, endDate := parseRange(req)

	rows := []ProductSalesRow{}
	h.db.Model(&database.SaleItem{}).
		Select(`sale_items.product_id,
			sale_items.product_name,
			sale_items.product_sku,
			SUM(sale_items.quantity) as total_quantity,
			SUM(sale_items.subtotal) as total_revenue,
			SUM(sale_items.quantity * products.cost) as total_cost`).
		Joins("JOIN sales ON sale_items.sale_id = sales.id").
		Joins("JOIN products ON sale_items.product_id = products.id").
		Where("sales.shop_id = ? AND sales.status = ? AND sales.created_at >= ? AND sales.created_at <= ?",
			shopID, "completed", startDate, endDate).
		Group("sale_items.product_id, sale_items.product_name, sale_items.product_sku").
		Order("total_revenue DESC").
		Scan(&rows)

	for i := range rows {
		rows[i].Profit = rows[i].TotalRevenue.Sub(rows[i].TotalCost)
	}

	c.JSON(http.StatusOK, gin.H{"data": rows})
}
