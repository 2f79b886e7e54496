package inventory

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shoppos/backend/pkg/database"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type ImportHandler struct {
	db      *gorm.DB
	service *Service
}

func NewImportHandler(db *gorm.DB) *ImportHandler {
	return &ImportHandler{
		db:      db,
		service: NewService(db),
	}
}

type ImportResult struct {
	TotalRows    int      `json:"total_rows"`
	SuccessCount int      `json:"success_count"`
	FailedCount  int      `json:"failed_count"`
	Errors       []string `json:"errors"`
}

type ImportRow struct {
	Name     string
	SKU      string
	StockQty int
	Price    decimal.Decimal
	Cost     decimal.Decimal
}

// ImportFile handles Excel/CSV upload for bulk stock import. Stock
// changes go through AdjustStock so every row lands in the inventory
// log.
func (h *ImportHandler) ImportFile(c *gin.Context) {
	shopID, _ := uuid.Parse(c.GetString("shop_id"))
	userID, _ := uuid.Parse(c.GetString("user_id"))

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	var rows []ImportRow
	fileName := strings.ToLower(header.Filename)

	switch {
	case strings.HasSuffix(fileName, ".xlsx"):
		rows, err = parseExcel(file)
	case strings.HasSuffix(fileName, ".csv"):
		rows, err = parseCSV(file)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file format. Please upload .xlsx or .csv"})
		return
	}

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Failed to parse file: %v", err)})
		return
	}

	result := ImportResult{
		TotalRows: len(rows),
		Errors:    []string{},
	}

	for i, row := range rows {
		if row.Name == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Product name is required", i+2))
			result.FailedCount++
			continue
		}

		var existing database.Product
		var found bool

		if row.SKU != "" {
			if err := h.db.Where("shop_id = ? AND sku = ?", shopID, row.SKU).First(&existing).Error; err == nil {
				found = true
			}
		}
		if !found {
			if err := h.db.Where("shop_id = ? AND name = ?", shopID, row.Name).First(&existing).Error; err == nil {
				found = true
			}
		}

		if found {
			updates := map[string]interface{}{}
			if row.Price.IsPositive() {
				updates["price"] = row.Price
			}
			if row.Cost.IsPositive() {
				updates["cost"] = row.Cost
			}
			if len(updates) > 0 {
				if err := h.db.Model(&existing).Updates(updates).Error; err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Failed to update %s - %v", i+2, row.Name, err))
					result.FailedCount++
					continue
				}
			}

			delta := row.StockQty - existing.StockQuantity
			if _, err := h.service.AdjustStock(c.Request.Context(), shopID, userID, existing.ID, delta, "Bulk import"); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Failed to set stock for %s - %v", i+2, row.Name, err))
				result.FailedCount++
				continue
			}
			result.SuccessCount++
		} else {
			product := database.Product{
				ShopID:   shopID,
				Name:     row.Name,
				SKU:      row.SKU,
				Price:    row.Price,
				Cost:     row.Cost,
				IsActive: true,
			}
			if err := h.db.Create(&product).Error; err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Failed to create %s - %v", i+2, row.Name, err))
				result.FailedCount++
				continue
			}

			if row.StockQty > 0 {
				if _, err := h.service.AdjustStock(c.Request.Context(), shopID, userID, product.ID, row.StockQty, "Bulk import"); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Failed to set stock for %s - %v", i+2, row.Name, err))
					result.FailedCount++
					continue
				}
			}
			result.SuccessCount++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    result,
		"message": fmt.Sprintf("Import completed: %d success, %d failed", result.SuccessCount, result.FailedCount),
	})
}

// parseExcel parses .xlsx files
func parseExcel(file io.Reader) ([]ImportRow, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in file")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}

	return parseRows(rows)
}

// parseCSV parses .csv files
func parseCSV(file io.Reader) ([]ImportRow, error) {
	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return parseRows(records)
}

func parseRows(rows [][]string) ([]ImportRow, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("file must have header row and at least one data row")
	}

	colMap := make(map[string]int)
	for i, cell := range rows[0] {
		colMap[strings.ToLower(strings.TrimSpace(cell))] = i
	}

	pick := func(row []string, names ...string) string {
		for _, name := range names {
			if idx, ok := colMap[name]; ok && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
		}
		return ""
	}

	var result []ImportRow
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}

		importRow := ImportRow{
			Name: pick(row, "product name", "name", "product"),
			SKU:  pick(row, "sku", "code", "product code"),
		}
		if v, err := strconv.Atoi(pick(row, "stock", "stock qty", "quantity", "qty")); err == nil {
			importRow.StockQty = v
		}
		if v, err := decimal.NewFromString(pick(row, "price", "unit price")); err == nil {
			importRow.Price = v
		}
		if v, err := decimal.NewFromString(pick(row, "cost", "unit cost", "cogs")); err == nil {
			importRow.Cost = v
		}

		if importRow.Name != "" {
			result = append(result, importRow)
		}
	}

	return result, nil
}

// DownloadTemplate generates a sample Excel template for import
func (h *ImportHandler) DownloadTemplate(c *gin.Context) {
	f := excelize.NewFile()
	defer f.Close()

	headers := []string{"Product Name", "SKU", "Stock", "Price", "Cost"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue("Sheet1", cell, header)
	}

	sampleData := [][]interface{}{
		{"Espresso Beans 1kg", "EB-001", 100, 18.50, 11.00},
		{"Paper Cups 200ml", "PC-200", 500, 0.15, 0.08},
		{"Ceramic Mug", "CM-001", 30, 9.90, 4.50},
	}

	for rowIdx, row := range sampleData {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue("Sheet1", cell, value)
		}
	}

	f.SetColWidth("Sheet1", "A", "A", 20)
	f.SetColWidth("Sheet1", "B", "B", 15)
	f.SetColWidth("Sheet1", "C", "E", 12)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=stock_import_template.xlsx")

	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate template"})
		return
	}
}
