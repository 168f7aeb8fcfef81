package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stockwatch/models"
	"stockwatch/services/marketdata"
)

// StockController handles stock listing, detail, history and refresh.
type StockController struct {
	db      *gorm.DB
	gateway *marketdata.Gateway
}

func NewStockController(db *gorm.DB, gateway *marketdata.Gateway) *StockController {
	return &StockController{db: db, gateway: gateway}
}

// GetStocks returns all tracked stocks.
// GET /api/stocks
func (sc *StockController) GetStocks(c *gin.Context) {
	var stocks []models.Stock
	if err := sc.db.Order("symbol asc").Find(&stocks).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stocks})
}

// GetStock returns one stock with its latest price bar.
// GET /api/stocks/:symbol
func (sc *StockController) GetStock(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	var stock models.Stock
	if err := sc.db.First(&stock, "symbol = ?", symbol).Error; err != nil {
		respondError(c, err)
		return
	}

	var latest models.HistoricalPrice
	err := sc.db.Where("symbol = ?", symbol).Order("date desc").First(&latest).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, err)
		return
	}

	response := gin.H{"data": stock}
	if err == nil {
		response["latest_price"] = latest
	}
	c.JSON(http.StatusOK, response)
}

// periodCutoff maps a history period label to its start date. Unknown
// labels fall back to three months.
func periodCutoff(period string, now time.Time) time.Time {
	switch period {
	case "1w":
		return now.AddDate(0, 0, -7)
	case "1mo":
		return now.AddDate(0, -1, 0)
	case "6mo":
		return now.AddDate(0, -6, 0)
	case "1y":
		return now.AddDate(-1, 0, 0)
	case "all":
		return time.Time{}
	default:
		return now.AddDate(0, -3, 0)
	}
}

// GetStockHistory returns stored daily bars for one symbol.
// GET /api/stocks/:symbol/history?period=3mo&interval=1d
func (sc *StockController) GetStockHistory(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	period := c.DefaultQuery("period", "3mo")
	interval := c.DefaultQuery("interval", "1d")

	var stock models.Stock
	if err := sc.db.First(&stock, "symbol = ?", symbol).Error; err != nil {
		respondError(c, err)
		return
	}

	var prices []models.HistoricalPrice
	query := sc.db.Where("symbol = ?", symbol).Order("date asc")
	if cutoff := periodCutoff(period, time.Now().UTC()); !cutoff.IsZero() {
		query = query.Where("date >= ?", cutoff)
	}
	if err := query.Find(&prices).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"period":   period,
		"interval": interval,
		"data":     prices,
	})
}

type refreshRequest struct {
	Symbols []string `json:"symbols"`
}

// RefreshStocks fetches fresh data for the requested symbols, or every
// tracked symbol when the body names none.
// POST /api/stocks/refresh
func (sc *StockController) RefreshStocks(c *gin.Context) {
	// An empty or missing body means "refresh everything".
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)

	symbols := make([]string, 0, len(req.Symbols))
	for _, symbol := range req.Symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol != "" {
			symbols = append(symbols, symbol)
		}
	}
	if len(symbols) == 0 {
		if err := sc.db.Model(&models.Stock{}).Order("symbol asc").Pluck("symbol", &symbols).Error; err != nil {
			respondError(c, err)
			return
		}
	}

	outcomes := sc.gateway.RefreshAll(c.Request.Context(), symbols)
	c.JSON(http.StatusOK, gin.H{"results": outcomes})
}
