package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stockwatch/models"
	"stockwatch/services/predictor"
)

// PredictionController serves stored predictions and triggers new ones.
type PredictionController struct {
	db        *gorm.DB
	generator predictor.Generator
}

func NewPredictionController(db *gorm.DB, generator predictor.Generator) *PredictionController {
	return &PredictionController{db: db, generator: generator}
}

// GetPredictions lists predictions for a symbol, newest first.
// GET /api/predictions/:symbol?timeframe=medium
func (pc *PredictionController) GetPredictions(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	query := pc.db.Where("symbol = ?", symbol).Order("created_at desc")
	if timeframe := c.Query("timeframe"); timeframe != "" {
		valid, ok := predictor.ValidTimeframe(timeframe)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid timeframe"})
			return
		}
		query = query.Where("timeframe = ?", valid)
	}

	var predictions []models.Prediction
	if err := query.Find(&predictions).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": predictions})
}

type generateRequest struct {
	Symbol    string `json:"symbol" binding:"required"`
	Timeframe string `json:"timeframe"`
}

// GeneratePrediction produces and stores a new prediction.
// POST /api/predictions/generate
func (pc *PredictionController) GeneratePrediction(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	prediction, err := pc.generator.Generate(strings.ToUpper(strings.TrimSpace(req.Symbol)), req.Timeframe)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": prediction})
}
