package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockwatch/services/maintenance"
)

// DatabaseController exposes housekeeping operations.
type DatabaseController struct {
	maintenance *maintenance.Service
}

func NewDatabaseController(service *maintenance.Service) *DatabaseController {
	return &DatabaseController{maintenance: service}
}

// GetStats returns row counts, file size and last backup time.
// GET /api/database/stats
func (dc *DatabaseController) GetStats(c *gin.Context) {
	stats, err := dc.maintenance.Stats()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// CreateBackup snapshots the database file.
// POST /api/database/backup
func (dc *DatabaseController) CreateBackup(c *gin.Context) {
	path, err := dc.maintenance.Backup()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "backupPath": path})
}

type initializeRequest struct {
	Reset bool `json:"reset"`
}

// InitializeDatabase migrates and seeds, optionally dropping everything
// first.
// POST /api/database/initialize
func (dc *DatabaseController) InitializeDatabase(c *gin.Context) {
	var req initializeRequest
	_ = c.ShouldBindJSON(&req)

	if err := dc.maintenance.Initialize(req.Reset); err != nil {
		respondError(c, err)
		return
	}

	message := "database initialized"
	if req.Reset {
		message = "database reset and reinitialized"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}
