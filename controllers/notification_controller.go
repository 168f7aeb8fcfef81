package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stockwatch/models"
	"stockwatch/services/notify"
)

// NotificationController manages the notification queue over REST.
type NotificationController struct {
	db         *gorm.DB
	dispatcher *notify.Dispatcher
}

func NewNotificationController(db *gorm.DB, dispatcher *notify.Dispatcher) *NotificationController {
	return &NotificationController{db: db, dispatcher: dispatcher}
}

// GetNotifications lists notifications, newest first.
// GET /api/notifications?sent=false&limit=50&offset=0
func (nc *NotificationController) GetNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := nc.db.Model(&models.Notification{}).Order("created_at desc, id desc")
	if sent := c.Query("sent"); sent != "" {
		parsed, err := strconv.ParseBool(sent)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid sent filter"})
			return
		}
		query = query.Where("is_sent = ?", parsed)
	}

	var notifications []models.Notification
	if err := query.Limit(limit).Offset(offset).Find(&notifications).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": notifications})
}

type createNotificationRequest struct {
	Message string  `json:"message" binding:"required"`
	Type    string  `json:"type"`
	Symbol  *string `json:"symbol"`
	SendNow bool    `json:"send_now"`
}

// CreateNotification stores a notification and optionally delivers it
// immediately. A failed immediate delivery still creates the row; the
// failure comes back as a warning.
// POST /api/notifications
func (nc *NotificationController) CreateNotification(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if req.Type == "" {
		req.Type = "manual"
	}

	notification, err := nc.dispatcher.Enqueue(req.Message, req.Type, req.Symbol, req.SendNow)
	if err != nil {
		if notification != nil {
			c.JSON(http.StatusCreated, gin.H{"data": notification, "warning": err.Error()})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": notification})
}

// SendNotification delivers one stored notification.
// POST /api/notifications/:id/send
func (nc *NotificationController) SendNotification(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid notification id"})
		return
	}

	if err := nc.dispatcher.SendOne(c.Request.Context(), uint(id)); err != nil {
		respondError(c, err)
		return
	}

	var notification models.Notification
	if err := nc.db.First(&notification, uint(id)).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": notification})
}

// DeleteNotification removes a notification row.
// DELETE /api/notifications/:id
func (nc *NotificationController) DeleteNotification(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid notification id"})
		return
	}

	var notification models.Notification
	if err := nc.db.First(&notification, uint(id)).Error; err != nil {
		respondError(c, err)
		return
	}
	if err := nc.db.Delete(&notification).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": notification.ID})
}

// TestTelegram validates the configured bot credentials.
// POST /api/notifications/test-telegram
func (nc *NotificationController) TestTelegram(c *gin.Context) {
	if err := nc.dispatcher.TestDelivery(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
