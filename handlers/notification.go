package handlers

import (
	"database/sql"
	"net/http"

	"exam_review_backend/logger"
	"exam_review_backend/models"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	db *sql.DB
}

func NewNotificationHandler(db *sql.DB) *NotificationHandler {
	return &NotificationHandler{db: db}
}

// GetNotifications returns the newest broadcast notifications.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(), `
		SELECT id, user_id, title, message, created_at
		FROM notifications
		WHERE user_id IS NULL
		ORDER BY created_at DESC
		LIMIT $1
	`, models.NotificationFeedLimit)
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error fetching notifications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0, models.NotificationFeedLimit)
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.CreatedAt); err != nil {
			logger.FromContext(c).WithError(err).Error("error scanning notification")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
			return
		}
		if n.UserID != nil || len(notifications) == models.NotificationFeedLimit {
			continue
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": notifications})
}

func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	var req models.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n := models.Notification{Title: req.Title, Message: req.Message}
	err := h.db.QueryRowContext(c.Request.Context(),
		`INSERT INTO notifications (user_id, title, message) VALUES (NULL, $1, $2) RETURNING id, created_at`,
		req.Title, req.Message,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error creating notification")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create notification"})
		return
	}

	c.JSON(http.StatusCreated, n)
}
