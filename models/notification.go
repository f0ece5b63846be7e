package models

import "time"

const NotificationFeedLimit = 20

// Notification with a nil UserID is a broadcast.
type Notification struct {
	ID        int       `json:"id"`
	UserID    *int      `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateNotificationRequest struct {
	Title   string `json:"title" binding:"required,max=255"`
	Message string `json:"message" binding:"required"`
}
