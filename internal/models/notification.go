package models

import "time"

const (
	NotificationStatusUnread = "unread"
	NotificationStatusRead   = "read"

	// NotificationChannelInApp is the only delivery channel persisted here.
	NotificationChannelInApp = "in-app"
)

// Notification is an in-app message addressed to a single user.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_notification_user_status,priority:1" json:"user_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Type      string    `gorm:"size:64;not null" json:"type"`
	Status    string    `gorm:"size:16;not null;default:unread;index:idx_notification_user_status,priority:2" json:"status"`
	Channel   string    `gorm:"size:32;not null;default:in-app" json:"channel"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRead reports whether the user has acknowledged the notification.
func (n Notification) IsRead() bool {
	return n.Status == NotificationStatusRead
}
