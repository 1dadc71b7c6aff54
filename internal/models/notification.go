package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification types.
const (
	NotificationUpvote       = "upvote"
	NotificationDownvote     = "downvote"
	NotificationComment      = "comment"
	NotificationStatusChange = "complaint_status_change"
	NotificationAssignment   = "assignment"
)

// NotificationData carries the structured context of a notification.
type NotificationData struct {
	ComplaintID string `json:"complaintId"`
	CommentID   string `json:"commentId,omitempty"`
	ActorID     string `json:"actorId"`
	ActorName   string `json:"actorName"`
	Status      string `json:"status,omitempty"`
}

// Notification is a best-effort message to a complaint author. Only the
// read flag is ever mutated after creation.
type Notification struct {
	ID          string           `gorm:"primaryKey" json:"id"`
	RecipientID string           `gorm:"not null;index" json:"recipientId"`
	Type        string           `gorm:"not null" json:"type"`
	Title       string           `gorm:"not null" json:"title"`
	Message     string           `gorm:"type:text" json:"message"`
	Data        NotificationData `gorm:"serializer:json" json:"data"`
	IsRead      bool             `gorm:"index" json:"isRead"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// BeforeCreate generates a UUID for the notification when none is set.
func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return
}
