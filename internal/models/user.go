package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a citizen account linked to the external identity provider.
// Reputation is derived from the user's complaints and is recomputed from
// scratch, never mutated directly.
type User struct {
	ID         string `gorm:"primaryKey" json:"id"`
	ExternalID string `gorm:"uniqueIndex;not null" json:"-"` // identity-provider subject

	Name          string  `json:"name"`
	Username      *string `gorm:"uniqueIndex" json:"username,omitempty"`
	Email         *string `gorm:"uniqueIndex" json:"email,omitempty"`
	WalletAddress *string `gorm:"uniqueIndex" json:"walletAddress,omitempty"`
	Bio           string  `json:"bio,omitempty"`
	Location      string  `json:"location,omitempty"`
	IsVerified    bool    `json:"isVerified"`

	Reputation          int `json:"reputation"`
	ComplaintsSubmitted int `json:"complaintsSubmitted"`
	ComplaintsResolved  int `json:"complaintsResolved"`

	// TelegramChatID, when set, mirrors notifications to Telegram.
	TelegramChatID int64 `gorm:"index" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate generates a UUID for the user when none is set.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
