// Package storage persists users, complaints, votes, comments and
// notifications in PostgreSQL and fans notifications out over Redis pub/sub.
package storage

import (
	"context"
	"errors"

	"civicvoice/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// VoteResult describes the outcome of a vote toggle.
type VoteResult struct {
	UpvoteCount   int
	DownvoteCount int
	// UserVote is the voter's active vote after the toggle:
	// "upvote", "downvote" or "" when the toggle removed it.
	UserVote string
	// Added is true when the toggle added a vote rather than removing one.
	Added     bool
	Complaint *models.Complaint
}

// ComplaintFilter narrows and pages complaint listings.
type ComplaintFilter struct {
	Category string
	Status   string
	Urgency  string
	AuthorID string
	Search   string
	SortBy   string // "priority", "upvotes" or "" (newest first)
	Page     int
	Limit    int
}

type Storage interface {
	UpsertOAuthUser(externalID, name, email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	UpdateUser(user *models.User) error
	RecalculateReputation(userID string) (int, error)
	AdjustComplaintCounters(userID string, submittedDelta, resolvedDelta int) error

	CreateComplaint(c *models.Complaint) error
	GetComplaintByID(id string) (*models.Complaint, error)
	ListComplaints(f ComplaintFilter) ([]models.Complaint, int64, error)
	SaveComplaint(c *models.Complaint) error
	DeleteComplaint(id string) error
	IncrementViewCount(id string) error
	SetAISuggestion(complaintID string, s *models.AISuggestion) error

	ToggleVote(complaintID, userID, kind string) (*VoteResult, error)
	GetUserVote(complaintID, userID string) (string, error)

	AddComment(comment *models.Comment) error
	GetCommentByID(id string) (*models.Comment, error)
	UpdateComment(comment *models.Comment) error
	DeleteComment(id string) error
	ListComments(complaintID string) ([]models.Comment, error)

	SaveNotification(n *models.Notification) error
	ListNotifications(recipientID string, limit int) ([]models.Notification, error)
	CountUnreadNotifications(recipientID string) (int64, error)
	MarkNotificationRead(id, recipientID string) error
	MarkAllNotificationsRead(recipientID string) error
	PublishNotification(n *models.Notification) error
	SubscribeNotifications(recipientID string) *redis.PubSub
}

// Service implements Storage over gorm and go-redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService constructs the storage service.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// UpsertOAuthUser finds the user for an identity-provider subject, creating
// the record on first login and syncing name/email on every subsequent one.
func (s *Service) UpsertOAuthUser(externalID, name, email string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("external_id = ?", externalID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{ExternalID: externalID, Name: name}
		if email != "" {
			user.Email = &email
		}
		if err := s.DB.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}

	changed := false
	if name != "" && user.Name != name {
		user.Name = name
		changed = true
	}
	if email != "" && (user.Email == nil || *user.Email != email) {
		user.Email = &email
		changed = true
	}
	if changed {
		if err := s.DB.Save(&user).Error; err != nil {
			return nil, err
		}
	}
	return &user, nil
}

// GetUserByID loads a user by primary key.
func (s *Service) GetUserByID(id string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser saves a user record.
func (s *Service) UpdateUser(user *models.User) error {
	return s.DB.Save(user).Error
}

// AdjustComplaintCounters atomically shifts a user's submitted/resolved
// complaint counters.
func (s *Service) AdjustComplaintCounters(userID string, submittedDelta, resolvedDelta int) error {
	updates := map[string]interface{}{}
	if submittedDelta != 0 {
		updates["complaints_submitted"] = gorm.Expr("complaints_submitted + ?", submittedDelta)
	}
	if resolvedDelta != 0 {
		updates["complaints_resolved"] = gorm.Expr("complaints_resolved + ?", resolvedDelta)
	}
	if len(updates) == 0 {
		return nil
	}
	return s.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error
}

// SaveNotification persists a notification.
func (s *Service) SaveNotification(n *models.Notification) error {
	return s.DB.Create(n).Error
}

// ListNotifications returns a recipient's notifications, newest first.
func (s *Service) ListNotifications(recipientID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.Notification
	err := s.DB.Where("recipient_id = ?", recipientID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountUnreadNotifications returns the recipient's unread count.
func (s *Service) CountUnreadNotifications(recipientID string) (int64, error) {
	var count int64
	err := s.DB.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

// MarkNotificationRead flips the read flag on one notification. The
// recipient check keeps users from reading each other's notifications.
func (s *Service) MarkNotificationRead(id, recipientID string) error {
	res := s.DB.Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllNotificationsRead flips the read flag on all of a recipient's
// notifications.
func (s *Service) MarkAllNotificationsRead(recipientID string) error {
	return s.DB.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true).Error
}
