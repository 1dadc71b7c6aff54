package storage

import (
	"encoding/json"
	"errors"
	"time"

	"civicvoice/backend/internal/models"
	"civicvoice/backend/internal/scoring"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateComplaint persists a new complaint.
func (s *Service) CreateComplaint(c *models.Complaint) error {
	return s.DB.Create(c).Error
}

// GetComplaintByID loads a complaint by primary key.
func (s *Service) GetComplaintByID(id string) (*models.Complaint, error) {
	var c models.Complaint
	err := s.DB.First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListComplaints returns a filtered, paged listing plus the total match count.
func (s *Service) ListComplaints(f ComplaintFilter) ([]models.Complaint, int64, error) {
	q := s.DB.Model(&models.Complaint{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Urgency != "" {
		q = q.Where("urgency = ?", f.Urgency)
	}
	if f.AuthorID != "" {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("title ILIKE ? OR description ILIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch f.SortBy {
	case "priority":
		q = q.Order("priority desc")
	case "upvotes":
		q = q.Order("upvote_count desc")
	default:
		q = q.Order("created_at desc")
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := f.Page
	if page < 1 {
		page = 1
	}

	var out []models.Complaint
	err := q.Limit(limit).Offset((page - 1) * limit).Find(&out).Error
	return out, total, err
}

// SaveComplaint saves an existing complaint.
func (s *Service) SaveComplaint(c *models.Complaint) error {
	return s.DB.Save(c).Error
}

// DeleteComplaint removes a complaint and its votes and comments.
func (s *Service) DeleteComplaint(id string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("complaint_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("complaint_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Complaint{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// IncrementViewCount bumps the view counter without a read-modify-write.
func (s *Service) IncrementViewCount(id string) error {
	return s.DB.Model(&models.Complaint{}).
		Where("id = ?", id).
		Update("view_count", gorm.Expr("view_count + 1")).Error
}

// SetAISuggestion persists a generated suggestion onto the complaint.
func (s *Service) SetAISuggestion(complaintID string, suggestion *models.AISuggestion) error {
	payload, err := json.Marshal(suggestion)
	if err != nil {
		return err
	}
	res := s.DB.Model(&models.Complaint{}).
		Where("id = ?", complaintID).
		Update("ai_suggestion", string(payload))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleVote applies one vote toggle inside a single transaction with the
// complaint row locked. Casting the same vote again removes it; casting the
// opposite vote replaces it, so a user never holds both. The vote counters
// and the priority score are refreshed before the lock is released.
func (s *Service) ToggleVote(complaintID, userID, kind string) (*VoteResult, error) {
	if kind != models.VoteUpvote && kind != models.VoteDownvote {
		return nil, errors.New("invalid vote kind: " + kind)
	}

	var result VoteResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var c models.Complaint
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&c, "id = ?", complaintID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		opposite := models.VoteUpvote
		if kind == models.VoteUpvote {
			opposite = models.VoteDownvote
		}
		if err := tx.Where("complaint_id = ? AND user_id = ? AND kind = ?",
			complaintID, userID, opposite).Delete(&models.Vote{}).Error; err != nil {
			return err
		}

		same := tx.Where("complaint_id = ? AND user_id = ? AND kind = ?",
			complaintID, userID, kind).Delete(&models.Vote{})
		if same.Error != nil {
			return same.Error
		}
		if same.RowsAffected > 0 {
			result.UserVote = ""
			result.Added = false
		} else {
			vote := models.Vote{ComplaintID: complaintID, UserID: userID, Kind: kind}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
			result.UserVote = kind
			result.Added = true
		}

		var up, down int64
		if err := tx.Model(&models.Vote{}).
			Where("complaint_id = ? AND kind = ?", complaintID, models.VoteUpvote).
			Count(&up).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Vote{}).
			Where("complaint_id = ? AND kind = ?", complaintID, models.VoteDownvote).
			Count(&down).Error; err != nil {
			return err
		}

		c.UpvoteCount = int(up)
		c.DownvoteCount = int(down)
		c.Priority = scoring.Priority(c.Urgency, c.UpvoteCount, c.CommentCount, time.Since(c.CreatedAt))
		if err := tx.Model(&models.Complaint{}).Where("id = ?", complaintID).
			Updates(map[string]interface{}{
				"upvote_count":   c.UpvoteCount,
				"downvote_count": c.DownvoteCount,
				"priority":       c.Priority,
			}).Error; err != nil {
			return err
		}

		result.UpvoteCount = c.UpvoteCount
		result.DownvoteCount = c.DownvoteCount
		result.Complaint = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetUserVote returns the user's active vote on a complaint, or "".
func (s *Service) GetUserVote(complaintID, userID string) (string, error) {
	var vote models.Vote
	err := s.DB.Where("complaint_id = ? AND user_id = ?", complaintID, userID).
		First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return vote.Kind, nil
}

// AddComment inserts a comment and refreshes the complaint's comment count
// and priority in the same transaction.
func (s *Service) AddComment(comment *models.Comment) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var c models.Complaint
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&c, "id = ?", comment.ComplaintID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if err := tx.Create(comment).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Comment{}).
			Where("complaint_id = ?", comment.ComplaintID).
			Count(&count).Error; err != nil {
			return err
		}
		priority := scoring.Priority(c.Urgency, c.UpvoteCount, int(count), time.Since(c.CreatedAt))
		return tx.Model(&models.Complaint{}).Where("id = ?", comment.ComplaintID).
			Updates(map[string]interface{}{
				"comment_count": count,
				"priority":      priority,
			}).Error
	})
}

// GetCommentByID loads a comment by primary key.
func (s *Service) GetCommentByID(id string) (*models.Comment, error) {
	var comment models.Comment
	err := s.DB.First(&comment, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// UpdateComment saves an edited comment.
func (s *Service) UpdateComment(comment *models.Comment) error {
	return s.DB.Save(comment).Error
}

// DeleteComment removes a comment and refreshes the complaint counters.
func (s *Service) DeleteComment(id string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		err := tx.First(&comment, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(&models.Comment{}, "id = ?", id).Error; err != nil {
			return err
		}

		var c models.Complaint
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&c, "id = ?", comment.ComplaintID).Error; err != nil {
			// Complaint may be gone already; the comment removal stands.
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		var count int64
		if err := tx.Model(&models.Comment{}).
			Where("complaint_id = ?", comment.ComplaintID).
			Count(&count).Error; err != nil {
			return err
		}
		priority := scoring.Priority(c.Urgency, c.UpvoteCount, int(count), time.Since(c.CreatedAt))
		return tx.Model(&models.Complaint{}).Where("id = ?", comment.ComplaintID).
			Updates(map[string]interface{}{
				"comment_count": count,
				"priority":      priority,
			}).Error
	})
}

// ListComments returns a complaint's comments, oldest first.
func (s *Service) ListComments(complaintID string) ([]models.Comment, error) {
	var out []models.Comment
	err := s.DB.Where("complaint_id = ?", complaintID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// authorStatsRow is the per-complaint aggregate scanned by
// RecalculateReputation.
type authorStatsRow struct {
	Upvotes   int
	Downvotes int
	Comments  int
	Resolved  bool
}

// RecalculateReputation recomputes a user's reputation from scratch across
// all of their complaints and persists it. Returns the new value.
func (s *Service) RecalculateReputation(userID string) (int, error) {
	rawSQL := `
		SELECT
			(SELECT COUNT(*) FROM votes v WHERE v.complaint_id = c.id AND v.kind = 'upvote')   AS upvotes,
			(SELECT COUNT(*) FROM votes v WHERE v.complaint_id = c.id AND v.kind = 'downvote') AS downvotes,
			(SELECT COUNT(*) FROM comments cm WHERE cm.complaint_id = c.id)                    AS comments,
			(c.status = 'resolved')                                                            AS resolved
		FROM complaints c
		WHERE c.author_id = ?
	`
	var rows []authorStatsRow
	if err := s.DB.Raw(rawSQL, userID).Scan(&rows).Error; err != nil {
		return 0, err
	}

	stats := make([]scoring.ComplaintStats, len(rows))
	for i, r := range rows {
		stats[i] = scoring.ComplaintStats{
			Upvotes:   r.Upvotes,
			Downvotes: r.Downvotes,
			Comments:  r.Comments,
			Resolved:  r.Resolved,
		}
	}
	reputation := scoring.Reputation(stats)

	err := s.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("reputation", reputation).Error
	return reputation, err
}

// notificationChannel is the Redis pub/sub channel for one recipient.
func notificationChannel(recipientID string) string {
	return "notifications:" + recipientID
}

// PublishNotification pushes a persisted notification to the recipient's
// Redis channel for live delivery over websocket.
func (s *Service) PublishNotification(n *models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, notificationChannel(n.RecipientID), string(payload)).Err()
}

// SubscribeNotifications subscribes to a recipient's live notification feed.
func (s *Service) SubscribeNotifications(recipientID string) *redis.PubSub {
	return s.Redis.Subscribe(s.Ctx, notificationChannel(recipientID))
}
