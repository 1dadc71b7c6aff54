// Package complaint provides the core logic for the complaint lifecycle:
// creation, editing, voting, commenting, resolution, and the derived
// priority and reputation scores that follow from them.
package complaint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civicvoice/backend/internal/models"
	"civicvoice/backend/internal/notification"
	"civicvoice/backend/internal/scoring"
	"civicvoice/backend/internal/storage"

	"github.com/rs/zerolog"
)

var (
	// ErrValidation marks rejected input; surfaced as 400.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden marks an authorization failure; surfaced as 403,
	// distinct from an authentication failure.
	ErrForbidden = errors.New("forbidden")
)

// SuggestionGenerator produces and persists AI advice for a complaint.
type SuggestionGenerator interface {
	Generate(ctx context.Context, complaint *models.Complaint, user *models.User) (*models.AISuggestion, error)
}

// Service handles the business logic for complaints.
type Service struct {
	store       storage.Storage
	dispatcher  *notification.Dispatcher
	suggestions SuggestionGenerator // nil when AI is not configured
	log         zerolog.Logger
}

// NewService creates a new complaint service. suggestions may be nil.
func NewService(store storage.Storage, dispatcher *notification.Dispatcher, suggestions SuggestionGenerator, log zerolog.Logger) *Service {
	return &Service{store: store, dispatcher: dispatcher, suggestions: suggestions, log: log}
}

// CreateInput is the payload for a new complaint.
type CreateInput struct {
	Title       string
	Description string
	Category    string
	Urgency     string
	Address     string
	City        string
	District    string
	State       string
	Latitude    *float64
	Longitude   *float64
	Tags        []string
	Images      []models.Image
	IsAnonymous bool
	Draft       bool
}

// Create persists a new complaint for the author, bumps their submitted
// counter and kicks off suggestion generation in the background. The
// suggestion is enrichment: its failure never fails the create.
func (s *Service) Create(ctx context.Context, author *models.User, in CreateInput) (*models.Complaint, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	status := models.StatusOpen
	if in.Draft {
		status = models.StatusDraft
	}

	c := &models.Complaint{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Urgency:     in.Urgency,
		Status:      status,
		Address:     strings.TrimSpace(in.Address),
		City:        in.City,
		District:    in.District,
		State:       in.State,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Tags:        in.Tags,
		Images:      in.Images,
		IsAnonymous: in.IsAnonymous,
		AuthorID:    author.ID,
		Priority:    scoring.Priority(in.Urgency, 0, 0, 0),
	}
	if c.Images == nil {
		c.Images = []models.Image{}
	}

	if err := s.store.CreateComplaint(c); err != nil {
		return nil, err
	}
	if err := s.store.AdjustComplaintCounters(author.ID, 1, 0); err != nil {
		s.log.Warn().Err(err).Str("user_id", author.ID).Msg("failed to bump submitted counter")
	}

	if s.suggestions != nil && status == models.StatusOpen {
		authorCopy := *author
		complaintCopy := *c
		go func() {
			bg, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if _, err := s.suggestions.Generate(bg, &complaintCopy, &authorCopy); err != nil {
				s.log.Warn().Err(err).Str("complaint_id", complaintCopy.ID).
					Msg("background suggestion generation failed")
			}
		}()
	}

	return c, nil
}

func validateCreate(in CreateInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if strings.TrimSpace(in.Address) == "" {
		return fmt.Errorf("%w: address is required", ErrValidation)
	}
	if !models.ValidCategories[in.Category] {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, in.Category)
	}
	if !models.ValidUrgencies[in.Urgency] {
		return fmt.Errorf("%w: unknown urgency %q", ErrValidation, in.Urgency)
	}
	return nil
}

// Get loads a complaint and bumps its view counter.
func (s *Service) Get(id string) (*models.Complaint, error) {
	c, err := s.store.GetComplaintByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.store.IncrementViewCount(id); err != nil {
		s.log.Warn().Err(err).Str("complaint_id", id).Msg("failed to bump view counter")
	}
	return c, nil
}

// List returns a filtered complaint listing.
func (s *Service) List(f storage.ComplaintFilter) ([]models.Complaint, int64, error) {
	return s.store.ListComplaints(f)
}

// UpdateInput carries owner edits. Nil fields are left untouched.
type UpdateInput struct {
	Title       *string
	Description *string
	Category    *string
	Urgency     *string
	Address     *string
	Tags        []string
	Images      []models.Image
	IsAnonymous *bool
}

// Update applies owner edits and marks the complaint edited.
func (s *Service) Update(user *models.User, id string, in UpdateInput) (*models.Complaint, error) {
	c, err := s.store.GetComplaintByID(id)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != user.ID {
		return nil, fmt.Errorf("%w: only the author may edit a complaint", ErrForbidden)
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrValidation)
		}
		c.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		if strings.TrimSpace(*in.Description) == "" {
			return nil, fmt.Errorf("%w: description cannot be empty", ErrValidation)
		}
		c.Description = strings.TrimSpace(*in.Description)
	}
	if in.Category != nil {
		if !models.ValidCategories[*in.Category] {
			return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, *in.Category)
		}
		c.Category = *in.Category
	}
	if in.Urgency != nil {
		if !models.ValidUrgencies[*in.Urgency] {
			return nil, fmt.Errorf("%w: unknown urgency %q", ErrValidation, *in.Urgency)
		}
		c.Urgency = *in.Urgency
	}
	if in.Address != nil {
		if strings.TrimSpace(*in.Address) == "" {
			return nil, fmt.Errorf("%w: address cannot be empty", ErrValidation)
		}
		c.Address = strings.TrimSpace(*in.Address)
	}
	if in.Tags != nil {
		c.Tags = in.Tags
	}
	if in.Images != nil {
		c.Images = in.Images
	}
	if in.IsAnonymous != nil {
		c.IsAnonymous = *in.IsAnonymous
	}

	now := time.Now()
	c.IsEdited = true
	c.EditedAt = &now
	c.Priority = scoring.Priority(c.Urgency, c.UpvoteCount, c.CommentCount, time.Since(c.CreatedAt))

	if err := s.store.SaveComplaint(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a complaint. Owner only; the author's submitted counter
// is decremented.
func (s *Service) Delete(user *models.User, id string) error {
	c, err := s.store.GetComplaintByID(id)
	if err != nil {
		return err
	}
	if c.AuthorID != user.ID {
		return fmt.Errorf("%w: only the author may delete a complaint", ErrForbidden)
	}
	if err := s.store.DeleteComplaint(id); err != nil {
		return err
	}
	if err := s.store.AdjustComplaintCounters(user.ID, -1, 0); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to decrement submitted counter")
	}
	return nil
}

// ChangeStatus moves a complaint through its lifecycle. Owner only.
// Resolving keeps the status enum and the isResolved triple consistent,
// bumps the author's resolved counter and notifies.
func (s *Service) ChangeStatus(user *models.User, id, status, resolution string) (*models.Complaint, error) {
	if !models.ValidStatuses[status] {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	c, err := s.store.GetComplaintByID(id)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != user.ID {
		return nil, fmt.Errorf("%w: only the author may change the status", ErrForbidden)
	}
	if c.Status == status {
		return c, nil
	}

	previous := c.Status
	c.Status = status

	if status == models.StatusResolved {
		now := time.Now()
		c.IsResolved = true
		c.ResolvedAt = &now
		c.ResolvedBy = &user.ID
		c.Resolution = strings.TrimSpace(resolution)
	} else if previous == models.StatusResolved {
		// Reopening clears the resolution triple so the two
		// representations never diverge.
		c.IsResolved = false
		c.ResolvedAt = nil
		c.ResolvedBy = nil
		c.Resolution = ""
	}

	if err := s.store.SaveComplaint(c); err != nil {
		return nil, err
	}

	if status == models.StatusResolved {
		if err := s.store.AdjustComplaintCounters(c.AuthorID, 0, 1); err != nil {
			s.log.Warn().Err(err).Str("user_id", c.AuthorID).Msg("failed to bump resolved counter")
		}
		s.recalculateReputation(c.AuthorID)
	} else if previous == models.StatusResolved {
		if err := s.store.AdjustComplaintCounters(c.AuthorID, 0, -1); err != nil {
			s.log.Warn().Err(err).Str("user_id", c.AuthorID).Msg("failed to decrement resolved counter")
		}
		s.recalculateReputation(c.AuthorID)
	}

	s.dispatcher.Dispatch(notification.Event{
		Type:        models.NotificationStatusChange,
		RecipientID: c.AuthorID,
		ActorID:     user.ID,
		ActorName:   user.Name,
		ComplaintID: c.ID,
		Status:      status,
	})

	return c, nil
}

// VoteOutcome is the caller-facing result of a vote toggle.
type VoteOutcome struct {
	UpvoteCount   int     `json:"upvoteCount"`
	DownvoteCount int     `json:"downvoteCount"`
	UserVote      *string `json:"userVote"`
}

// Vote toggles the user's vote on a complaint, recomputes the author's
// reputation and notifies the author when a vote was added. Reputation
// and notification failures never fail the vote.
func (s *Service) Vote(user *models.User, complaintID, kind string) (*VoteOutcome, error) {
	result, err := s.store.ToggleVote(complaintID, user.ID, kind)
	if err != nil {
		return nil, err
	}

	s.recalculateReputation(result.Complaint.AuthorID)

	if result.Added {
		notifType := models.NotificationUpvote
		if kind == models.VoteDownvote {
			notifType = models.NotificationDownvote
		}
		s.dispatcher.Dispatch(notification.Event{
			Type:        notifType,
			RecipientID: result.Complaint.AuthorID,
			ActorID:     user.ID,
			ActorName:   user.Name,
			ComplaintID: complaintID,
		})
	}

	outcome := &VoteOutcome{
		UpvoteCount:   result.UpvoteCount,
		DownvoteCount: result.DownvoteCount,
	}
	if result.UserVote != "" {
		vote := result.UserVote
		outcome.UserVote = &vote
	}
	return outcome, nil
}

// VoteStatus reports the user's active vote plus current counts.
func (s *Service) VoteStatus(userID, complaintID string) (*VoteOutcome, error) {
	c, err := s.store.GetComplaintByID(complaintID)
	if err != nil {
		return nil, err
	}
	kind, err := s.store.GetUserVote(complaintID, userID)
	if err != nil {
		return nil, err
	}
	outcome := &VoteOutcome{UpvoteCount: c.UpvoteCount, DownvoteCount: c.DownvoteCount}
	if kind != "" {
		outcome.UserVote = &kind
	}
	return outcome, nil
}

// recalculateReputation recomputes an author's reputation from scratch.
// Best-effort: failure is logged and swallowed.
func (s *Service) recalculateReputation(authorID string) {
	if _, err := s.store.RecalculateReputation(authorID); err != nil {
		s.log.Warn().Err(err).Str("user_id", authorID).Msg("reputation recompute failed")
	}
}

// AddComment appends a comment and notifies the complaint author unless
// the commenter is the author. Content is re-validated server-side.
func (s *Service) AddComment(user *models.User, complaintID, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: comment content is required", ErrValidation)
	}

	c, err := s.store.GetComplaintByID(complaintID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ComplaintID: complaintID,
		AuthorID:    user.ID,
		Content:     content,
	}
	if err := s.store.AddComment(comment); err != nil {
		return nil, err
	}

	s.recalculateReputation(c.AuthorID)

	s.dispatcher.Dispatch(notification.Event{
		Type:        models.NotificationComment,
		RecipientID: c.AuthorID,
		ActorID:     user.ID,
		ActorName:   user.Name,
		ComplaintID: complaintID,
		CommentID:   comment.ID,
	})

	return comment, nil
}

// EditComment updates a comment's content. Only its original author may
// edit it.
func (s *Service) EditComment(user *models.User, commentID, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: comment content is required", ErrValidation)
	}
	comment, err := s.store.GetCommentByID(commentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != user.ID {
		return nil, fmt.Errorf("%w: only the comment author may edit it", ErrForbidden)
	}
	comment.Content = content
	if err := s.store.UpdateComment(comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes a comment. Two authorization paths: the comment's
// author or the complaint's author.
func (s *Service) DeleteComment(user *models.User, commentID string) error {
	comment, err := s.store.GetCommentByID(commentID)
	if err != nil {
		return err
	}
	if comment.AuthorID != user.ID {
		c, err := s.store.GetComplaintByID(comment.ComplaintID)
		if err != nil {
			return err
		}
		if c.AuthorID != user.ID {
			return fmt.Errorf("%w: only the comment author or the complaint author may delete it", ErrForbidden)
		}
	}
	if err := s.store.DeleteComment(commentID); err != nil {
		return err
	}
	s.recalculateReputationForComplaint(comment.ComplaintID)
	return nil
}

func (s *Service) recalculateReputationForComplaint(complaintID string) {
	c, err := s.store.GetComplaintByID(complaintID)
	if err != nil {
		return
	}
	s.recalculateReputation(c.AuthorID)
}

// ListComments returns a complaint's comments.
func (s *Service) ListComments(complaintID string) ([]models.Comment, error) {
	return s.store.ListComments(complaintID)
}

// GenerateSuggestion runs the suggestion generator synchronously for the
// complaint owner.
func (s *Service) GenerateSuggestion(ctx context.Context, user *models.User, complaintID string) (*models.AISuggestion, error) {
	if s.suggestions == nil {
		return nil, errors.New("ai suggestions are not configured")
	}
	c, err := s.store.GetComplaintByID(complaintID)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != user.ID {
		return nil, fmt.Errorf("%w: only the author may request a suggestion", ErrForbidden)
	}
	return s.suggestions.Generate(ctx, c, user)
}
