package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Complaint categories. Closed enum; the content analyzer and the suggestion
// generator both key off these values.
const (
	CategoryInfrastructure = "infrastructure"
	CategoryPublicSafety   = "public_safety"
	CategoryEnvironment    = "environment"
	CategoryTransportation = "transportation"
	CategoryHealth         = "health"
	CategoryEducation      = "education"
	CategoryUtilities      = "utilities"
	CategoryGovernance     = "governance"
	CategoryOther          = "other"
)

// Complaint urgency levels.
const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

// Complaint lifecycle statuses.
const (
	StatusDraft      = "draft"
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// ValidCategories is the closed set of accepted complaint categories.
var ValidCategories = map[string]bool{
	CategoryInfrastructure: true,
	CategoryPublicSafety:   true,
	CategoryEnvironment:    true,
	CategoryTransportation: true,
	CategoryHealth:         true,
	CategoryEducation:      true,
	CategoryUtilities:      true,
	CategoryGovernance:     true,
	CategoryOther:          true,
}

// ValidUrgencies is the closed set of accepted urgency levels.
var ValidUrgencies = map[string]bool{
	UrgencyLow: true, UrgencyMedium: true, UrgencyHigh: true, UrgencyCritical: true,
}

// ValidStatuses is the closed set of accepted lifecycle statuses.
var ValidStatuses = map[string]bool{
	StatusDraft: true, StatusOpen: true, StatusInProgress: true,
	StatusResolved: true, StatusClosed: true,
}

// Image is an attached photo with an optional caption.
type Image struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// AISuggestion is the generated remediation advice persisted on a complaint.
// IsGenerated is true only when the suggestion generator produced it.
type AISuggestion struct {
	Content          string    `json:"content"`
	ActionSteps      []string  `json:"actionSteps"`
	RelevantContacts []string  `json:"relevantContacts"`
	ExpectedTimeline string    `json:"expectedTimeline"`
	UrgencyLevel     string    `json:"urgencyLevel"`
	UserLevel        string    `json:"userLevel"`
	Confidence       int       `json:"confidence"`
	GeneratedAt      time.Time `json:"generatedAt"`
	IsGenerated      bool      `json:"isGenerated"`
}

// Complaint is the central aggregate. Votes and comments live in their own
// tables so that vote toggling can be enforced by the database instead of a
// read-modify-write over an embedded list; the denormalized counters are
// refreshed inside the same transaction as the mutation that changes them.
type Complaint struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text;not null" json:"description"`
	Category    string `gorm:"not null;index" json:"category"`
	Urgency     string `gorm:"not null" json:"urgency"`
	Status      string `gorm:"not null;index" json:"status"`

	Address   string   `gorm:"not null" json:"address"`
	City      string   `json:"city,omitempty"`
	District  string   `json:"district,omitempty"`
	State     string   `json:"state,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	AuthorID   string  `gorm:"not null;index" json:"authorId"`
	AssigneeID *string `gorm:"index" json:"assigneeId,omitempty"`

	Tags        pq.StringArray `gorm:"type:text[]" json:"tags"`
	Images      []Image        `gorm:"serializer:json" json:"images"`
	IsAnonymous bool           `json:"isAnonymous"`
	ViewCount   int            `json:"viewCount"`

	UpvoteCount   int `json:"upvoteCount"`
	DownvoteCount int `json:"downvoteCount"`
	CommentCount  int `json:"commentCount"`

	// Priority is a pure function of urgency, vote count, comment count and
	// age. It is recomputed on every vote or comment mutation.
	Priority int `gorm:"index" json:"priority"`

	AISuggestion *AISuggestion `gorm:"serializer:json" json:"aiSuggestion,omitempty"`

	IsResolved bool       `json:"isResolved"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy *string    `json:"resolvedBy,omitempty"`
	Resolution string     `json:"resolution,omitempty"`

	IsEdited bool       `json:"isEdited"`
	EditedAt *time.Time `json:"editedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate generates a UUID for the complaint when none is set.
func (c *Complaint) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// Vote kinds.
const (
	VoteUpvote   = "upvote"
	VoteDownvote = "downvote"
)

// Vote is one user's vote on one complaint. The unique index enforces the
// invariant that a user holds at most one active vote per complaint.
type Vote struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	ComplaintID string    `gorm:"not null;uniqueIndex:idx_complaint_voter" json:"complaintId"`
	UserID      string    `gorm:"not null;uniqueIndex:idx_complaint_voter" json:"userId"`
	Kind        string    `gorm:"not null" json:"kind"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Comment is a user comment on a complaint.
type Comment struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	ComplaintID string    `gorm:"not null;index" json:"complaintId"`
	AuthorID    string    `gorm:"not null;index" json:"authorId"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BeforeCreate generates a UUID for the comment when none is set.
func (c *Comment) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}
