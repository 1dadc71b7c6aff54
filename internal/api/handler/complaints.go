package handler

import (
	"net/http"
	"strconv"

	"civicvoice/backend/internal/complaint"
	"civicvoice/backend/internal/models"
	"civicvoice/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

type createComplaintRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Urgency     string         `json:"urgency"`
	Address     string         `json:"address"`
	City        string         `json:"city"`
	District    string         `json:"district"`
	State       string         `json:"state"`
	Latitude    *float64       `json:"latitude"`
	Longitude   *float64       `json:"longitude"`
	Tags        []string       `json:"tags"`
	Images      []models.Image `json:"images"`
	IsAnonymous bool           `json:"isAnonymous"`
	Draft       bool           `json:"draft"`
}

// CreateComplaint files a new complaint for the session user.
func (h *Handler) CreateComplaint(c *gin.Context) {
	var req createComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	created, err := h.complaints.Create(c.Request.Context(), currentUser(c), complaint.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Urgency:     req.Urgency,
		Address:     req.Address,
		City:        req.City,
		District:    req.District,
		State:       req.State,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Tags:        req.Tags,
		Images:      req.Images,
		IsAnonymous: req.IsAnonymous,
		Draft:       req.Draft,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// listFilter builds a storage filter from query parameters.
func listFilter(c *gin.Context) storage.ComplaintFilter {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return storage.ComplaintFilter{
		Category: c.Query("category"),
		Status:   c.Query("status"),
		Urgency:  c.Query("urgency"),
		Search:   c.Query("search"),
		SortBy:   c.Query("sortBy"),
		Page:     page,
		Limit:    limit,
	}
}

// ListComplaints returns a paged, filtered listing.
func (h *Handler) ListComplaints(c *gin.Context) {
	complaints, total, err := h.complaints.List(listFilter(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"complaints": complaints, "total": total})
}

// MyComplaints lists the session user's own complaints, drafts included.
func (h *Handler) MyComplaints(c *gin.Context) {
	filter := listFilter(c)
	filter.AuthorID = currentUser(c).ID
	complaints, total, err := h.complaints.List(filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"complaints": complaints, "total": total})
}

// GetComplaint returns one complaint and counts the view.
func (h *Handler) GetComplaint(c *gin.Context) {
	found, err := h.complaints.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

type updateComplaintRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Category    *string        `json:"category"`
	Urgency     *string        `json:"urgency"`
	Address     *string        `json:"address"`
	Tags        []string       `json:"tags"`
	Images      []models.Image `json:"images"`
	IsAnonymous *bool          `json:"isAnonymous"`
}

// UpdateComplaint applies owner edits.
func (h *Handler) UpdateComplaint(c *gin.Context) {
	var req updateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	updated, err := h.complaints.Update(currentUser(c), c.Param("id"), complaint.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Urgency:     req.Urgency,
		Address:     req.Address,
		Tags:        req.Tags,
		Images:      req.Images,
		IsAnonymous: req.IsAnonymous,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteComplaint removes an owned complaint.
func (h *Handler) DeleteComplaint(c *gin.Context) {
	if err := h.complaints.Delete(currentUser(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "complaint deleted"})
}

type changeStatusRequest struct {
	Status     string `json:"status"`
	Resolution string `json:"resolution"`
}

// ChangeStatus moves a complaint through its lifecycle.
func (h *Handler) ChangeStatus(c *gin.Context) {
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	updated, err := h.complaints.ChangeStatus(currentUser(c), c.Param("id"), req.Status, req.Resolution)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// GenerateSuggestion runs the AI suggestion generator synchronously.
func (h *Handler) GenerateSuggestion(c *gin.Context) {
	suggestion, err := h.complaints.GenerateSuggestion(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

// Upvote toggles the session user's upvote.
func (h *Handler) Upvote(c *gin.Context) {
	h.vote(c, models.VoteUpvote)
}

// Downvote toggles the session user's downvote.
func (h *Handler) Downvote(c *gin.Context) {
	h.vote(c, models.VoteDownvote)
}

func (h *Handler) vote(c *gin.Context, kind string) {
	outcome, err := h.complaints.Vote(currentUser(c), c.Param("id"), kind)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// VoteStatus reports the session user's active vote and current counts.
func (h *Handler) VoteStatus(c *gin.Context) {
	outcome, err := h.complaints.VoteStatus(currentUser(c).ID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

type commentRequest struct {
	Content string `json:"content"`
}

// AddComment appends a comment to a complaint.
func (h *Handler) AddComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	comment, err := h.complaints.AddComment(currentUser(c), c.Param("id"), req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// ListComments returns a complaint's comments.
func (h *Handler) ListComments(c *gin.Context) {
	comments, err := h.complaints.ListComments(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// EditComment updates a comment's content.
func (h *Handler) EditComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	comment, err := h.complaints.EditComment(currentUser(c), c.Param("commentId"), req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// DeleteComment removes a comment.
func (h *Handler) DeleteComment(c *gin.Context) {
	if err := h.complaints.DeleteComment(currentUser(c), c.Param("commentId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "comment deleted"})
}
