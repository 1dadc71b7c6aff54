package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListNotifications returns the session user's notifications, newest first.
func (h *Handler) ListNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	notifications, err := h.store.ListNotifications(currentUser(c).ID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// UnreadCount returns the session user's unread notification count.
func (h *Handler) UnreadCount(c *gin.Context) {
	count, err := h.store.CountUnreadNotifications(currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// MarkRead flips one notification to read.
func (h *Handler) MarkRead(c *gin.Context) {
	if err := h.store.MarkNotificationRead(c.Param("id"), currentUser(c).ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked read"})
}

// MarkAllRead flips all of the session user's notifications to read.
func (h *Handler) MarkAllRead(c *gin.Context) {
	if err := h.store.MarkAllNotificationsRead(currentUser(c).ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all marked read"})
}
