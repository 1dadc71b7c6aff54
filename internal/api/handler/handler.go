// Package handler exposes the HTTP API: authentication, complaint CRUD,
// voting, comments, AI assistance and notification delivery.
package handler

import (
	"errors"
	"net/http"

	"civicvoice/backend/internal/aiclient"
	"civicvoice/backend/internal/complaint"
	"civicvoice/backend/internal/config"
	"civicvoice/backend/internal/enhance"
	"civicvoice/backend/internal/storage"
	"civicvoice/backend/internal/transcription"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Handler carries the wired services behind the HTTP surface.
type Handler struct {
	cfg         *config.Config
	store       storage.Storage
	complaints  *complaint.Service
	transcriber *transcription.Service
	enhancer    *enhance.Service
	oauth       *oauth2.Config
	log         zerolog.Logger
}

// NewHandler wires the HTTP layer. transcriber and enhancer may be nil
// when the AI provider is not configured; the AI routes then answer 503.
func NewHandler(
	cfg *config.Config,
	store storage.Storage,
	complaints *complaint.Service,
	transcriber *transcription.Service,
	enhancer *enhance.Service,
	log zerolog.Logger,
) *Handler {
	var oauthCfg *oauth2.Config
	if cfg.OAuthClientID != "" {
		oauthCfg = &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.OAuthAuthURL,
				TokenURL: cfg.OAuthTokenURL,
			},
			Scopes: []string{"openid", "profile", "email"},
		}
	}
	return &Handler{
		cfg:         cfg,
		store:       store,
		complaints:  complaints,
		transcriber: transcriber,
		enhancer:    enhancer,
		oauth:       oauthCfg,
		log:         log,
	}
}

// RegisterRoutes mounts the API under /api.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.GET("/login", h.Login)
		auth.GET("/callback", h.Callback)
		auth.GET("/check", h.AuthCheck)
		auth.POST("/logout", h.Logout)
	}

	api.GET("/complaints", h.ListComplaints)
	api.GET("/complaints/:id", h.GetComplaint)
	api.GET("/complaints/:id/comments", h.ListComments)

	authed := api.Group("", h.RequireAuth())
	{
		authed.POST("/complaints", h.CreateComplaint)
		authed.PUT("/complaints/:id", h.UpdateComplaint)
		authed.DELETE("/complaints/:id", h.DeleteComplaint)
		authed.PATCH("/complaints/:id/status", h.ChangeStatus)
		authed.POST("/complaints/:id/ai-suggestion", h.GenerateSuggestion)
		authed.POST("/complaints/:id/upvote", h.Upvote)
		authed.POST("/complaints/:id/downvote", h.Downvote)
		authed.GET("/complaints/:id/vote-status", h.VoteStatus)
		authed.POST("/complaints/:id/comments", h.AddComment)
		authed.PUT("/complaints/:id/comments/:commentId", h.EditComment)
		authed.DELETE("/complaints/:id/comments/:commentId", h.DeleteComment)
		authed.GET("/complaints/my-complaints", h.MyComplaints)

		authed.POST("/ai/transcribe", h.Transcribe)
		authed.POST("/ai/enhance-text", h.EnhanceText)
		authed.POST("/ai/analyze-content", h.AnalyzeContent)
		authed.GET("/ai/status", h.AIStatus)

		authed.GET("/notifications", h.ListNotifications)
		authed.GET("/notifications/unread-count", h.UnreadCount)
		authed.PATCH("/notifications/:id/read", h.MarkRead)
		authed.PATCH("/notifications/mark-all-read", h.MarkAllRead)

		authed.GET("/ws", h.ServeWebSocket)
	}
}

// respondError maps service errors onto the HTTP taxonomy.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, complaint.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, complaint.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, transcription.ErrEmptyAudio),
		errors.Is(err, transcription.ErrAudioTooLarge),
		errors.Is(err, aiclient.ErrMalformedAudio):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, aiclient.ErrQuotaExhausted):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, aiclient.ErrNotConfigured),
		errors.Is(err, aiclient.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, aiclient.ErrAuthFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
