package handler

import (
	"errors"
	"io"
	"net/http"

	"civicvoice/backend/internal/config"
	"civicvoice/backend/internal/enhance"
	"civicvoice/backend/internal/transcription"

	"github.com/gin-gonic/gin"
)

// Transcribe accepts a multipart audio upload and returns the transcript.
func (h *Handler) Transcribe(c *gin.Context) {
	if h.transcriber == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ai provider is not configured"})
		return
	}

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is required"})
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, int64(config.MaxAudioBytes)+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read audio upload"})
		return
	}

	mimeType := header.Header.Get("Content-Type")
	result, err := h.transcriber.Transcribe(c.Request.Context(), transcription.Request{
		Audio:         audio,
		MimeType:      mimeType,
		Language:      c.PostForm("language"),
		PromptContext: c.PostForm("promptContext"),
		Category:      c.PostForm("category"),
		RealTime:      c.PostForm("realTime") == "true",
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transcription":    result.Transcription,
		"detectedLanguage": result.DetectedLanguage,
		"confidence":       result.Confidence,
		"metadata":         result.Metadata,
		"processingTimeMs": result.ProcessingTime.Milliseconds(),
	})
}

type enhanceTextRequest struct {
	Text            string `json:"text"`
	Language        string `json:"language"`
	Context         string `json:"context"`
	EnhancementType string `json:"enhancementType"`
}

// EnhanceText improves complaint text grammar and clarity.
func (h *Handler) EnhanceText(c *gin.Context) {
	if h.enhancer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ai provider is not configured"})
		return
	}

	var req enhanceTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.enhancer.EnhanceText(c.Request.Context(), enhance.EnhanceRequest{
		Text:     req.Text,
		Language: req.Language,
		Context:  req.Context,
		Mode:     req.EnhancementType,
	})
	if err != nil {
		if errors.Is(err, enhance.ErrEmptyText) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"enhancedText": result.EnhancedText,
		"improvements": result.Improvements,
		"confidence":   result.Confidence,
	})
}

type analyzeContentRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Context  string `json:"context"`
}

// AnalyzeContent classifies complaint text for the draft preview.
func (h *Handler) AnalyzeContent(c *gin.Context) {
	if h.enhancer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ai provider is not configured"})
		return
	}

	var req analyzeContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	analysis, err := h.enhancer.AnalyzeContent(c.Request.Context(), enhance.AnalyzeRequest{
		Text:     req.Text,
		Language: req.Language,
		Context:  req.Context,
	})
	if err != nil {
		if errors.Is(err, enhance.ErrEmptyText) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// AIStatus is the capability probe: which AI-backed features are wired
// and which audio formats the transcriber accepts.
func (h *Handler) AIStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"configured": h.cfg.AIConfigured(),
		"model":      h.cfg.AIModel,
		"features": gin.H{
			"transcription":   h.transcriber != nil,
			"textEnhancement": h.enhancer != nil,
			"contentAnalysis": h.enhancer != nil,
			"suggestions":     h.cfg.AIConfigured(),
		},
		"supportedFormats": transcription.SupportedFormats,
	})
}
