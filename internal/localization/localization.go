// Package localization provides the translated strings used in
// user-facing notification titles and messages.
package localization

import (
	"fmt"
	"sync"
)

// Built-in translations. Keys with %s placeholders are filled with the
// acting user's display name via Format.
var defaults = map[string]map[string]string{
	"en": {
		"notification.upvote.title":       "New upvote",
		"notification.upvote.message":     "%s upvoted your complaint",
		"notification.downvote.title":     "New downvote",
		"notification.downvote.message":   "%s downvoted your complaint",
		"notification.comment.title":      "New comment",
		"notification.comment.message":    "%s commented on your complaint",
		"notification.status.title":       "Complaint status changed",
		"notification.status.message":     "Your complaint was marked %s",
		"notification.assignment.title":   "Complaint assigned",
		"notification.assignment.message": "Your complaint was assigned to %s",
	},
	"hi": {
		"notification.upvote.title":     "नया अपवोट",
		"notification.upvote.message":   "%s ने आपकी शिकायत को अपवोट किया",
		"notification.downvote.title":   "नया डाउनवोट",
		"notification.downvote.message": "%s ने आपकी शिकायत को डाउनवोट किया",
		"notification.comment.title":    "नई टिप्पणी",
		"notification.comment.message":  "%s ने आपकी शिकायत पर टिप्पणी की",
		"notification.status.title":     "शिकायत की स्थिति बदली",
		"notification.status.message":   "आपकी शिकायत %s चिह्नित की गई",
	},
}

// Localizer resolves translation keys per language with an English
// fallback.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

// NewLocalizer returns a Localizer preloaded with the built-in strings.
func NewLocalizer() *Localizer {
	return &Localizer{translations: defaults}
}

// GetString returns the localized string for a key. Missing languages fall
// back to English; a missing key returns the key itself.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if langTranslations, ok := l.translations[lang]; ok {
		if value, ok := langTranslations[key]; ok {
			return value
		}
	}
	if lang != "en" {
		if enTranslations, ok := l.translations["en"]; ok {
			if value, ok := enTranslations[key]; ok {
				return value
			}
		}
	}
	return key
}

// Format resolves a key and substitutes its placeholders.
func (l *Localizer) Format(lang, key string, args ...interface{}) string {
	template := l.GetString(lang, key)
	if len(args) == 0 {
		return template
	}
	return fmt.Sprintf(template, args...)
}
