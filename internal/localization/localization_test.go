package localization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetString(t *testing.T) {
	l := NewLocalizer()

	assert.Equal(t, "New upvote", l.GetString("en", "notification.upvote.title"))
	assert.Equal(t, "नया अपवोट", l.GetString("hi", "notification.upvote.title"))
}

func TestGetString_FallsBackToEnglish(t *testing.T) {
	l := NewLocalizer()

	// Hindi has no assignment strings.
	assert.Equal(t, "Complaint assigned", l.GetString("hi", "notification.assignment.title"))
	// Unknown language falls back entirely.
	assert.Equal(t, "New comment", l.GetString("fr", "notification.comment.title"))
}

func TestGetString_UnknownKeyReturnsKey(t *testing.T) {
	l := NewLocalizer()
	assert.Equal(t, "no.such.key", l.GetString("en", "no.such.key"))
}

func TestFormat(t *testing.T) {
	l := NewLocalizer()

	assert.Equal(t, "Priya upvoted your complaint",
		l.Format("en", "notification.upvote.message", "Priya"))
	assert.Equal(t, "Your complaint was marked resolved",
		l.Format("en", "notification.status.message", "resolved"))
	assert.Equal(t, "New upvote", l.Format("en", "notification.upvote.title"))
}
