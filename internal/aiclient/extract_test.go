package aiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Text       string `json:"text"`
	Confidence int    `json:"confidence"`
}

func TestExtractJSON_StrictObject(t *testing.T) {
	var out sample
	ok := ExtractJSON(`{"text":"pothole on main road","confidence":92}`, &out)
	assert.True(t, ok)
	assert.Equal(t, "pothole on main road", out.Text)
	assert.Equal(t, 92, out.Confidence)
}

func TestExtractJSON_EmbeddedInProse(t *testing.T) {
	raw := `Sure! Here is the result you asked for:

{"text": "street light broken", "confidence": 88}

Let me know if you need anything else.`

	var out sample
	ok := ExtractJSON(raw, &out)
	assert.True(t, ok)
	assert.Equal(t, "street light broken", out.Text)
}

func TestExtractJSON_MarkdownFence(t *testing.T) {
	raw := "```json\n{\"text\":\"garbage not collected\",\"confidence\":75}\n```"
	var out sample
	ok := ExtractJSON(raw, &out)
	assert.True(t, ok)
	assert.Equal(t, "garbage not collected", out.Text)
	assert.Equal(t, 75, out.Confidence)
}

func TestExtractJSON_BracesInsideStrings(t *testing.T) {
	raw := `prefix {"text":"weird {braces} and \"quotes\" inside","confidence":50} suffix`
	var out sample
	ok := ExtractJSON(raw, &out)
	assert.True(t, ok)
	assert.Equal(t, `weird {braces} and "quotes" inside`, out.Text)
}

func TestExtractJSON_NoObject(t *testing.T) {
	var out sample
	assert.False(t, ExtractJSON("the model just rambled with no structure", &out))
	assert.False(t, ExtractJSON("", &out))
	assert.False(t, ExtractJSON("   \n\t  ", &out))
}

func TestExtractJSON_UnbalancedObject(t *testing.T) {
	var out sample
	assert.False(t, ExtractJSON(`{"text":"cut off mid`, &out))
}
