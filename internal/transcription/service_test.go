package transcription

import (
	"context"
	"testing"

	"civicvoice/backend/internal/aiclient"
	"civicvoice/backend/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator records calls and returns a canned reply.
type fakeGenerator struct {
	reply string
	err   error
	calls int
}

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func (f *fakeGenerator) GenerateWithAudio(ctx context.Context, prompt, mimeType string, audio []byte) (string, error) {
	f.calls++
	return f.reply, f.err
}

func newService(gen *fakeGenerator) *Service {
	return NewService(gen, zerolog.Nop())
}

func TestTranscribe_RejectsEmptyAudioBeforeProviderCall(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newService(gen)

	_, err := svc.Transcribe(context.Background(), Request{Audio: nil})

	assert.ErrorIs(t, err, ErrEmptyAudio)
	assert.Zero(t, gen.calls, "no provider call may happen for empty audio")
}

func TestTranscribe_RejectsOversizedAudioBeforeProviderCall(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newService(gen)

	_, err := svc.Transcribe(context.Background(), Request{
		Audio: make([]byte, config.MaxAudioBytes+1),
	})

	assert.ErrorIs(t, err, ErrAudioTooLarge)
	assert.Zero(t, gen.calls)
}

func TestTranscribe_ParsesStructuredReply(t *testing.T) {
	gen := &fakeGenerator{
		reply: `{"text":"the street light near the bus stop is broken","language":"en","confidence":93,"wordCount":9,"duration":4.2}`,
	}
	svc := newService(gen)

	res, err := svc.Transcribe(context.Background(), Request{
		Audio:    []byte("fake-audio"),
		Language: "auto",
	})

	require.NoError(t, err)
	assert.Equal(t, "the street light near the bus stop is broken", res.Transcription)
	assert.Equal(t, "en", res.DetectedLanguage)
	assert.Equal(t, 93, res.Confidence)
	assert.Equal(t, 9, res.Metadata.WordCount)
	assert.Equal(t, len("fake-audio"), res.Metadata.AudioSizeBytes)
}

func TestTranscribe_MalformedReplyFallsBackToRawText(t *testing.T) {
	gen := &fakeGenerator{reply: "The speaker said: water supply has been down for three days"}
	svc := newService(gen)

	res, err := svc.Transcribe(context.Background(), Request{
		Audio:    []byte("audio"),
		Language: "hi",
	})

	require.NoError(t, err, "a malformed reply must degrade, not fail")
	assert.Equal(t, "The speaker said: water supply has been down for three days", res.Transcription)
	assert.Equal(t, 60, res.Confidence, "fallback transcripts carry reduced confidence")
	assert.Equal(t, "hi", res.DetectedLanguage, "language defaults to the request hint")
	assert.NotZero(t, res.Metadata.WordCount)
}

func TestTranscribe_DefaultsLanguageFromHint(t *testing.T) {
	gen := &fakeGenerator{reply: `{"text":"ok","confidence":80}`}
	svc := newService(gen)

	res, err := svc.Transcribe(context.Background(), Request{Audio: []byte("a"), Language: "ta"})

	require.NoError(t, err)
	assert.Equal(t, "ta", res.DetectedLanguage)
}

func TestTranscribe_ProviderErrorKindsPassThrough(t *testing.T) {
	for _, kind := range []error{
		aiclient.ErrAuthFailed,
		aiclient.ErrQuotaExhausted,
		aiclient.ErrMalformedAudio,
	} {
		gen := &fakeGenerator{err: kind}
		svc := newService(gen)

		_, err := svc.Transcribe(context.Background(), Request{Audio: []byte("a")})
		assert.ErrorIs(t, err, kind)
	}
}

func TestBuildPrompt_CategoryAddsCivicFraming(t *testing.T) {
	withCategory := buildPrompt(Request{Language: "auto", Category: "public_safety"})
	assert.Contains(t, withCategory, "civic complaint")
	assert.Contains(t, withCategory, "public safety")

	without := buildPrompt(Request{Language: "auto"})
	assert.NotContains(t, without, "civic complaint")
}

func TestBuildPrompt_RequestsStructuredReply(t *testing.T) {
	p := buildPrompt(Request{Language: "en", PromptContext: "recorded near the market"})
	assert.Contains(t, p, `"confidence"`)
	assert.Contains(t, p, "recorded near the market")
}
