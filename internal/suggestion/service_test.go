package suggestion

import (
	"context"
	"errors"
	"testing"

	"civicvoice/backend/internal/models"
	"civicvoice/backend/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	reply string
	err   error
}

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}

func (f *fakeGenerator) GenerateWithAudio(ctx context.Context, prompt, mime string, audio []byte) (string, error) {
	return f.reply, f.err
}

// mockStore records the persisted suggestion; unused Storage methods panic.
type mockStore struct {
	storage.Storage
	savedID    string
	saved      *models.AISuggestion
	persistErr error
}

func (m *mockStore) SetAISuggestion(complaintID string, s *models.AISuggestion) error {
	m.savedID = complaintID
	m.saved = s
	return m.persistErr
}

func testComplaint() *models.Complaint {
	return &models.Complaint{
		ID:          "c-1",
		Title:       "Overflowing drain",
		Description: "The storm drain on 4th cross has been overflowing for a week.",
		Category:    models.CategoryInfrastructure,
		Urgency:     models.UrgencyHigh,
		Address:     "4th Cross, Indiranagar",
	}
}

func TestGenerate_ParsesAndPersistsStructuredReply(t *testing.T) {
	gen := &fakeGenerator{
		reply: `{"content":"File with the PWD ward office.","actionSteps":["Photograph the drain","Submit at the ward office"],` +
			`"relevantContacts":["PWD Ward Engineer"],"expectedTimeline":"7-10 days","urgencyLevel":"high","confidence":85}`,
	}
	store := &mockStore{}
	svc := NewService(gen, store, zerolog.Nop())

	got, err := svc.Generate(context.Background(), testComplaint(), &models.User{Reputation: 0})

	require.NoError(t, err)
	assert.Equal(t, "c-1", store.savedID)
	assert.True(t, got.IsGenerated)
	assert.False(t, got.GeneratedAt.IsZero())
	assert.Equal(t, "beginner", got.UserLevel)
	assert.Equal(t, "File with the PWD ward office.", got.Content)
	assert.Equal(t, 85, got.Confidence)
	assert.Equal(t, got, store.saved)
}

func TestGenerate_TierFollowsReputation(t *testing.T) {
	tests := []struct {
		reputation int
		tier       string
	}{
		{0, "beginner"},
		{100, "intermediate"},
		{500, "experienced"},
		{1000, "expert"},
	}
	for _, tt := range tests {
		gen := &fakeGenerator{reply: `{"content":"ok","confidence":80}`}
		store := &mockStore{}
		svc := NewService(gen, store, zerolog.Nop())

		got, err := svc.Generate(context.Background(), testComplaint(), &models.User{Reputation: tt.reputation})

		require.NoError(t, err)
		assert.Equal(t, tt.tier, got.UserLevel)
	}
}

func TestGenerate_MalformedReplyUsesFallback(t *testing.T) {
	gen := &fakeGenerator{reply: "honestly I have no idea"}
	store := &mockStore{}
	svc := NewService(gen, store, zerolog.Nop())

	got, err := svc.Generate(context.Background(), testComplaint(), &models.User{})

	require.NoError(t, err, "a malformed reply degrades to the fallback suggestion")
	assert.Contains(t, got.Content, "local municipal office")
	assert.NotEmpty(t, got.ActionSteps)
	assert.Contains(t, got.RelevantContacts[0], "Public Works Department")
	assert.Equal(t, models.UrgencyHigh, got.UrgencyLevel)
	assert.True(t, got.IsGenerated)
}

func TestGenerate_ProviderFailureUsesFallback(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("provider down")}
	store := &mockStore{}
	svc := NewService(gen, store, zerolog.Nop())

	got, err := svc.Generate(context.Background(), testComplaint(), &models.User{})

	require.NoError(t, err)
	assert.True(t, got.IsGenerated)
	assert.NotEmpty(t, got.ActionSteps)
}

func TestGenerate_PersistFailureSurfaces(t *testing.T) {
	gen := &fakeGenerator{reply: `{"content":"ok","confidence":80}`}
	store := &mockStore{persistErr: errors.New("db down")}
	svc := NewService(gen, store, zerolog.Nop())

	_, err := svc.Generate(context.Background(), testComplaint(), &models.User{})
	assert.Error(t, err)
}

func TestRoutingGuidanceCoversEveryCategory(t *testing.T) {
	for category := range models.ValidCategories {
		assert.NotEmpty(t, routingGuidance[category], "category %s has no routing guidance", category)
	}
}

func TestBuildPrompt_TierChangesInstructions(t *testing.T) {
	beginner := buildPrompt(testComplaint(), "beginner")
	expert := buildPrompt(testComplaint(), "expert")

	assert.Contains(t, beginner, "new to civic processes")
	assert.Contains(t, expert, "policy levers")
	assert.Contains(t, beginner, "Public Works Department")
}
