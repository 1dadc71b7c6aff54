package complaint

import (
	"context"
	"sync"
	"testing"
	"time"

	"civicvoice/backend/internal/localization"
	"civicvoice/backend/internal/models"
	"civicvoice/backend/internal/notification"
	"civicvoice/backend/internal/scoring"
	"civicvoice/backend/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStorage is an in-memory Storage covering the methods the complaint
// service and the dispatcher touch. Anything else panics via the embedded
// nil interface.
type memStorage struct {
	storage.Storage
	mu sync.Mutex

	users      map[string]*models.User
	complaints map[string]*models.Complaint
	votes      map[string]map[string]string // complaintID -> userID -> kind
	comments   map[string]*models.Comment

	notifications []*models.Notification
	repErr        error
}

func newMemStorage() *memStorage {
	return &memStorage{
		users:      map[string]*models.User{},
		complaints: map[string]*models.Complaint{},
		votes:      map[string]map[string]string{},
		comments:   map[string]*models.Comment{},
	}
}

func (m *memStorage) GetUserByID(id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStorage) CreateComplaint(c *models.Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now()
	m.complaints[c.ID] = c
	return nil
}

func (m *memStorage) GetComplaintByID(id string) (*models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.complaints[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStorage) SaveComplaint(c *models.Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.complaints[c.ID] = c
	return nil
}

func (m *memStorage) DeleteComplaint(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.complaints[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.complaints, id)
	delete(m.votes, id)
	return nil
}

func (m *memStorage) IncrementViewCount(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.complaints[id]; ok {
		c.ViewCount++
	}
	return nil
}

func (m *memStorage) AdjustComplaintCounters(userID string, submitted, resolved int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.ComplaintsSubmitted += submitted
		u.ComplaintsResolved += resolved
	}
	return nil
}

func (m *memStorage) ToggleVote(complaintID, userID, kind string) (*storage.VoteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.complaints[complaintID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if m.votes[complaintID] == nil {
		m.votes[complaintID] = map[string]string{}
	}

	result := &storage.VoteResult{}
	current := m.votes[complaintID][userID]
	if current == kind {
		delete(m.votes[complaintID], userID)
	} else {
		m.votes[complaintID][userID] = kind
		result.UserVote = kind
		result.Added = true
	}

	up, down := 0, 0
	for _, k := range m.votes[complaintID] {
		if k == models.VoteUpvote {
			up++
		} else {
			down++
		}
	}
	c.UpvoteCount, c.DownvoteCount = up, down
	c.Priority = scoring.Priority(c.Urgency, up, c.CommentCount, time.Since(c.CreatedAt))

	result.UpvoteCount = up
	result.DownvoteCount = down
	copied := *c
	result.Complaint = &copied
	return result, nil
}

func (m *memStorage) GetUserVote(complaintID, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.votes[complaintID][userID], nil
}

func (m *memStorage) AddComment(comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.complaints[comment.ComplaintID]; !ok {
		return storage.ErrNotFound
	}
	if comment.ID == "" {
		comment.ID = uuid.New().String()
	}
	m.comments[comment.ID] = comment
	m.complaints[comment.ComplaintID].CommentCount++
	return nil
}

func (m *memStorage) GetCommentByID(id string) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.comments[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStorage) UpdateComment(comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments[comment.ID] = comment
	return nil
}

func (m *memStorage) DeleteComment(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment, ok := m.comments[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(m.comments, id)
	if c, ok := m.complaints[comment.ComplaintID]; ok {
		c.CommentCount--
	}
	return nil
}

// RecalculateReputation mirrors the SQL aggregate over the in-memory maps.
func (m *memStorage) RecalculateReputation(userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repErr != nil {
		return 0, m.repErr
	}

	var stats []scoring.ComplaintStats
	for id, c := range m.complaints {
		if c.AuthorID != userID {
			continue
		}
		s := scoring.ComplaintStats{Resolved: c.Status == models.StatusResolved}
		for _, kind := range m.votes[id] {
			if kind == models.VoteUpvote {
				s.Upvotes++
			} else {
				s.Downvotes++
			}
		}
		for _, cm := range m.comments {
			if cm.ComplaintID == id {
				s.Comments++
			}
		}
		stats = append(stats, s)
	}

	reputation := scoring.Reputation(stats)
	if u, ok := m.users[userID]; ok {
		u.Reputation = reputation
	}
	return reputation, nil
}

func (m *memStorage) SaveNotification(n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *memStorage) PublishNotification(n *models.Notification) error { return nil }

func (m *memStorage) notificationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

func (m *memStorage) lastNotification() *models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.notifications) == 0 {
		return nil
	}
	return m.notifications[len(m.notifications)-1]
}

// fakeSuggestions counts generation calls.
type fakeSuggestions struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSuggestions) Generate(ctx context.Context, c *models.Complaint, u *models.User) (*models.AISuggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.AISuggestion{Content: "ok", IsGenerated: true}, nil
}

type fixture struct {
	store      *memStorage
	dispatcher *notification.Dispatcher
	svc        *Service
	userA      *models.User
	userB      *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStorage()
	dispatcher := notification.NewDispatcher(store, localization.NewLocalizer(), nil, zerolog.Nop())
	go dispatcher.Run()
	t.Cleanup(dispatcher.Stop)

	svc := NewService(store, dispatcher, nil, zerolog.Nop())

	userA := &models.User{ID: "user-a", Name: "Asha"}
	userB := &models.User{ID: "user-b", Name: "Bala"}
	store.users[userA.ID] = userA
	store.users[userB.ID] = userB

	return &fixture{store: store, dispatcher: dispatcher, svc: svc, userA: userA, userB: userB}
}

func (f *fixture) createComplaint(t *testing.T, author *models.User, urgency string) *models.Complaint {
	t.Helper()
	c, err := f.svc.Create(context.Background(), author, CreateInput{
		Title:       "Streetlight out",
		Description: "The streetlight at the corner has been out for a week.",
		Category:    models.CategoryInfrastructure,
		Urgency:     urgency,
		Address:     "12 MG Road",
	})
	require.NoError(t, err)
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)

	cases := []CreateInput{
		{Description: "d", Category: "other", Urgency: "low", Address: "a"},                 // no title
		{Title: "t", Category: "other", Urgency: "low", Address: "a"},                       // no description
		{Title: "t", Description: "d", Category: "other", Urgency: "low"},                   // no address
		{Title: "t", Description: "d", Category: "bogus", Urgency: "low", Address: "a"},     // bad category
		{Title: "t", Description: "d", Category: "other", Urgency: "extreme", Address: "a"}, // bad urgency
	}
	for _, in := range cases {
		_, err := f.svc.Create(context.Background(), f.userA, in)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestCreate_OpensComplaintAndBumpsCounter(t *testing.T) {
	f := newFixture(t)

	c := f.createComplaint(t, f.userA, models.UrgencyHigh)

	assert.Equal(t, models.StatusOpen, c.Status)
	assert.Equal(t, f.userA.ID, c.AuthorID)
	assert.Equal(t, 1, f.userA.ComplaintsSubmitted)
	// urgency high(3)*10 + 30-day recency boost
	assert.Equal(t, 60, c.Priority)
}

func TestCreate_SuggestionRunsInBackgroundAndFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	suggestions := &fakeSuggestions{err: context.DeadlineExceeded}
	f.svc = NewService(f.store, f.dispatcher, suggestions, zerolog.Nop())

	c := f.createComplaint(t, f.userA, models.UrgencyLow)

	require.NotNil(t, c)
	waitFor(t, func() bool {
		suggestions.mu.Lock()
		defer suggestions.mu.Unlock()
		return suggestions.calls == 1
	})
}

func TestVote_ToggleSameVoteReturnsToNone(t *testing.T) {
	f := newFixture(t)
	c := f.createComplaint(t, f.userA, models.UrgencyMedium)

	first, err := f.svc.Vote(f.userB, c.ID, models.VoteUpvote)
	require.NoError(t, err)
	require.NotNil(t, first.UserVote)
	assert.Equal(t, "upvote", *first.UserVote)
	assert.Equal(t, 1, first.UpvoteCount)

	second, err := f.svc.Vote(f.userB, c.ID, models.VoteUpvote)
	require.NoError(t, err)
	assert.Nil(t, second.UserVote, "voting the same way again removes the vote")
	assert.Equal(t, 0, second.UpvoteCount)
}

func TestVote_OppositeVoteReplacesExistingOne(t *testing.T) {
	f := newFixture(t)
	c := f.createComplaint(t, f.userA, models.UrgencyMedium)

	_, err := f.svc.Vote(f.userB, c.ID, models.VoteUpvote)
	require.NoError(t, err)

	outcome, err := f.svc.Vote(f.userB, c.ID, models.VoteDownvote)
	require.NoError(t, err)
	require.NotNil(t, outcome.UserVote)
	assert.Equal(t, "downvote", *outcome.UserVote)
	assert.Equal(t, 0, outcome.UpvoteCount, "the upvote is gone")
	assert.Equal(t, 1, outcome.DownvoteCount)
}

func TestVote_EndToEndReputationAndNotifications(t *testing.T) {
	f := newFixture(t)
	c := f.createComplaint(t, f.userA, models.UrgencyHigh)

	outcome, err := f.svc.Vote(f.userB, c.ID, models.VoteUpvote)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.UpvoteCount)
	assert.Equal(t, 0, outcome.DownvoteCount)
	assert.Equal(t, 2, f.store.users["user-a"].Reputation, "one upvote is worth two points")

	waitFor(t, func() bool { return f.store.notificationCount() == 1 })
	n := f.store.lastNotification()
	assert.Equal(t, "user-a", n.RecipientID)
	assert.Equal(t, models.NotificationUpvote, n.Type)

	outcome, err = f.svc.Vote(f.userB, c.ID, models.VoteDownvote)
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.UpvoteCount)
	assert.Equal(t, 1, outcome.DownvoteCount)
	assert.Equal(t, 0, f.store.users["user-a"].Reputation, "reputation floors at zero")

	waitFor(t, func() bool { return f.store.notificationCount() == 2 })
	assert.Equal(t, models.NotificationDownvote, f.store.lastNotification().Type)
}

func TestVote_RemovalDoesNotNotify(t *testing.T) {
	f := newFixture(t)
	c := f.createComplaint(t, f.userA, models.UrgencyLow)

	_, err := f.svc.Vote(f.userB, c.ID, models.VoteUpvote)
	require.NoError(t, err)
	waitFor(t, func() bool { return f.store.notificationCount() == 1 })

	_, err = f.svc.Vote(f.userB, c.ID, models.VoteUpvote)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, f.store.notificationCount(), "removing a vote never notifies")
}

func TestVote_SelfVoteDoesNotNotify(t *testing.T) {
	f := newFixture(t)
	c := f.createComplaint(t, f.userA, models.UrgencyLow)

	_, err := f.svc.Vote(f.userA, c.ID, models.VoteUpvote)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, f.store.notificationCount())
}

func TestVote_ReputationFailureDoesNotFailVote(t *testing.T) {
	f := newFixture(t)
	c := f.createComplaint(t, f.userA, models.UrgencyLow)
	f.store.repErr = assert.AnError

	outcome, err := f.svc.Vote(f.userB, c.ID, models.VoteUpvote)
	require.NoError(t, err, "reputation recompute failure is swallowed")
	assert.Equal(t, 1, outcome.UpvoteCount)
}

func TestAddComment_ValidatesAndNotifies(t *testing.T) {
	f := newFixture(t)
	c := f.createComplaint(t, f.userA, models.UrgencyLow)

	_, err := f.svc.AddComment(f.userB, c.ID, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	comment, err := f.svc.AddComment(f.userB, c.ID, "  same issue on my street  ")
	require.NoError(t, err)
	assert.Equal(t, "same issue on my street", comment.Content, "content is trimmed")

	waitFor(t, func() bool { return f.store.notificationCount() == 1 })
	n := f.store.lastNotification()
	assert.Equal(t, models.NotificationComment, n.Type)
	assert.Equal(t, comment.ID, n.Data.CommentID)

	// Comment feeds the author's reputation: +1.
	assert.Equal(t, 1, f.store.users["user-a"].Reputation)
}

func TestAddComment_SelfCommentDoesNotNotify(t *testing.T) {
	f := newFixture(t)
	c := f.createComplaint(t, f.userA, models.UrgencyLow)

	_, err := f.svc.AddComment(f.userA, c.ID, "following up myself")
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, f.store.notificationCount())
}

func TestEditComment_OnlyAuthorMayEdit(t *testing.T) {
	f := newFixture(t)
	c := f.createComplaint(t, f.userA, models.UrgencyLow)
	comment, err := f.svc.AddComment(f.userB, c.ID, "original")
	require.NoError(t, err)

	_, err = f.svc.EditComment(f.userA, comment.ID, "hijacked")
	assert.ErrorIs(t, err, ErrForbidden)

	edited, err := f.svc.EditComment(f.userB, comment.ID, "updated")
	require.NoError(t, err)
	assert.Equal(t, "updated", edited.Content)
}

func TestDeleteComment_TwoAuthorizationPaths(t *testing.T) {
	f := newFixture(t)
	c := f.createComplaint(t, f.userA, models.UrgencyLow)

	// Comment author deletes their own.
	comment, err := f.svc.AddComment(f.userB, c.ID, "one")
	require.NoError(t, err)
	assert.NoError(t, f.svc.DeleteComment(f.userB, comment.ID))

	// Complaint author deletes someone else's comment.
	comment, err = f.svc.AddComment(f.userB, c.ID, "two")
	require.NoError(t, err)
	assert.NoError(t, f.svc.DeleteComment(f.userA, comment.ID))

	// A third party may not.
	stranger := &models.User{ID: "user-c", Name: "Chitra"}
	f.store.users[stranger.ID] = stranger
	comment, err = f.svc.AddComment(f.userB, c.ID, "three")
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.DeleteComment(stranger, comment.ID), ErrForbidden)
}

func TestChangeStatus_ResolveKeepsBothRepresentationsConsistent(t *testing.T) {
	f := newFixture(t)
	c := f.createComplaint(t, f.userA, models.UrgencyMedium)

	resolved, err := f.svc.ChangeStatus(f.userA, c.ID, models.StatusResolved, "crew fixed it")
	require.NoError(t, err)

	assert.Equal(t, models.StatusResolved, resolved.Status)
	assert.True(t, resolved.IsResolved)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, "crew fixed it", resolved.Resolution)
	assert.Equal(t, 1, f.store.users["user-a"].ComplaintsResolved)
	// Resolved bonus lands in reputation.
	assert.Equal(t, 5, f.store.users["user-a"].Reputation)

	// Resolving is owner-only, so the actor and recipient coincide, yet
	// exactly one status-change notification must still be produced.
	waitFor(t, func() bool { return f.store.notificationCount() == 1 })
	n := f.store.lastNotification()
	assert.Equal(t, "user-a", n.RecipientID)
	assert.Equal(t, models.NotificationStatusChange, n.Type)
	assert.Equal(t, models.StatusResolved, n.Data.Status)
}

func TestChangeStatus_OnlyOwner(t *testing.T) {
	f := newFixture(t)
	c := f.createComplaint(t, f.userA, models.UrgencyMedium)

	_, err := f.svc.ChangeStatus(f.userB, c.ID, models.StatusResolved, "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestChangeStatus_ReopenClearsResolutionTriple(t *testing.T) {
	f := newFixture(t)
	c := f.createComplaint(t, f.userA, models.UrgencyMedium)

	_, err := f.svc.ChangeStatus(f.userA, c.ID, models.StatusResolved, "done")
	require.NoError(t, err)
	reopened, err := f.svc.ChangeStatus(f.userA, c.ID, models.StatusOpen, "")
	require.NoError(t, err)

	assert.False(t, reopened.IsResolved)
	assert.Nil(t, reopened.ResolvedAt)
	assert.Empty(t, reopened.Resolution)
	assert.Equal(t, 0, f.store.users["user-a"].ComplaintsResolved)
}

func TestUpdate_OwnerOnlyAndMarksEdited(t *testing.T) {
	f := newFixture(t)
	c := f.createComplaint(t, f.userA, models.UrgencyMedium)

	title := "Streetlight still out"
	_, err := f.svc.Update(f.userB, c.ID, UpdateInput{Title: &title})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.svc.Update(f.userA, c.ID, UpdateInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.True(t, updated.IsEdited)
	assert.NotNil(t, updated.EditedAt)
}

func TestDelete_OwnerOnlyAndDecrementsCounter(t *testing.T) {
	f := newFixture(t)
	c := f.createComplaint(t, f.userA, models.UrgencyMedium)
	require.Equal(t, 1, f.userA.ComplaintsSubmitted)

	assert.ErrorIs(t, f.svc.Delete(f.userB, c.ID), ErrForbidden)

	require.NoError(t, f.svc.Delete(f.userA, c.ID))
	assert.Equal(t, 0, f.userA.ComplaintsSubmitted)
	_, err := f.svc.Get(c.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestVoteStatus(t *testing.T) {
	f := newFixture(t)
	c := f.createComplaint(t, f.userA, models.UrgencyMedium)

	status, err := f.svc.VoteStatus(f.userB.ID, c.ID)
	require.NoError(t, err)
	assert.Nil(t, status.UserVote)

	_, err = f.svc.Vote(f.userB, c.ID, models.VoteDownvote)
	require.NoError(t, err)

	status, err = f.svc.VoteStatus(f.userB.ID, c.ID)
	require.NoError(t, err)
	require.NotNil(t, status.UserVote)
	assert.Equal(t, "downvote", *status.UserVote)
	assert.Equal(t, 1, status.DownvoteCount)
}
