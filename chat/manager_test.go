package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShopHub/models"
	"ShopHub/session"
	"ShopHub/store"
)

// recordingPresenter captures presenter calls. Snapshots arrive from the
// store's notifier goroutine, so everything is mutex-guarded and read
// through require.Eventually.
type recordingPresenter struct {
	mu        sync.Mutex
	snapshots [][]models.Message
	badges    []int
	welcomes  int
}

func (p *recordingPresenter) MessagesChanged(_ string, msgs []models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, msgs)
}

func (p *recordingPresenter) UnreadCountChanged(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.badges = append(p.badges, count)
}

func (p *recordingPresenter) ShowWelcome() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.welcomes++
}

func (p *recordingPresenter) ShowError(string) {}

func (p *recordingPresenter) lastSnapshot() []models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.snapshots) == 0 {
		return nil
	}
	return p.snapshots[len(p.snapshots)-1]
}

func (p *recordingPresenter) snapshotCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snapshots)
}

func (p *recordingPresenter) lastBadge() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.badges) == 0 {
		return 0, false
	}
	return p.badges[len(p.badges)-1], true
}

func (p *recordingPresenter) welcomeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.welcomes
}

func newTestManager(t *testing.T) (*Manager, *store.Memory, *session.Memory, *recordingPresenter) {
	t.Helper()
	st := store.NewMemory()
	sessions := session.NewMemory()
	presenter := &recordingPresenter{}
	m := NewManager(st, sessions, presenter, nil)
	t.Cleanup(m.Shutdown)
	return m, st, sessions, presenter
}

func TestManagerSetIdentityBinds(t *testing.T) {
	ctx := context.Background()
	m, _, sessions, presenter := newTestManager(t)

	m.SetIdentity(ctx, &alice)

	assert.Equal(t, StateBound, m.State())
	assert.NotEmpty(t, m.ConversationID())

	id, ok := sessions.Load()
	require.True(t, ok)
	assert.Equal(t, m.ConversationID(), id)

	require.Eventually(t, func() bool {
		snap := presenter.lastSnapshot()
		return len(snap) == 1 && snap[0].Text == models.WelcomeText
	}, 2*time.Second, 10*time.Millisecond, "welcome snapshot never rendered")

	// Widget closed, unread system welcome: badge shows one
	require.Eventually(t, func() bool {
		badge, ok := presenter.lastBadge()
		return ok && badge == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManagerSendValidation(t *testing.T) {
	ctx := context.Background()
	m, _, _, _ := newTestManager(t)

	assert.ErrorIs(t, m.Send(ctx, "   "), ErrEmptyMessage)
	assert.ErrorIs(t, m.Send(ctx, "hello"), ErrNotAuthenticated)
}

func TestManagerSendBookkeeping(t *testing.T) {
	ctx := context.Background()
	m, st, _, _ := newTestManager(t)
	m.SetIdentity(ctx, &alice)

	require.NoError(t, m.Send(ctx, "first"))
	require.NoError(t, m.Send(ctx, "second"))

	convs, err := st.QueryConversations(ctx, store.ConversationQuery{Participant: alice.ID})
	require.NoError(t, err)
	require.Len(t, convs, 1, "repeated sends stay in one conversation")
	assert.Equal(t, "second", convs[0].LastMessage)
	assert.Equal(t, 2, convs[0].UnreadCount)
}

func TestManagerOpenMarksRead(t *testing.T) {
	ctx := context.Background()
	m, st, _, presenter := newTestManager(t)
	m.SetIdentity(ctx, &alice)
	convID := m.ConversationID()

	_, err := SendOperatorMessage(ctx, st, convID, "hello from support")
	require.NoError(t, err)

	m.Open(ctx)

	unread, err := st.QueryMessages(ctx, convID, store.MessageQuery{UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread, "opening the widget flips operator messages to read")

	// An open widget pins the badge to zero even as snapshots keep coming
	require.Eventually(t, func() bool {
		badge, ok := presenter.lastBadge()
		return ok && badge == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManagerMarkReadIdempotent(t *testing.T) {
	ctx := context.Background()
	m, st, _, _ := newTestManager(t)
	m.SetIdentity(ctx, &alice)

	require.NoError(t, m.MarkMessagesAsRead(ctx))

	writes := st.Writes()
	require.NoError(t, m.MarkMessagesAsRead(ctx))
	assert.Equal(t, writes, st.Writes(), "repeated mark-read with nothing unread must not write")
}

func TestManagerBadgeWhileClosed(t *testing.T) {
	ctx := context.Background()
	m, st, _, presenter := newTestManager(t)
	m.SetIdentity(ctx, &alice)
	convID := m.ConversationID()

	m.Open(ctx)
	m.Close()

	_, err := SendOperatorMessage(ctx, st, convID, "still there?")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		badge, ok := presenter.lastBadge()
		return ok && badge == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManagerIdentityLossKeepsSession(t *testing.T) {
	ctx := context.Background()
	m, _, sessions, presenter := newTestManager(t)
	m.SetIdentity(ctx, &alice)
	convID := m.ConversationID()

	m.SetIdentity(ctx, nil)

	assert.Equal(t, StateUnbound, m.State())
	assert.Empty(t, m.ConversationID())
	assert.Positive(t, presenter.welcomeCount())
	badge, ok := presenter.lastBadge()
	require.True(t, ok)
	assert.Zero(t, badge)

	// The durable session survives so re-authentication resumes
	id, ok := sessions.Load()
	require.True(t, ok)
	assert.Equal(t, convID, id)

	m.SetIdentity(ctx, &alice)
	assert.Equal(t, convID, m.ConversationID())
}

func TestManagerSnapshotSorted(t *testing.T) {
	ctx := context.Background()
	m, _, _, presenter := newTestManager(t)
	m.SetIdentity(ctx, &alice)

	// Let the subscription's own snapshot land first so the crafted one below
	// is the last render.
	require.Eventually(t, func() bool {
		return presenter.snapshotCount() > 0
	}, 2*time.Second, 10*time.Millisecond)

	base := time.Now().UTC()
	m.handleSnapshot([]models.Message{
		{ID: "c", Timestamp: base.Add(2 * time.Second)},
		{ID: "a", Timestamp: base},
		{ID: "b", Timestamp: base.Add(time.Second)},
	})

	require.Eventually(t, func() bool {
		snap := presenter.lastSnapshot()
		return len(snap) == 3
	}, 2*time.Second, 10*time.Millisecond)

	snap := presenter.lastSnapshot()
	assert.Equal(t, []string{"a", "b", "c"}, []string{snap[0].ID, snap[1].ID, snap[2].ID})
}

func TestManagerShutdownStopsUpdates(t *testing.T) {
	ctx := context.Background()
	m, st, _, presenter := newTestManager(t)
	m.SetIdentity(ctx, &alice)
	convID := m.ConversationID()

	require.Eventually(t, func() bool {
		return presenter.snapshotCount() > 0
	}, 2*time.Second, 10*time.Millisecond)

	m.Shutdown()
	seen := presenter.snapshotCount()

	_, err := SendOperatorMessage(ctx, st, convID, "anyone?")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, seen, presenter.snapshotCount(), "no snapshots after shutdown")
}
