package chat

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ShopHub/models"
	"ShopHub/session"
	"ShopHub/store"
)

type State int

const (
	StateUnbound State = iota
	StateResolving
	StateBound
)

// MessageEvent is exported to the event sink after every successful send.
type MessageEvent struct {
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
}

// EventSink receives chat events, best effort. The Kafka producer implements
// it; a nil sink disables the export.
type EventSink interface {
	MessageSent(ev MessageEvent)
}

// Manager drives one customer's widget: UNBOUND until an identity arrives,
// RESOLVING while the resolver picks a conversation, BOUND with a live
// message subscription afterwards, back to UNBOUND on identity loss. One
// Manager per connected widget client.
type Manager struct {
	store     store.Store
	sessions  session.Store
	resolver  *Resolver
	presenter Presenter
	events    EventSink

	mu         sync.Mutex
	state      State
	identity   *Identity
	conv       *models.Conversation
	cancelSub  func()
	widgetOpen bool
	resolving  bool
}

func NewManager(st store.Store, sessions session.Store, presenter Presenter, events EventSink) *Manager {
	if presenter == nil {
		presenter = NopPresenter{}
	}
	return &Manager{
		store:     st,
		sessions:  sessions,
		resolver:  NewResolver(st, sessions),
		presenter: presenter,
		events:    events,
	}
}

// State reports the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ConversationID returns the bound conversation id, empty when unbound.
func (m *Manager) ConversationID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conv == nil {
		return ""
	}
	return m.conv.ID
}

// SetIdentity handles both identity transitions: a non-nil identity triggers
// resolution, nil tears the binding down. The durable session store is left
// intact on identity loss so the conversation resumes on re-authentication.
func (m *Manager) SetIdentity(ctx context.Context, user *Identity) {
	if user == nil {
		m.mu.Lock()
		m.identity = nil
		m.unbindLocked()
		m.mu.Unlock()
		m.presenter.ShowWelcome()
		m.presenter.UnreadCountChanged(0)
		return
	}

	m.mu.Lock()
	m.identity = user
	m.mu.Unlock()
	m.resolveSession(ctx)
}

// Open marks the widget visible: the badge resets immediately and pending
// operator messages get flagged read in storage.
func (m *Manager) Open(ctx context.Context) {
	m.mu.Lock()
	m.widgetOpen = true
	hasIdentity := m.identity != nil
	bound := m.state == StateBound
	m.mu.Unlock()

	m.presenter.UnreadCountChanged(0)

	if hasIdentity && !bound {
		m.resolveSession(ctx)
		m.mu.Lock()
		bound = m.state == StateBound
		m.mu.Unlock()
	}
	if bound {
		if err := m.MarkMessagesAsRead(ctx); err != nil {
			// Keep last-known state, the next open retries
			m.presenter.ShowError("could not update read state")
		}
	}
}

func (m *Manager) Close() {
	m.mu.Lock()
	m.widgetOpen = false
	m.mu.Unlock()
}

// Send appends a customer message. A trimmed non-empty text and an identity
// are required; an unbound manager resolves (and creates) on demand, at most
// once thanks to the resolution guard. On success the conversation's
// last-message fields are bumped and the operator's unread counter grows by
// one. Nothing is mutated locally before the write succeeds.
func (m *Manager) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	m.mu.Lock()
	user := m.identity
	m.mu.Unlock()
	if user == nil {
		return ErrNotAuthenticated
	}

	if m.State() != StateBound {
		m.resolveSession(ctx)
	}
	m.mu.Lock()
	if m.conv == nil {
		m.mu.Unlock()
		return ErrNoConversation
	}
	convID := m.conv.ID
	m.mu.Unlock()

	// Writing into a closed conversation reopens it; nothing is mutated
	// locally before the writes succeed.
	msg, err := SendUserMessage(ctx, m.store, convID, user.ID, text)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.conv != nil && m.conv.ID == convID {
		m.conv.Status = models.StatusOpen
	}
	m.mu.Unlock()

	if m.events != nil {
		m.events.MessageSent(MessageEvent{
			ConversationID: convID,
			SenderID:       user.ID,
			Text:           text,
			Timestamp:      msg.Timestamp,
		})
	}
	return nil
}

// MarkMessagesAsRead flips unread operator and system messages to read and
// shrinks the stored counter by the number just marked, floored at zero.
// With nothing to mark it issues no writes at all.
func (m *Manager) MarkMessagesAsRead(ctx context.Context) error {
	m.mu.Lock()
	if m.conv == nil {
		m.mu.Unlock()
		return nil
	}
	convID := m.conv.ID
	m.mu.Unlock()

	_, err := MarkReadForUser(ctx, m.store, convID)
	return err
}

// Shutdown releases the subscription. Called when the widget client
// disconnects.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.identity = nil
	m.unbindLocked()
	m.mu.Unlock()
}

// resolveSession runs the resolver at most once at a time per manager; a
// second caller during an in-flight resolution returns immediately.
func (m *Manager) resolveSession(ctx context.Context) {
	m.mu.Lock()
	if m.resolving || m.state == StateBound || m.identity == nil {
		m.mu.Unlock()
		return
	}
	user := *m.identity
	m.resolving = true
	m.state = StateResolving
	m.mu.Unlock()

	conv, err := m.resolver.Resolve(ctx, user)

	m.mu.Lock()
	m.resolving = false
	if m.identity == nil || m.identity.ID != user.ID {
		// Identity changed mid-flight, drop the result
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.state = StateUnbound
		m.mu.Unlock()
		m.presenter.ShowWelcome()
		return
	}
	m.bindLocked(conv)
	m.mu.Unlock()
}

// bindLocked swaps the live subscription to conv. Any previous subscription
// is cancelled first, so a manager never leaks listeners.
func (m *Manager) bindLocked(conv *models.Conversation) {
	if m.cancelSub != nil {
		m.cancelSub()
		m.cancelSub = nil
	}
	m.conv = conv
	m.state = StateBound
	m.cancelSub = m.store.SubscribeMessages(conv.ID, m.handleSnapshot)
}

func (m *Manager) unbindLocked() {
	if m.cancelSub != nil {
		m.cancelSub()
		m.cancelSub = nil
	}
	m.conv = nil
	m.state = StateUnbound
}

// handleSnapshot reacts to every message snapshot from the store. Delivery
// order is not trusted: the snapshot is re-sorted before rendering. The
// badge reflects unread operator-side messages while the widget is closed;
// an open widget pins it to zero without touching stored read flags (only
// MarkMessagesAsRead does that).
func (m *Manager) handleSnapshot(msgs []models.Message) {
	m.mu.Lock()
	if m.conv == nil {
		m.mu.Unlock()
		return
	}
	convID := m.conv.ID
	open := m.widgetOpen
	m.mu.Unlock()

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})

	m.presenter.MessagesChanged(convID, msgs)

	if open {
		m.presenter.UnreadCountChanged(0)
		return
	}
	unread := 0
	for _, msg := range msgs {
		if msg.FromOperatorSide() && !msg.Read {
			unread++
		}
	}
	m.presenter.UnreadCountChanged(unread)
}
