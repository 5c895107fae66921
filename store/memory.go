package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ShopHub/models"
)

// Memory is an in-process Store with the same ordering and subscription
// semantics as the Postgres-backed one. Tests run against it and use its
// failure injection and write counter.
type Memory struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message
	lastTS        map[string]time.Time
	writes        int
	hub           *hub

	// Fault injection, tests only
	QueryErr  error // returned by QueryConversations
	CreateErr error // returned by CreateConversation
}

func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
		lastTS:        make(map[string]time.Time),
		hub:           newHub(),
	}
}

// Writes reports how many mutating operations have hit the store.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *Memory) CreateConversation(ctx context.Context, conv *models.Conversation) (string, error) {
	if err := validateConversation(conv); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	c := *conv
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = models.StatusOpen
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.LastUpdated = now
	m.conversations[c.ID] = &c
	m.writes++
	*conv = c
	return c.ID, nil
}

func (m *Memory) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

func (m *Memory) UpdateConversation(ctx context.Context, id string, patch ConversationPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.LastMessage != nil {
		c.LastMessage = *patch.LastMessage
	}
	if patch.UnreadCount != nil {
		c.UnreadCount = *patch.UnreadCount
	}
	if patch.TouchUpdated {
		c.LastUpdated = time.Now().UTC()
	}
	m.writes++
	return nil
}

func (m *Memory) DeleteConversation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(m.conversations, id)
	delete(m.messages, id)
	delete(m.lastTS, id)
	m.writes++
	return nil
}

func (m *Memory) QueryConversations(ctx context.Context, q ConversationQuery) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	var out []models.Conversation
	for _, c := range m.conversations {
		if q.Participant != "" && !c.HasParticipant(q.Participant) {
			continue
		}
		if q.Status != "" && c.Status != q.Status {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) AppendMessage(ctx context.Context, convID string, msg *models.Message) (string, error) {
	if err := validateMessage(msg); err != nil {
		return "", err
	}
	m.mu.Lock()
	if _, ok := m.conversations[convID]; !ok {
		m.mu.Unlock()
		return "", ErrNotFound
	}
	stored := *msg
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	stored.ConversationID = convID
	stored.Timestamp = m.nextTimestamp(convID)
	m.messages[convID] = append(m.messages[convID], stored)
	m.writes++
	m.mu.Unlock()

	*msg = stored
	m.hub.broadcast(convID)
	return stored.ID, nil
}

// nextTimestamp assigns the server timestamp, strictly increasing per
// conversation. Caller holds the lock.
func (m *Memory) nextTimestamp(convID string) time.Time {
	ts := time.Now().UTC()
	if last, ok := m.lastTS[convID]; ok && !ts.After(last) {
		ts = last.Add(time.Microsecond)
	}
	m.lastTS[convID] = ts
	return ts
}

func (m *Memory) QueryMessages(ctx context.Context, convID string, q MessageQuery) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.messages[convID] {
		if q.UnreadOnly && msg.Read {
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (m *Memory) MarkMessagesRead(ctx context.Context, convID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	m.mu.Lock()
	msgs := m.messages[convID]
	for i := range msgs {
		if wanted[msgs[i].ID] {
			msgs[i].Read = true
		}
	}
	m.writes++
	m.mu.Unlock()

	m.hub.broadcast(convID)
	return nil
}

func (m *Memory) SubscribeMessages(convID string, onChange func([]models.Message)) func() {
	fetch := func() ([]models.Message, error) {
		return m.QueryMessages(context.Background(), convID, MessageQuery{})
	}
	return m.hub.subscribe(convID, fetch, onChange)
}
