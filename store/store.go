package store

import (
	"context"
	"errors"
	"strings"

	"ShopHub/models"
)

var (
	ErrNotFound        = errors.New("conversation not found")
	ErrInvalidDocument = errors.New("invalid document")
)

// ConversationPatch carries partial-field updates. Nil fields are left
// untouched. TouchUpdated bumps LastUpdated to the server clock.
type ConversationPatch struct {
	Status       *models.ConversationStatus
	LastMessage  *string
	UnreadCount  *int
	TouchUpdated bool
}

type ConversationQuery struct {
	Participant string
	Status      models.ConversationStatus // empty matches any status
	Limit       int
}

type MessageQuery struct {
	UnreadOnly bool
}

// Store is the persistence gateway the chat core talks to. Results of
// QueryConversations come back ordered by last_updated descending, messages
// by timestamp ascending. Message timestamps are server-assigned and strictly
// increasing within a conversation.
type Store interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) (string, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	UpdateConversation(ctx context.Context, id string, patch ConversationPatch) error
	DeleteConversation(ctx context.Context, id string) error
	QueryConversations(ctx context.Context, q ConversationQuery) ([]models.Conversation, error)

	AppendMessage(ctx context.Context, convID string, msg *models.Message) (string, error)
	QueryMessages(ctx context.Context, convID string, q MessageQuery) ([]models.Message, error)
	MarkMessagesRead(ctx context.Context, convID string, ids []string) error

	// SubscribeMessages delivers the current full snapshot immediately and a
	// fresh one after every change to the conversation's messages. The
	// returned cancel is idempotent and safe after the store is closed.
	SubscribeMessages(convID string, onChange func([]models.Message)) (cancel func())
}

func validateConversation(conv *models.Conversation) error {
	if conv.UserID == "" {
		return ErrInvalidDocument
	}
	switch conv.Status {
	case models.StatusOpen, models.StatusClosed, "":
	default:
		return ErrInvalidDocument
	}
	return nil
}

func validateMessage(msg *models.Message) error {
	if msg.SenderID == "" {
		return ErrInvalidDocument
	}
	if strings.TrimSpace(msg.Text) == "" {
		return ErrInvalidDocument
	}
	return nil
}
