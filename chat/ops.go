package chat

import (
	"context"
	"fmt"
	"strings"

	"ShopHub/models"
	"ShopHub/store"
)

// SendUserMessage appends a customer message and does the conversation
// bookkeeping in one place: last-message denormalization, freshness bump,
// one more unread for the operator, and reopening a closed conversation.
// The counter update is a read-modify-write against the gateway; concurrent
// writers racing on it is an accepted approximation.
func SendUserMessage(ctx context.Context, st store.Store, convID, senderID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	conv, err := st.GetConversation(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	msg := &models.Message{
		SenderID: senderID,
		Text:     text,
		Read:     false,
	}
	if _, err := st.AppendMessage(ctx, convID, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	unread := conv.UnreadCount + 1
	patch := store.ConversationPatch{
		LastMessage:  &text,
		UnreadCount:  &unread,
		TouchUpdated: true,
	}
	if conv.Status == models.StatusClosed {
		open := models.StatusOpen
		patch.Status = &open
	}
	if err := st.UpdateConversation(ctx, convID, patch); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	return msg, nil
}

// MarkReadForUser flips unread operator and system messages to read and
// shrinks the stored counter by the number marked, floored at zero. With
// nothing to mark it performs no writes and returns 0.
func MarkReadForUser(ctx context.Context, st store.Store, convID string) (int, error) {
	unreadMsgs, err := st.QueryMessages(ctx, convID, store.MessageQuery{UnreadOnly: true})
	if err != nil {
		return 0, fmt.Errorf("query unread: %w", err)
	}
	var ids []string
	for _, msg := range unreadMsgs {
		if msg.FromOperatorSide() {
			ids = append(ids, msg.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := st.MarkMessagesRead(ctx, convID, ids); err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}

	unread := 0
	if conv, err := st.GetConversation(ctx, convID); err == nil {
		unread = conv.UnreadCount
	}
	unread -= len(ids)
	if unread < 0 {
		unread = 0
	}
	if err := st.UpdateConversation(ctx, convID, store.ConversationPatch{UnreadCount: &unread}); err != nil {
		return 0, fmt.Errorf("update unread count: %w", err)
	}
	return len(ids), nil
}

// SendOperatorMessage appends a staff reply. The stored counter tracks
// messages the operator has not read, so it stays put; the customer's badge
// comes from the unread message scan on their side.
func SendOperatorMessage(ctx context.Context, st store.Store, convID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	msg := &models.Message{
		SenderID: models.SenderOperator,
		Text:     text,
		Read:     false,
	}
	if _, err := st.AppendMessage(ctx, convID, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	if err := st.UpdateConversation(ctx, convID, store.ConversationPatch{
		LastMessage:  &text,
		TouchUpdated: true,
	}); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	return msg, nil
}

// MarkReadForOperator flips the customer's unread messages and resets the
// stored counter. No-op when the operator is already caught up.
func MarkReadForOperator(ctx context.Context, st store.Store, convID string) (int, error) {
	unreadMsgs, err := st.QueryMessages(ctx, convID, store.MessageQuery{UnreadOnly: true})
	if err != nil {
		return 0, fmt.Errorf("query unread: %w", err)
	}
	var ids []string
	for _, msg := range unreadMsgs {
		if !msg.FromOperatorSide() {
			ids = append(ids, msg.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := st.MarkMessagesRead(ctx, convID, ids); err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	zero := 0
	if err := st.UpdateConversation(ctx, convID, store.ConversationPatch{UnreadCount: &zero}); err != nil {
		return 0, fmt.Errorf("reset unread count: %w", err)
	}
	return len(ids), nil
}
