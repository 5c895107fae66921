package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShopHub/chat"
	"ShopHub/models"
	"ShopHub/store"
)

func adminUser() *models.User {
	return &models.User{
		ID:       2,
		Email:    "staff@example.com",
		Username: "staff",
		Type:     "admin",
		ChatID:   "chat-staff",
	}
}

func TestListConversations(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	h := NewAdminChatHandler(st)

	a := createConversation(t, st, "u1")
	b := createConversation(t, st, "u2")
	closed := models.StatusClosed
	require.NoError(t, st.UpdateConversation(ctx, a.ID, store.ConversationPatch{Status: &closed, TouchUpdated: true}))

	rec := newChatRequest(t, h.ListConversations, http.MethodGet, "/admin/conversations", "", adminUser(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Conversations []models.Conversation `json:"conversations"`
		Total         int                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, a.ID, resp.Conversations[0].ID, "freshest conversation first")

	rec = newChatRequest(t, h.ListConversations, http.MethodGet, "/admin/conversations?status=open", "", adminUser(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, b.ID, resp.Conversations[0].ID)

	rec = newChatRequest(t, h.ListConversations, http.MethodGet, "/admin/conversations?status=archived", "", adminUser(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetConversationWithMessages(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	h := NewAdminChatHandler(st)
	conv := createConversation(t, st, "u1")
	_, err := chat.SendUserMessage(ctx, st, conv.ID, "u1", "help me")
	require.NoError(t, err)

	rec := newChatRequest(t, h.GetConversation, http.MethodGet, "/", "",
		adminUser(), map[string]string{"id": conv.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Conversation models.Conversation `json:"conversation"`
		Messages     []models.Message    `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, conv.ID, resp.Conversation.ID)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "help me", resp.Messages[0].Text)

	rec = newChatRequest(t, h.GetConversation, http.MethodGet, "/", "",
		adminUser(), map[string]string{"id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	h := NewAdminChatHandler(st)
	conv := createConversation(t, st, "u1")

	rec := newChatRequest(t, h.UpdateStatus, http.MethodPut, "/", `{"status":"closed"}`,
		adminUser(), map[string]string{"id": conv.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := st.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, got.Status)

	rec = newChatRequest(t, h.UpdateStatus, http.MethodPut, "/", `{"status":"open"}`,
		adminUser(), map[string]string{"id": conv.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err = st.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, got.Status)

	rec = newChatRequest(t, h.UpdateStatus, http.MethodPut, "/", `{"status":"archived"}`,
		adminUser(), map[string]string{"id": conv.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = newChatRequest(t, h.UpdateStatus, http.MethodPut, "/", `{"status":"closed"}`,
		adminUser(), map[string]string{"id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendReply(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	h := NewAdminChatHandler(st)
	conv := createConversation(t, st, "u1")
	_, err := chat.SendUserMessage(ctx, st, conv.ID, "u1", "anyone home?")
	require.NoError(t, err)

	rec := newChatRequest(t, h.SendReply, http.MethodPost, "/", `{"text":"yes, hello"}`,
		adminUser(), map[string]string{"id": conv.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	var msg models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, models.SenderOperator, msg.SenderID)

	// Replying implies the operator read the customer's messages
	got, err := st.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, got.UnreadCount)
	assert.Equal(t, "yes, hello", got.LastMessage)

	unread, err := st.QueryMessages(ctx, conv.ID, store.MessageQuery{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, models.SenderOperator, unread[0].SenderID)
}

func TestSendReplyEmptyText(t *testing.T) {
	st := store.NewMemory()
	h := NewAdminChatHandler(st)
	conv := createConversation(t, st, "u1")

	rec := newChatRequest(t, h.SendReply, http.MethodPost, "/", `{"text":""}`,
		adminUser(), map[string]string{"id": conv.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminMarkRead(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	h := NewAdminChatHandler(st)
	conv := createConversation(t, st, "u1")
	_, err := chat.SendUserMessage(ctx, st, conv.ID, "u1", "ping")
	require.NoError(t, err)

	rec := newChatRequest(t, h.MarkRead, http.MethodPost, "/", "",
		adminUser(), map[string]string{"id": conv.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Marked int `json:"marked"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Marked)

	got, err := st.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, got.UnreadCount)
}

func TestDeleteConversation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	h := NewAdminChatHandler(st)
	conv := createConversation(t, st, "u1")

	rec := newChatRequest(t, h.DeleteConversation, http.MethodDelete, "/", "",
		adminUser(), map[string]string{"id": conv.ID})
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err := st.GetConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	rec = newChatRequest(t, h.DeleteConversation, http.MethodDelete, "/", "",
		adminUser(), map[string]string{"id": conv.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
