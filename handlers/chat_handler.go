package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"ShopHub/chat"
	"ShopHub/models"
	"ShopHub/session"
	"ShopHub/store"
)

// ChatHandler is the stateless REST surface of the widget, for clients that
// don't hold a WebSocket open. The same resolver and send/mark-read
// semantics as the live widget, minus the push subscription.
type ChatHandler struct {
	store    store.Store
	sessions *session.Manager
	events   chat.EventSink
}

func NewChatHandler(st store.Store, sessions *session.Manager, events chat.EventSink) *ChatHandler {
	return &ChatHandler{store: st, sessions: sessions, events: events}
}

// deviceID scopes session continuity to the caller's device. The widget
// sends a generated id; without one the user's chat id keeps at least
// per-user continuity.
func deviceID(c echo.Context, user *models.User) string {
	if id := c.Request().Header.Get("X-Device-ID"); id != "" {
		return id
	}
	if cookie, err := c.Cookie("shophub_device"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return user.ChatID
}

func identityOf(user *models.User) chat.Identity {
	return chat.Identity{
		ID:    user.ChatID,
		Email: user.Email,
		Name:  user.Username,
	}
}

// ResolveSession binds the caller to their active conversation, creating one
// when nothing can be resumed.
func (h *ChatHandler) ResolveSession(c echo.Context) error {
	user := c.Get("user").(*models.User)

	resolver := chat.NewResolver(h.store, h.sessions.ForDevice(deviceID(c, user)))
	conv, err := resolver.Resolve(c.Request().Context(), identityOf(user))
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "chat is unavailable right now",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversation": conv,
	})
}

func (h *ChatHandler) GetMessages(c echo.Context) error {
	user := c.Get("user").(*models.User)
	convID := c.Param("id")

	conv, err := h.loadOwned(c, convID, user)
	if conv == nil {
		return err
	}

	msgs, err := h.store.QueryMessages(c.Request().Context(), convID, store.MessageQuery{})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch messages",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversation_id": convID,
		"messages":        msgs,
	})
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	user := c.Get("user").(*models.User)
	convID := c.Param("id")

	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request",
		})
	}

	conv, err := h.loadOwned(c, convID, user)
	if conv == nil {
		return err
	}

	msg, err := chat.SendUserMessage(c.Request().Context(), h.store, convID, user.ChatID, req.Text)
	if errors.Is(err, chat.ErrEmptyMessage) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "message text is required",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to send message",
		})
	}

	if h.events != nil {
		h.events.MessageSent(chat.MessageEvent{
			ConversationID: convID,
			SenderID:       user.ChatID,
			Text:           msg.Text,
			Timestamp:      msg.Timestamp,
		})
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *ChatHandler) MarkRead(c echo.Context) error {
	user := c.Get("user").(*models.User)
	convID := c.Param("id")

	conv, err := h.loadOwned(c, convID, user)
	if conv == nil {
		return err
	}

	marked, err := chat.MarkReadForUser(c.Request().Context(), h.store, convID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to update read state",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"marked": marked,
	})
}

// loadOwned fetches the conversation and enforces that the caller is a
// participant. On failure it writes the response and returns a nil
// conversation together with the written error.
func (h *ChatHandler) loadOwned(c echo.Context, convID string, user *models.User) (*models.Conversation, error) {
	conv, err := h.store.GetConversation(c.Request().Context(), convID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, c.JSON(http.StatusNotFound, map[string]string{
			"error": "conversation not found",
		})
	}
	if err != nil {
		return nil, c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to load conversation",
		})
	}
	if !conv.HasParticipant(user.ChatID) {
		return nil, c.JSON(http.StatusForbidden, map[string]string{
			"error": "not a participant",
		})
	}
	return conv, nil
}
