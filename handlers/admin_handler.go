package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"ShopHub/chat"
	"ShopHub/models"
	"ShopHub/store"
)

// AdminChatHandler is the operator console: conversation inbox, status
// control, staff replies. Routes behind the admin middleware.
type AdminChatHandler struct {
	store store.Store
}

func NewAdminChatHandler(st store.Store) *AdminChatHandler {
	return &AdminChatHandler{store: st}
}

// ListConversations returns the inbox ordered by freshness, optionally
// filtered by ?status=open|closed.
func (h *AdminChatHandler) ListConversations(c echo.Context) error {
	q := store.ConversationQuery{}
	switch c.QueryParam("status") {
	case "open":
		q.Status = models.StatusOpen
	case "closed":
		q.Status = models.StatusClosed
	case "":
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid status filter",
		})
	}

	convs, err := h.store.QueryConversations(c.Request().Context(), q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch conversations",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversations": convs,
		"total":         len(convs),
	})
}

func (h *AdminChatHandler) GetConversation(c echo.Context) error {
	convID := c.Param("id")

	conv, err := h.store.GetConversation(c.Request().Context(), convID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "conversation not found",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to load conversation",
		})
	}

	msgs, err := h.store.QueryMessages(c.Request().Context(), convID, store.MessageQuery{})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch messages",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversation": conv,
		"messages":     msgs,
	})
}

// UpdateStatus closes or reopens a conversation.
func (h *AdminChatHandler) UpdateStatus(c echo.Context) error {
	convID := c.Param("id")

	var req struct {
		Status models.ConversationStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request",
		})
	}
	if req.Status != models.StatusOpen && req.Status != models.StatusClosed {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "status must be open or closed",
		})
	}

	err := h.store.UpdateConversation(c.Request().Context(), convID, store.ConversationPatch{
		Status:       &req.Status,
		TouchUpdated: true,
	})
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "conversation not found",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to update status",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"id":     convID,
		"status": string(req.Status),
	})
}

// SendReply appends a staff message. Viewing and replying implies the
// operator has caught up, so the customer's pending messages get marked
// read first.
func (h *AdminChatHandler) SendReply(c echo.Context) error {
	convID := c.Param("id")

	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request",
		})
	}

	if _, err := h.store.GetConversation(c.Request().Context(), convID); errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "conversation not found",
		})
	}

	if _, err := chat.MarkReadForOperator(c.Request().Context(), h.store, convID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to update read state",
		})
	}

	msg, err := chat.SendOperatorMessage(c.Request().Context(), h.store, convID, req.Text)
	if errors.Is(err, chat.ErrEmptyMessage) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "message text is required",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to send reply",
		})
	}
	return c.JSON(http.StatusCreated, msg)
}

// MarkRead flips the customer's unread messages and resets the counter.
func (h *AdminChatHandler) MarkRead(c echo.Context) error {
	convID := c.Param("id")

	marked, err := chat.MarkReadForOperator(c.Request().Context(), h.store, convID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to update read state",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"marked": marked,
	})
}

// DeleteConversation removes a conversation and its messages. Administrative
// only; the customer flow never deletes.
func (h *AdminChatHandler) DeleteConversation(c echo.Context) error {
	convID := c.Param("id")

	err := h.store.DeleteConversation(c.Request().Context(), convID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "conversation not found",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to delete conversation",
		})
	}
	return c.NoContent(http.StatusNoContent)
}
