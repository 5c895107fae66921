package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"ShopHub/chat"
	"ShopHub/models"
	"ShopHub/session"
	"ShopHub/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Frame is the wire envelope in both directions.
type Frame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type inboundFrame struct {
	Type    string `json:"type"`
	Payload struct {
		Text string `json:"text"`
	} `json:"payload"`
}

// WidgetClient is one connected chat widget. It implements chat.Presenter:
// lifecycle callbacks become JSON frames queued onto the send channel.
type WidgetClient struct {
	ID      string
	UserID  string
	Conn    *websocket.Conn
	Send    chan Frame
	manager *chat.Manager
	ctx     context.Context
	cancel  context.CancelFunc
}

func (cl *WidgetClient) MessagesChanged(conversationID string, msgs []models.Message) {
	cl.enqueue(Frame{Type: "messages", Payload: map[string]interface{}{
		"conversation_id": conversationID,
		"messages":        msgs,
	}})
}

func (cl *WidgetClient) UnreadCountChanged(count int) {
	cl.enqueue(Frame{Type: "unread", Payload: map[string]interface{}{
		"count": count,
	}})
}

func (cl *WidgetClient) ShowWelcome() {
	cl.enqueue(Frame{Type: "welcome", Payload: map[string]interface{}{
		"text": models.WelcomeText,
	}})
}

func (cl *WidgetClient) ShowError(message string) {
	cl.enqueue(Frame{Type: "error", Payload: map[string]interface{}{
		"message": message,
	}})
}

func (cl *WidgetClient) enqueue(f Frame) {
	select {
	case cl.Send <- f:
	default:
		log.Printf("Widget client %s send buffer full, dropping frame %s", cl.ID, f.Type)
	}
}

// ChatWebSocketHandler serves the live widget connection: one goroutine pair
// per client, one lifecycle manager per connection.
type ChatWebSocketHandler struct {
	store    store.Store
	sessions *session.Manager
	events   chat.EventSink
}

func NewChatWebSocketHandler(st store.Store, sessions *session.Manager, events chat.EventSink) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{store: st, sessions: sessions, events: events}
}

func (h *ChatWebSocketHandler) HandleWidget(c echo.Context) error {
	user := c.Get("user").(*models.User)
	sessStore := h.sessions.ForDevice(deviceID(c, user))

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &WidgetClient{
		ID:     uuid.New().String(),
		UserID: user.ChatID,
		Conn:   ws,
		Send:   make(chan Frame, 256),
		ctx:    ctx,
		cancel: cancel,
	}
	client.manager = chat.NewManager(h.store, sessStore, client, h.events)

	go h.writePump(client)

	// Connecting is the identity-acquired event: resolve and bind
	ident := identityOf(user)
	client.manager.SetIdentity(ctx, &ident)

	h.readPump(client)

	return nil
}

func (h *ChatWebSocketHandler) readPump(client *WidgetClient) {
	defer func() {
		client.cancel()
		client.manager.Shutdown()
		client.Conn.Close()
	}()

	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var frame inboundFrame
		err := client.Conn.ReadJSON(&frame)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		h.handleFrame(client, frame)
	}
}

func (h *ChatWebSocketHandler) handleFrame(client *WidgetClient, frame inboundFrame) {
	switch frame.Type {
	case "send":
		if err := client.manager.Send(client.ctx, frame.Payload.Text); err != nil {
			client.ShowError(sendErrorMessage(err))
		}
	case "open":
		client.manager.Open(client.ctx)
	case "close":
		client.manager.Close()
	case "mark_read":
		if err := client.manager.MarkMessagesAsRead(client.ctx); err != nil {
			log.Printf("Mark read failed for client %s: %v", client.ID, err)
		}
	}
}

func sendErrorMessage(err error) string {
	switch err {
	case chat.ErrEmptyMessage:
		return "message text is required"
	case chat.ErrNotAuthenticated:
		return "please sign in to use the chat"
	case chat.ErrNoConversation:
		return "could not start a chat, please try again"
	default:
		return "failed to send message, please try again"
	}
}

func (h *ChatWebSocketHandler) writePump(client *WidgetClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case <-client.ctx.Done():
			return

		case frame, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Conn.WriteJSON(frame); err != nil {
				log.Printf("WriteJSON error: %v", err)
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
