package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/IBM/sarama"

	"ShopHub/chat"
)

// ChatEventHandler consumes exported chat events. The operator notification
// worker runs it in a consumer group: customer messages get surfaced to
// whatever paging/alerting channel is hooked into Notify.
type ChatEventHandler struct {
	notify func(ev chat.MessageEvent)
}

func NewChatEventHandler(notify func(ev chat.MessageEvent)) *ChatEventHandler {
	if notify == nil {
		notify = func(ev chat.MessageEvent) {
			log.Printf("New chat message in conversation %s from %s", ev.ConversationID, ev.SenderID)
		}
	}
	return &ChatEventHandler{notify: notify}
}

func (h *ChatEventHandler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	var ev chat.MessageEvent

	if err := json.Unmarshal(message.Value, &ev); err != nil {
		log.Printf("Failed to unmarshal chat event: %v", err)
		return err
	}

	h.notify(ev)
	return nil
}
