package store

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"ShopHub/models"
)

// changeChannel is the Redis pub/sub channel carrying conversation ids whose
// messages changed. Other instances re-query and push fresh snapshots to
// their local subscribers.
const changeChannel = "shophub:chat:changes"

// Gorm is the Postgres-backed Store. With a Redis client attached, change
// notifications also travel across instances via pub/sub.
type Gorm struct {
	db     *gorm.DB
	rdb    *redis.Client
	hub    *hub
	cancel context.CancelFunc
}

func NewGorm(db *gorm.DB, rdb *redis.Client) *Gorm {
	s := &Gorm{
		db:  db,
		rdb: rdb,
		hub: newHub(),
	}
	if rdb != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go s.relayRemoteChanges(ctx)
	}
	return s
}

// Close stops the Redis relay. Active subscriptions keep working on local
// notifications only.
func (s *Gorm) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Gorm) CreateConversation(ctx context.Context, conv *models.Conversation) (string, error) {
	if err := validateConversation(conv); err != nil {
		return "", err
	}
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	if conv.Status == "" {
		conv.Status = models.StatusOpen
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.LastUpdated = now
	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return "", err
	}
	return conv.ID, nil
}

func (s *Gorm) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *Gorm) UpdateConversation(ctx context.Context, id string, patch ConversationPatch) error {
	fields := map[string]interface{}{}
	if patch.Status != nil {
		fields["status"] = *patch.Status
	}
	if patch.LastMessage != nil {
		fields["last_message"] = *patch.LastMessage
	}
	if patch.UnreadCount != nil {
		fields["unread_count"] = *patch.UnreadCount
	}
	if patch.TouchUpdated {
		fields["last_updated"] = time.Now().UTC()
	}
	if len(fields) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Gorm) DeleteConversation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Message{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Conversation{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *Gorm) QueryConversations(ctx context.Context, q ConversationQuery) ([]models.Conversation, error) {
	query := s.db.WithContext(ctx).Model(&models.Conversation{}).Order("last_updated DESC")
	if q.Participant != "" && q.Participant != models.SenderOperator {
		query = query.Where("user_id = ?", q.Participant)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	var out []models.Conversation
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Gorm) AppendMessage(ctx context.Context, convID string, msg *models.Message) (string, error) {
	if err := validateMessage(msg); err != nil {
		return "", err
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.ConversationID = convID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.First(&conv, "id = ?", convID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		// Server-assigned timestamp, kept strictly increasing within the
		// conversation even when the wall clock stalls.
		ts := time.Now().UTC()
		var last models.Message
		err := tx.Where("conversation_id = ?", convID).Order("timestamp DESC").First(&last).Error
		if err == nil && !ts.After(last.Timestamp) {
			ts = last.Timestamp.Add(time.Microsecond)
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		msg.Timestamp = ts

		return tx.Create(msg).Error
	})
	if err != nil {
		return "", err
	}
	s.notifyChange(convID)
	return msg.ID, nil
}

func (s *Gorm) QueryMessages(ctx context.Context, convID string, q MessageQuery) ([]models.Message, error) {
	query := s.db.WithContext(ctx).Where("conversation_id = ?", convID).Order("timestamp ASC")
	if q.UnreadOnly {
		query = query.Where("read = ?", false)
	}
	var out []models.Message
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Gorm) MarkMessagesRead(ctx context.Context, convID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND id IN ?", convID, ids).
		Update("read", true).Error
	if err != nil {
		return err
	}
	s.notifyChange(convID)
	return nil
}

func (s *Gorm) SubscribeMessages(convID string, onChange func([]models.Message)) func() {
	fetch := func() ([]models.Message, error) {
		return s.QueryMessages(context.Background(), convID, MessageQuery{})
	}
	return s.hub.subscribe(convID, fetch, onChange)
}

func (s *Gorm) notifyChange(convID string) {
	s.hub.broadcast(convID)
	if s.rdb != nil {
		if err := s.rdb.Publish(context.Background(), changeChannel, convID).Err(); err != nil {
			log.Printf("Failed to publish change for conversation %s: %v", convID, err)
		}
	}
}

// relayRemoteChanges wakes local subscribers when another instance writes.
// A redundant wake for our own writes is harmless: subscribers re-query and
// deliver the same snapshot again.
func (s *Gorm) relayRemoteChanges(ctx context.Context) {
	sub := s.rdb.Subscribe(ctx, changeChannel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.hub.broadcast(msg.Payload)
		}
	}
}
