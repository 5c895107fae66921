package models

import "time"

type Message struct {
	ID             string `json:"id" gorm:"primaryKey;type:uuid"`
	ConversationID string `json:"conversation_id" gorm:"index"`
	// User id, SenderOperator or SenderSystem
	SenderID string `json:"sender_id"`
	Text     string `json:"text" gorm:"type:text"`
	// Server-assigned, strictly increasing within a conversation
	Timestamp time.Time `json:"timestamp" gorm:"index"`
	// Flipped by the reading party only
	Read bool `json:"read" gorm:"default:false"`
}

// FromOperatorSide reports whether the message was authored by staff or the
// system, i.e. counts against the customer's unread badge.
func (m *Message) FromOperatorSide() bool {
	return m.SenderID == SenderOperator || m.SenderID == SenderSystem
}
