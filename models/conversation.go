package models

import "time"

// Participant sentinels. Every conversation holds exactly two participants:
// the customer's user id and SenderOperator. SenderSystem only ever authors
// messages (the seeded welcome message), it is never a participant.
const (
	SenderOperator = "admin"
	SenderSystem   = "system"
)

type ConversationStatus string

const (
	StatusOpen   ConversationStatus = "open"
	StatusClosed ConversationStatus = "closed"
)

// WelcomeText is the system greeting. It is persisted once as the first
// message of every new conversation and rendered as the degraded display
// whenever no conversation is bound.
const WelcomeText = "👋 Hi there! How can we help you? Send us a message and we'll reply as soon as possible."

type Conversation struct {
	ID     string             `json:"id" gorm:"primaryKey;type:uuid"`
	UserID string             `json:"user_id" gorm:"index"`
	Status ConversationStatus `json:"status" gorm:"index;default:'open'"`
	// Denormalized for admin listing
	LastMessage string `json:"last_message" gorm:"type:text"`
	UserName    string `json:"user_name"`
	UserEmail   string `json:"user_email"`
	// Messages authored by the user and not yet read by the operator.
	// The customer-side badge is never derived from this field.
	UnreadCount int       `json:"unread_count" gorm:"default:0"`
	LastUpdated time.Time `json:"last_updated" gorm:"index"`
	CreatedAt   time.Time `json:"created_at"`
}

// Participants returns the two-element participant set.
func (c *Conversation) Participants() []string {
	return []string{c.UserID, SenderOperator}
}

// HasParticipant reports whether id belongs to the conversation.
func (c *Conversation) HasParticipant(id string) bool {
	return id == c.UserID || id == SenderOperator
}
