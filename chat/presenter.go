package chat

import "ShopHub/models"

// Presenter is whatever renders the widget: the WebSocket handler pushes
// these calls to the browser as JSON frames.
type Presenter interface {
	// MessagesChanged delivers the full message snapshot, timestamp ascending.
	MessagesChanged(conversationID string, msgs []models.Message)
	// UnreadCountChanged updates the bubble badge.
	UnreadCountChanged(count int)
	// ShowWelcome reverts the widget to the static greeting.
	ShowWelcome()
	// ShowError surfaces a user-visible failure.
	ShowError(message string)
}

// NopPresenter discards everything. Used where only the storage side effects
// of the manager matter.
type NopPresenter struct{}

func (NopPresenter) MessagesChanged(string, []models.Message) {}
func (NopPresenter) UnreadCountChanged(int)                   {}
func (NopPresenter) ShowWelcome()                             {}
func (NopPresenter) ShowError(string)                         {}
