// Package chat owns the support-chat core: resolving which conversation a
// customer should continue in, and the lifecycle of the bound conversation
// (status transitions, unread bookkeeping, real-time message sync).
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"ShopHub/models"
	"ShopHub/session"
	"ShopHub/store"
)

var (
	ErrEmptyMessage     = errors.New("message text is empty")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoConversation   = errors.New("no conversation bound")
)

// Identity is the authenticated customer as the chat core sees it.
type Identity struct {
	ID    string
	Email string
	Name  string
}

// Resolver picks exactly one conversation for a customer, preferring
// continuity over creating duplicates. Lookup tiers, first match wins:
// remembered session, most recent open conversation, recent conversation of
// any status (reactivated), fresh conversation. Query failures in the middle
// tiers are swallowed so resolution always degrades toward creation.
type Resolver struct {
	store    store.Store
	sessions session.Store
}

func NewResolver(st store.Store, sessions session.Store) *Resolver {
	return &Resolver{store: st, sessions: sessions}
}

func (r *Resolver) Resolve(ctx context.Context, user Identity) (*models.Conversation, error) {
	if conv := r.fromPreviousSession(ctx, user); conv != nil {
		return conv, nil
	}

	if conv := r.fromOpenLookup(ctx, user); conv != nil {
		return conv, nil
	}

	if conv := r.fromRecentFallback(ctx, user); conv != nil {
		return conv, nil
	}

	return r.create(ctx, user)
}

// fromPreviousSession validates the remembered conversation id. A stale
// entry (gone, or belonging to someone else) is cleared; transient read
// failures leave it in place for next time.
func (r *Resolver) fromPreviousSession(ctx context.Context, user Identity) *models.Conversation {
	id, ok := r.sessions.Load()
	if !ok {
		return nil
	}
	conv, err := r.store.GetConversation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		r.sessions.Clear()
		return nil
	}
	if err != nil {
		log.Printf("Previous session lookup failed for %s: %v", id, err)
		return nil
	}
	if !conv.HasParticipant(user.ID) {
		r.sessions.Clear()
		return nil
	}
	if err := r.reactivate(ctx, conv); err != nil {
		log.Printf("Failed to reactivate conversation %s: %v", conv.ID, err)
		return nil
	}
	return conv
}

func (r *Resolver) fromOpenLookup(ctx context.Context, user Identity) *models.Conversation {
	convs, err := r.store.QueryConversations(ctx, store.ConversationQuery{
		Participant: user.ID,
		Status:      models.StatusOpen,
		Limit:       1,
	})
	if err != nil {
		// Missing index or capability, treat as empty and keep going
		log.Printf("Open-conversation lookup failed for %s: %v", user.ID, err)
		return nil
	}
	if len(convs) == 0 {
		return nil
	}
	conv := convs[0]
	r.sessions.Save(conv.ID)
	return &conv
}

// fromRecentFallback inspects the three most recent conversations regardless
// of status, preferring one the operator still owes a reply on.
func (r *Resolver) fromRecentFallback(ctx context.Context, user Identity) *models.Conversation {
	convs, err := r.store.QueryConversations(ctx, store.ConversationQuery{
		Participant: user.ID,
		Limit:       3,
	})
	if err != nil {
		log.Printf("Recent-conversation lookup failed for %s: %v", user.ID, err)
		return nil
	}
	if len(convs) == 0 {
		return nil
	}
	picked := convs[0]
	for _, c := range convs {
		if c.UnreadCount > 0 {
			picked = c
			break
		}
	}
	if err := r.reactivate(ctx, &picked); err != nil {
		log.Printf("Failed to reactivate conversation %s: %v", picked.ID, err)
		return nil
	}
	r.sessions.Save(picked.ID)
	return &picked
}

// reactivate flips a closed conversation back to open. Already-open
// conversations are left untouched, so repeated resolution never issues
// redundant writes.
func (r *Resolver) reactivate(ctx context.Context, conv *models.Conversation) error {
	if conv.Status != models.StatusClosed {
		return nil
	}
	open := models.StatusOpen
	err := r.store.UpdateConversation(ctx, conv.ID, store.ConversationPatch{
		Status:       &open,
		TouchUpdated: true,
	})
	if err != nil {
		return err
	}
	conv.Status = models.StatusOpen
	return nil
}

// create is the guaranteed-success tier: a fresh open conversation seeded
// with the unread system welcome message.
func (r *Resolver) create(ctx context.Context, user Identity) (*models.Conversation, error) {
	name := user.Name
	if name == "" {
		name = strings.SplitN(user.Email, "@", 2)[0]
	}
	conv := &models.Conversation{
		UserID:      user.ID,
		Status:      models.StatusOpen,
		LastMessage: models.WelcomeText,
		UserName:    name,
		UserEmail:   user.Email,
		UnreadCount: 0,
	}
	if _, err := r.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	welcome := &models.Message{
		SenderID: models.SenderSystem,
		Text:     models.WelcomeText,
		Read:     false,
	}
	if _, err := r.store.AppendMessage(ctx, conv.ID, welcome); err != nil {
		return nil, fmt.Errorf("seed welcome message: %w", err)
	}

	r.sessions.Save(conv.ID)
	return conv, nil
}
