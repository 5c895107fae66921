package store

import (
	"log"
	"sync"

	"ShopHub/models"
)

// hub fans change notifications out to message subscriptions. Each
// subscription owns one delivery goroutine; a 1-slot dirty channel collapses
// bursts of changes into a single re-query, so callbacks always see the
// freshest snapshot and never pile up.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]*subscription // conversation id -> sub id -> sub
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[int]*subscription)}
}

type subscription struct {
	dirty chan struct{}
	stop  chan struct{}
}

func (h *hub) subscribe(convID string, fetch func() ([]models.Message, error), onChange func([]models.Message)) func() {
	s := &subscription{
		dirty: make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[convID] == nil {
		h.subs[convID] = make(map[int]*subscription)
	}
	h.subs[convID][id] = s
	h.mu.Unlock()

	go s.run(fetch, onChange)
	s.wake() // initial snapshot

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[convID], id)
			if len(h.subs[convID]) == 0 {
				delete(h.subs, convID)
			}
			h.mu.Unlock()
			close(s.stop)
		})
	}
}

// broadcast marks every subscription on the conversation dirty.
func (h *hub) broadcast(convID string) {
	h.mu.Lock()
	for _, s := range h.subs[convID] {
		s.wake()
	}
	h.mu.Unlock()
}

func (s *subscription) wake() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *subscription) run(fetch func() ([]models.Message, error), onChange func([]models.Message)) {
	for {
		select {
		case <-s.stop:
			return
		case <-s.dirty:
			msgs, err := fetch()
			if err != nil {
				log.Printf("subscription fetch failed: %v", err)
				continue
			}
			onChange(msgs)
		}
	}
}
