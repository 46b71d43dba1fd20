package services

import (
	"sync"
	"time"

	"scheduler-client/internal/models"
)

// Broadcaster fans a message out to connected UI clients.
type Broadcaster interface {
	Broadcast(msg models.WSMessage)
}

// StatusBoard holds the one transient status line shown to the user. Each
// message clears itself after clearAfter unless a newer one replaced it.
type StatusBoard struct {
	mu         sync.Mutex
	current    models.StatusMessage
	generation uint64
	clearAfter time.Duration
	hub        Broadcaster
	now        func() time.Time
}

func NewStatusBoard(hub Broadcaster, clearAfter time.Duration) *StatusBoard {
	return &StatusBoard{
		hub:        hub,
		clearAfter: clearAfter,
		now:        time.Now,
	}
}

func (b *StatusBoard) Post(level models.StatusLevel, text string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.generation++
	gen := b.generation
	b.current = models.StatusMessage{Level: level, Text: text, At: b.now().UTC()}
	msg := b.current
	b.mu.Unlock()

	b.publish(msg)

	time.AfterFunc(b.clearAfter, func() { b.clear(gen) })
}

func (b *StatusBoard) Current() models.StatusMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *StatusBoard) clear(gen uint64) {
	b.mu.Lock()
	if gen != b.generation {
		b.mu.Unlock()
		return
	}
	b.current = models.StatusMessage{Level: models.StatusInfo, At: b.now().UTC()}
	msg := b.current
	b.mu.Unlock()

	b.publish(msg)
}

func (b *StatusBoard) publish(msg models.StatusMessage) {
	if b.hub == nil {
		return
	}
	b.hub.Broadcast(models.WSMessage{Type: "status", Payload: msg})
}
