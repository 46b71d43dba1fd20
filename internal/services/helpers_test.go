package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scheduler-client/internal/kvstore"
	"scheduler-client/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedClock returns a clock that starts at start and only moves when advanced.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newPlanService(t *testing.T) (*StudyPlanService, kvstore.Store, *fixedClock) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	clock := &fixedClock{t: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)}
	svc := NewStudyPlanService(store, discardLogger())
	svc.now = clock.Now
	return svc, store, clock
}

func signIn(t *testing.T, store kvstore.Store) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), kvstore.KeyAccessToken, "opaque-token"))
}

type countingPusher struct {
	mu    sync.Mutex
	calls int
}

func (p *countingPusher) Schedule() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
}

func (p *countingPusher) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type recordingHub struct {
	mu   sync.Mutex
	msgs []models.WSMessage
}

func (h *recordingHub) Broadcast(msg models.WSMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
}

func (h *recordingHub) Statuses() []models.StatusMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.StatusMessage, 0, len(h.msgs))
	for _, m := range h.msgs {
		if s, ok := m.Payload.(models.StatusMessage); ok {
			out = append(out, s)
		}
	}
	return out
}

func seedPlan(t *testing.T, svc *StudyPlanService, sessions ...models.StudySession) {
	t.Helper()
	require.NoError(t, svc.Save(context.Background(), &models.StudyPlan{Sessions: sessions}))
}
