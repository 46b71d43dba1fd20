package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"scheduler-client/internal/models"
	"scheduler-client/internal/services"
)

// Syncer is the cloud side the scheduler drives.
type Syncer interface {
	Push(ctx context.Context) error
	Pull(ctx context.Context) (services.PullResult, error)
}

// SyncScheduler runs cloud pushes a fixed delay after each local mutation and
// pulls on start and, optionally, on an interval. Scheduled pushes are not
// coalesced or cancelled: rapid mutations produce overlapping pushes.
type SyncScheduler struct {
	syncer       Syncer
	pushDelay    time.Duration
	pullInterval time.Duration
	log          *slog.Logger

	pushes     atomic.Int64
	pulls      atomic.Int64
	failures   atomic.Int64
	lastSyncMs atomic.Int64

	mu       sync.Mutex
	stopped  bool
	inflight sync.WaitGroup
	stopChan chan struct{}
}

func NewSyncScheduler(syncer Syncer, pushDelay, pullInterval time.Duration, log *slog.Logger) *SyncScheduler {
	return &SyncScheduler{
		syncer:       syncer,
		pushDelay:    pushDelay,
		pullInterval: pullInterval,
		log:          log,
		stopChan:     make(chan struct{}),
	}
}

// Schedule queues one push after the push delay.
func (s *SyncScheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	s.inflight.Add(1)
	time.AfterFunc(s.pushDelay, func() {
		defer s.inflight.Done()
		s.Push(context.Background())
	})
}

// Push runs one push now and records the outcome.
func (s *SyncScheduler) Push(ctx context.Context) error {
	if err := s.syncer.Push(ctx); err != nil {
		s.failures.Add(1)
		return err
	}
	s.pushes.Add(1)
	s.lastSyncMs.Store(time.Now().UnixMilli())
	return nil
}

// Pull runs one pull now and records the outcome.
func (s *SyncScheduler) Pull(ctx context.Context) (services.PullResult, error) {
	result, err := s.syncer.Pull(ctx)
	if err != nil {
		s.failures.Add(1)
		return result, err
	}
	if result != services.PullSkipped {
		s.pulls.Add(1)
		s.lastSyncMs.Store(time.Now().UnixMilli())
	}
	return result, nil
}

func (s *SyncScheduler) Start() {
	go s.loop()
	s.log.Info("sync scheduler started",
		slog.Duration("push_delay", s.pushDelay),
		slog.Duration("pull_interval", s.pullInterval))
}

// Stop ends the pull loop and waits for already scheduled pushes to finish.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopChan)
	s.mu.Unlock()

	s.inflight.Wait()
}

func (s *SyncScheduler) loop() {
	s.pullOnce()

	if s.pullInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.pullOnce()
		}
	}
}

func (s *SyncScheduler) pullOnce() {
	result, err := s.Pull(context.Background())
	if err != nil {
		s.log.Warn("cloud pull failed", slog.Any("error", err))
		return
	}
	s.log.Debug("cloud pull finished", slog.String("result", string(result)))
}

func (s *SyncScheduler) Stats(authenticated bool) models.SyncStats {
	stats := models.SyncStats{
		Pushes:        s.pushes.Load(),
		Pulls:         s.pulls.Load(),
		Failures:      s.failures.Load(),
		Authenticated: authenticated,
	}
	if ms := s.lastSyncMs.Load(); ms > 0 {
		t := time.UnixMilli(ms).UTC()
		stats.LastSyncAt = &t
	}
	return stats
}
