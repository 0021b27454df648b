package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// SequencerConfig tunes the readiness task.
type SequencerConfig struct {
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	SiblingGrace    time.Duration
}

// Sequencer brings an engine up once the host map is ready: it polls readiness with
// backoff, draws the persisted tags, registers handlers and, after a grace period
// that lets the sibling plugin finish its own setup, links the sibling.
type Sequencer struct {
	engine *Engine
	cfg    SequencerConfig
	logger *slog.Logger

	start sync.Once
	ready chan struct{}
	done  chan struct{}
	err   error
}

// NewSequencer creates a sequencer for e.
func NewSequencer(e *Engine, cfg SequencerConfig) *Sequencer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Sequencer{
		engine: e,
		cfg:    cfg,
		logger: slog.With("component", "sequencer"),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the readiness task. Later calls do nothing. Cancelling ctx stops
// the task; once the engine is installed, cancellation only skips the sibling link.
func (s *Sequencer) Start(ctx context.Context) {
	s.start.Do(func() {
		go s.run(ctx)
	})
}

// Ready is closed when the engine is fully installed.
func (s *Sequencer) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed when the readiness task has finished, successfully or not.
func (s *Sequencer) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the engine is installed, the task fails or ctx is done.
func (s *Sequencer) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-s.done:
		select {
		case <-s.ready:
			return nil
		default:
			return s.err
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sequencer) run(ctx context.Context) {
	defer close(s.done)

	if err := s.waitForHost(ctx); err != nil {
		s.err = err
		s.logger.Warn("Readiness task stopped", "error", err)
		return
	}

	if s.cfg.SiblingGrace > 0 {
		timer := time.NewTimer(s.cfg.SiblingGrace)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.err = ctx.Err()
			s.logger.Warn("Readiness task stopped before sibling link", "error", s.err)
			return
		case <-timer.C:
		}
	}
	s.engine.installBridge()

	close(s.ready)
	s.logger.Info("Engine installed")
}

func (s *Sequencer) waitForHost(ctx context.Context) error {
	b := newBackoff(s.cfg.PollInterval, s.cfg.MaxPollInterval)
	for attempt := 1; ; attempt++ {
		if s.engine.host.Ready() {
			err := s.engine.install()
			if err == nil {
				s.logger.Info("Host map ready", "attempts", attempt)
				return nil
			}
			if !errors.Is(err, ErrNotReady) {
				return err
			}
		}

		delay := b.Next()
		s.logger.Debug("Host map not ready, retrying", "attempt", attempt, "delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
