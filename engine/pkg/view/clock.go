package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blueshift-gg/solgov/engine/pkg/metrics"
	"github.com/blueshift-gg/solgov/engine/pkg/votingclock"
	"github.com/getsentry/sentry-go"
	"github.com/jonboulle/clockwork"
)

const DefaultClockRefreshInterval = 30 * time.Second

// ClockSource is satisfied by *votingclock.Reader.
type ClockSource interface {
	Read(ctx context.Context) (*votingclock.Clock, error)
}

type ClockViewConfig struct {
	Logger          *slog.Logger
	Clock           clockwork.Clock
	Source          ClockSource
	RefreshInterval time.Duration
}

func (cfg *ClockViewConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Source == nil {
		return errors.New("clock source is required")
	}
	if cfg.RefreshInterval < 0 {
		return errors.New("refresh interval must not be negative")
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = DefaultClockRefreshInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

type ClockView struct {
	log       *slog.Logger
	cfg       ClockViewConfig
	refreshMu sync.Mutex

	mu       sync.RWMutex
	snapshot *votingclock.Clock

	readyOnce sync.Once
	readyCh   chan struct{}
}

func NewClockView(cfg ClockViewConfig) (*ClockView, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ClockView{
		log:     cfg.Logger,
		cfg:     cfg,
		readyCh: make(chan struct{}),
	}, nil
}

func (v *ClockView) Ready() bool {
	select {
	case <-v.readyCh:
		return true
	default:
		return false
	}
}

func (v *ClockView) WaitReady(ctx context.Context) error {
	select {
	case <-v.readyCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for clock view: %w", ctx.Err())
	}
}

// Snapshot returns the latest clock, or nil before the first refresh.
func (v *ClockView) Snapshot() *votingclock.Clock {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshot
}

// Now is the view's notion of the current time, for countdowns.
func (v *ClockView) Now() time.Time {
	return v.cfg.Clock.Now()
}

func (v *ClockView) Start(ctx context.Context) {
	go func() {
		v.log.Info("votingclock: starting refresh loop", "interval", v.cfg.RefreshInterval)

		v.safeRefresh(ctx)

		ticker := v.cfg.Clock.NewTicker(v.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				v.safeRefresh(ctx)
			}
		}
	}()
}

func (v *ClockView) safeRefresh(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("votingclock: refresh panicked", "panic", r)
			metrics.ViewRefreshTotal.WithLabelValues("clock", "panic").Inc()
		}
	}()

	if err := v.Refresh(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		v.log.Error("votingclock: refresh failed", "error", err)
		sentry.CaptureException(err)
	}
}

func (v *ClockView) Refresh(ctx context.Context) error {
	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()

	refreshStart := time.Now()
	defer func() {
		metrics.ViewRefreshDuration.WithLabelValues("clock").Observe(time.Since(refreshStart).Seconds())
	}()

	c, err := v.cfg.Source.Read(ctx)
	if err != nil {
		metrics.ViewRefreshTotal.WithLabelValues("clock", "error").Inc()
		return fmt.Errorf("failed to refresh voting clock: %w", err)
	}

	v.mu.Lock()
	v.snapshot = c
	v.mu.Unlock()

	metrics.VotingEpoch.Set(float64(c.CurrentEpoch))
	metrics.VotingSecondsRemaining.Set(c.Remaining(v.cfg.Clock.Now()).Seconds())
	metrics.ViewRefreshTotal.WithLabelValues("clock", "success").Inc()

	v.readyOnce.Do(func() {
		close(v.readyCh)
		v.log.Info("votingclock: view is now ready")
	})
	return nil
}
