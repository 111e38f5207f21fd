// Package view keeps the latest tally and voting clock in memory for the
// dashboard, refreshed on independent tickers.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blueshift-gg/solgov/engine/pkg/metrics"
	"github.com/blueshift-gg/solgov/engine/pkg/tally"
	"github.com/getsentry/sentry-go"
	"github.com/jonboulle/clockwork"
)

const DefaultTallyRefreshInterval = 15 * time.Second

// TallySource is satisfied by *tally.Aggregator.
type TallySource interface {
	Tally(ctx context.Context, accts tally.Accounts) (*tally.VoteTally, error)
}

type TallyViewConfig struct {
	Logger          *slog.Logger
	Clock           clockwork.Clock
	Source          TallySource
	Accounts        tally.Accounts
	RefreshInterval time.Duration
}

func (cfg *TallyViewConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Source == nil {
		return errors.New("tally source is required")
	}
	if cfg.Accounts.Mint.IsZero() {
		return errors.New("tally accounts are required")
	}
	if cfg.RefreshInterval < 0 {
		return errors.New("refresh interval must not be negative")
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = DefaultTallyRefreshInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

type TallyView struct {
	log       *slog.Logger
	cfg       TallyViewConfig
	refreshMu sync.Mutex

	mu       sync.RWMutex
	snapshot *tally.VoteTally

	readyOnce sync.Once
	readyCh   chan struct{}
}

func NewTallyView(cfg TallyViewConfig) (*TallyView, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TallyView{
		log:     cfg.Logger,
		cfg:     cfg,
		readyCh: make(chan struct{}),
	}, nil
}

func (v *TallyView) Ready() bool {
	select {
	case <-v.readyCh:
		return true
	default:
		return false
	}
}

func (v *TallyView) WaitReady(ctx context.Context) error {
	select {
	case <-v.readyCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for tally view: %w", ctx.Err())
	}
}

// Snapshot returns the latest tally, or nil before the first refresh.
func (v *TallyView) Snapshot() *tally.VoteTally {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshot
}

func (v *TallyView) Start(ctx context.Context) {
	go func() {
		v.log.Info("tally: starting refresh loop", "interval", v.cfg.RefreshInterval)

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

func (v *TallyView) safeRefresh(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("tally: refresh panicked", "panic", r)
			metrics.ViewRefreshTotal.WithLabelValues("tally", "panic").Inc()
		}
	}()

	if err := v.Refresh(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		v.log.Error("tally: refresh failed", "error", err)
		sentry.CaptureException(err)
	}
}

// Refresh reads a new tally. On failure the previous snapshot is kept; if
// there is none yet an all-zero tally is published so readers see zeros
// rather than nothing.
func (v *TallyView) Refresh(ctx context.Context) error {
	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()

	refreshStart := time.Now()
	defer func() {
		metrics.ViewRefreshDuration.WithLabelValues("tally").Observe(time.Since(refreshStart).Seconds())
	}()

	t, err := v.cfg.Source.Tally(ctx, v.cfg.Accounts)
	if err != nil {
		metrics.ViewRefreshTotal.WithLabelValues("tally", "error").Inc()
		v.mu.Lock()
		if v.snapshot == nil {
			zero := tally.Compute(tally.Balances{}, v.cfg.Clock.Now())
			zero.Degraded = []string{"batch"}
			v.snapshot = zero
		}
		v.mu.Unlock()
		return fmt.Errorf("failed to refresh tally: %w", err)
	}

	v.mu.Lock()
	v.snapshot = t
	v.mu.Unlock()

	metrics.TallyVotes.WithLabelValues("yes").Set(float64(t.Yes))
	metrics.TallyVotes.WithLabelValues("no").Set(float64(t.No))
	metrics.TallyVotes.WithLabelValues("abstain").Set(float64(t.Abstain))
	metrics.TallyParticipationPercent.Set(t.ParticipationRate)
	metrics.TallyClaimPercent.Set(t.ClaimRate)
	metrics.ViewRefreshTotal.WithLabelValues("tally", "success").Inc()

	v.log.Debug("tally: refresh completed", "total_votes", t.TotalVotes, "participation", t.ParticipationRate, "outcome", t.Outcome(), "degraded", len(t.Degraded))

	v.readyOnce.Do(func() {
		close(v.readyCh)
		v.log.Info("tally: view is now ready")
	})
	return nil
}
