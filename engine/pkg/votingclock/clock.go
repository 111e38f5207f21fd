// Package votingclock estimates when an epoch-bounded voting period ends.
//
// The ledger only exposes epochs and slots, so the deadline is an estimate:
// remaining slots times a nominal slot time, anchored to the moment the
// epoch was observed. Each refresh re-anchors it.
package votingclock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blueshift-gg/solgov/engine/pkg/ledger"
	"github.com/jonboulle/clockwork"
)

type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusActive     Status = "ACTIVE"
	StatusEnded      Status = "ENDED"
)

const (
	DefaultSlotTime      = 400 * time.Millisecond
	DefaultSlotsPerEpoch = 432_000
)

// Schedule is the static voting window. Voting runs through the end of EndEpoch.
type Schedule struct {
	StartEpoch    uint64
	EndEpoch      uint64
	SlotTime      time.Duration
	SlotsPerEpoch uint64
}

func (s *Schedule) Validate() error {
	if s.EndEpoch < s.StartEpoch {
		return errors.New("end epoch must not precede start epoch")
	}
	if s.SlotTime <= 0 {
		return errors.New("slot time must be greater than 0")
	}
	if s.SlotsPerEpoch == 0 {
		return errors.New("slots per epoch must be greater than 0")
	}
	return nil
}

// Params is one observation of the ledger plus the schedule.
type Params struct {
	CurrentEpoch uint64
	CurrentSlot  uint64
	SlotIndex    uint64
	SlotsInEpoch uint64
	Schedule
}

// Clock is the derived voting clock. EstimatedEnd is zero once ended.
type Clock struct {
	CurrentEpoch uint64
	CurrentSlot  uint64
	SlotsInEpoch uint64
	SlotIndex    uint64
	EstimatedEnd time.Time
	Status       Status
	ObservedAt   time.Time
}

// EstimateEnd derives the status and deadline from one observation. A
// period that has not started still gets an end estimate for display.
func EstimateEnd(now time.Time, p Params) Clock {
	c := Clock{
		CurrentEpoch: p.CurrentEpoch,
		CurrentSlot:  p.CurrentSlot,
		SlotsInEpoch: p.SlotsInEpoch,
		SlotIndex:    p.SlotIndex,
		ObservedAt:   now,
	}
	if p.CurrentEpoch > p.EndEpoch {
		c.Status = StatusEnded
		return c
	}

	c.Status = StatusActive
	if p.CurrentEpoch < p.StartEpoch {
		c.Status = StatusNotStarted
	}

	var inEpoch uint64
	if p.SlotsInEpoch > p.SlotIndex {
		inEpoch = p.SlotsInEpoch - p.SlotIndex
	}
	remaining := (p.EndEpoch-p.CurrentEpoch)*p.SlotsPerEpoch + inEpoch
	c.EstimatedEnd = now.Add(time.Duration(remaining) * p.SlotTime)
	return c
}

// Remaining is the time left at now, never negative.
func (c *Clock) Remaining(now time.Time) time.Duration {
	if c.Status == StatusEnded || c.EstimatedEnd.IsZero() {
		return 0
	}
	if d := c.EstimatedEnd.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Countdown renders the remaining time as "1d 2h 3m 4s", dropping leading
// zero units, or "NOT STARTED" / "ENDED".
func (c *Clock) Countdown(now time.Time) string {
	if c.Status == StatusNotStarted {
		return "NOT STARTED"
	}
	d := c.Remaining(now)
	if d <= 0 {
		return "ENDED"
	}
	return FormatDuration(d)
}

func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

type ReaderConfig struct {
	Logger   *slog.Logger
	Ledger   ledger.Client
	Clock    clockwork.Clock
	Schedule Schedule
}

func (cfg *ReaderConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger client is required")
	}
	if err := cfg.Schedule.Validate(); err != nil {
		return err
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Reader observes the ledger epoch and produces a fresh Clock.
type Reader struct {
	log *slog.Logger
	cfg ReaderConfig
}

func NewReader(cfg ReaderConfig) (*Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Reader{log: cfg.Logger, cfg: cfg}, nil
}

func (r *Reader) Schedule() Schedule {
	return r.cfg.Schedule
}

// Read fetches epoch info and anchors the estimate to the current time.
func (r *Reader) Read(ctx context.Context) (*Clock, error) {
	info, err := r.cfg.Ledger.GetEpochInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get epoch info: %w", err)
	}
	c := EstimateEnd(r.cfg.Clock.Now(), Params{
		CurrentEpoch: info.Epoch,
		CurrentSlot:  info.AbsoluteSlot,
		SlotIndex:    info.SlotIndex,
		SlotsInEpoch: info.SlotsInEpoch,
		Schedule:     r.cfg.Schedule,
	})
	r.log.Debug("votingclock: epoch observed", "epoch", c.CurrentEpoch, "slot_index", c.SlotIndex, "status", c.Status)
	return &c, nil
}
