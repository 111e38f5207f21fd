// Package handlers serves the read-only dashboard API over the engine's
// in-memory views. Nothing here signs or submits transactions.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/blueshift-gg/solgov/api/metrics"
	"github.com/blueshift-gg/solgov/engine/pkg/allocation"
	"github.com/blueshift-gg/solgov/engine/pkg/claim"
	"github.com/blueshift-gg/solgov/engine/pkg/ledger"
	"github.com/blueshift-gg/solgov/engine/pkg/tally"
	"github.com/blueshift-gg/solgov/engine/pkg/votingclock"
	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
)

// TallySnapshots is satisfied by *view.TallyView.
type TallySnapshots interface {
	Snapshot() *tally.VoteTally
	Ready() bool
}

// ClockSnapshots is satisfied by *view.ClockView.
type ClockSnapshots interface {
	Snapshot() *votingclock.Clock
	Now() time.Time
	Ready() bool
}

// ClaimStatuses is satisfied by *claim.Builder.
type ClaimStatuses interface {
	Status(ctx context.Context, claimant solana.PublicKey) (claim.Status, error)
}

type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

type Config struct {
	Logger   *slog.Logger
	Tally    TallySnapshots
	Clock    ClockSnapshots
	Claims   ClaimStatuses
	Index    *allocation.Index
	Schedule votingclock.Schedule
	Decimals uint8
	Build    BuildInfo
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Tally == nil {
		return errors.New("tally view is required")
	}
	if cfg.Clock == nil {
		return errors.New("clock view is required")
	}
	if cfg.Claims == nil {
		return errors.New("claim status reader is required")
	}
	if cfg.Index == nil {
		return errors.New("allocation index is required")
	}
	return nil
}

type Handlers struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Handlers, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Handlers{log: cfg.Logger, cfg: cfg}, nil
}

// TokenAmount carries base units alongside the display string.
type TokenAmount struct {
	Raw       uint64 `json:"raw"`
	Formatted string `json:"formatted"`
}

func (h *Handlers) amount(v uint64) TokenAmount {
	return TokenAmount{Raw: v, Formatted: tally.FormatTokenAmount(v, h.cfg.Decimals)}
}

type TallyResponse struct {
	Yes                  TokenAmount   `json:"yes"`
	No                   TokenAmount   `json:"no"`
	Abstain              TokenAmount   `json:"abstain"`
	TotalVotes           TokenAmount   `json:"total_votes"`
	TotalSupply          TokenAmount   `json:"total_supply"`
	TotalClaimed         TokenAmount   `json:"total_claimed"`
	DistributorBalance   TokenAmount   `json:"distributor_balance"`
	VotesNeededForQuorum TokenAmount   `json:"votes_needed_for_quorum"`
	YesPercent           float64       `json:"yes_percent"`
	NoPercent            float64       `json:"no_percent"`
	AbstainPercent       float64       `json:"abstain_percent"`
	ParticipationRate    float64       `json:"participation_rate"`
	ClaimRate            float64       `json:"claim_rate"`
	Quorum               bool          `json:"quorum"`
	Supermajority        bool          `json:"supermajority"`
	Outcome              tally.Outcome `json:"outcome"`
	Degraded             []string      `json:"degraded,omitempty"`
	LastUpdated          time.Time     `json:"last_updated"`
}

// GetTally returns the latest vote tally.
func (h *Handlers) GetTally(w http.ResponseWriter, r *http.Request) {
	t := h.cfg.Tally.Snapshot()
	if t == nil {
		http.Error(w, "Tally not yet available", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, TallyResponse{
		Yes:                  h.amount(t.Yes),
		No:                   h.amount(t.No),
		Abstain:              h.amount(t.Abstain),
		TotalVotes:           h.amount(t.TotalVotes),
		TotalSupply:          h.amount(t.TotalSupply),
		TotalClaimed:         h.amount(t.TotalClaimed),
		DistributorBalance:   h.amount(t.DistributorBalance),
		VotesNeededForQuorum: h.amount(t.VotesNeededForQuorum()),
		YesPercent:           t.YesPercent(),
		NoPercent:            t.NoPercent(),
		AbstainPercent:       t.AbstainPercent(),
		ParticipationRate:    t.ParticipationRate,
		ClaimRate:            t.ClaimRate,
		Quorum:               t.Quorum(),
		Supermajority:        t.Supermajority(),
		Outcome:              t.Outcome(),
		Degraded:             t.Degraded,
		LastUpdated:          t.LastUpdated,
	})
}

type ClockResponse struct {
	Status           votingclock.Status `json:"status"`
	CurrentEpoch     uint64             `json:"current_epoch"`
	CurrentSlot      uint64             `json:"current_slot"`
	SlotIndex        uint64             `json:"slot_index"`
	SlotsInEpoch     uint64             `json:"slots_in_epoch"`
	StartEpoch       uint64             `json:"start_epoch"`
	EndEpoch         uint64             `json:"end_epoch"`
	EstimatedEnd     *time.Time         `json:"estimated_end,omitempty"`
	SecondsRemaining int64              `json:"seconds_remaining"`
	Countdown        string             `json:"countdown"`
	ObservedAt       time.Time          `json:"observed_at"`
}

// GetClock returns the voting clock re-anchored to the current time.
func (h *Handlers) GetClock(w http.ResponseWriter, r *http.Request) {
	c := h.cfg.Clock.Snapshot()
	if c == nil {
		http.Error(w, "Voting clock not yet available", http.StatusServiceUnavailable)
		return
	}

	now := h.cfg.Clock.Now()
	resp := ClockResponse{
		Status:           c.Status,
		CurrentEpoch:     c.CurrentEpoch,
		CurrentSlot:      c.CurrentSlot,
		SlotIndex:        c.SlotIndex,
		SlotsInEpoch:     c.SlotsInEpoch,
		StartEpoch:       h.cfg.Schedule.StartEpoch,
		EndEpoch:         h.cfg.Schedule.EndEpoch,
		SecondsRemaining: int64(c.Remaining(now).Seconds()),
		Countdown:        c.Countdown(now),
		ObservedAt:       c.ObservedAt,
	}
	if !c.EstimatedEnd.IsZero() {
		end := c.EstimatedEnd
		resp.EstimatedEnd = &end
	}
	writeJSON(w, resp)
}

type VotingPowerResponse struct {
	Percent     float64 `json:"percent"`
	Significant bool    `json:"significant"`
}

type EligibilityResponse struct {
	Address     string               `json:"address"`
	Eligible    bool                 `json:"eligible"`
	Unlocked    TokenAmount          `json:"unlocked"`
	Locked      TokenAmount          `json:"locked"`
	Total       TokenAmount          `json:"total"`
	VotingPower *VotingPowerResponse `json:"voting_power,omitempty"`
}

// GetEligibility looks an address up in the allocation manifest. An address
// without an allocation is a 200 with eligible=false.
func (h *Handlers) GetEligibility(w http.ResponseWriter, r *http.Request) {
	e, err := allocation.CheckEligibility(h.cfg.Index, chi.URLParam(r, "address"))
	if err != nil {
		metrics.RecordLookup("eligibility", "invalid")
		http.Error(w, "Invalid address", http.StatusBadRequest)
		return
	}

	resp := EligibilityResponse{
		Address:  e.Address.String(),
		Eligible: e.Eligible,
		Unlocked: h.amount(e.Unlocked),
		Locked:   h.amount(e.Locked),
		Total:    h.amount(e.Total),
	}
	if !e.Eligible {
		metrics.RecordLookup("eligibility", "not_eligible")
		writeJSON(w, resp)
		return
	}

	metrics.RecordLookup("eligibility", "eligible")
	if t := h.cfg.Tally.Snapshot(); t != nil && t.TotalSupply > 0 {
		p := tally.PowerOf(e.Total, t.TotalSupply)
		resp.VotingPower = &VotingPowerResponse{Percent: p.Percent, Significant: p.Significant}
	}
	writeJSON(w, resp)
}

type ClaimStatusResponse struct {
	Address string       `json:"address"`
	Status  claim.Status `json:"status"`
}

// GetClaimStatus reports whether an address has claimed its allocation.
func (h *Handlers) GetClaimStatus(w http.ResponseWriter, r *http.Request) {
	address, err := allocation.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		metrics.RecordLookup("claim_status", "invalid")
		http.Error(w, "Invalid address", http.StatusBadRequest)
		return
	}

	status, err := h.cfg.Claims.Status(r.Context(), address)
	if err != nil {
		metrics.RecordLookup("claim_status", "error")
		h.log.Warn("api: claim status lookup failed", "address", address, "error", err)
		http.Error(w, userMessage(err), http.StatusServiceUnavailable)
		return
	}

	metrics.RecordLookup("claim_status", status.String())
	writeJSON(w, ClaimStatusResponse{Address: address.String(), Status: status})
}

// Healthz reports process liveness.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyResponse struct {
	Ready bool `json:"ready"`
	Tally bool `json:"tally"`
	Clock bool `json:"clock"`
}

// Readyz is 200 once both views have completed a refresh.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Tally: h.cfg.Tally.Ready(), Clock: h.cfg.Clock.Ready()}
	resp.Ready = resp.Tally && resp.Clock
	if !resp.Ready {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(resp)
		return
	}
	writeJSON(w, resp)
}

// GetVersion returns the build version info.
func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.cfg.Build)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// userMessage returns a user-friendly message for a ledger failure.
func userMessage(err error) string {
	switch ledger.Classify(err) {
	case ledger.ErrorTypeConnectivity, ledger.ErrorTypeNodeUnhealthy:
		return "Ledger temporarily unavailable. Please try again in a moment."
	case ledger.ErrorTypeTimeout:
		return "Request timed out. Please try again."
	case ledger.ErrorTypeRateLimited:
		return "Ledger is rate limiting requests. Please try again shortly."
	default:
		return "An unexpected error occurred. Please try again."
	}
}
