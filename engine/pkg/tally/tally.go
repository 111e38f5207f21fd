package tally

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blueshift-gg/solgov/engine/pkg/ledger"
	"github.com/blueshift-gg/solgov/engine/pkg/metrics"
	"github.com/blueshift-gg/solgov/engine/pkg/pda"
	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
)

type Outcome string

const (
	OutcomePendingQuorum        Outcome = "PENDING_QUORUM"
	OutcomePendingSupermajority Outcome = "PENDING_SUPERMAJORITY"
	OutcomePassing              Outcome = "PASSING"
)

// Accounts are the five addresses read for one tally, in read order.
type Accounts struct {
	Mint           solana.PublicKey
	DistributorATA solana.PublicKey
	YesATA         solana.PublicKey
	NoATA          solana.PublicKey
	AbstainATA     solana.PublicKey
}

func (a Accounts) list() []solana.PublicKey {
	return []solana.PublicKey{a.Mint, a.DistributorATA, a.YesATA, a.NoATA, a.AbstainATA}
}

// AccountsFor derives the distributor and vote bucket token accounts. The
// bucket owners are plain addresses that may be off-curve.
func AccountsFor(program, mint solana.PublicKey, version uint64, yes, no, abstain solana.PublicKey) (Accounts, error) {
	dist, err := pda.Distributor(program, mint, version)
	if err != nil {
		return Accounts{}, fmt.Errorf("failed to derive distributor: %w", err)
	}
	out := Accounts{Mint: mint}
	targets := []struct {
		owner solana.PublicKey
		dst   *solana.PublicKey
	}{
		{dist.Address, &out.DistributorATA},
		{yes, &out.YesATA},
		{no, &out.NoATA},
		{abstain, &out.AbstainATA},
	}
	for _, tgt := range targets {
		ata, err := pda.AssociatedTokenAccount(tgt.owner, mint)
		if err != nil {
			return Accounts{}, fmt.Errorf("failed to derive token account for %s: %w", tgt.owner, err)
		}
		*tgt.dst = ata.Address
	}
	return out, nil
}

// VoteTally is a snapshot of governance statistics. All amounts are base units.
type VoteTally struct {
	Yes                uint64
	No                 uint64
	Abstain            uint64
	TotalVotes         uint64
	TotalSupply        uint64
	TotalClaimed       uint64
	DistributorBalance uint64
	Decimals           uint8

	ParticipationRate float64
	ClaimRate         float64
	LastUpdated       time.Time

	// Degraded names the fields that could not be decoded and read as zero.
	Degraded []string
}

// Balances are the raw inputs to Compute.
type Balances struct {
	Supply      uint64
	Decimals    uint8
	Distributor uint64
	Yes         uint64
	No          uint64
	Abstain     uint64
}

// Compute derives the statistics from raw balances. It has no side effects.
func Compute(b Balances, now time.Time) *VoteTally {
	t := &VoteTally{
		Yes:                b.Yes,
		No:                 b.No,
		Abstain:            b.Abstain,
		TotalVotes:         b.Yes + b.No + b.Abstain,
		TotalSupply:        b.Supply,
		DistributorBalance: b.Distributor,
		Decimals:           b.Decimals,
		LastUpdated:        now,
	}
	if b.Supply > b.Distributor {
		t.TotalClaimed = b.Supply - b.Distributor
	}
	t.ParticipationRate = Percent(t.TotalVotes, t.TotalSupply)
	t.ClaimRate = Percent(t.TotalClaimed, t.TotalSupply)
	return t
}

// Quorum reports participation of at least 33.33% of supply.
func (t *VoteTally) Quorum() bool {
	return reachesQuorum(t.TotalVotes, t.TotalSupply)
}

// Supermajority reports yes/total >= 2/3; false when nobody voted.
func (t *VoteTally) Supermajority() bool {
	return isSupermajority(t.Yes, t.TotalVotes)
}

func (t *VoteTally) Outcome() Outcome {
	switch {
	case !t.Quorum():
		return OutcomePendingQuorum
	case !t.Supermajority():
		return OutcomePendingSupermajority
	default:
		return OutcomePassing
	}
}

// VotesNeededForQuorum is how many more base units must be cast to reach quorum.
func (t *VoteTally) VotesNeededForQuorum() uint64 {
	need := quorumThreshold(t.TotalSupply)
	if t.TotalVotes >= need {
		return 0
	}
	return need - t.TotalVotes
}

func (t *VoteTally) YesPercent() float64     { return Percent(t.Yes, t.TotalVotes) }
func (t *VoteTally) NoPercent() float64      { return Percent(t.No, t.TotalVotes) }
func (t *VoteTally) AbstainPercent() float64 { return Percent(t.Abstain, t.TotalVotes) }

type AggregatorConfig struct {
	Logger *slog.Logger
	Ledger ledger.Client
	Clock  clockwork.Clock
}

func (cfg *AggregatorConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger client is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Aggregator reads the tally accounts in one batched request.
type Aggregator struct {
	log *slog.Logger
	cfg AggregatorConfig
}

func NewAggregator(cfg AggregatorConfig) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{log: cfg.Logger, cfg: cfg}, nil
}

// Tally performs exactly one multi-account read. Accounts that are missing
// or undecodable count as zero and are listed in VoteTally.Degraded; only a
// failure of the read itself is returned.
func (a *Aggregator) Tally(ctx context.Context, accts Accounts) (*VoteTally, error) {
	raw, err := a.cfg.Ledger.GetMultipleAccounts(ctx, accts.list())
	if err != nil {
		return nil, fmt.Errorf("failed to read tally accounts: %w", err)
	}
	if len(raw) != 5 {
		return nil, fmt.Errorf("%w: expected 5 accounts, got %d", ledger.ErrLedgerUnavailable, len(raw))
	}

	var degraded []string
	var b Balances
	if mint, err := ledger.DecodeMint(accountData(raw[0])); err != nil {
		degraded = append(degraded, a.degrade("mint", accts.Mint, err))
	} else {
		b.Supply = mint.Supply
		b.Decimals = mint.Decimals
	}

	amounts := []struct {
		name    string
		address solana.PublicKey
		dst     *uint64
	}{
		{"distributor", accts.DistributorATA, &b.Distributor},
		{"yes", accts.YesATA, &b.Yes},
		{"no", accts.NoATA, &b.No},
		{"abstain", accts.AbstainATA, &b.Abstain},
	}
	for i, amt := range amounts {
		v, err := ledger.DecodeTokenAmount(accountData(raw[i+1]))
		if err != nil {
			degraded = append(degraded, a.degrade(amt.name, amt.address, err))
			continue
		}
		*amt.dst = v
	}

	t := Compute(b, a.cfg.Clock.Now())
	t.Degraded = degraded
	return t, nil
}

func (a *Aggregator) degrade(name string, address solana.PublicKey, err error) string {
	a.log.Warn("tally: account unreadable, counting as zero", "account", name, "address", address, "error", err)
	metrics.AccountDecodeFailures.WithLabelValues(name).Inc()
	return name
}

func accountData(acc *ledger.Account) []byte {
	if acc == nil {
		return nil
	}
	return acc.Data
}
