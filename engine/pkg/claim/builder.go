package claim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blueshift-gg/solgov/engine/pkg/allocation"
	"github.com/blueshift-gg/solgov/engine/pkg/codec"
	"github.com/blueshift-gg/solgov/engine/pkg/ledger"
	"github.com/blueshift-gg/solgov/engine/pkg/metrics"
	"github.com/blueshift-gg/solgov/engine/pkg/pda"
	"github.com/blueshift-gg/solgov/engine/pkg/txplan"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
)

const DefaultComputeUnitLimit = 300_000

// Step names, in execution order.
const (
	StepComputeUnitLimit = "compute-unit-limit"
	StepCreateTokenAcct  = "create-claimant-token-account"
	StepClaim            = "claim"
	StepPriorityFee      = "priority-fee"
)

var (
	ErrNilEntry         = errors.New("allocation entry is required")
	ErrClaimantMismatch = errors.New("allocation entry belongs to a different claimant")
	ErrSimulationFailed = errors.New("simulation failed")
	ErrSubmissionFailed = errors.New("submission failed")
)

type BuilderConfig struct {
	Logger    *slog.Logger
	Ledger    ledger.Client
	ProgramID solana.PublicKey
	Mint      solana.PublicKey
	Version   uint64

	ComputeUnitLimit uint32
}

func (cfg *BuilderConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger client is required")
	}
	if cfg.ProgramID.IsZero() {
		return errors.New("program id is required")
	}
	if cfg.Mint.IsZero() {
		return errors.New("mint is required")
	}
	if cfg.ComputeUnitLimit == 0 {
		cfg.ComputeUnitLimit = DefaultComputeUnitLimit
	}
	return nil
}

// Builder assembles claim transactions for one distributor.
type Builder struct {
	log            *slog.Logger
	cfg            BuilderConfig
	distributor    solana.PublicKey
	distributorATA solana.PublicKey
}

func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dist, err := pda.Distributor(cfg.ProgramID, cfg.Mint, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to derive distributor: %w", err)
	}
	distATA, err := pda.AssociatedTokenAccount(dist.Address, cfg.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive distributor token account: %w", err)
	}
	return &Builder{
		log:            cfg.Logger,
		cfg:            cfg,
		distributor:    dist.Address,
		distributorATA: distATA.Address,
	}, nil
}

func (b *Builder) Distributor() solana.PublicKey {
	return b.distributor
}

func (b *Builder) DistributorTokenAccount() solana.PublicKey {
	return b.distributorATA
}

// Accounts are the addresses a claim touches for one claimant.
type Accounts struct {
	Distributor    solana.PublicKey
	ClaimStatus    solana.PublicKey
	DistributorATA solana.PublicKey
	ClaimantATA    solana.PublicKey
	Claimant       solana.PublicKey
}

func (b *Builder) AccountsFor(claimant solana.PublicKey) (*Accounts, error) {
	status, err := pda.ClaimStatus(b.cfg.ProgramID, claimant, b.distributor)
	if err != nil {
		return nil, fmt.Errorf("failed to derive claim status: %w", err)
	}
	ata, err := pda.AssociatedTokenAccount(claimant, b.cfg.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive claimant token account: %w", err)
	}
	return &Accounts{
		Distributor:    b.distributor,
		ClaimStatus:    status.Address,
		DistributorATA: b.distributorATA,
		ClaimantATA:    ata.Address,
		Claimant:       claimant,
	}, nil
}

// Build returns an unsigned claim transaction paid by the claimant.
func (b *Builder) Build(ctx context.Context, claimant solana.PublicKey, entry *allocation.Entry, priorityFee uint64) (*solana.Transaction, error) {
	plan, err := b.Plan(ctx, claimant, entry, priorityFee)
	if err != nil {
		metrics.ClaimTransactionsBuilt.WithLabelValues("error").Inc()
		return nil, err
	}
	blockhash, err := b.cfg.Ledger.GetLatestBlockhash(ctx)
	if err != nil {
		metrics.ClaimTransactionsBuilt.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	tx, err := plan.Transaction(blockhash, claimant)
	if err != nil {
		metrics.ClaimTransactionsBuilt.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ClaimTransactionsBuilt.WithLabelValues("success").Inc()
	b.log.Info("claim: transaction built",
		"claimant", claimant,
		"steps", plan.Steps(),
		"unlocked", entry.UnlockedTotal(),
		"locked", entry.LockedTotal())
	return tx, nil
}

// Plan lays out the claim steps without fetching a blockhash. Input
// validation happens before any ledger read.
func (b *Builder) Plan(ctx context.Context, claimant solana.PublicKey, entry *allocation.Entry, priorityFee uint64) (*txplan.Plan, error) {
	if entry == nil {
		return nil, ErrNilEntry
	}
	if entry.Claimant != claimant {
		return nil, fmt.Errorf("%w: entry %s, claimant %s", ErrClaimantMismatch, entry.Claimant, claimant)
	}
	payload, err := codec.NewClaimInstruction(entry.UnlockedTotal(), entry.LockedTotal(), entry.Proof)
	if err != nil {
		return nil, err
	}
	data, err := payload.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode claim instruction: %w", err)
	}
	accts, err := b.AccountsFor(claimant)
	if err != nil {
		return nil, err
	}

	plan := txplan.New().Append(StepComputeUnitLimit, computebudget.NewSetComputeUnitLimitInstruction(b.cfg.ComputeUnitLimit).Build())

	_, err = b.cfg.Ledger.GetAccount(ctx, accts.ClaimantATA)
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		plan.Append(StepCreateTokenAcct, associatedtokenaccount.NewCreateInstruction(claimant, claimant, b.cfg.Mint).Build())
	case err != nil:
		return nil, fmt.Errorf("failed to probe claimant token account: %w", err)
	}

	plan.Append(StepClaim, solana.NewInstruction(b.cfg.ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(accts.Distributor, true, false),
		solana.NewAccountMeta(accts.ClaimStatus, true, false),
		solana.NewAccountMeta(accts.DistributorATA, true, false),
		solana.NewAccountMeta(accts.ClaimantATA, true, false),
		solana.NewAccountMeta(accts.Claimant, true, true),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data))

	if priorityFee > 0 {
		plan.Append(StepPriorityFee, computebudget.NewSetComputeUnitPriceInstruction(priorityFee).Build())
	}
	return plan, nil
}
