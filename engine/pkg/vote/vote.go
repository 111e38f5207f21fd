// Package vote builds token-transfer transactions that cast governance
// votes. A vote is a transfer of tokens into the chosen bucket's token account.
package vote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blueshift-gg/solgov/engine/pkg/ledger"
	"github.com/blueshift-gg/solgov/engine/pkg/pda"
	"github.com/blueshift-gg/solgov/engine/pkg/txplan"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
)

type Choice string

const (
	ChoiceYes     Choice = "yes"
	ChoiceNo      Choice = "no"
	ChoiceAbstain Choice = "abstain"
)

const (
	StepCreateBucketAccount = "create-bucket-token-account"
	StepTransfer            = "transfer"
	StepPriorityFee         = "priority-fee"
)

var (
	ErrInvalidChoice       = errors.New("invalid vote choice")
	ErrInvalidAmount       = errors.New("invalid vote amount")
	ErrInsufficientBalance = errors.New("insufficient token balance")
)

func ParseChoice(s string) (Choice, error) {
	switch c := Choice(strings.ToLower(strings.TrimSpace(s))); c {
	case ChoiceYes, ChoiceNo, ChoiceAbstain:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q (want yes, no or abstain)", ErrInvalidChoice, s)
	}
}

// Buckets are the owners of the three vote token accounts. They need not be
// on the curve.
type Buckets struct {
	Yes     solana.PublicKey
	No      solana.PublicKey
	Abstain solana.PublicKey
}

func (b Buckets) Owner(c Choice) (solana.PublicKey, error) {
	switch c {
	case ChoiceYes:
		return b.Yes, nil
	case ChoiceNo:
		return b.No, nil
	case ChoiceAbstain:
		return b.Abstain, nil
	default:
		return solana.PublicKey{}, fmt.Errorf("%w: %q", ErrInvalidChoice, c)
	}
}

type BuilderConfig struct {
	Logger  *slog.Logger
	Ledger  ledger.Client
	Mint    solana.PublicKey
	Buckets Buckets
}

func (cfg *BuilderConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger client is required")
	}
	if cfg.Mint.IsZero() {
		return errors.New("mint is required")
	}
	if cfg.Buckets.Yes.IsZero() || cfg.Buckets.No.IsZero() || cfg.Buckets.Abstain.IsZero() {
		return errors.New("vote buckets are required")
	}
	return nil
}

type Builder struct {
	log *slog.Logger
	cfg BuilderConfig
}

func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Builder{log: cfg.Logger, cfg: cfg}, nil
}

// Balance returns the voter's token balance; a missing token account is 0.
func (b *Builder) Balance(ctx context.Context, voter solana.PublicKey) (uint64, error) {
	ata, err := pda.AssociatedTokenAccount(voter, b.cfg.Mint)
	if err != nil {
		return 0, fmt.Errorf("failed to derive voter token account: %w", err)
	}
	acc, err := b.cfg.Ledger.GetAccount(ctx, ata.Address)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read voter token account: %w", err)
	}
	return ledger.DecodeTokenAmount(acc.Data)
}

// Build returns an unsigned transaction moving amount base units from the
// voter's token account to the chosen bucket.
func (b *Builder) Build(ctx context.Context, voter solana.PublicKey, choice Choice, amount, priorityFee uint64) (*solana.Transaction, error) {
	if amount == 0 {
		return nil, fmt.Errorf("%w: must be greater than 0", ErrInvalidAmount)
	}
	owner, err := b.cfg.Buckets.Owner(choice)
	if err != nil {
		return nil, err
	}
	voterATA, err := pda.AssociatedTokenAccount(voter, b.cfg.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive voter token account: %w", err)
	}
	bucketATA, err := pda.AssociatedTokenAccount(owner, b.cfg.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive bucket token account: %w", err)
	}

	balance, err := b.Balance(ctx, voter)
	if err != nil {
		return nil, err
	}
	if amount > balance {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrInsufficientBalance, balance, amount)
	}

	plan := txplan.New()
	_, err = b.cfg.Ledger.GetAccount(ctx, bucketATA.Address)
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		plan.Append(StepCreateBucketAccount, associatedtokenaccount.NewCreateInstruction(voter, owner, b.cfg.Mint).Build())
	case err != nil:
		return nil, fmt.Errorf("failed to probe bucket token account: %w", err)
	}
	plan.Append(StepTransfer, token.NewTransferInstruction(amount, voterATA.Address, bucketATA.Address, voter, nil).Build())
	if priorityFee > 0 {
		plan.Append(StepPriorityFee, computebudget.NewSetComputeUnitPriceInstruction(priorityFee).Build())
	}

	blockhash, err := b.cfg.Ledger.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	tx, err := plan.Transaction(blockhash, voter)
	if err != nil {
		return nil, err
	}
	b.log.Info("vote: transaction built", "voter", voter, "choice", choice, "amount", amount, "steps", plan.Steps())
	return tx, nil
}
