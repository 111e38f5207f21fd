package main

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/blueshift-gg/solgov/engine/pkg/allocation"
	"github.com/blueshift-gg/solgov/engine/pkg/claim"
	"github.com/blueshift-gg/solgov/engine/pkg/engine"
	"github.com/blueshift-gg/solgov/engine/pkg/tally"
	"github.com/blueshift-gg/solgov/engine/pkg/vote"
	"github.com/gagliardetto/solana-go"
)

type txFlags struct {
	keypair     *string
	dryRun      *bool
	noConfirm   *bool
	priorityFee *uint64
}

func addTxFlags(fs *flag.FlagSet, defaultFee uint64) txFlags {
	return txFlags{
		keypair:     fs.String("keypair", "", "solana-keygen keypair file of the signer"),
		dryRun:      fs.Bool("dry-run", false, "build and simulate only; print the unsigned transaction"),
		noConfirm:   fs.Bool("no-confirm", false, "return after sending without waiting for confirmation"),
		priorityFee: fs.Uint64("priority-fee", defaultFee, "priority fee in micro-lamports per compute unit (0 disables)"),
	}
}

func (f txFlags) signer() (*claim.KeypairSigner, error) {
	if *f.keypair == "" {
		return nil, errors.New("--keypair is required")
	}
	return claim.LoadKeypairSigner(*f.keypair)
}

func runClaim(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("claim", flag.ContinueOnError)
	tf := addTxFlags(fs, a.cfg.PriorityFee)
	verifyFlag := fs.Bool("verify-proof", false, "verify the merkle proof against the manifest root before building")
	if err := fs.Parse(args); err != nil {
		return err
	}
	signer, err := tf.signer()
	if err != nil {
		return err
	}
	claimant := signer.PublicKey()

	eng, err := a.engine()
	if err != nil {
		return err
	}
	index, err := eng.LoadIndex(ctx)
	if err != nil {
		return err
	}
	entry, err := index.Lookup(claimant)
	if errors.Is(err, allocation.ErrNotEligible) {
		a.printf("%s: not eligible\n", claimant)
		return nil
	}
	if err != nil {
		return err
	}

	status, err := eng.Claims.Status(ctx, claimant)
	if err != nil {
		return fmt.Errorf("failed to read claim status: %w", err)
	}
	if status == claim.StatusClaimed {
		a.printf("%s: already claimed\n", claimant)
		return nil
	}

	if *verifyFlag && !allocation.VerifyProof(index.Manifest().MerkleRoot, entry) {
		return fmt.Errorf("merkle proof for %s does not match the manifest root", claimant)
	}

	tx, err := eng.Claims.Build(ctx, claimant, entry, *tf.priorityFee)
	if err != nil {
		return err
	}
	a.printf("claiming %s (%s unlocked, %s locked)\n", claimant,
		tally.FormatTokenAmount(entry.UnlockedTotal(), a.cfg.TokenDecimals),
		tally.FormatTokenAmount(entry.LockedTotal(), a.cfg.TokenDecimals))

	return a.finish(ctx, eng, signer, tx, tf)
}

func runVote(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("vote", flag.ContinueOnError)
	tf := addTxFlags(fs, 0)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("vote: expected <yes|no|abstain> <amount>")
	}
	choice, err := vote.ParseChoice(fs.Arg(0))
	if err != nil {
		return err
	}
	amount, err := vote.ParseAmount(fs.Arg(1), a.cfg.TokenDecimals)
	if err != nil {
		return err
	}
	signer, err := tf.signer()
	if err != nil {
		return err
	}

	eng, err := a.engine()
	if err != nil {
		return err
	}
	tx, err := eng.Votes.Build(ctx, signer.PublicKey(), choice, amount, *tf.priorityFee)
	if err != nil {
		return err
	}
	a.printf("voting %s with %s\n", choice, tally.FormatTokenAmount(amount, a.cfg.TokenDecimals))

	return a.finish(ctx, eng, signer, tx, tf)
}

// finish simulates tx, then either prints it (dry run) or signs, sends and
// optionally waits for confirmation.
func (a *app) finish(ctx context.Context, eng *engine.Engine, signer claim.Signer, tx *solana.Transaction, tf txFlags) error {
	sim := eng.Claims.Simulate(ctx, tx)
	if sim.OK() {
		a.printf("simulation ok (%d compute units)\n", sim.UnitsConsumed)
	} else {
		a.printf("warning: %v\n", sim.Err)
	}

	if *tf.dryRun {
		encoded, err := tx.ToBase64()
		if err != nil {
			return fmt.Errorf("failed to encode transaction: %w", err)
		}
		a.printf("unsigned transaction (base64):\n%s\n", encoded)
		return nil
	}

	sig, err := claim.Submit(ctx, eng.Ledger, signer, tx)
	if err != nil {
		return err
	}
	a.printf("submitted: %s\n", sig)
	if *tf.noConfirm {
		return nil
	}
	if err := eng.Ledger.Confirm(ctx, sig); err != nil {
		return err
	}
	a.printf("confirmed\n")
	return nil
}
