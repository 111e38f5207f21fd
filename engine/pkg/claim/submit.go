package claim

import (
	"context"
	"fmt"

	"github.com/blueshift-gg/solgov/engine/pkg/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/getsentry/sentry-go"
)

// SimulationResult is advisory: a failed simulation does not stop a claim.
type SimulationResult struct {
	// Err wraps ErrSimulationFailed when the dry run failed or could not run.
	Err           error
	Logs          []string
	UnitsConsumed uint64
}

func (r *SimulationResult) OK() bool {
	return r.Err == nil
}

// Simulate dry-runs tx and logs the outcome. It never returns an error.
func (b *Builder) Simulate(ctx context.Context, tx *solana.Transaction) *SimulationResult {
	res, err := b.cfg.Ledger.Simulate(ctx, tx)
	if err != nil {
		b.log.Warn("claim: simulation could not run", "error", err)
		return &SimulationResult{Err: fmt.Errorf("%w: %w", ErrSimulationFailed, err)}
	}
	out := &SimulationResult{Logs: res.Logs, UnitsConsumed: res.UnitsConsumed}
	if res.Err != nil {
		out.Err = fmt.Errorf("%w: %w", ErrSimulationFailed, res.Err)
		b.log.Warn("claim: simulation failed", "error", res.Err, "logs", res.Logs)
		return out
	}
	b.log.Info("claim: simulation succeeded", "units_consumed", res.UnitsConsumed)
	return out
}

// Submit signs tx with signer and sends it once. Callers must not submit
// concurrently with the same signer; ordering is their responsibility.
func Submit(ctx context.Context, client ledger.Client, signer Signer, tx *solana.Transaction) (solana.Signature, error) {
	signed, err := signer.SignTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: failed to sign: %w", ErrSubmissionFailed, err)
	}
	sig, err := client.Send(ctx, signed)
	if err != nil {
		sentry.CaptureException(err)
		return solana.Signature{}, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	return sig, nil
}
