package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blueshift-gg/solgov/engine/pkg/metrics"
	"github.com/blueshift-gg/solgov/utils/pkg/retry"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/getsentry/sentry-go"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// RPC is the subset of the solana-go RPC client used by RPCClient.
type RPC interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey, opts *rpc.GetMultipleAccountsOpts) (*rpc.GetMultipleAccountsResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetEpochInfo(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetEpochInfoResult, error)
	SimulateTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts *rpc.SimulateTransactionOpts) (*rpc.SimulateTransactionResponse, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

var _ RPC = (*rpc.Client)(nil)

type RPCClientConfig struct {
	Logger *slog.Logger
	RPC    RPC
	Clock  clockwork.Clock

	Commitment rpc.CommitmentType

	// RateLimit caps outgoing requests per second. Zero disables limiting.
	RateLimit float64

	Retry retry.Config

	ConfirmInterval time.Duration
	ConfirmTimeout  time.Duration
}

func (cfg *RPCClientConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.RPC == nil {
		return errors.New("rpc client is required")
	}
	if cfg.RateLimit < 0 {
		return errors.New("rate limit must not be negative")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.ConfirmInterval <= 0 {
		cfg.ConfirmInterval = time.Second
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 90 * time.Second
	}
	return nil
}

// RPCClient implements Client over a Solana JSON-RPC endpoint with rate
// limiting, retries on transient read failures, metrics and tracing.
type RPCClient struct {
	log     *slog.Logger
	cfg     RPCClientConfig
	limiter *rate.Limiter
}

var _ Client = (*RPCClient)(nil)

// NewRPC returns a solana-go JSON-RPC client for url.
func NewRPC(url string) RPC {
	return rpc.New(url)
}

func NewRPCClient(cfg RPCClientConfig) (*RPCClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &RPCClient{log: cfg.Logger, cfg: cfg}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// call runs fn under the limiter, a tracing span and metrics. Reads are
// retried on transient errors; sends are not.
func (c *RPCClient) call(ctx context.Context, method string, retryable bool, fn func(ctx context.Context) error) error {
	span := sentry.StartSpan(ctx, "ledger.rpc", sentry.WithDescription(method))
	span.SetData("rpc.method", method)
	ctx = span.Context()
	defer span.Finish()

	rcfg := c.cfg.Retry
	rcfg.Retryable = IsTransient
	if !retryable {
		rcfg.MaxAttempts = 1
	}
	rcfg.OnRetry = func(next int, backoff time.Duration, err error) {
		c.log.Warn("ledger: retrying request",
			"method", method,
			"attempt", next,
			"backoff", backoff.String(),
			"type", Classify(err).String(),
			"error", err)
	}

	start := time.Now()
	err := retry.Do(ctx, rcfg, func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		return fn(ctx)
	})
	duration := time.Since(start)

	status := "success"
	switch {
	case err == nil:
		span.Status = sentry.SpanStatusOK
	case isNotFound(err) || errors.Is(err, ErrAccountNotFound):
		status = "not_found"
		span.Status = sentry.SpanStatusNotFound
	default:
		status = "error"
		span.Status = sentry.SpanStatusInternalError
	}
	metrics.LedgerRequestsTotal.WithLabelValues(method, status).Inc()
	metrics.LedgerRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
	c.log.Debug("ledger: request completed", "method", method, "status", status, "duration", duration.String())

	if err != nil && status == "error" {
		return fmt.Errorf("%w: %s: %w", ErrLedgerUnavailable, method, err)
	}
	return err
}

func (c *RPCClient) GetAccount(ctx context.Context, address solana.PublicKey) (*Account, error) {
	var out *rpc.GetAccountInfoResult
	err := c.call(ctx, "getAccountInfo", true, func(ctx context.Context) error {
		var err error
		out, err = c.cfg.RPC.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: c.cfg.Commitment,
		})
		return err
	})
	if isNotFound(err) || (err == nil && (out == nil || out.Value == nil)) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	if err != nil {
		return nil, err
	}
	return convertAccount(address, out.Value), nil
}

func (c *RPCClient) GetMultipleAccounts(ctx context.Context, addresses []solana.PublicKey) ([]*Account, error) {
	var out *rpc.GetMultipleAccountsResult
	err := c.call(ctx, "getMultipleAccounts", true, func(ctx context.Context) error {
		var err error
		out, err = c.cfg.RPC.GetMultipleAccountsWithOpts(ctx, addresses, &rpc.GetMultipleAccountsOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: c.cfg.Commitment,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Value) != len(addresses) {
		got := 0
		if out != nil {
			got = len(out.Value)
		}
		return nil, fmt.Errorf("%w: getMultipleAccounts returned %d accounts for %d addresses", ErrLedgerUnavailable, got, len(addresses))
	}

	accounts := make([]*Account, len(addresses))
	for i, acc := range out.Value {
		if acc != nil {
			accounts[i] = convertAccount(addresses[i], acc)
		}
	}
	return accounts, nil
}

func (c *RPCClient) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var out *rpc.GetLatestBlockhashResult
	err := c.call(ctx, "getLatestBlockhash", true, func(ctx context.Context) error {
		var err error
		out, err = c.cfg.RPC.GetLatestBlockhash(ctx, c.cfg.Commitment)
		return err
	})
	if err != nil {
		return solana.Hash{}, err
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, fmt.Errorf("%w: empty blockhash response", ErrLedgerUnavailable)
	}
	return out.Value.Blockhash, nil
}

func (c *RPCClient) GetEpochInfo(ctx context.Context) (*EpochInfo, error) {
	var out *rpc.GetEpochInfoResult
	err := c.call(ctx, "getEpochInfo", true, func(ctx context.Context) error {
		var err error
		out, err = c.cfg.RPC.GetEpochInfo(ctx, c.cfg.Commitment)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: empty epoch info response", ErrLedgerUnavailable)
	}
	return &EpochInfo{
		Epoch:        out.Epoch,
		AbsoluteSlot: out.AbsoluteSlot,
		SlotIndex:    out.SlotIndex,
		SlotsInEpoch: out.SlotsInEpoch,
	}, nil
}

// Simulate dry-runs tx without signature verification. Unsigned
// transactions are given placeholder signatures so they serialize.
func (c *RPCClient) Simulate(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error) {
	sim := *tx
	if n := int(tx.Message.Header.NumRequiredSignatures); len(sim.Signatures) < n {
		sim.Signatures = make([]solana.Signature, n)
		copy(sim.Signatures, tx.Signatures)
	}

	var out *rpc.SimulateTransactionResponse
	err := c.call(ctx, "simulateTransaction", true, func(ctx context.Context) error {
		var err error
		out, err = c.cfg.RPC.SimulateTransactionWithOpts(ctx, &sim, &rpc.SimulateTransactionOpts{
			SigVerify:  false,
			Commitment: c.cfg.Commitment,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil || out.Value == nil {
		return nil, fmt.Errorf("%w: empty simulation response", ErrLedgerUnavailable)
	}

	res := &SimulationResult{Logs: out.Value.Logs}
	if out.Value.Err != nil {
		res.Err = fmt.Errorf("%v", out.Value.Err)
	}
	if out.Value.UnitsConsumed != nil {
		res.UnitsConsumed = *out.Value.UnitsConsumed
	}
	return res, nil
}

// Send submits a signed transaction once. It never retries: a resend of the
// same signed bytes is the caller's decision.
func (c *RPCClient) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	var sig solana.Signature
	err := c.call(ctx, "sendTransaction", false, func(ctx context.Context) error {
		var err error
		sig, err = c.cfg.RPC.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			PreflightCommitment: c.cfg.Commitment,
		})
		return err
	})
	return sig, err
}

// Confirm polls the signature status until it reaches confirmed commitment.
func (c *RPCClient) Confirm(ctx context.Context, sig solana.Signature) error {
	timeout := c.cfg.Clock.After(c.cfg.ConfirmTimeout)
	ticker := c.cfg.Clock.NewTicker(c.cfg.ConfirmInterval)
	defer ticker.Stop()

	for {
		done, err := c.checkConfirmed(ctx, sig)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("%w: %s after %s", ErrConfirmationTimeout, sig, c.cfg.ConfirmTimeout)
		case <-ticker.Chan():
		}
	}
}

func (c *RPCClient) checkConfirmed(ctx context.Context, sig solana.Signature) (bool, error) {
	var out *rpc.GetSignatureStatusesResult
	err := c.call(ctx, "getSignatureStatuses", true, func(ctx context.Context) error {
		var err error
		out, err = c.cfg.RPC.GetSignatureStatuses(ctx, false, sig)
		return err
	})
	if err != nil {
		// A single failed poll is not fatal; the next tick retries.
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.log.Warn("ledger: signature status poll failed", "signature", sig, "error", err)
		return false, nil
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return false, nil
	}
	status := out.Value[0]
	if status.Err != nil {
		return false, fmt.Errorf("transaction %s failed: %v", sig, status.Err)
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return true, nil
	}
	return false, nil
}

func convertAccount(address solana.PublicKey, acc *rpc.Account) *Account {
	out := &Account{
		Address:  address,
		Owner:    acc.Owner,
		Lamports: acc.Lamports,
	}
	if acc.Data != nil {
		out.Data = acc.Data.GetBinary()
	}
	return out
}
