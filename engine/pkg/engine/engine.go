// Package engine wires the claim, vote, tally and clock components over one
// ledger client for the binaries.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blueshift-gg/solgov/engine/pkg/allocation"
	"github.com/blueshift-gg/solgov/engine/pkg/claim"
	"github.com/blueshift-gg/solgov/engine/pkg/config"
	"github.com/blueshift-gg/solgov/engine/pkg/ledger"
	"github.com/blueshift-gg/solgov/engine/pkg/tally"
	"github.com/blueshift-gg/solgov/engine/pkg/vote"
	"github.com/blueshift-gg/solgov/engine/pkg/votingclock"
	"github.com/getsentry/sentry-go"
	"github.com/jonboulle/clockwork"
)

type Engine struct {
	Log    *slog.Logger
	Config *config.Config
	Ledger ledger.Client

	Claims     *claim.Builder
	Votes      *vote.Builder
	Aggregator *tally.Aggregator
	Reader     *votingclock.Reader

	TallyAccounts tally.Accounts
}

type Options struct {
	// Ledger overrides the RPC client built from Config.RPCURL.
	Ledger ledger.Client
	Clock  clockwork.Clock
}

func New(log *slog.Logger, cfg *config.Config, opts Options) (*Engine, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	client := opts.Ledger
	if client == nil {
		rpcClient, err := ledger.NewRPCClient(ledger.RPCClientConfig{
			Logger:    log,
			RPC:       ledger.NewRPC(cfg.RPCURL),
			Clock:     opts.Clock,
			RateLimit: cfg.RPCRateLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ledger client: %w", err)
		}
		client = rpcClient
	}

	claims, err := claim.NewBuilder(claim.BuilderConfig{
		Logger:    log,
		Ledger:    client,
		ProgramID: cfg.ProgramID,
		Mint:      cfg.Mint,
		Version:   cfg.AirdropVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create claim builder: %w", err)
	}
	votes, err := vote.NewBuilder(vote.BuilderConfig{
		Logger:  log,
		Ledger:  client,
		Mint:    cfg.Mint,
		Buckets: cfg.VoteBuckets(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vote builder: %w", err)
	}
	aggregator, err := tally.NewAggregator(tally.AggregatorConfig{Logger: log, Ledger: client, Clock: opts.Clock})
	if err != nil {
		return nil, fmt.Errorf("failed to create tally aggregator: %w", err)
	}
	reader, err := votingclock.NewReader(votingclock.ReaderConfig{
		Logger:   log,
		Ledger:   client,
		Clock:    opts.Clock,
		Schedule: cfg.Schedule,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create voting clock reader: %w", err)
	}
	accts, err := cfg.TallyAccounts()
	if err != nil {
		return nil, fmt.Errorf("failed to derive tally accounts: %w", err)
	}

	return &Engine{
		Log:           log,
		Config:        cfg,
		Ledger:        client,
		Claims:        claims,
		Votes:         votes,
		Aggregator:    aggregator,
		Reader:        reader,
		TallyAccounts: accts,
	}, nil
}

// LoadIndex loads the configured manifest and indexes it by claimant.
func (e *Engine) LoadIndex(ctx context.Context) (*allocation.Index, error) {
	loader, err := allocation.NewLoader(allocation.LoaderConfig{Logger: e.Log})
	if err != nil {
		return nil, err
	}
	m, err := loader.Load(ctx, e.Config.ManifestSource)
	if err != nil {
		return nil, err
	}
	return allocation.NewIndex(m)
}

// Tally reads the current tally.
func (e *Engine) Tally(ctx context.Context) (*tally.VoteTally, error) {
	return e.Aggregator.Tally(ctx, e.TallyAccounts)
}

// InitSentry configures error reporting when a DSN is set. The returned
// flush func is safe to call either way.
func InitSentry(cfg *config.Config, release string) (func(), error) {
	if cfg.SentryDSN == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		Release:          release,
		EnableTracing:    true,
		TracesSampleRate: 0.1,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}
