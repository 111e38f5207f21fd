package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/blueshift-gg/solgov/engine/pkg/config"
	"github.com/blueshift-gg/solgov/engine/pkg/engine"
	"github.com/blueshift-gg/solgov/engine/pkg/ledger"
	"github.com/blueshift-gg/solgov/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type command struct {
	usage   string
	summary string
	run     func(ctx context.Context, app *app, args []string) error
}

var commands = map[string]command{
	"check":          {"check <address>", "show an address's allocation", runCheck},
	"status":         {"status <address>", "show whether an address has claimed", runStatus},
	"claim":          {"claim --keypair <file>", "build, simulate and submit a claim", runClaim},
	"vote":           {"vote --keypair <file> <yes|no|abstain> <amount>", "cast a vote by token transfer", runVote},
	"tally":          {"tally", "print the current vote tally", runTally},
	"clock":          {"clock", "print the voting clock", runClock},
	"split-manifest": {"split-manifest --out <dir>", "write one claim file per claimant", runSplitManifest},
	"version":        {"version", "print build information", runVersion},
}

// app carries what every command needs. The engine and ledger client are
// built on first use so offline commands never touch the network.
type app struct {
	log *slog.Logger
	cfg *config.Config
	out io.Writer

	ledger ledger.Client
	eng    *engine.Engine
}

func (a *app) engine() (*engine.Engine, error) {
	if a.eng != nil {
		return a.eng, nil
	}
	eng, err := engine.New(a.log, a.cfg, engine.Options{Ledger: a.ledger})
	if err != nil {
		return nil, err
	}
	a.eng = eng
	return eng, nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, nil)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, client ledger.Client) error {
	fs := flag.NewFlagSet("solgov", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(out)
	verboseFlag := fs.Bool("verbose", false, "enable verbose (debug) logging")
	rpcURLFlag := fs.String("rpc-url", "", "Solana RPC URL (overrides SOLANA_RPC_URL)")
	manifestFlag := fs.String("manifest", "", "claim manifest path, http(s) URL or s3://bucket/key (overrides SOLGOV_MANIFEST_URL)")
	envFileFlag := fs.String("env-file", ".env", "optional .env file to load before reading the environment")
	fs.Usage = func() { usage(out, fs) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("no command given")
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fs.Usage()
		return fmt.Errorf("unknown command %q", name)
	}

	if err := config.LoadDotEnv(*envFileFlag); err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *rpcURLFlag != "" {
		cfg.RPCURL = *rpcURLFlag
	}
	if *manifestFlag != "" {
		cfg.ManifestSource = *manifestFlag
	}

	flush, err := engine.InitSentry(cfg, version)
	if err != nil {
		return err
	}
	defer flush()

	a := &app{
		log:    logger.New(*verboseFlag),
		cfg:    cfg,
		out:    out,
		ledger: client,
	}
	return cmd.run(ctx, a, fs.Args()[1:])
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "Usage: solgov [global flags] <command> [flags]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-50s %s\n", commands[name].usage, commands[name].summary)
	}
	fmt.Fprintf(w, "\nGlobal flags:\n%s", fs.FlagUsages())
}

func runVersion(_ context.Context, a *app, _ []string) error {
	a.printf("solgov %s (commit %s, built %s)\n", version, commit, date)
	return nil
}
