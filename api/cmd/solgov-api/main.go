package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/blueshift-gg/solgov/api/handlers"
	"github.com/blueshift-gg/solgov/engine/pkg/config"
	"github.com/blueshift-gg/solgov/engine/pkg/engine"
	"github.com/blueshift-gg/solgov/engine/pkg/metrics"
	"github.com/blueshift-gg/solgov/engine/pkg/view"
	"github.com/blueshift-gg/solgov/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultListenAddr = "0.0.0.0:8080"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "address to serve the dashboard API on (or set SOLGOV_API_LISTEN_ADDR env var)")
	rpcURLFlag := flag.String("rpc-url", "", "Solana RPC URL (overrides SOLANA_RPC_URL)")
	manifestFlag := flag.String("manifest", "", "claim manifest path, http(s) URL or s3://bucket/key (overrides SOLGOV_MANIFEST_URL)")
	allowedOriginsFlag := flag.String("allowed-origins", "*", "comma-separated CORS origins (or set SOLGOV_API_ALLOWED_ORIGINS env var)")
	lookupRateFlag := flag.Float64("lookup-rate", float64(handlers.DefaultLookupRate), "per-IP address lookups per second")
	lookupBurstFlag := flag.Int("lookup-burst", handlers.DefaultLookupBurst, "per-IP address lookup burst")
	tallyIntervalFlag := flag.Duration("tally-interval", view.DefaultTallyRefreshInterval, "tally refresh interval")
	clockIntervalFlag := flag.Duration("clock-interval", view.DefaultClockRefreshInterval, "voting clock refresh interval")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", 15*time.Second, "maximum time to wait for in-flight requests during shutdown")

	flag.Parse()

	log := logger.New(*verboseFlag)

	// Override flags with environment variables if set
	if envListenAddr := os.Getenv("SOLGOV_API_LISTEN_ADDR"); envListenAddr != "" {
		*listenAddrFlag = envListenAddr
	}
	if envOrigins := os.Getenv("SOLGOV_API_ALLOWED_ORIGINS"); envOrigins != "" {
		*allowedOriginsFlag = envOrigins
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

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng, err := engine.New(log, cfg, engine.Options{})
	if err != nil {
		return err
	}

	index, err := eng.LoadIndex(ctx)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}
	log.Info("manifest loaded", "source", cfg.ManifestSource, "claimants", index.Len())

	tallyView, err := view.NewTallyView(view.TallyViewConfig{
		Logger:          log,
		Source:          eng.Aggregator,
		Accounts:        eng.TallyAccounts,
		RefreshInterval: *tallyIntervalFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create tally view: %w", err)
	}
	clockView, err := view.NewClockView(view.ClockViewConfig{
		Logger:          log,
		Source:          eng.Reader,
		RefreshInterval: *clockIntervalFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create clock view: %w", err)
	}
	warmCtx, warmCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := view.WarmUp(warmCtx, tallyView, clockView); err != nil {
		log.Warn("views: warm-up failed, serving until the next refresh succeeds", "error", err)
	}
	warmCancel()

	tallyView.Start(ctx)
	clockView.Start(ctx)

	h, err := handlers.New(handlers.Config{
		Logger:   log,
		Tally:    tallyView,
		Clock:    clockView,
		Claims:   eng.Claims,
		Index:    index,
		Schedule: cfg.Schedule,
		Decimals: cfg.TokenDecimals,
		Build:    handlers.BuildInfo{Version: version, Commit: commit, Date: date},
	})
	if err != nil {
		return fmt.Errorf("failed to create handlers: %w", err)
	}

	limiter, err := handlers.NewLookupLimiter(handlers.LookupLimiterConfig{
		Rate:  rate.Limit(*lookupRateFlag),
		Burst: *lookupBurstFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create lookup limiter: %w", err)
	}
	limiter.Start(ctx)

	srv := &http.Server{
		Handler: handlers.NewRouter(h, handlers.RouterConfig{
			AllowedOrigins: splitList(*allowedOriginsFlag),
			LookupLimiter:  limiter,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	listener, err := net.Listen("tcp", *listenAddrFlag)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", *listenAddrFlag, err)
	}
	log.Info("dashboard api listening", "address", listener.Addr().String())

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down dashboard api")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("dashboard api failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), *shutdownTimeoutFlag)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down dashboard api: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
