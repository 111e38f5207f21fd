package main

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/blueshift-gg/solgov/engine/pkg/allocation"
	"github.com/blueshift-gg/solgov/engine/pkg/tally"
)

func singleArg(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: expected exactly one address", name)
	}
	return fs.Arg(0), nil
}

func runCheck(ctx context.Context, a *app, args []string) error {
	input, err := singleArg("check", args)
	if err != nil {
		return err
	}
	eng, err := a.engine()
	if err != nil {
		return err
	}
	index, err := eng.LoadIndex(ctx)
	if err != nil {
		return err
	}

	e, err := allocation.CheckEligibility(index, input)
	if err != nil {
		return err
	}
	if !e.Eligible {
		a.printf("%s: not eligible\n", e.Address)
		return nil
	}

	d := a.cfg.TokenDecimals
	a.printf("%s: eligible\n", e.Address)
	a.printf("  unlocked: %s\n", tally.FormatTokenAmount(e.Unlocked, d))
	a.printf("  locked:   %s\n", tally.FormatTokenAmount(e.Locked, d))
	a.printf("  total:    %s\n", tally.FormatTokenAmount(e.Total, d))
	return nil
}

func runStatus(ctx context.Context, a *app, args []string) error {
	input, err := singleArg("status", args)
	if err != nil {
		return err
	}
	address, err := allocation.ParseAddress(input)
	if err != nil {
		return err
	}
	eng, err := a.engine()
	if err != nil {
		return err
	}
	status, err := eng.Claims.Status(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to read claim status: %w", err)
	}
	a.printf("%s: %s\n", address, status)
	return nil
}

func runSplitManifest(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("split-manifest", flag.ContinueOnError)
	outFlag := fs.String("out", "", "output directory")
	concurrencyFlag := fs.Int("concurrency", 16, "maximum concurrent file writes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *outFlag == "" {
		return errors.New("split-manifest: --out is required")
	}

	eng, err := a.engine()
	if err != nil {
		return err
	}
	index, err := eng.LoadIndex(ctx)
	if err != nil {
		return err
	}
	n, err := allocation.Split(ctx, index.Manifest(), *outFlag, *concurrencyFlag)
	if err != nil {
		return err
	}
	a.printf("wrote %d claim files to %s\n", n, *outFlag)
	return nil
}
