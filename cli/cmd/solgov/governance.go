package main

import (
	"context"
	"time"

	"github.com/blueshift-gg/solgov/engine/pkg/tally"
)

func runTally(ctx context.Context, a *app, _ []string) error {
	eng, err := a.engine()
	if err != nil {
		return err
	}
	t, err := eng.Tally(ctx)
	if err != nil {
		return err
	}

	d := t.Decimals
	if d == 0 {
		d = a.cfg.TokenDecimals
	}
	a.printf("yes:           %s (%s%%)\n", tally.FormatTokenAmount(t.Yes, d), tally.FormatPercentage(t.Yes, t.TotalVotes))
	a.printf("no:            %s (%s%%)\n", tally.FormatTokenAmount(t.No, d), tally.FormatPercentage(t.No, t.TotalVotes))
	a.printf("abstain:       %s (%s%%)\n", tally.FormatTokenAmount(t.Abstain, d), tally.FormatPercentage(t.Abstain, t.TotalVotes))
	a.printf("total votes:   %s\n", tally.FormatTokenAmount(t.TotalVotes, d))
	a.printf("supply:        %s\n", tally.FormatTokenAmount(t.TotalSupply, d))
	a.printf("claimed:       %s (%.2f%%)\n", tally.FormatTokenAmount(t.TotalClaimed, d), t.ClaimRate)
	a.printf("participation: %.2f%% (quorum %t)\n", t.ParticipationRate, t.Quorum())
	a.printf("supermajority: %t\n", t.Supermajority())
	if need := t.VotesNeededForQuorum(); need > 0 {
		a.printf("needed:        %s more for quorum\n", tally.FormatTokenAmount(need, d))
	}
	a.printf("outcome:       %s\n", t.Outcome())
	if len(t.Degraded) > 0 {
		a.printf("degraded:      %v\n", t.Degraded)
	}
	return nil
}

func runClock(ctx context.Context, a *app, _ []string) error {
	eng, err := a.engine()
	if err != nil {
		return err
	}
	c, err := eng.Reader.Read(ctx)
	if err != nil {
		return err
	}

	s := eng.Reader.Schedule()
	a.printf("status:    %s\n", c.Status)
	a.printf("epoch:     %d (voting %d-%d)\n", c.CurrentEpoch, s.StartEpoch, s.EndEpoch)
	a.printf("slot:      %d (%d/%d in epoch)\n", c.CurrentSlot, c.SlotIndex, c.SlotsInEpoch)
	if !c.EstimatedEnd.IsZero() {
		a.printf("ends:      %s\n", c.EstimatedEnd.UTC().Format(time.RFC3339))
	}
	a.printf("countdown: %s\n", c.Countdown(c.ObservedAt))
	return nil
}
