package allocation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

const defaultSplitConcurrency = 16

// ClaimFile is the per-claimant document served to wallets that do not
// want to download the full manifest.
type ClaimFile struct {
	Claimant        byteArray   `json:"claimant"`
	ClaimantAddress string      `json:"claimant_address"`
	Proof           []byteArray `json:"proof"`
	AmountUnlocked  uint64      `json:"amount_unlocked"`
	AmountLocked    uint64      `json:"amount_locked"`
}

func NewClaimFile(e *Entry) ClaimFile {
	proof := make([]byteArray, len(e.Proof))
	for i, p := range e.Proof {
		proof[i] = byteArray(p)
	}
	return ClaimFile{
		Claimant:        byteArray(e.Claimant[:]),
		ClaimantAddress: e.Claimant.String(),
		Proof:           proof,
		AmountUnlocked:  e.UnlockedTotal(),
		AmountLocked:    e.LockedTotal(),
	}
}

// Split writes one <address>.json per claimant into dir, creating it if needed.
// Returns the number of files written.
func Split(ctx context.Context, m *Manifest, dir string, concurrency int) (int, error) {
	if concurrency <= 0 {
		concurrency = defaultSplitConcurrency
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range m.TreeNodes {
		entry := &m.TreeNodes[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := json.Marshal(NewClaimFile(entry))
			if err != nil {
				return fmt.Errorf("failed to marshal claim file for %s: %w", entry.Claimant, err)
			}
			path := filepath.Join(dir, entry.Claimant.String()+".json")
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(m.TreeNodes), nil
}
