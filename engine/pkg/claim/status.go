package claim

import (
	"context"
	"errors"
	"fmt"

	"github.com/blueshift-gg/solgov/engine/pkg/ledger"
	"github.com/gagliardetto/solana-go"
)

type Status int

const (
	StatusNotClaimed Status = iota
	StatusClaimed
)

func (s Status) String() string {
	if s == StatusClaimed {
		return "CLAIMED"
	}
	return "NOT_CLAIMED"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "CLAIMED":
		*s = StatusClaimed
	case "NOT_CLAIMED":
		*s = StatusNotClaimed
	default:
		return fmt.Errorf("unknown claim status %q", text)
	}
	return nil
}

// Status reports whether claimant has claimed. The claim-status account's
// existence is the whole answer; its contents are not read. Ledger failures
// propagate rather than reading as "not claimed".
func (b *Builder) Status(ctx context.Context, claimant solana.PublicKey) (Status, error) {
	accts, err := b.AccountsFor(claimant)
	if err != nil {
		return StatusNotClaimed, err
	}
	_, err = b.cfg.Ledger.GetAccount(ctx, accts.ClaimStatus)
	switch {
	case err == nil:
		return StatusClaimed, nil
	case errors.Is(err, ledger.ErrAccountNotFound):
		return StatusNotClaimed, nil
	default:
		return StatusNotClaimed, fmt.Errorf("failed to read claim status: %w", err)
	}
}
