package ledger

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Account is the raw state of a ledger account.
type Account struct {
	Address  solana.PublicKey
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

type EpochInfo struct {
	Epoch        uint64
	AbsoluteSlot uint64
	SlotIndex    uint64
	SlotsInEpoch uint64
}

// SimulationResult is the outcome of a dry run. Err is nil when the
// transaction would succeed.
type SimulationResult struct {
	Err           error
	Logs          []string
	UnitsConsumed uint64
}

// Client is the ledger surface the engine depends on.
type Client interface {
	// GetAccount returns ErrAccountNotFound when the account does not exist.
	GetAccount(ctx context.Context, address solana.PublicKey) (*Account, error)

	// GetMultipleAccounts reads all addresses in one round trip. The result
	// is positional; missing accounts are nil entries.
	GetMultipleAccounts(ctx context.Context, addresses []solana.PublicKey) ([]*Account, error)

	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	GetEpochInfo(ctx context.Context) (*EpochInfo, error)

	Simulate(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error)
	Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	// Confirm blocks until the signature reaches confirmed commitment or
	// returns ErrConfirmationTimeout.
	Confirm(ctx context.Context, sig solana.Signature) error
}
