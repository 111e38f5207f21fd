// Package ledgertest provides a func-field ledger.Client for tests.
package ledgertest

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/blueshift-gg/solgov/engine/pkg/ledger"
	"github.com/gagliardetto/solana-go"
)

// Client implements ledger.Client. Unset funcs fail the call.
type Client struct {
	GetAccountFunc          func(ctx context.Context, address solana.PublicKey) (*ledger.Account, error)
	GetMultipleAccountsFunc func(ctx context.Context, addresses []solana.PublicKey) ([]*ledger.Account, error)
	GetLatestBlockhashFunc  func(ctx context.Context) (solana.Hash, error)
	GetEpochInfoFunc        func(ctx context.Context) (*ledger.EpochInfo, error)
	SimulateFunc            func(ctx context.Context, tx *solana.Transaction) (*ledger.SimulationResult, error)
	SendFunc                func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	ConfirmFunc             func(ctx context.Context, sig solana.Signature) error
}

var _ ledger.Client = (*Client)(nil)

var errNotMocked = errors.New("ledgertest: call not mocked")

func (c *Client) GetAccount(ctx context.Context, address solana.PublicKey) (*ledger.Account, error) {
	if c.GetAccountFunc == nil {
		return nil, errNotMocked
	}
	return c.GetAccountFunc(ctx, address)
}

func (c *Client) GetMultipleAccounts(ctx context.Context, addresses []solana.PublicKey) ([]*ledger.Account, error) {
	if c.GetMultipleAccountsFunc == nil {
		return nil, errNotMocked
	}
	return c.GetMultipleAccountsFunc(ctx, addresses)
}

func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if c.GetLatestBlockhashFunc == nil {
		return solana.Hash{}, errNotMocked
	}
	return c.GetLatestBlockhashFunc(ctx)
}

func (c *Client) GetEpochInfo(ctx context.Context) (*ledger.EpochInfo, error) {
	if c.GetEpochInfoFunc == nil {
		return nil, errNotMocked
	}
	return c.GetEpochInfoFunc(ctx)
}

func (c *Client) Simulate(ctx context.Context, tx *solana.Transaction) (*ledger.SimulationResult, error) {
	if c.SimulateFunc == nil {
		return nil, errNotMocked
	}
	return c.SimulateFunc(ctx, tx)
}

func (c *Client) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if c.SendFunc == nil {
		return solana.Signature{}, errNotMocked
	}
	return c.SendFunc(ctx, tx)
}

func (c *Client) Confirm(ctx context.Context, sig solana.Signature) error {
	if c.ConfirmFunc == nil {
		return errNotMocked
	}
	return c.ConfirmFunc(ctx, sig)
}

// MintData returns SPL mint account bytes with the given supply and decimals.
func MintData(supply uint64, decimals uint8) []byte {
	data := make([]byte, 82)
	binary.LittleEndian.PutUint64(data[36:44], supply)
	data[44] = decimals
	data[45] = 1
	return data
}

// TokenAccountData returns SPL token account bytes holding amount.
func TokenAccountData(mint, owner solana.PublicKey, amount uint64) []byte {
	data := make([]byte, 165)
	copy(data[0:32], mint[:])
	copy(data[32:64], owner[:])
	binary.LittleEndian.PutUint64(data[64:72], amount)
	data[108] = 1
	return data
}

// Accounts serves GetAccount and GetMultipleAccounts from a fixed map.
// Addresses absent from the map are reported missing.
func Accounts(accounts map[solana.PublicKey][]byte) *Client {
	lookup := func(address solana.PublicKey) *ledger.Account {
		data, ok := accounts[address]
		if !ok {
			return nil
		}
		return &ledger.Account{Address: address, Owner: solana.TokenProgramID, Data: data}
	}
	return &Client{
		GetAccountFunc: func(ctx context.Context, address solana.PublicKey) (*ledger.Account, error) {
			if acc := lookup(address); acc != nil {
				return acc, nil
			}
			return nil, ledger.ErrAccountNotFound
		},
		GetMultipleAccountsFunc: func(ctx context.Context, addresses []solana.PublicKey) ([]*ledger.Account, error) {
			out := make([]*ledger.Account, len(addresses))
			for i, address := range addresses {
				out[i] = lookup(address)
			}
			return out, nil
		},
	}
}
