package claim

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/blueshift-gg/solgov/engine/pkg/allocation"
	"github.com/blueshift-gg/solgov/engine/pkg/codec"
	"github.com/blueshift-gg/solgov/engine/pkg/ledger"
	"github.com/blueshift-gg/solgov/engine/pkg/ledger/ledgertest"
	"github.com/blueshift-gg/solgov/engine/pkg/pda"
	solgovtesting "github.com/blueshift-gg/solgov/utils/pkg/testing"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

var (
	testProgram = solana.MustPublicKeyFromBase58("mERKcfxMC5SqJn4Ld4BUris3WKZZ1ojjWJ3A3J5CKxv")
	testMint    = solana.MustPublicKeyFromBase58("s3262ckXrLnzPXG8RScfFAYWDQzZYgnr4vo1R2SboMW")
	testHash    = solana.Hash{4, 2}
)

func testEntry(claimant solana.PublicKey) *allocation.Entry {
	return &allocation.Entry{
		Claimant:       claimant,
		Proof:          [][]byte{bytes.Repeat([]byte{1}, 32), bytes.Repeat([]byte{2}, 32)},
		UnlockedStaker: 1_000_000_000,
		LockedSearcher: 500_000_000,
	}
}

// claimLedger reports every account missing unless listed in existing.
func claimLedger(existing ...solana.PublicKey) (*ledgertest.Client, *atomic.Int32) {
	var reads atomic.Int32
	set := make(map[solana.PublicKey]bool, len(existing))
	for _, pk := range existing {
		set[pk] = true
	}
	return &ledgertest.Client{
		GetAccountFunc: func(ctx context.Context, address solana.PublicKey) (*ledger.Account, error) {
			reads.Add(1)
			if set[address] {
				return &ledger.Account{Address: address}, nil
			}
			return nil, ledger.ErrAccountNotFound
		},
		GetLatestBlockhashFunc: func(ctx context.Context) (solana.Hash, error) {
			reads.Add(1)
			return testHash, nil
		},
	}, &reads
}

func newTestBuilder(t *testing.T, client ledger.Client) *Builder {
	t.Helper()
	b, err := NewBuilder(BuilderConfig{
		Logger:    solgovtesting.NewLogger(),
		Ledger:    client,
		ProgramID: testProgram,
		Mint:      testMint,
	})
	require.NoError(t, err)
	return b
}

func programOf(tx *solana.Transaction, i int) solana.PublicKey {
	return tx.Message.AccountKeys[tx.Message.Instructions[i].ProgramIDIndex]
}

func TestSolGov_Claim_BuilderConfig(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder(BuilderConfig{})
	require.EqualError(t, err, "logger is required")

	_, err = NewBuilder(BuilderConfig{Logger: solgovtesting.NewLogger()})
	require.EqualError(t, err, "ledger client is required")

	_, err = NewBuilder(BuilderConfig{Logger: solgovtesting.NewLogger(), Ledger: &ledgertest.Client{}})
	require.EqualError(t, err, "program id is required")

	b := newTestBuilder(t, &ledgertest.Client{})
	dist, err := pda.Distributor(testProgram, testMint, 0)
	require.NoError(t, err)
	require.Equal(t, dist.Address, b.Distributor())
	require.Equal(t, uint32(DefaultComputeUnitLimit), b.cfg.ComputeUnitLimit)
}

func TestSolGov_Claim_Builder_Build(t *testing.T) {
	t.Parallel()

	t.Run("creates token account and appends fee after claim", func(t *testing.T) {
		t.Parallel()

		claimant := solana.NewWallet().PublicKey()
		client, _ := claimLedger()
		b := newTestBuilder(t, client)

		plan, err := b.Plan(context.Background(), claimant, testEntry(claimant), 100_000)
		require.NoError(t, err)
		require.Equal(t, []string{StepComputeUnitLimit, StepCreateTokenAcct, StepClaim, StepPriorityFee}, plan.Steps())

		tx, err := b.Build(context.Background(), claimant, testEntry(claimant), 100_000)
		require.NoError(t, err)
		require.Equal(t, testHash, tx.Message.RecentBlockhash)
		require.Equal(t, claimant, tx.Message.AccountKeys[0])
		require.Len(t, tx.Message.Instructions, 4)
		require.Equal(t, solana.ComputeBudget, programOf(tx, 0))
		require.Equal(t, solana.SPLAssociatedTokenAccountProgramID, programOf(tx, 1))
		require.Equal(t, testProgram, programOf(tx, 2))
		require.Equal(t, solana.ComputeBudget, programOf(tx, 3))
		require.Equal(t, "02e0930400", hex.EncodeToString(tx.Message.Instructions[0].Data))
		require.Equal(t, "03a086010000000000", hex.EncodeToString(tx.Message.Instructions[3].Data))
	})

	t.Run("claim instruction keys and payload", func(t *testing.T) {
		t.Parallel()

		claimant := solana.NewWallet().PublicKey()
		b := newTestBuilder(t, &ledgertest.Client{})
		accts, err := b.AccountsFor(claimant)
		require.NoError(t, err)

		client, _ := claimLedger(accts.ClaimantATA)
		b = newTestBuilder(t, client)

		plan, err := b.Plan(context.Background(), claimant, testEntry(claimant), 0)
		require.NoError(t, err)
		require.Equal(t, []string{StepComputeUnitLimit, StepClaim}, plan.Steps())

		ix := plan.Instructions()[1]
		require.Equal(t, testProgram, ix.ProgramID())
		metas := ix.Accounts()
		require.Len(t, metas, 7)

		want := []struct {
			key      solana.PublicKey
			writable bool
			signer   bool
		}{
			{accts.Distributor, true, false},
			{accts.ClaimStatus, true, false},
			{accts.DistributorATA, true, false},
			{accts.ClaimantATA, true, false},
			{claimant, true, true},
			{solana.TokenProgramID, false, false},
			{solana.SystemProgramID, false, false},
		}
		for i, w := range want {
			require.Equal(t, w.key, metas[i].PublicKey, "account %d", i)
			require.Equal(t, w.writable, metas[i].IsWritable, "account %d writable", i)
			require.Equal(t, w.signer, metas[i].IsSigner, "account %d signer", i)
		}

		data, err := ix.Data()
		require.NoError(t, err)
		decoded, err := codec.DecodeClaimInstruction(data)
		require.NoError(t, err)
		require.Equal(t, uint64(1_000_000_000), decoded.AmountUnlocked)
		require.Equal(t, uint64(500_000_000), decoded.AmountLocked)
		require.Len(t, decoded.Proof, 2)
	})

	t.Run("construction errors precede ledger reads", func(t *testing.T) {
		t.Parallel()

		claimant := solana.NewWallet().PublicKey()
		client, reads := claimLedger()
		b := newTestBuilder(t, client)

		_, err := b.Build(context.Background(), claimant, nil, 0)
		require.ErrorIs(t, err, ErrNilEntry)

		bad := testEntry(claimant)
		bad.Proof = append(bad.Proof, make([]byte, 31))
		_, err = b.Build(context.Background(), claimant, bad, 0)
		require.ErrorIs(t, err, codec.ErrInvalidProofElement)

		_, err = b.Build(context.Background(), claimant, testEntry(solana.NewWallet().PublicKey()), 0)
		require.ErrorIs(t, err, ErrClaimantMismatch)

		require.Zero(t, reads.Load())
	})

	t.Run("probe failure propagates", func(t *testing.T) {
		t.Parallel()

		claimant := solana.NewWallet().PublicKey()
		b := newTestBuilder(t, &ledgertest.Client{
			GetAccountFunc: func(ctx context.Context, address solana.PublicKey) (*ledger.Account, error) {
				return nil, ledger.ErrLedgerUnavailable
			},
		})
		_, err := b.Build(context.Background(), claimant, testEntry(claimant), 0)
		require.ErrorIs(t, err, ledger.ErrLedgerUnavailable)
	})

	t.Run("blockhash failure propagates", func(t *testing.T) {
		t.Parallel()

		claimant := solana.NewWallet().PublicKey()
		client, _ := claimLedger()
		client.GetLatestBlockhashFunc = func(ctx context.Context) (solana.Hash, error) {
			return solana.Hash{}, ledger.ErrLedgerUnavailable
		}
		_, err := newTestBuilder(t, client).Build(context.Background(), claimant, testEntry(claimant), 0)
		require.ErrorIs(t, err, ledger.ErrLedgerUnavailable)
	})
}

func TestSolGov_Claim_Builder_Status(t *testing.T) {
	t.Parallel()

	claimant := solana.NewWallet().PublicKey()
	accts, err := newTestBuilder(t, &ledgertest.Client{}).AccountsFor(claimant)
	require.NoError(t, err)

	t.Run("claimed", func(t *testing.T) {
		t.Parallel()

		client, _ := claimLedger(accts.ClaimStatus)
		status, err := newTestBuilder(t, client).Status(context.Background(), claimant)
		require.NoError(t, err)
		require.Equal(t, StatusClaimed, status)
		require.Equal(t, "CLAIMED", status.String())
	})

	t.Run("not claimed", func(t *testing.T) {
		t.Parallel()

		client, _ := claimLedger()
		status, err := newTestBuilder(t, client).Status(context.Background(), claimant)
		require.NoError(t, err)
		require.Equal(t, StatusNotClaimed, status)
	})

	t.Run("ledger failure is not read as unclaimed", func(t *testing.T) {
		t.Parallel()

		b := newTestBuilder(t, &ledgertest.Client{
			GetAccountFunc: func(ctx context.Context, address solana.PublicKey) (*ledger.Account, error) {
				return nil, ledger.ErrLedgerUnavailable
			},
		})
		_, err := b.Status(context.Background(), claimant)
		require.ErrorIs(t, err, ledger.ErrLedgerUnavailable)
	})
}

func TestSolGov_Claim_Status_Text(t *testing.T) {
	t.Parallel()

	for _, want := range []Status{StatusClaimed, StatusNotClaimed} {
		data, err := json.Marshal(want)
		require.NoError(t, err)

		var got Status
		require.NoError(t, json.Unmarshal(data, &got))
		require.Equal(t, want, got)
	}

	data, err := json.Marshal(struct {
		Status Status `json:"status"`
	}{StatusClaimed})
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"CLAIMED"}`, string(data))

	var s Status
	require.Error(t, s.UnmarshalText([]byte("PENDING")))
	require.Error(t, json.Unmarshal([]byte(`"claimed"`), &s))
}

func TestSolGov_Claim_Builder_Simulate(t *testing.T) {
	t.Parallel()

	claimant := solana.NewWallet().PublicKey()
	client, _ := claimLedger()
	tx, err := newTestBuilder(t, client).Build(context.Background(), claimant, testEntry(claimant), 0)
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		b := newTestBuilder(t, &ledgertest.Client{
			SimulateFunc: func(ctx context.Context, tx *solana.Transaction) (*ledger.SimulationResult, error) {
				return &ledger.SimulationResult{UnitsConsumed: 42_000}, nil
			},
		})
		res := b.Simulate(context.Background(), tx)
		require.True(t, res.OK())
		require.Equal(t, uint64(42_000), res.UnitsConsumed)
	})

	t.Run("program error is advisory", func(t *testing.T) {
		t.Parallel()

		b := newTestBuilder(t, &ledgertest.Client{
			SimulateFunc: func(ctx context.Context, tx *solana.Transaction) (*ledger.SimulationResult, error) {
				return &ledger.SimulationResult{Err: errors.New("custom program error: 0x0"), Logs: []string{"log"}}, nil
			},
		})
		res := b.Simulate(context.Background(), tx)
		require.False(t, res.OK())
		require.ErrorIs(t, res.Err, ErrSimulationFailed)
		require.Equal(t, []string{"log"}, res.Logs)
	})

	t.Run("rpc error is advisory", func(t *testing.T) {
		t.Parallel()

		b := newTestBuilder(t, &ledgertest.Client{
			SimulateFunc: func(ctx context.Context, tx *solana.Transaction) (*ledger.SimulationResult, error) {
				return nil, ledger.ErrLedgerUnavailable
			},
		})
		res := b.Simulate(context.Background(), tx)
		require.ErrorIs(t, res.Err, ErrSimulationFailed)
		require.ErrorIs(t, res.Err, ledger.ErrLedgerUnavailable)
	})
}

func TestSolGov_Claim_Submit(t *testing.T) {
	t.Parallel()

	wallet := solana.NewWallet()
	signer := NewKeypairSigner(wallet.PrivateKey)
	require.Equal(t, wallet.PublicKey(), signer.PublicKey())

	build := func(t *testing.T) *solana.Transaction {
		client, _ := claimLedger()
		tx, err := newTestBuilder(t, client).Build(context.Background(), wallet.PublicKey(), testEntry(wallet.PublicKey()), 0)
		require.NoError(t, err)
		return tx
	}

	t.Run("signs then sends", func(t *testing.T) {
		t.Parallel()

		tx := build(t)
		client := &ledgertest.Client{
			SendFunc: func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
				require.Len(t, tx.Signatures, 1)
				require.NotEqual(t, solana.Signature{}, tx.Signatures[0])
				return tx.Signatures[0], nil
			},
		}
		sig, err := Submit(context.Background(), client, signer, tx)
		require.NoError(t, err)
		require.NotEqual(t, solana.Signature{}, sig)
	})

	t.Run("send failure", func(t *testing.T) {
		t.Parallel()

		tx := build(t)
		client := &ledgertest.Client{
			SendFunc: func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
				return solana.Signature{}, ledger.ErrLedgerUnavailable
			},
		}
		_, err := Submit(context.Background(), client, signer, tx)
		require.ErrorIs(t, err, ErrSubmissionFailed)
		require.ErrorIs(t, err, ledger.ErrLedgerUnavailable)
	})

	t.Run("wrong signer", func(t *testing.T) {
		t.Parallel()

		tx := build(t)
		other := NewKeypairSigner(solana.NewWallet().PrivateKey)
		_, err := Submit(context.Background(), &ledgertest.Client{}, other, tx)
		require.ErrorIs(t, err, ErrSubmissionFailed)
	})
}
