package vote

import (
	"context"
	"errors"
	"testing"

	"github.com/blueshift-gg/solgov/engine/pkg/ledger"
	"github.com/blueshift-gg/solgov/engine/pkg/ledger/ledgertest"
	"github.com/blueshift-gg/solgov/engine/pkg/pda"
	solgovtesting "github.com/blueshift-gg/solgov/utils/pkg/testing"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

var (
	testMint    = solana.MustPublicKeyFromBase58("s3262ckXrLnzPXG8RScfFAYWDQzZYgnr4vo1R2SboMW")
	testBuckets = Buckets{
		Yes:     solana.MustPublicKeyFromBase58("YESsimd326111111111111111111111111111111111"),
		No:      solana.MustPublicKeyFromBase58("nosimd3261111111111111111111111111111111111"),
		Abstain: solana.MustPublicKeyFromBase58("ABSTA1Nsimd32611111111111111111111111111111"),
	}
	testHash = solana.Hash{7}
)

func voteLedger(t *testing.T, voter solana.PublicKey, balance uint64, bucketExists bool) *ledgertest.Client {
	t.Helper()
	voterATA, err := pda.AssociatedTokenAccount(voter, testMint)
	require.NoError(t, err)
	accounts := map[solana.PublicKey][]byte{
		voterATA.Address: ledgertest.TokenAccountData(testMint, voter, balance),
	}
	if bucketExists {
		bucketATA, err := pda.AssociatedTokenAccount(testBuckets.Yes, testMint)
		require.NoError(t, err)
		accounts[bucketATA.Address] = ledgertest.TokenAccountData(testMint, testBuckets.Yes, 0)
	}
	client := ledgertest.Accounts(accounts)
	client.GetLatestBlockhashFunc = func(ctx context.Context) (solana.Hash, error) {
		return testHash, nil
	}
	return client
}

func newTestBuilder(t *testing.T, client ledger.Client) *Builder {
	t.Helper()
	b, err := NewBuilder(BuilderConfig{
		Logger:  solgovtesting.NewLogger(),
		Ledger:  client,
		Mint:    testMint,
		Buckets: testBuckets,
	})
	require.NoError(t, err)
	return b
}

func programOf(tx *solana.Transaction, i int) solana.PublicKey {
	return tx.Message.AccountKeys[tx.Message.Instructions[i].ProgramIDIndex]
}

func TestSolGov_Vote_ParseChoice(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Choice{"yes": ChoiceYes, " NO ": ChoiceNo, "Abstain": ChoiceAbstain} {
		got, err := ParseChoice(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseChoice("maybe")
	require.ErrorIs(t, err, ErrInvalidChoice)
}

func TestSolGov_Vote_BucketOwner(t *testing.T) {
	t.Parallel()

	owner, err := testBuckets.Owner(ChoiceNo)
	require.NoError(t, err)
	require.Equal(t, testBuckets.No, owner)

	_, err = testBuckets.Owner(Choice("other"))
	require.ErrorIs(t, err, ErrInvalidChoice)
}

func TestSolGov_Vote_ParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{in: "1", decimals: 9, want: 1_000_000_000},
		{in: "1.5", decimals: 9, want: 1_500_000_000},
		{in: "0.000000001", decimals: 9, want: 1},
		{in: ".25", decimals: 2, want: 25},
		{in: "1,000", decimals: 0, want: 1000},
		{in: "0", decimals: 9, want: 0},
		{in: "18446744073709551615", decimals: 0, want: 18446744073709551615},
		{in: "18446744073709551616", decimals: 0, wantErr: true},
		{in: "20", decimals: 18, wantErr: true},
		{in: "1.0000000001", decimals: 9, wantErr: true},
		{in: "abc", decimals: 9, wantErr: true},
		{in: "-1", decimals: 9, wantErr: true},
		{in: "", decimals: 9, wantErr: true},
		{in: ".", decimals: 9, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in, tt.decimals)
		if tt.wantErr {
			require.ErrorIs(t, err, ErrInvalidAmount, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}

func TestSolGov_Vote_BuilderConfig(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder(BuilderConfig{})
	require.EqualError(t, err, "logger is required")

	_, err = NewBuilder(BuilderConfig{Logger: solgovtesting.NewLogger(), Ledger: &ledgertest.Client{}, Mint: testMint})
	require.EqualError(t, err, "vote buckets are required")
}

func TestSolGov_Vote_Build(t *testing.T) {
	t.Parallel()

	voter := solana.NewWallet().PublicKey()

	t.Run("creates missing bucket account", func(t *testing.T) {
		t.Parallel()
		b := newTestBuilder(t, voteLedger(t, voter, 5_000, false))

		tx, err := b.Build(context.Background(), voter, ChoiceYes, 5_000, 0)
		require.NoError(t, err)
		require.Len(t, tx.Message.Instructions, 2)
		require.Equal(t, solana.SPLAssociatedTokenAccountProgramID, programOf(tx, 0))
		require.Equal(t, solana.TokenProgramID, programOf(tx, 1))
		require.Equal(t, voter, tx.Message.AccountKeys[0])
		require.Equal(t, testHash, tx.Message.RecentBlockhash)
	})

	t.Run("existing bucket with priority fee", func(t *testing.T) {
		t.Parallel()
		b := newTestBuilder(t, voteLedger(t, voter, 5_000, true))

		tx, err := b.Build(context.Background(), voter, ChoiceYes, 1, 10)
		require.NoError(t, err)
		require.Len(t, tx.Message.Instructions, 2)
		require.Equal(t, solana.TokenProgramID, programOf(tx, 0))
		require.Equal(t, solana.ComputeBudget, programOf(tx, 1))
	})

	t.Run("insufficient balance", func(t *testing.T) {
		t.Parallel()
		b := newTestBuilder(t, voteLedger(t, voter, 10, true))

		_, err := b.Build(context.Background(), voter, ChoiceYes, 11, 0)
		require.ErrorIs(t, err, ErrInsufficientBalance)
	})

	t.Run("missing voter account has zero balance", func(t *testing.T) {
		t.Parallel()
		b := newTestBuilder(t, voteLedger(t, solana.NewWallet().PublicKey(), 10, true))

		balance, err := b.Balance(context.Background(), voter)
		require.NoError(t, err)
		require.Zero(t, balance)

		_, err = b.Build(context.Background(), voter, ChoiceNo, 1, 0)
		require.ErrorIs(t, err, ErrInsufficientBalance)
	})

	t.Run("zero amount", func(t *testing.T) {
		t.Parallel()
		b := newTestBuilder(t, voteLedger(t, voter, 10, true))

		_, err := b.Build(context.Background(), voter, ChoiceYes, 0, 0)
		require.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("ledger failure propagates", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		b := newTestBuilder(t, &ledgertest.Client{
			GetAccountFunc: func(ctx context.Context, address solana.PublicKey) (*ledger.Account, error) {
				return nil, boom
			},
		})

		_, err := b.Build(context.Background(), voter, ChoiceAbstain, 1, 0)
		require.ErrorIs(t, err, boom)
	})
}
