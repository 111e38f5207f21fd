package tally

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blueshift-gg/solgov/engine/pkg/ledger"
	"github.com/blueshift-gg/solgov/engine/pkg/ledger/ledgertest"
	"github.com/blueshift-gg/solgov/engine/pkg/pda"
	solgovtesting "github.com/blueshift-gg/solgov/utils/pkg/testing"
	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

var (
	testProgram = solana.MustPublicKeyFromBase58("mERKcfxMC5SqJn4Ld4BUris3WKZZ1ojjWJ3A3J5CKxv")
	testMint    = solana.MustPublicKeyFromBase58("s3262ckXrLnzPXG8RScfFAYWDQzZYgnr4vo1R2SboMW")
	testYes     = solana.MustPublicKeyFromBase58("YESsimd326111111111111111111111111111111111")
	testNo      = solana.MustPublicKeyFromBase58("nosimd3261111111111111111111111111111111111")
	testAbstain = solana.MustPublicKeyFromBase58("ABSTA1Nsimd32611111111111111111111111111111")
)

func testAccounts(t *testing.T) Accounts {
	t.Helper()
	accts, err := AccountsFor(testProgram, testMint, 0, testYes, testNo, testAbstain)
	require.NoError(t, err)
	return accts
}

func newTestAggregator(t *testing.T, client ledger.Client, clock clockwork.Clock) *Aggregator {
	t.Helper()
	a, err := NewAggregator(AggregatorConfig{Logger: solgovtesting.NewLogger(), Ledger: client, Clock: clock})
	require.NoError(t, err)
	return a
}

func TestSolGov_Tally_AccountsFor(t *testing.T) {
	t.Parallel()

	accts := testAccounts(t)
	require.Equal(t, testMint, accts.Mint)

	dist, err := pda.Distributor(testProgram, testMint, 0)
	require.NoError(t, err)
	want, _, err := solana.FindAssociatedTokenAddress(dist.Address, testMint)
	require.NoError(t, err)
	require.Equal(t, want, accts.DistributorATA)

	want, _, err = solana.FindAssociatedTokenAddress(testYes, testMint)
	require.NoError(t, err)
	require.Equal(t, want, accts.YesATA)

	require.Len(t, map[solana.PublicKey]bool{
		accts.Mint: true, accts.DistributorATA: true, accts.YesATA: true, accts.NoATA: true, accts.AbstainATA: true,
	}, 5)
}

func TestSolGov_Tally_Aggregator_Tally(t *testing.T) {
	t.Parallel()

	accts := testAccounts(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	owner := solana.NewWallet().PublicKey()

	t.Run("single batched read", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		client := ledgertest.Accounts(map[solana.PublicKey][]byte{
			accts.Mint:           ledgertest.MintData(1_000_000, 9),
			accts.DistributorATA: ledgertest.TokenAccountData(testMint, owner, 400_000),
			accts.YesATA:         ledgertest.TokenAccountData(testMint, owner, 300_000),
			accts.NoATA:          ledgertest.TokenAccountData(testMint, owner, 50_000),
			accts.AbstainATA:     ledgertest.TokenAccountData(testMint, owner, 10_000),
		})
		inner := client.GetMultipleAccountsFunc
		client.GetMultipleAccountsFunc = func(ctx context.Context, addresses []solana.PublicKey) ([]*ledger.Account, error) {
			calls.Add(1)
			require.Equal(t, []solana.PublicKey{accts.Mint, accts.DistributorATA, accts.YesATA, accts.NoATA, accts.AbstainATA}, addresses)
			return inner(ctx, addresses)
		}

		got, err := newTestAggregator(t, client, clock).Tally(context.Background(), accts)
		require.NoError(t, err)
		require.Equal(t, int32(1), calls.Load())

		require.Equal(t, uint64(300_000), got.Yes)
		require.Equal(t, uint64(50_000), got.No)
		require.Equal(t, uint64(10_000), got.Abstain)
		require.Equal(t, uint64(360_000), got.TotalVotes)
		require.Equal(t, uint64(1_000_000), got.TotalSupply)
		require.Equal(t, uint64(400_000), got.DistributorBalance)
		require.Equal(t, uint64(600_000), got.TotalClaimed)
		require.Equal(t, uint8(9), got.Decimals)
		require.Equal(t, 36.0, got.ParticipationRate)
		require.Equal(t, 60.0, got.ClaimRate)
		require.Equal(t, now, got.LastUpdated)
		require.Empty(t, got.Degraded)
		require.True(t, got.Quorum())
		require.True(t, got.Supermajority())
		require.Equal(t, OutcomePassing, got.Outcome())
	})

	t.Run("one failed bucket degrades to zero", func(t *testing.T) {
		t.Parallel()

		client := ledgertest.Accounts(map[solana.PublicKey][]byte{
			accts.Mint:           ledgertest.MintData(1_000_000, 9),
			accts.DistributorATA: ledgertest.TokenAccountData(testMint, owner, 0),
			accts.YesATA:         ledgertest.TokenAccountData(testMint, owner, 200_000),
			accts.NoATA:          {1, 2, 3},
			accts.AbstainATA:     ledgertest.TokenAccountData(testMint, owner, 20_000),
		})

		got, err := newTestAggregator(t, client, clock).Tally(context.Background(), accts)
		require.NoError(t, err)
		require.Zero(t, got.No)
		require.Equal(t, uint64(200_000), got.Yes)
		require.Equal(t, uint64(20_000), got.Abstain)
		require.Equal(t, uint64(220_000), got.TotalVotes)
		require.Equal(t, []string{"no"}, got.Degraded)
	})

	t.Run("missing mint yields zero rates", func(t *testing.T) {
		t.Parallel()

		client := ledgertest.Accounts(map[solana.PublicKey][]byte{
			accts.YesATA: ledgertest.TokenAccountData(testMint, owner, 5),
		})

		got, err := newTestAggregator(t, client, clock).Tally(context.Background(), accts)
		require.NoError(t, err)
		require.Zero(t, got.TotalSupply)
		require.Zero(t, got.ParticipationRate)
		require.Zero(t, got.ClaimRate)
		require.False(t, got.Quorum())
		require.ElementsMatch(t, []string{"mint", "distributor", "no", "abstain"}, got.Degraded)
	})

	t.Run("batched read failure is returned", func(t *testing.T) {
		t.Parallel()

		client := &ledgertest.Client{
			GetMultipleAccountsFunc: func(ctx context.Context, addresses []solana.PublicKey) ([]*ledger.Account, error) {
				return nil, ledger.ErrLedgerUnavailable
			},
		}
		_, err := newTestAggregator(t, client, clock).Tally(context.Background(), accts)
		require.ErrorIs(t, err, ledger.ErrLedgerUnavailable)
	})
}

func TestSolGov_Tally_Compute(t *testing.T) {
	t.Parallel()

	t.Run("zero supply", func(t *testing.T) {
		t.Parallel()

		got := Compute(Balances{Yes: 10}, time.Time{})
		require.Zero(t, got.ParticipationRate)
		require.Zero(t, got.ClaimRate)
		require.False(t, got.Quorum())
		require.Zero(t, got.VotesNeededForQuorum())
	})

	t.Run("claimed saturates at zero", func(t *testing.T) {
		t.Parallel()

		got := Compute(Balances{Supply: 100, Distributor: 150}, time.Time{})
		require.Zero(t, got.TotalClaimed)
	})

	t.Run("large supply does not overflow", func(t *testing.T) {
		t.Parallel()

		supply := uint64(math.MaxUint64 - 1)
		got := Compute(Balances{Supply: supply, Yes: supply / 2}, time.Time{})
		require.Equal(t, 50.0, got.ParticipationRate)
		require.Equal(t, 100.0, got.ClaimRate)
	})

	t.Run("quorum boundary", func(t *testing.T) {
		t.Parallel()

		require.True(t, Compute(Balances{Supply: 10_000, Yes: 3_333}, time.Time{}).Quorum())
		require.False(t, Compute(Balances{Supply: 10_000, Yes: 3_332}, time.Time{}).Quorum())
		require.Equal(t, OutcomePendingQuorum, Compute(Balances{Supply: 10_000, Yes: 3_332}, time.Time{}).Outcome())
	})

	t.Run("supermajority boundary", func(t *testing.T) {
		t.Parallel()

		require.True(t, Compute(Balances{Supply: 100, Yes: 2, No: 1}, time.Time{}).Supermajority())
		require.False(t, Compute(Balances{Supply: 100, Yes: 1999, No: 1001}, time.Time{}).Supermajority())
		require.False(t, Compute(Balances{Supply: 100}, time.Time{}).Supermajority())

		pending := Compute(Balances{Supply: 100, Yes: 20, No: 20}, time.Time{})
		require.Equal(t, OutcomePendingSupermajority, pending.Outcome())
	})

	t.Run("votes needed for quorum", func(t *testing.T) {
		t.Parallel()

		require.Equal(t, uint64(3_333), Compute(Balances{Supply: 10_000}, time.Time{}).VotesNeededForQuorum())
		require.Equal(t, uint64(1), Compute(Balances{Supply: 10_000, No: 3_332}, time.Time{}).VotesNeededForQuorum())
		require.Equal(t, uint64(0), Compute(Balances{Supply: 10_000, No: 5_000}, time.Time{}).VotesNeededForQuorum())
		// ceil(3 * 0.3333) = 1
		require.Equal(t, uint64(1), Compute(Balances{Supply: 3}, time.Time{}).VotesNeededForQuorum())
	})

	t.Run("choice percentages", func(t *testing.T) {
		t.Parallel()

		got := Compute(Balances{Supply: 100, Yes: 2, No: 1}, time.Time{})
		require.Equal(t, 66.66, got.YesPercent())
		require.Equal(t, 33.33, got.NoPercent())
		require.Zero(t, got.AbstainPercent())
	})
}

func TestSolGov_Tally_PowerOf(t *testing.T) {
	t.Parallel()

	p := PowerOf(1_000, 1_000_000)
	require.Equal(t, 0.1, p.Percent)
	require.True(t, p.Significant)

	p = PowerOf(999, 1_000_000)
	require.Equal(t, 0.0999, p.Percent)
	require.False(t, p.Significant)

	p = PowerOf(1, 3)
	require.Equal(t, 33.3333, p.Percent)

	require.Zero(t, PowerOf(10, 0).Percent)
	require.Equal(t, 100.0, PowerOf(math.MaxUint64, 1).Percent)
}

func TestSolGov_Tally_BasisPoints(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint64(6_666), BasisPoints(2, 3))
	require.Equal(t, uint64(10_000), BasisPoints(3, 3))
	require.Equal(t, uint64(10_000), BasisPoints(math.MaxUint64, 1))
	require.Equal(t, uint64(10_000), BasisPoints(math.MaxUint64, 2))
	require.Zero(t, BasisPoints(math.MaxUint64, 0))
	require.Equal(t, 100.0, Percent(math.MaxUint64, 1))

	got := Compute(Balances{Supply: 1, Yes: math.MaxUint64 / 2}, time.Time{})
	require.Equal(t, 100.0, got.ParticipationRate)
}

func TestSolGov_Tally_Format(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount   uint64
		decimals uint8
		want     string
	}{
		{0, 9, "0.000"},
		{1_234_567_890_123, 9, "1,234.567"},
		{999_999_999, 9, "0.999"},
		{1_000_000_000_000_000_000, 9, "1,000,000,000.000"},
		{12_345, 2, "123.45"},
		{1_234_567, 0, "1,234,567"},
		{5, 6, "0.000"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatTokenAmount(tt.amount, tt.decimals), "%d/%d", tt.amount, tt.decimals)
	}

	require.Equal(t, "66.66", FormatPercentage(2, 3))
	require.Equal(t, "0.00", FormatPercentage(5, 0))
	require.Equal(t, "100.00", FormatPercentage(7, 7))
}
