package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/blueshift-gg/solgov/engine/pkg/tally"
	"github.com/blueshift-gg/solgov/engine/pkg/vote"
	"github.com/blueshift-gg/solgov/engine/pkg/votingclock"
	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
)

const (
	DefaultRPCURL         = "https://api.mainnet-beta.solana.com"
	DefaultProgramID      = "mERKcfxMC5SqJn4Ld4BUris3WKZZ1ojjWJ3A3J5CKxv"
	DefaultMint           = "s3262ckXrLnzPXG8RScfFAYWDQzZYgnr4vo1R2SboMW"
	DefaultVoteYes        = "YESsimd326111111111111111111111111111111111"
	DefaultVoteNo         = "nosimd3261111111111111111111111111111111111"
	DefaultVoteAbstain    = "ABSTA1Nsimd32611111111111111111111111111111"
	DefaultStartEpoch     = 840
	DefaultEndEpoch       = 842
	DefaultPriorityFee    = 100_000
	DefaultTokenDecimals  = 9
	DefaultManifestSource = "merkle_tree.json"
)

// Config is the static deployment configuration shared by the binaries.
type Config struct {
	RPCURL       string
	RPCRateLimit float64

	ProgramID      solana.PublicKey
	Mint           solana.PublicKey
	AirdropVersion uint64
	TokenDecimals  uint8
	ManifestSource string

	VoteYes     solana.PublicKey
	VoteNo      solana.PublicKey
	VoteAbstain solana.PublicKey

	Schedule votingclock.Schedule

	// PriorityFee is micro-lamports per compute unit; 0 disables the fee instruction.
	PriorityFee uint64

	SentryDSN         string
	SentryEnvironment string
}

func Default() Config {
	return Config{
		RPCURL:         DefaultRPCURL,
		ProgramID:      solana.MustPublicKeyFromBase58(DefaultProgramID),
		Mint:           solana.MustPublicKeyFromBase58(DefaultMint),
		TokenDecimals:  DefaultTokenDecimals,
		ManifestSource: DefaultManifestSource,
		VoteYes:        solana.MustPublicKeyFromBase58(DefaultVoteYes),
		VoteNo:         solana.MustPublicKeyFromBase58(DefaultVoteNo),
		VoteAbstain:    solana.MustPublicKeyFromBase58(DefaultVoteAbstain),
		Schedule: votingclock.Schedule{
			StartEpoch:    DefaultStartEpoch,
			EndEpoch:      DefaultEndEpoch,
			SlotTime:      votingclock.DefaultSlotTime,
			SlotsPerEpoch: votingclock.DefaultSlotsPerEpoch,
		},
		PriorityFee:       DefaultPriorityFee,
		SentryEnvironment: "production",
	}
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFromEnv starts from Default, loads .env if present and applies
// environment overrides.
func LoadFromEnv() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	pubkey := func(key string, dst *solana.PublicKey) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		pk, err := solana.PublicKeyFromBase58(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = pk
		return nil
	}
	parseUint := func(key string, bitSize int, dst func(uint64)) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.ParseUint(v, 10, bitSize)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		dst(n)
		return nil
	}

	str("SOLANA_RPC_URL", &c.RPCURL)
	str("SOLGOV_MANIFEST_URL", &c.ManifestSource)
	str("SENTRY_DSN", &c.SentryDSN)
	str("SENTRY_ENVIRONMENT", &c.SentryEnvironment)

	for key, dst := range map[string]*solana.PublicKey{
		"SOLGOV_PROGRAM_ID":   &c.ProgramID,
		"SOLGOV_TOKEN_MINT":   &c.Mint,
		"SOLGOV_VOTE_YES":     &c.VoteYes,
		"SOLGOV_VOTE_NO":      &c.VoteNo,
		"SOLGOV_VOTE_ABSTAIN": &c.VoteAbstain,
	} {
		if err := pubkey(key, dst); err != nil {
			return err
		}
	}

	uints := []struct {
		key     string
		bitSize int
		set     func(uint64)
	}{
		{"SOLGOV_AIRDROP_VERSION", 64, func(n uint64) { c.AirdropVersion = n }},
		{"SOLGOV_VOTING_START_EPOCH", 64, func(n uint64) { c.Schedule.StartEpoch = n }},
		{"SOLGOV_VOTING_END_EPOCH", 64, func(n uint64) { c.Schedule.EndEpoch = n }},
		{"SOLGOV_SLOTS_PER_EPOCH", 64, func(n uint64) { c.Schedule.SlotsPerEpoch = n }},
		{"SOLGOV_SLOT_TIME_MS", 32, func(n uint64) { c.Schedule.SlotTime = time.Duration(n) * time.Millisecond }},
		{"SOLGOV_PRIORITY_FEE_MICROLAMPORTS", 64, func(n uint64) { c.PriorityFee = n }},
		{"SOLGOV_TOKEN_DECIMALS", 8, func(n uint64) { c.TokenDecimals = uint8(n) }},
	}
	for _, u := range uints {
		if err := parseUint(u.key, u.bitSize, u.set); err != nil {
			return err
		}
	}

	if v, ok := lookup("SOLGOV_RPC_RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid SOLGOV_RPC_RATE_LIMIT: %w", err)
		}
		c.RPCRateLimit = f
	}
	return nil
}

func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return errors.New("rpc url is required")
	}
	if c.ProgramID.IsZero() {
		return errors.New("program id is required")
	}
	if c.Mint.IsZero() {
		return errors.New("token mint is required")
	}
	if c.VoteYes.IsZero() || c.VoteNo.IsZero() || c.VoteAbstain.IsZero() {
		return errors.New("all vote addresses are required")
	}
	if c.VoteYes == c.VoteNo || c.VoteYes == c.VoteAbstain || c.VoteNo == c.VoteAbstain {
		return errors.New("vote addresses must be distinct")
	}
	if c.TokenDecimals > 19 {
		return errors.New("token decimals must be at most 19")
	}
	if c.RPCRateLimit < 0 {
		return errors.New("rpc rate limit must not be negative")
	}
	if err := c.Schedule.Validate(); err != nil {
		return err
	}
	return nil
}

// TallyAccounts derives the five accounts read by the vote tally.
func (c *Config) TallyAccounts() (tally.Accounts, error) {
	return tally.AccountsFor(c.ProgramID, c.Mint, c.AirdropVersion, c.VoteYes, c.VoteNo, c.VoteAbstain)
}

// VoteBuckets returns the owners of the yes, no and abstain token accounts.
func (c *Config) VoteBuckets() vote.Buckets {
	return vote.Buckets{Yes: c.VoteYes, No: c.VoteNo, Abstain: c.VoteAbstain}
}
