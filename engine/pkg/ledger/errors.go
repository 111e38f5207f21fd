package ledger

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

var (
	// ErrAccountNotFound is returned when an account does not exist. For
	// claim-status lookups this is the "not claimed" answer, not a failure.
	ErrAccountNotFound = errors.New("account not found")

	// ErrLedgerUnavailable wraps transport and RPC failures.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrAccountDecode is returned when account data is too short or malformed.
	ErrAccountDecode = errors.New("account decode failure")

	// ErrConfirmationTimeout is returned when a signature is not confirmed in time.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)

// ErrorType classifies ledger errors for retry decisions.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeConnectivity
	ErrorTypeTimeout
	ErrorTypeRateLimited
	ErrorTypeNodeUnhealthy
	ErrorTypeRejected
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeConnectivity:
		return "connectivity"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeRateLimited:
		return "rate_limited"
	case ErrorTypeNodeUnhealthy:
		return "node_unhealthy"
	case ErrorTypeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// JSON-RPC server error codes returned by validators.
const (
	rpcCodeNodeUnhealthy     = -32005
	rpcCodeSendTxPreflight   = -32002
	rpcCodeBlockhashNotFound = -32003
)

// IsTransient returns true if the error is likely transient and worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch Classify(err) {
	case ErrorTypeConnectivity, ErrorTypeTimeout, ErrorTypeRateLimited, ErrorTypeNodeUnhealthy:
		return true
	default:
		return false
	}
}

// Classify determines the type of ledger error.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case rpcCodeNodeUnhealthy:
			return ErrorTypeNodeUnhealthy
		case rpcCodeSendTxPreflight, rpcCodeBlockhashNotFound:
			return ErrorTypeRejected
		case 429:
			return ErrorTypeRateLimited
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeConnectivity
	}

	errStr := strings.ToLower(err.Error())

	rateLimitPatterns := []string{
		"429",
		"too many requests",
		"rate limit",
	}
	for _, pattern := range rateLimitPatterns {
		if strings.Contains(errStr, pattern) {
			return ErrorTypeRateLimited
		}
	}

	unhealthyPatterns := []string{
		"node is behind",
		"node is unhealthy",
		"503",
		"502",
		"service unavailable",
		"bad gateway",
	}
	for _, pattern := range unhealthyPatterns {
		if strings.Contains(errStr, pattern) {
			return ErrorTypeNodeUnhealthy
		}
	}

	connectivityPatterns := []string{
		"connection refused",
		"connection reset",
		"connection closed",
		"no such host",
		"dial tcp",
		"eof",
		"broken pipe",
		"network is unreachable",
		"no route to host",
	}
	for _, pattern := range connectivityPatterns {
		if strings.Contains(errStr, pattern) {
			return ErrorTypeConnectivity
		}
	}

	timeoutPatterns := []string{
		"timeout",
		"timed out",
		"deadline exceeded",
	}
	for _, pattern := range timeoutPatterns {
		if strings.Contains(errStr, pattern) {
			return ErrorTypeTimeout
		}
	}

	return ErrorTypeUnknown
}

func isNotFound(err error) bool {
	return errors.Is(err, rpc.ErrNotFound)
}
