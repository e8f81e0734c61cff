// Package chainview defines the Guardian's abstract boundary to the
// blockchain (spec §2.6) and provides two implementations: EthChainView,
// backed by a live JSON-RPC node, and DevChainView, a deterministic
// in-memory stand-in for local development and tests.
package chainview

import (
	"context"
	"errors"

	"github.com/bubbleprotocol/guardian/internal/permission"
)

var (
	// ErrContractCallFailed wraps any transport or revert error from a
	// getAccessPermissions call.
	ErrContractCallFailed = errors.New("chainview: contract call failed")
	// ErrRecoveryFailed wraps any signature recovery failure.
	ErrRecoveryFailed = errors.New("chainview: signature recovery failed")
)

// ChainView is the only way the core touches the blockchain. Every
// method must be safe for concurrent use; the Guardian issues calls for
// independent requests without synchronization (spec §5).
type ChainView interface {
	// GetPermissions returns the ACC permission bitmap for account's
	// access to fileID on contract.
	GetPermissions(ctx context.Context, contract, account, fileID string) (permission.Bits, error)

	// GetChainID returns the chain ID this view is configured for.
	GetChainID(ctx context.Context) (uint64, error)

	// HasBeenRevoked reports whether the delegation with the given
	// keccak256 hash (hex-encoded) has been revoked on-chain.
	HasBeenRevoked(ctx context.Context, delegateHash string) (bool, error)

	// ValidateContract reports whether contract is a well-formed,
	// recognized Access Control Contract address.
	ValidateContract(ctx context.Context, contract string) (bool, error)

	// RecoverSignatory recovers the lowercase address that produced sig
	// over hash. This is the sole place ECDSA recovery happens; the
	// signature engine only ever computes hashes and defers the actual
	// elliptic-curve step here, keeping it swappable per chain family.
	RecoverSignatory(ctx context.Context, hash [32]byte, sig []byte) (string, error)
}
