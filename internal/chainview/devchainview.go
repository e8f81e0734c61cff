package chainview

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bubbleprotocol/guardian/internal/permission"
)

// DevChainView is an in-memory ChainView for local development and tests. It
// performs real signature recovery (the cryptography is chain-independent)
// but resolves contracts, permissions, and revocations from maps populated
// by the caller instead of a live node.
type DevChainView struct {
	chainID uint64

	mu          sync.RWMutex
	contracts   map[string]bool
	permissions map[string]permission.Bits // key: contract|account|fileID
	revoked     map[string]bool
}

// NewDevChainView returns an empty DevChainView bound to chainID.
func NewDevChainView(chainID uint64) *DevChainView {
	return &DevChainView{
		chainID:     chainID,
		contracts:   make(map[string]bool),
		permissions: make(map[string]permission.Bits),
		revoked:     make(map[string]bool),
	}
}

// RegisterContract marks contract as a valid, deployed ACC.
func (v *DevChainView) RegisterContract(contract string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.contracts[strings.ToLower(contract)] = true
}

// SetPermissions fixes the permission bitmap returned for
// (contract, account, fileID).
func (v *DevChainView) SetPermissions(contract, account, fileID string, bits permission.Bits) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.contracts[strings.ToLower(contract)] = true
	v.permissions[permKey(contract, account, fileID)] = bits
}

// Revoke marks a delegation hash as revoked.
func (v *DevChainView) Revoke(delegateHash string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.revoked[strings.ToLower(delegateHash)] = true
}

func permKey(contract, account, fileID string) string {
	return strings.ToLower(contract) + "|" + strings.ToLower(account) + "|" + strings.ToLower(fileID)
}

func (v *DevChainView) GetChainID(ctx context.Context) (uint64, error) {
	return v.chainID, nil
}

func (v *DevChainView) ValidateContract(ctx context.Context, contract string) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.contracts[strings.ToLower(contract)], nil
}

func (v *DevChainView) GetPermissions(ctx context.Context, contract, account, fileID string) (permission.Bits, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.contracts[strings.ToLower(contract)] {
		return permission.Bits{}, fmt.Errorf("%w: unknown contract %s", ErrContractCallFailed, contract)
	}
	return v.permissions[permKey(contract, account, fileID)], nil
}

func (v *DevChainView) HasBeenRevoked(ctx context.Context, delegateHash string) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.revoked[strings.ToLower(delegateHash)], nil
}

func (v *DevChainView) RecoverSignatory(ctx context.Context, hash [32]byte, sig []byte) (string, error) {
	if len(sig) != 65 {
		return "", fmt.Errorf("%w: signature must be 65 bytes, got %d", ErrRecoveryFailed, len(sig))
	}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(hash[:], normalized)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecoveryFailed, err)
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}
