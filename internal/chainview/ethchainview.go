package chainview

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"

	"github.com/bubbleprotocol/guardian/internal/permission"
)

// getAccessPermissionsSig is the 4-byte selector for the ACC method every
// Bubble Protocol contract exposes: getAccessPermissions(address,bytes32).
var getAccessPermissionsSig = crypto.Keccak256([]byte("getAccessPermissions(address,bytes32)"))[:4]

// EthChainView is the production ChainView, backed by a live Ethereum
// JSON-RPC endpoint (spec §2.6). It never holds a private key: unlike a
// payment-settling facilitator, a Guardian only ever reads state and
// verifies signatures, so it needs no signing key of its own.
type EthChainView struct {
	client  *ethclient.Client
	chainID uint64
}

// NewEthChainView dials rpcURL and confirms the reported chain ID matches
// wantChainID, if wantChainID is nonzero.
func NewEthChainView(ctx context.Context, rpcURL string, wantChainID uint64) (*EthChainView, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chainview: connecting to %s: %w", rpcURL, err)
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chainview: reading chain id: %w", err)
	}
	if wantChainID != 0 && id.Uint64() != wantChainID {
		client.Close()
		return nil, fmt.Errorf("chainview: rpc endpoint reports chain %d, want %d", id.Uint64(), wantChainID)
	}
	return &EthChainView{client: client, chainID: id.Uint64()}, nil
}

// Close releases the underlying RPC connection.
func (v *EthChainView) Close() { v.client.Close() }

func (v *EthChainView) GetChainID(ctx context.Context) (uint64, error) {
	return v.chainID, nil
}

func (v *EthChainView) ValidateContract(ctx context.Context, contract string) (bool, error) {
	addr := common.HexToAddress(contract)
	code, err := v.client.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, fmt.Errorf("chainview: reading contract code: %w", err)
	}
	return len(code) > 0, nil
}

// GetPermissions calls the ACC's getAccessPermissions(address,bytes32) view
// function and decodes the returned uint256 bitmap (spec §2.4, §6).
func (v *EthChainView) GetPermissions(ctx context.Context, contract, account, fileID string) (permission.Bits, error) {
	addr := common.HexToAddress(contract)
	calldata := packGetAccessPermissions(common.HexToAddress(account), common.HexToHash(fileID))

	out, err := v.client.CallContract(ctx, ethereum.CallMsg{
		To:   &addr,
		Data: calldata,
	}, nil)
	if err != nil {
		return permission.Bits{}, fmt.Errorf("%w: %v", ErrContractCallFailed, err)
	}
	if len(out) != 32 {
		return permission.Bits{}, fmt.Errorf("%w: unexpected return length %d", ErrContractCallFailed, len(out))
	}
	var arr [32]byte
	copy(arr[:], out)
	return permission.FromUint256(new(uint256.Int).SetBytes32(arr[:])), nil
}

// HasBeenRevoked is a Non-goal of the base ACC interface (spec §4.4 does
// not define an on-chain revocation registry); this implementation always
// reports not-revoked. A deployment that adds a revocation registry
// contract would extend this method to call it.
func (v *EthChainView) HasBeenRevoked(ctx context.Context, delegateHash string) (bool, error) {
	return false, nil
}

// RecoverSignatory recovers the signer address of a 65-byte
// r||s||v signature over hash, normalizing v to the 0/1 form ecrecover
// expects regardless of which convention the client used.
func (v *EthChainView) RecoverSignatory(ctx context.Context, hash [32]byte, sig []byte) (string, error) {
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

func packGetAccessPermissions(account common.Address, fileID common.Hash) []byte {
	data := make([]byte, 4+2*32)
	copy(data[:4], getAccessPermissionsSig)
	copy(data[4+12:4+32], account.Bytes())
	copy(data[4+32:4+64], fileID.Bytes())
	return data
}
