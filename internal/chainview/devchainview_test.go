package chainview

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bubbleprotocol/guardian/internal/permission"
)

func TestDevChainViewRecoverSignatory(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	addr := strings.ToLower(crypto.PubkeyToAddress(priv.PublicKey).Hex())

	hash := crypto.Keccak256Hash([]byte("hello bubble"))
	sig, err := crypto.Sign(hash.Bytes(), priv)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	v := NewDevChainView(1)
	got, err := v.RecoverSignatory(context.Background(), [32]byte(hash), sig)
	if err != nil {
		t.Fatalf("RecoverSignatory: %v", err)
	}
	if got != addr {
		t.Errorf("recovered %q, want %q", got, addr)
	}
}

func TestDevChainViewRecoverSignatoryNormalizesV(t *testing.T) {
	priv, _ := crypto.GenerateKey()
	hash := crypto.Keccak256Hash([]byte("data"))
	sig, _ := crypto.Sign(hash.Bytes(), priv)

	bumped := append([]byte(nil), sig...)
	bumped[64] += 27

	v := NewDevChainView(1)
	got, err := v.RecoverSignatory(context.Background(), [32]byte(hash), bumped)
	if err != nil {
		t.Fatalf("RecoverSignatory: %v", err)
	}
	want := strings.ToLower(crypto.PubkeyToAddress(priv.PublicKey).Hex())
	if got != want {
		t.Errorf("recovered %q, want %q", got, want)
	}
}

func TestDevChainViewPermissionsAndContracts(t *testing.T) {
	v := NewDevChainView(7)
	contract := "0xAAAA000000000000000000000000000000000A"
	account := "0xbbbb000000000000000000000000000000000b"
	fileID := "0x0000000000000000000000000000000000000000000000000000000000000001"

	bits, err := permission.FromHex("0x8000000000000000000000000000000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v.SetPermissions(contract, account, fileID, bits)

	ok, err := v.ValidateContract(context.Background(), strings.ToLower(contract))
	if err != nil || !ok {
		t.Errorf("expected contract to validate, err=%v ok=%v", err, ok)
	}

	got, err := v.GetPermissions(context.Background(), contract, account, fileID)
	if err != nil {
		t.Fatalf("GetPermissions: %v", err)
	}
	if !got.BubbleTerminated() {
		t.Errorf("expected the terminated bit to be set")
	}

	chainID, err := v.GetChainID(context.Background())
	if err != nil || chainID != 7 {
		t.Errorf("GetChainID() = %d, %v, want 7, nil", chainID, err)
	}
}

func TestDevChainViewUnknownContract(t *testing.T) {
	v := NewDevChainView(1)
	_, err := v.GetPermissions(context.Background(), "0xunknown0000000000000000000000000000000", "0xacct", "0xfile")
	if !errors.Is(err, ErrContractCallFailed) {
		t.Errorf("expected ErrContractCallFailed for an unregistered contract, got %v", err)
	}
}

func TestDevChainViewRevocation(t *testing.T) {
	v := NewDevChainView(1)
	hash := "0xabc123"
	revoked, err := v.HasBeenRevoked(context.Background(), hash)
	if err != nil || revoked {
		t.Errorf("expected unrevoked by default")
	}
	v.Revoke(hash)
	revoked, err = v.HasBeenRevoked(context.Background(), strings.ToUpper(hash))
	if err != nil || !revoked {
		t.Errorf("expected revocation to be recorded case-insensitively")
	}
}
