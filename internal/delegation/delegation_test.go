package delegation

import (
	"encoding/json"
	"errors"
	"testing"
)

const delegateAddr = "0x1111111111111111111111111111111111111111"
const contractAddr = "0x2222222222222222222222222222222222222222"

func rawPacket(t *testing.T, body string) json.RawMessage {
	t.Helper()
	return json.RawMessage(body)
}

func TestParseAllPermissions(t *testing.T) {
	raw := rawPacket(t, `{"delegate":"`+delegateAddr+`","expires":"never","permissions":"all-permissions","signature":{"type":"public"}}`)
	d, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.AllGranted {
		t.Errorf("expected AllGranted to be true")
	}
	if !d.Expires.IsRelevant(1234567890) {
		t.Errorf("never should always be relevant")
	}
}

func TestParseBubblePermission(t *testing.T) {
	raw := rawPacket(t, `{"delegate":"`+delegateAddr+`","expires":100,"permissions":[{"type":"bubble","chain":1,"contract":"`+contractAddr+`","provider":"example.com"}],"signature":{"type":"public"}}`)
	d, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.AllGranted {
		t.Errorf("expected AllGranted to be false")
	}
	if len(d.Permissions) != 1 {
		t.Fatalf("expected one permission entry, got %d", len(d.Permissions))
	}
	cid := ContentID{Chain: 1, Contract: contractAddr, Provider: "example.com"}
	if !d.MatchesAny(cid) {
		t.Errorf("expected bubble permission to match its own content id")
	}
	wrongProvider := ContentID{Chain: 1, Contract: contractAddr, Provider: "other.com"}
	if d.MatchesAny(wrongProvider) {
		t.Errorf("bubble permission must not match a different provider")
	}
}

func TestParseContractPermissionIgnoresProvider(t *testing.T) {
	raw := rawPacket(t, `{"delegate":"`+delegateAddr+`","expires":"never","permissions":[{"type":"contract","chain":1,"contract":"`+contractAddr+`"}],"signature":{"type":"public"}}`)
	d, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cidA := ContentID{Chain: 1, Contract: contractAddr, Provider: "a.com"}
	cidB := ContentID{Chain: 1, Contract: contractAddr, Provider: "b.com"}
	if !d.MatchesAny(cidA) || !d.MatchesAny(cidB) {
		t.Errorf("a contract permission should match regardless of provider")
	}
}

func TestParseRejectsUnknownPermissionType(t *testing.T) {
	raw := rawPacket(t, `{"delegate":"`+delegateAddr+`","expires":"never","permissions":[{"type":"mystery","chain":1,"contract":"`+contractAddr+`"}],"signature":{"type":"public"}}`)
	_, err := Parse(raw)
	if !errors.Is(err, ErrInvalidPermissionType) {
		t.Fatalf("expected ErrInvalidPermissionType, got %v", err)
	}
}

func TestParseRejectsMissingDelegate(t *testing.T) {
	raw := rawPacket(t, `{"expires":"never","permissions":"all-permissions","signature":{"type":"public"}}`)
	_, err := Parse(raw)
	if !errors.Is(err, ErrMissingDelegate) {
		t.Fatalf("expected ErrMissingDelegate, got %v", err)
	}
}

func TestParseRejectsMissingSignature(t *testing.T) {
	raw := rawPacket(t, `{"delegate":"`+delegateAddr+`","expires":"never","permissions":"all-permissions"}`)
	_, err := Parse(raw)
	if !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
}

func TestExpiresBoundary(t *testing.T) {
	e := Expires{At: 1000}
	if e.IsRelevant(1000) {
		t.Errorf("expires == now should be expired (strict <)")
	}
	if !e.IsRelevant(999) {
		t.Errorf("expires == now+1 should not be expired")
	}
}

func TestAuthorize(t *testing.T) {
	raw := rawPacket(t, `{"delegate":"`+delegateAddr+`","expires":"never","permissions":[{"type":"bubble","chain":1,"contract":"`+contractAddr+`","provider":"host"}],"signature":{"type":"public"}}`)
	d, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cid := ContentID{Chain: 1, Contract: contractAddr, Provider: "host"}

	if err := d.Authorize(delegateAddr, cid, false, 100); err != nil {
		t.Errorf("expected Authorize to succeed, got %v", err)
	}
	if err := d.Authorize(delegateAddr, cid, true, 100); !errors.Is(err, ErrDelegateDenied) {
		t.Errorf("revoked delegation must be denied")
	}
	if err := d.Authorize("0x3333333333333333333333333333333333333333", cid, false, 100); !errors.Is(err, ErrDelegateDenied) {
		t.Errorf("wrong outer signer must be denied")
	}
	other := ContentID{Chain: 2, Contract: contractAddr, Provider: "host"}
	if err := d.Authorize(delegateAddr, other, false, 100); !errors.Is(err, ErrDelegateDenied) {
		t.Errorf("mismatched content id must be denied")
	}
}

func TestAuthorizeCaseInsensitiveDelegateMatch(t *testing.T) {
	raw := rawPacket(t, `{"delegate":"0xaaaabbbbccccddddeeeeffff0000111122223333","expires":"never","permissions":"all-permissions","signature":{"type":"public"}}`)
	d, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	upper := "0xAAAABBBBCCCCDDDDEEEEFFFF0000111122223333"
	cid := ContentID{Chain: 1, Contract: contractAddr, Provider: "host"}
	if err := d.Authorize(upper, cid, false, 100); err != nil {
		t.Errorf("case-insensitive delegate match should succeed: %v", err)
	}
}
