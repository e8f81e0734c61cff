// Package delegation parses and evaluates Bubble Protocol delegation
// packets (spec §3, §4.4): a signed statement granting one key the right
// to act for another on specific content until an expiry.
package delegation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bubbleprotocol/guardian/internal/validate"
)

// ContentID identifies a bubble across chains and storage providers
// (spec §3).
type ContentID struct {
	Chain    uint64
	Contract string // lowercase 0x address
	Provider string
}

// AllPermissions is the literal value of the "permissions" field that
// grants every non-revoked, non-expired content (spec §3).
const AllPermissions = "all-permissions"

// Permission is one entry of a delegation's permission list. It is a
// tagged sum of ContractPermission | BubblePermission (design note §9:
// reimplemented as a sum type rather than a class hierarchy).
type Permission interface {
	Matches(cid ContentID) bool
}

// ContractPermission matches any bubble on (chain, contract), regardless
// of storage provider.
type ContractPermission struct {
	Chain    uint64
	Contract string
}

func (p ContractPermission) Matches(cid ContentID) bool {
	return p.Chain == cid.Chain && strings.EqualFold(p.Contract, cid.Contract)
}

// BubblePermission matches exactly one (chain, contract, provider).
type BubblePermission struct {
	Chain    uint64
	Contract string
	Provider string
}

func (p BubblePermission) Matches(cid ContentID) bool {
	return p.Chain == cid.Chain &&
		strings.EqualFold(p.Contract, cid.Contract) &&
		p.Provider == cid.Provider
}

// Expires is either "never" or a UNIX-seconds instant.
type Expires struct {
	Never bool
	At    int64
}

// IsRelevant reports whether the delegation has not yet expired at now
// (UNIX seconds). Boundary: expires == now is already expired (spec §8:
// strict "<").
func (e Expires) IsRelevant(now int64) bool {
	return e.Never || e.At > now
}

// Delegation is a parsed, structurally-valid delegation packet. Its
// signature has not necessarily been recovered yet; that is the
// sigengine package's job, since recovery may itself recurse into a
// further signature scheme.
type Delegation struct {
	Version     int
	Delegate    string // lowercase 20-byte hex
	Expires     Expires
	AllGranted  bool
	Permissions []Permission

	// Raw is the packet's JSON exactly as received, including its
	// signature field — needed later to compute the signing digest.
	Raw json.RawMessage

	// Signature is the packet's own (unparsed) signature field, handed
	// to the signature engine for recovery in the "delegate" context.
	Signature json.RawMessage

	// HasVersion records whether the version field was present, used by
	// the signature engine to select legacy-v0 vs modern recovery for
	// this delegation's own signature.
	HasVersion bool

	// SignaturePrefix carries a legacy "signaturePrefix" field, if any.
	SignaturePrefix string
}

var (
	// ErrMissingDelegate is returned when the delegate field is absent or empty.
	ErrMissingDelegate = errors.New("delegation: missing delegate")
	// ErrInvalidDelegate is returned when the delegate field is not a 20-byte hex address.
	ErrInvalidDelegate = errors.New("delegation: invalid delegate address")
	// ErrInvalidExpires is returned when expires is neither an integer nor "never".
	ErrInvalidExpires = errors.New("delegation: invalid expires")
	// ErrInvalidPermissions is returned when permissions is neither "all-permissions" nor a list.
	ErrInvalidPermissions = errors.New("delegation: invalid permissions")
	// ErrInvalidPermissionType is returned for a permission list entry with an unrecognized "type".
	ErrInvalidPermissionType = errors.New("delegation: invalid permission type")
	// ErrMissingSignature is returned when the signature field is absent.
	ErrMissingSignature = errors.New("delegation: missing signature")
)

type wireDelegation struct {
	Version         *int            `json:"version"`
	Delegate        string          `json:"delegate"`
	Expires         json.RawMessage `json:"expires"`
	Permissions     json.RawMessage `json:"permissions"`
	Signature       json.RawMessage `json:"signature"`
	SignaturePrefix string          `json:"signaturePrefix"`
}

type wirePermission struct {
	Type     string `json:"type"`
	Chain    uint64 `json:"chain"`
	Contract string `json:"contract"`
	Provider string `json:"provider"`
}

// Parse structurally parses and validates a delegation packet. It never
// performs I/O or signature recovery.
func Parse(raw json.RawMessage) (*Delegation, error) {
	var w wireDelegation
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("delegation: decoding packet: %w", err)
	}

	if w.Delegate == "" {
		return nil, ErrMissingDelegate
	}
	delegate, ok := validate.NormalizeAddress(w.Delegate)
	if !ok {
		return nil, ErrInvalidDelegate
	}

	expires, err := parseExpires(w.Expires)
	if err != nil {
		return nil, err
	}

	allGranted, perms, err := parsePermissions(w.Permissions)
	if err != nil {
		return nil, err
	}

	if len(w.Signature) == 0 {
		return nil, ErrMissingSignature
	}

	d := &Delegation{
		Delegate:        delegate,
		Expires:         expires,
		AllGranted:      allGranted,
		Permissions:     perms,
		Raw:             raw,
		Signature:       w.Signature,
		HasVersion:      w.Version != nil,
		SignaturePrefix: w.SignaturePrefix,
	}
	if w.Version != nil {
		d.Version = *w.Version
	}
	return d, nil
}

func parseExpires(raw json.RawMessage) (Expires, error) {
	if len(raw) == 0 {
		return Expires{}, ErrInvalidExpires
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "never" {
			return Expires{Never: true}, nil
		}
		return Expires{}, ErrInvalidExpires
	}
	var asInt int64
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return Expires{At: asInt}, nil
	}
	return Expires{}, ErrInvalidExpires
}

func parsePermissions(raw json.RawMessage) (allGranted bool, perms []Permission, err error) {
	if len(raw) == 0 {
		return false, nil, ErrInvalidPermissions
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == AllPermissions {
			return true, nil, nil
		}
		return false, nil, ErrInvalidPermissions
	}

	var wirePerms []wirePermission
	if err := json.Unmarshal(raw, &wirePerms); err != nil {
		return false, nil, ErrInvalidPermissions
	}

	perms = make([]Permission, 0, len(wirePerms))
	for _, wp := range wirePerms {
		contract, ok := validate.NormalizeAddress(wp.Contract)
		if !ok {
			return false, nil, ErrInvalidPermissions
		}
		switch wp.Type {
		case "contract":
			perms = append(perms, ContractPermission{Chain: wp.Chain, Contract: contract})
		case "bubble":
			if wp.Provider == "" {
				return false, nil, ErrInvalidPermissions
			}
			perms = append(perms, BubblePermission{Chain: wp.Chain, Contract: contract, Provider: wp.Provider})
		default:
			return false, nil, ErrInvalidPermissionType
		}
	}
	return false, perms, nil
}

// MatchesAny reports whether this delegation's granted permissions cover
// cid: true unconditionally when AllGranted, otherwise true iff at least
// one list entry matches.
func (d *Delegation) MatchesAny(cid ContentID) bool {
	if d.AllGranted {
		return true
	}
	for _, p := range d.Permissions {
		if p.Matches(cid) {
			return true
		}
	}
	return false
}

// Authorize performs the authorization-time checks from spec §4.4, given
// the request's outer signatory and whether this delegation's hash has
// been revoked on-chain. It assumes the delegation's own signature has
// already been recovered successfully (i.e. the delegation is "valid");
// Authorize only adds the "relevant" and content-matching conditions.
func (d *Delegation) Authorize(requestSigner string, cid ContentID, revoked bool, now int64) error {
	if !d.Expires.IsRelevant(now) {
		return errDelegateDenied
	}
	if revoked {
		return errDelegateDenied
	}
	if !strings.EqualFold(requestSigner, d.Delegate) {
		return errDelegateDenied
	}
	if !d.MatchesAny(cid) {
		return errDelegateDenied
	}
	return nil
}

// errDelegateDenied is the sentinel Authorize returns; the guardian
// package wraps it into bubbleerr.PermissionDenied("delegate denied").
var errDelegateDenied = errors.New("delegate denied")

// ErrDelegateDenied is exported for callers that want to compare with
// errors.Is rather than re-wrap blindly.
var ErrDelegateDenied = errDelegateDenied
