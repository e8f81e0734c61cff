// Package sigengine canonicalizes a request or delegation packet into a
// digest and recovers its signer for each of the supported schemes:
// public, plain-ECDSA, EIP-191 personal-sign, EIP-712 typed data, and the
// legacy v0 wire format (spec §4.3).
package sigengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/bubbleprotocol/guardian/internal/canonicaljson"
	"github.com/bubbleprotocol/guardian/internal/validate"
)

// Context selects what the digest is computed over (spec §4.3).
type Context int

const (
	// ContextRPC digests a signed request packet.
	ContextRPC Context = iota
	// ContextDelegate digests a signed delegation packet.
	ContextDelegate
	// ContextMessage digests a plain string.
	ContextMessage
	// ContextDigest treats the input as an already-computed hash.
	ContextDigest
)

// PublicSignatory is the hard-coded address bound by signature=public. It
// is never recovered from cryptography (spec §3 invariant).
const PublicSignatory = "0x99e2c875341d1cbb70432e35f5350f29bf20aa52"

// LegacySignaturePrefix is the only signaturePrefix value legacy v0
// requests may carry, selecting EIP-191 recovery instead of plain.
const LegacySignaturePrefix = "\x19Ethereum Signed Message:\n64"

const signatureByteLen = 65

var (
	// ErrInvalidSignature is returned for any shape-invalid signature.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrEIP712WrongContext is returned when eip712 is requested outside rpc/delegate.
	ErrEIP712WrongContext = errors.New("eip712 signatures are only valid in rpc or delegate context")
	// ErrEIP712AllPermissions is returned when a delegation granting
	// "all-permissions" is signed with eip712: the fixed Permission[]
	// typed-data schema (spec §6) has no encoding for the scalar
	// sentinel, so eip712 delegations must enumerate permissions
	// explicitly. Use plain or eip191 to sign an all-permissions grant.
	ErrEIP712AllPermissions = errors.New("eip712 cannot encode an all-permissions delegation")
)

// Signature is a normalized signature: a recognized type and its decoded
// bytes (empty for "public").
type Signature struct {
	Type  string
	Bytes []byte
}

// SignatoryRecoverer performs the actual elliptic-curve recovery given a
// 32-byte hash and a 65-byte signature. Satisfied structurally by
// chainview.ChainView; kept minimal here to avoid a package dependency.
type SignatoryRecoverer interface {
	RecoverSignatory(ctx context.Context, hash [32]byte, sig []byte) (string, error)
}

type wireSignatureObj struct {
	Type      string          `json:"type"`
	Signature string          `json:"signature"`
	Delegate  json.RawMessage `json:"delegate,omitempty"`
}

// ParseSignatureField normalizes the raw "signature" field of a request
// or delegation packet into a Signature, applying the legacy-v0 rewrite
// (spec §4.3, §9 "Legacy v0 detection") when hasVersion is false and the
// field is shaped as a legacy packet. It also returns the raw "delegate"
// sub-object, if the signature carries one (rpc/delegate packets only).
func ParseSignatureField(raw json.RawMessage, hasVersion bool, signaturePrefix string) (Signature, json.RawMessage, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "public" {
			return Signature{Type: "public"}, nil, nil
		}
		if hasVersion {
			return Signature{}, nil, ErrInvalidSignature
		}
		if !validate.IsHexOptionalPrefix(asString, signatureByteLen) {
			return Signature{}, nil, ErrInvalidSignature
		}
		if signaturePrefix != "" && signaturePrefix != LegacySignaturePrefix {
			return Signature{}, nil, ErrInvalidSignature
		}
		typ := "plain"
		if signaturePrefix == LegacySignaturePrefix {
			typ = "eip191"
		}
		b, err := validate.DecodeSignatureHex(asString)
		if err != nil {
			return Signature{}, nil, ErrInvalidSignature
		}
		return Signature{Type: typ, Bytes: b}, nil, nil
	}

	var obj wireSignatureObj
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Signature{}, nil, ErrInvalidSignature
	}
	switch obj.Type {
	case "public":
		return Signature{Type: "public"}, nil, nil
	case "plain", "eip191", "eip712":
		if !validate.IsHexOptionalPrefix(obj.Signature, signatureByteLen) {
			return Signature{}, nil, ErrInvalidSignature
		}
		b, err := validate.DecodeSignatureHex(obj.Signature)
		if err != nil {
			return Signature{}, nil, ErrInvalidSignature
		}
		return Signature{Type: obj.Type, Bytes: b}, obj.Delegate, nil
	default:
		return Signature{}, nil, ErrInvalidSignature
	}
}

// RequestFields are the structured fields of a request packet, needed to
// build an EIP-712 typed-data digest (spec §6). File/Data default to ""
// and Options to "{}" when absent from the wire packet.
type RequestFields struct {
	Version   uint64
	Method    string
	Timestamp uint64
	Nonce     string
	ChainID   uint64
	Contract  string
	File      string
	Data      string
	Options   string
}

// DelegationFields are the structured fields of a delegation packet,
// needed to build its EIP-712 typed-data digest (spec §6).
type DelegationFields struct {
	Version     uint64
	Delegate    string
	Never       bool
	ExpiresAt   int64
	AllGranted  bool
	Permissions []PermissionField
}

// PermissionField is one EIP-712-encoded Permission entry.
type PermissionField struct {
	Type     string
	Chain    uint64
	Contract string
	Provider string
}

// RecoverRequest recovers the signatory of an outer RPC request.
// rawPacket is the full params object exactly as received (including the
// signature/signaturePrefix fields, which are stripped internally before
// hashing).
func RecoverRequest(ctx context.Context, recoverer SignatoryRecoverer, rawPacket json.RawMessage, fields RequestFields, sig Signature) (string, error) {
	if sig.Type == "public" {
		return PublicSignatory, nil
	}
	hash, err := digestPacket(ContextRPC, rawPacket, sig.Type, func() ([32]byte, error) {
		return eip712RequestDigest(fields), nil
	})
	if err != nil {
		return "", err
	}
	return recoverSigner(ctx, recoverer, hash, sig)
}

// RecoverDelegation recovers the signatory of a nested delegation packet.
func RecoverDelegation(ctx context.Context, recoverer SignatoryRecoverer, rawPacket json.RawMessage, fields DelegationFields, sig Signature) (string, error) {
	if sig.Type == "public" {
		return PublicSignatory, nil
	}
	if sig.Type == "eip712" && fields.AllGranted {
		return "", ErrEIP712AllPermissions
	}
	hash, err := digestPacket(ContextDelegate, rawPacket, sig.Type, func() ([32]byte, error) {
		return eip712DelegationDigest(fields), nil
	})
	if err != nil {
		return "", err
	}
	return recoverSigner(ctx, recoverer, hash, sig)
}

// RecoverMessage recovers the signer of a plain string message. eip712 is
// not a valid scheme in this context.
func RecoverMessage(ctx context.Context, recoverer SignatoryRecoverer, message string, sig Signature) (string, error) {
	if sig.Type == "public" {
		return PublicSignatory, nil
	}
	if sig.Type == "eip712" {
		return "", ErrEIP712WrongContext
	}
	hash := hashForContext(ContextMessage, []byte(message), sig.Type)
	return recoverSigner(ctx, recoverer, hash, sig)
}

// RecoverDigest recovers the signer of a raw, already-hashed digest given
// as hex. eip712 is not a valid scheme in this context.
func RecoverDigest(ctx context.Context, recoverer SignatoryRecoverer, digestHex string, sig Signature) (string, error) {
	if sig.Type == "public" {
		return PublicSignatory, nil
	}
	if sig.Type == "eip712" {
		return "", ErrEIP712WrongContext
	}
	raw, err := validate.DecodeSignatureHex(digestHex)
	if err != nil {
		return "", fmt.Errorf("sigengine: invalid digest hex: %w", err)
	}
	hash := hashForContext(ContextDigest, raw, sig.Type)
	return recoverSigner(ctx, recoverer, hash, sig)
}

// CanonicalHash computes keccak256 of rawPacket with its signature fields
// stripped: the stable content hash used to identify a delegation
// regardless of which scheme actually signed it (spec §4.4). This is the
// hash passed to ChainView.HasBeenRevoked, distinct from the per-scheme
// recovery digest computed by RecoverDelegation.
func CanonicalHash(rawPacket json.RawMessage) ([32]byte, error) {
	stripped, err := canonicaljson.StripKeys(rawPacket, "signature", "signaturePrefix")
	if err != nil {
		return [32]byte{}, fmt.Errorf("sigengine: %w", err)
	}
	return keccak256(stripped), nil
}

func digestPacket(ctx Context, rawPacket json.RawMessage, sigType string, eip712 func() ([32]byte, error)) ([32]byte, error) {
	if sigType == "eip712" {
		h, err := eip712()
		return h, err
	}
	stripped, err := canonicaljson.StripKeys(rawPacket, "signature", "signaturePrefix")
	if err != nil {
		return [32]byte{}, fmt.Errorf("sigengine: %w", err)
	}
	return hashForContext(ctx, stripped, sigType), nil
}

func hashForContext(ctx Context, d []byte, sigType string) [32]byte {
	switch sigType {
	case "eip191":
		return eip191Hash(d)
	default: // "plain"
		if ctx == ContextDigest {
			var h [32]byte
			copy(h[:], d)
			return h
		}
		return keccak256(d)
	}
}

func eip191Hash(d []byte) [32]byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(d))
	return keccak256(append([]byte(prefix), d...))
}

func recoverSigner(ctx context.Context, recoverer SignatoryRecoverer, hash [32]byte, sig Signature) (string, error) {
	signer, err := recoverer.RecoverSignatory(ctx, hash, sig.Bytes)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return signer, nil
}
