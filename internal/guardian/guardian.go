// Package guardian orchestrates request validation, signatory recovery,
// ACC permission lookup, and per-method authorization into a single
// entry point, Guardian.Post (spec §4.5).
package guardian

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bubbleprotocol/guardian/internal/bubbleerr"
	"github.com/bubbleprotocol/guardian/internal/bubblefile"
	"github.com/bubbleprotocol/guardian/internal/chainview"
	"github.com/bubbleprotocol/guardian/internal/dataserver"
	"github.com/bubbleprotocol/guardian/internal/delegation"
	"github.com/bubbleprotocol/guardian/internal/sigengine"
	"github.com/bubbleprotocol/guardian/internal/subscription"
)

// Guardian is configured once with its collaborators and is safe for
// concurrent use across independent requests (spec §5): it holds no
// per-request mutable state.
type Guardian struct {
	ChainView  chainview.ChainView
	DataServer dataserver.DataServer

	// HostDomain is this Guardian's provider identifier, matched against
	// "bubble"-type delegation permissions (spec §3, §4.4).
	HostDomain string

	// Tokens mints and verifies the JWT-backed subscriptionId returned to
	// clients (spec §9's open slot for subscriptionId's wire format). May
	// be nil, in which case the DataServer's own backend id is returned
	// and accepted unwrapped — useful for tests and single-process setups
	// where spoofing across connections is not a concern.
	Tokens *subscription.TokenIssuer
}

// New constructs a Guardian from its three collaborators.
func New(cv chainview.ChainView, ds dataserver.DataServer, hostDomain string) *Guardian {
	return &Guardian{ChainView: cv, DataServer: ds, HostDomain: hostDomain}
}

// WithTokens attaches a TokenIssuer for subscriptionId correlation tokens.
func (g *Guardian) WithTokens(t *subscription.TokenIssuer) *Guardian {
	g.Tokens = t
	return g
}

// Post runs the full authorization pipeline for one RPC and invokes the
// corresponding DataServer call. listener is only used for "subscribe"
// and may be nil for every other method.
func (g *Guardian) Post(ctx context.Context, method string, raw json.RawMessage, listener dataserver.Listener) (any, error) {
	method, p, err := parseRequest(method, raw)
	if err != nil {
		return nil, err
	}

	if method == "unsubscribe" {
		backendID := p.SubscriptionID
		if g.Tokens != nil {
			claims, err := g.Tokens.Verify(p.SubscriptionID)
			if err != nil {
				return nil, bubbleerr.NewInvalidMethodParams("invalid subscriptionId", err)
			}
			backendID = claims.ID
		}
		if err := g.DataServer.Unsubscribe(ctx, backendID, p.Options); err != nil {
			return nil, normalizeDataServerErr(err)
		}
		return true, nil
	}
	if method == "ping" {
		return "pong", nil
	}

	contract := strings.ToLower(p.Contract)
	ok, err := g.ChainView.ValidateContract(ctx, contract)
	if err != nil {
		return nil, bubbleerr.NewInternalErrorCause("blockchain unavailable - please try again later", err)
	}
	if !ok {
		return nil, bubbleerr.NewInvalidMethodParams("invalid contract", nil)
	}

	filename, err := bubblefile.Parse(p.File)
	if err != nil {
		return nil, bubbleerr.NewInvalidMethodParams("malformed file", err)
	}

	wantChainID, err := g.ChainView.GetChainID(ctx)
	if err != nil {
		return nil, bubbleerr.NewInternalErrorCause("blockchain unavailable - please try again later", err)
	}
	if p.ChainID != wantChainID {
		return nil, bubbleerr.NewBlockchainNotSupported(fmt.Sprintf("unsupported chainId %d", p.ChainID))
	}

	signer, err := g.recoverSignatory(ctx, method, p, contract)
	if err != nil {
		if be, ok := bubbleerr.As(err); ok {
			return nil, be
		}
		return nil, bubbleerr.NewInvalidMethodParams("cannot decode signature", err)
	}

	bits, err := g.ChainView.GetPermissions(ctx, contract, signer, filename.PermissionedPart())
	if err != nil {
		if strings.Contains(err.Error(), "execution reverted") {
			return nil, bubbleerr.NewMethodFailed("Blockchain reverted. Is this an Access Control Contract?")
		}
		return nil, bubbleerr.NewInternalError("Blockchain unavailable - please try again later.")
	}

	if method == "getPermissions" {
		return bits.Hex(), nil
	}

	filename.SetPermissions(bits)

	if bits.BubbleTerminated() {
		if method == "terminate" {
			if err := g.DataServer.Terminate(ctx, contract, p.Options); err != nil {
				return nil, normalizeDataServerErr(err)
			}
			return true, nil
		}
		_ = g.DataServer.Terminate(ctx, contract, nil)
		return nil, bubbleerr.NewBubbleTerminated()
	}

	if !filename.IsValid() {
		return nil, bubbleerr.NewPermissionDenied("path extension requires a directory id")
	}

	return g.dispatch(ctx, method, contract, signer, filename, p, listener)
}

// recoverSignatory recovers the outer request signer and, if the
// signature carries a nested delegation, validates it and returns the
// delegation's own signatory as the effective identity (spec §4.3,
// §4.4): permissions are then checked against the grantor, not the
// outer key.
func (g *Guardian) recoverSignatory(ctx context.Context, method string, p *params, contract string) (string, error) {
	sig, delegateRaw, err := sigengine.ParseSignatureField(p.Signature, p.HasVersion, p.SignaturePrefix)
	if err != nil {
		return "", err
	}

	fields := sigengine.RequestFields{
		Version:   p.Version,
		Method:    method,
		Timestamp: p.Timestamp,
		Nonce:     p.Nonce,
		ChainID:   p.ChainID,
		Contract:  contract,
		File:      p.File,
		Data:      p.Data,
		Options:   optionsJSON(p.Options),
	}
	outerSigner, err := sigengine.RecoverRequest(ctx, g.ChainView, p.Raw, fields, sig)
	if err != nil {
		return "", err
	}
	if len(delegateRaw) == 0 {
		return outerSigner, nil
	}

	d, err := delegation.Parse(delegateRaw)
	if err != nil {
		return "", bubbleerr.NewInvalidMethodParams("cannot decode delegate", err)
	}
	delegSig, nestedRaw, err := sigengine.ParseSignatureField(d.Signature, d.HasVersion, d.SignaturePrefix)
	if err != nil {
		return "", bubbleerr.NewInvalidMethodParams("cannot decode delegate", err)
	}
	if len(nestedRaw) > 0 {
		return "", bubbleerr.NewInvalidMethodParams("cannot decode delegate", fmt.Errorf("delegation nesting depth exceeded"))
	}

	// A shape-valid signature that fails to recover leaves the delegation
	// invalid, which is an authorization failure, not a decode failure.
	grantor, err := sigengine.RecoverDelegation(ctx, g.ChainView, d.Raw, toDelegationFields(d), delegSig)
	if err != nil {
		return "", bubbleerr.NewPermissionDenied("delegate denied")
	}

	hash, err := sigengine.CanonicalHash(d.Raw)
	if err != nil {
		return "", bubbleerr.NewInvalidMethodParams("cannot decode delegate", err)
	}
	revoked, err := g.ChainView.HasBeenRevoked(ctx, fmt.Sprintf("0x%x", hash))
	if err != nil {
		return "", bubbleerr.NewInternalErrorCause("blockchain unavailable - please try again later", err)
	}

	cid := delegation.ContentID{Chain: p.ChainID, Contract: contract, Provider: g.HostDomain}
	if err := d.Authorize(outerSigner, cid, revoked, time.Now().Unix()); err != nil {
		return "", bubbleerr.NewPermissionDenied("delegate denied")
	}
	return grantor, nil
}

func toDelegationFields(d *delegation.Delegation) sigengine.DelegationFields {
	f := sigengine.DelegationFields{
		Version:    uint64(d.Version),
		Delegate:   d.Delegate,
		Never:      d.Expires.Never,
		ExpiresAt:  d.Expires.At,
		AllGranted: d.AllGranted,
	}
	for _, perm := range d.Permissions {
		switch v := perm.(type) {
		case delegation.ContractPermission:
			f.Permissions = append(f.Permissions, sigengine.PermissionField{Type: "contract", Chain: v.Chain, Contract: v.Contract})
		case delegation.BubblePermission:
			f.Permissions = append(f.Permissions, sigengine.PermissionField{Type: "bubble", Chain: v.Chain, Contract: v.Contract, Provider: v.Provider})
		}
	}
	return f
}

func optionsJSON(options map[string]any) string {
	if options == nil {
		return "{}"
	}
	b, err := json.Marshal(options)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// normalizeDataServerErr maps a DataServer rejection to the Guardian's
// taxonomy: a *bubbleerr.Error passes through unchanged, anything else
// becomes an INTERNAL_ERROR (spec §4.5, §7).
func normalizeDataServerErr(err error) error {
	if err == nil {
		return nil
	}
	if be, ok := bubbleerr.As(err); ok {
		return be
	}
	return bubbleerr.NewInternalErrorCause("data server error", err)
}
