package guardian

import (
	"encoding/json"
	"fmt"

	"github.com/bubbleprotocol/guardian/internal/bubbleerr"
	"github.com/bubbleprotocol/guardian/internal/validate"
)

// methods enumerates the RPCs the Guardian accepts (spec §3).
var methods = map[string]bool{
	"create":         true,
	"write":          true,
	"append":         true,
	"read":           true,
	"delete":         true,
	"mkdir":          true,
	"list":           true,
	"getPermissions": true,
	"subscribe":      true,
	"unsubscribe":    true,
	"terminate":      true,
	"ping":           true,
}

type wireParams struct {
	Version *uint64 `json:"version"`

	// Timestamp is reserved for replay control. It is validated as an
	// integer and included in the signed digest, but not compared
	// against wall-clock time: enforcing a freshness window would change
	// observable behavior for clients that pre-sign requests.
	Timestamp       *uint64         `json:"timestamp"`
	Nonce           string          `json:"nonce"`
	ChainID         *uint64         `json:"chainId"`
	Contract        string          `json:"contract"`
	File            string          `json:"file"`
	Data            *string         `json:"data"`
	Options         map[string]any  `json:"options"`
	SubscriptionID  string          `json:"subscriptionId"`
	Signature       json.RawMessage `json:"signature"`
	SignaturePrefix string          `json:"signaturePrefix"`
}

// params is the structurally-validated form of an inbound request's
// params object (spec §3). Raw retains the exact bytes received, needed
// intact for signature recovery.
type params struct {
	Raw             json.RawMessage
	HasVersion      bool
	Version         uint64
	Timestamp       uint64
	Nonce           string
	ChainID         uint64
	Contract        string
	File            string
	Data            string
	HasData         bool
	Options         map[string]any
	SubscriptionID  string
	Signature       json.RawMessage
	SignaturePrefix string
}

// parseRequest structurally validates method and raw against spec §3.
// It never performs I/O; chain-dependent checks (chainId match, contract
// validity) happen later in the pipeline.
func parseRequest(method string, raw json.RawMessage) (string, *params, error) {
	if method == "" {
		return "", nil, bubbleerr.NewInvalidRequest("missing method")
	}
	if !methods[method] {
		return "", nil, bubbleerr.NewMethodNotFound(method)
	}

	var w wireParams
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return "", nil, bubbleerr.NewInvalidMethodParams("malformed params", err)
	}

	if method == "unsubscribe" {
		if w.SubscriptionID == "" {
			return "", nil, bubbleerr.NewInvalidMethodParams("missing subscriptionId", nil)
		}
		return method, &params{Raw: raw, SubscriptionID: w.SubscriptionID}, nil
	}
	if method == "ping" {
		return method, &params{Raw: raw}, nil
	}

	if w.Nonce == "" {
		return "", nil, bubbleerr.NewInvalidMethodParams("missing nonce", nil)
	}
	if w.Timestamp == nil {
		return "", nil, bubbleerr.NewInvalidMethodParams("missing timestamp", nil)
	}
	if w.ChainID == nil {
		return "", nil, bubbleerr.NewInvalidMethodParams("missing chainId", nil)
	}
	if !validate.IsAddress(w.Contract) {
		return "", nil, bubbleerr.NewInvalidMethodParams("invalid contract", nil)
	}
	if (method == "write" || method == "append") && (w.Data == nil || *w.Data == "") {
		return "", nil, bubbleerr.NewInvalidMethodParams(fmt.Sprintf("missing data for %s", method), nil)
	}
	if len(w.Signature) == 0 {
		return "", nil, bubbleerr.NewInvalidMethodParams("missing signature", nil)
	}

	p := &params{
		Raw:             raw,
		HasVersion:      w.Version != nil,
		Timestamp:       *w.Timestamp,
		Nonce:           w.Nonce,
		ChainID:         *w.ChainID,
		Contract:        w.Contract,
		File:            w.File,
		Options:         w.Options,
		Signature:       w.Signature,
		SignaturePrefix: w.SignaturePrefix,
	}
	if w.Version != nil {
		p.Version = *w.Version
	}
	if w.Data != nil {
		p.Data = *w.Data
		p.HasData = true
	}
	return method, p, nil
}
