package dataserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Remote adapts an out-of-process storage backend reachable over HTTP
// into a DataServer. Every call is forwarded as a single JSON request to
// baseURL+"/"+method; the backend is trusted by construction — the
// Guardian has already authorized whatever call reaches here.
type Remote struct {
	baseURL string
	client  *http.Client
}

// NewRemote creates a Remote client targeting baseURL (no trailing
// slash). A nil httpClient defaults to http.DefaultClient.
func NewRemote(baseURL string, httpClient *http.Client) *Remote {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Remote{baseURL: baseURL, client: httpClient}
}

type remoteCallRequest struct {
	Contract     string         `json:"contract,omitempty"`
	FullFilename string         `json:"fullFilename,omitempty"`
	Data         string         `json:"data,omitempty"`
	Options      map[string]any `json:"options,omitempty"`
}

func (r *Remote) call(ctx context.Context, method string, req remoteCallRequest, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("dataserver: encoding %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dataserver: building %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// This is a server-to-server call on behalf of an already-authorized
	// request; strip anything that could leak the originating client.
	httpReq.Header.Del("Cookie")
	httpReq.Header.Del("Authorization")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("dataserver: calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = fmt.Sprintf("remote data server returned %d", resp.StatusCode)
		}
		return fmt.Errorf("%s", apiErr.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("dataserver: decoding %s response: %w", method, err)
	}
	return nil
}

func (r *Remote) Create(ctx context.Context, contract string, options map[string]any) error {
	return r.call(ctx, "create", remoteCallRequest{Contract: contract, Options: options}, nil)
}

func (r *Remote) Write(ctx context.Context, contract, fullFilename, data string, options map[string]any) error {
	return r.call(ctx, "write", remoteCallRequest{Contract: contract, FullFilename: fullFilename, Data: data, Options: options}, nil)
}

func (r *Remote) Append(ctx context.Context, contract, fullFilename, data string, options map[string]any) error {
	return r.call(ctx, "append", remoteCallRequest{Contract: contract, FullFilename: fullFilename, Data: data, Options: options}, nil)
}

func (r *Remote) Read(ctx context.Context, contract, fullFilename string, options map[string]any) (any, error) {
	var out any
	err := r.call(ctx, "read", remoteCallRequest{Contract: contract, FullFilename: fullFilename, Options: options}, &out)
	return out, err
}

func (r *Remote) List(ctx context.Context, contract, fullFilename string, options map[string]any) (any, error) {
	var out any
	err := r.call(ctx, "list", remoteCallRequest{Contract: contract, FullFilename: fullFilename, Options: options}, &out)
	return out, err
}

func (r *Remote) Delete(ctx context.Context, contract, fullFilename string, options map[string]any) error {
	return r.call(ctx, "delete", remoteCallRequest{Contract: contract, FullFilename: fullFilename, Options: options}, nil)
}

func (r *Remote) Mkdir(ctx context.Context, contract, fullFilename string, options map[string]any) error {
	return r.call(ctx, "mkdir", remoteCallRequest{Contract: contract, FullFilename: fullFilename, Options: options}, nil)
}

// Subscribe is not supported over the plain request/response Remote
// adapter: fan-out needs a persistent channel (e.g. a WebSocket backend
// connection), which is a separate concern from this HTTP client. A
// deployment wiring Remote for subscribe traffic should compose it with
// its own notification transport and is out of scope here.
func (r *Remote) Subscribe(ctx context.Context, contract, fullFilename string, listener Listener, options map[string]any) (string, error) {
	return "", fmt.Errorf("dataserver: remote adapter does not support subscribe")
}

func (r *Remote) Unsubscribe(ctx context.Context, subscriptionID string, options map[string]any) error {
	return fmt.Errorf("dataserver: remote adapter does not support unsubscribe")
}

func (r *Remote) Terminate(ctx context.Context, contract string, options map[string]any) error {
	return r.call(ctx, "terminate", remoteCallRequest{Contract: contract, Options: options}, nil)
}
