// Package dataserver defines the Guardian's storage boundary (spec §2.7)
// and provides a Memory reference implementation plus a Remote adapter
// that forwards authorized calls to an out-of-process storage backend.
package dataserver

import "context"

// Notification is one pub/sub event delivered to a subscriber: either a
// result or an error, never both.
type Notification struct {
	SubscriptionID string
	Result         any
	Err            error
}

// Listener receives subscription notifications. The Guardian never calls
// a client's listener directly — it always wraps it first (spec §4.6).
type Listener func(Notification)

// DataServer is the storage collaborator invoked only after the Guardian
// has authorized a request (spec §4.5). None of its methods interpret
// permissions; by the time any of them is called the caller has already
// been cleared.
type DataServer interface {
	Create(ctx context.Context, contract string, options map[string]any) error
	Write(ctx context.Context, contract, fullFilename, data string, options map[string]any) error
	Append(ctx context.Context, contract, fullFilename, data string, options map[string]any) error
	Read(ctx context.Context, contract, fullFilename string, options map[string]any) (any, error)
	List(ctx context.Context, contract, fullFilename string, options map[string]any) (any, error)
	Delete(ctx context.Context, contract, fullFilename string, options map[string]any) error
	Mkdir(ctx context.Context, contract, fullFilename string, options map[string]any) error

	// Subscribe registers listener for notifications on fullFilename and
	// returns the backend-assigned subscription id.
	Subscribe(ctx context.Context, contract, fullFilename string, listener Listener, options map[string]any) (string, error)
	Unsubscribe(ctx context.Context, subscriptionID string, options map[string]any) error

	// Terminate tears down a bubble's storage, either guardian-initiated
	// (options nil, best-effort) or client-requested via the "terminate"
	// method (options passed through, result surfaced to the caller).
	Terminate(ctx context.Context, contract string, options map[string]any) error
}
