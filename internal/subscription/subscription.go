// Package subscription implements ProtectedSubscription (spec §4.6): a
// thin wrapper around a client's pub/sub listener that re-checks read
// permission on the ACC before forwarding each notification, and issues
// JWT-backed correlation tokens so that unsubscribe takes a signed token
// rather than a bare backend id (spec §9, "subscriptionId's wire format is
// left unspecified"). A token is not tied to the connection that
// subscribed: any holder of it can unsubscribe.
package subscription

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/bubbleprotocol/guardian/internal/chainview"
	"github.com/bubbleprotocol/guardian/internal/dataserver"
)

// ErrSubscriptionTerminated is the terminal error a client's listener
// receives once its read permission is revoked mid-subscription.
var ErrSubscriptionTerminated = errors.New("subscription terminated: read permission revoked")

// Protect wraps clientListener so that every notification first re-fetches
// read permission for (contract, permissionedPart, signatory). If the
// permission has been revoked since Subscribe was authorized, the client
// is notified with a terminal error and the back-end subscription is torn
// down instead of forwarding the event (spec §4.6, §9 "Subscription
// fan-out" — each forwarded notification pays for an extra chain
// round-trip to close the revocation race).
func Protect(ctx context.Context, cv chainview.ChainView, ds dataserver.DataServer, contract, permissionedPart, signatory string, clientListener dataserver.Listener) dataserver.Listener {
	return func(n dataserver.Notification) {
		bits, err := cv.GetPermissions(ctx, contract, signatory, permissionedPart)
		denied := err != nil || !bits.CanRead()
		if denied {
			clientListener(dataserver.Notification{SubscriptionID: n.SubscriptionID, Err: ErrSubscriptionTerminated})
			_ = ds.Unsubscribe(ctx, n.SubscriptionID, nil)
			return
		}
		clientListener(n)
	}
}

// ProtectedListener pairs a wrapped listener (which already captures the
// signatory it was authorized for) with its subscription id, so a fan-out
// broadcaster can re-check many recipients of one event concurrently.
type ProtectedListener struct {
	SubscriptionID string
	Wrapped        dataserver.Listener
}

// FanOut delivers a notification carrying result and notifyErr
// concurrently to every listener, each running its own
// permission re-check (spec §9: "each forwarded notification requires an
// additional chain round-trip"; doing this serially across many
// recipients of the same event would multiply that latency by the
// recipient count for no reason, since the re-checks are independent).
func FanOut(ctx context.Context, listeners []ProtectedListener, result any, notifyErr error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, l := range listeners {
		l := l
		g.Go(func() error {
			l.Wrapped(dataserver.Notification{SubscriptionID: l.SubscriptionID, Result: result, Err: notifyErr})
			return ctx.Err()
		})
	}
	return g.Wait()
}
