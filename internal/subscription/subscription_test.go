package subscription

import (
	"context"
	"errors"
	"testing"

	"github.com/bubbleprotocol/guardian/internal/chainview"
	"github.com/bubbleprotocol/guardian/internal/dataserver"
	"github.com/bubbleprotocol/guardian/internal/permission"
)

const (
	testContract = "0x2222222222222222222222222222222222222222"
	testAccount  = "0x1111111111111111111111111111111111111111"
	testDirID    = "0x0000000000000000000000000000000000000000000000000000000000000001"
)

func readBits(t *testing.T) permission.Bits {
	t.Helper()
	bits, err := permission.FromHex("0x2000000000000000000000000000000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("parsing permission bits: %v", err)
	}
	return bits
}

func TestProtectForwardsWhilePermitted(t *testing.T) {
	cv := chainview.NewDevChainView(1)
	cv.SetPermissions(testContract, testAccount, testDirID, readBits(t))
	ds := dataserver.NewMemory()
	ctx := context.Background()
	ds.Create(ctx, testContract, nil)

	var received *dataserver.Notification
	clientListener := func(n dataserver.Notification) { received = &n }
	wrapped := Protect(ctx, cv, ds, testContract, testDirID, testAccount, clientListener)

	id, err := ds.Subscribe(ctx, testContract, testDirID+"/f.txt", wrapped, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := ds.Notify(id, "hello", nil); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if received == nil {
		t.Fatal("expected the client listener to be invoked")
	}
	if received.Result != "hello" || received.Err != nil {
		t.Errorf("expected an unmodified forward, got %+v", received)
	}
}

func TestProtectTerminatesOnRevocation(t *testing.T) {
	cv := chainview.NewDevChainView(1)
	cv.SetPermissions(testContract, testAccount, testDirID, permission.Zero)
	ds := dataserver.NewMemory()
	ctx := context.Background()
	ds.Create(ctx, testContract, nil)

	var received *dataserver.Notification
	clientListener := func(n dataserver.Notification) { received = &n }
	wrapped := Protect(ctx, cv, ds, testContract, testDirID, testAccount, clientListener)

	id, err := ds.Subscribe(ctx, testContract, testDirID+"/f.txt", wrapped, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := ds.Notify(id, "should be intercepted", nil); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if received == nil {
		t.Fatal("expected the client listener to be invoked with a termination notice")
	}
	if !errors.Is(received.Err, ErrSubscriptionTerminated) {
		t.Errorf("expected ErrSubscriptionTerminated, got %v", received.Err)
	}

	if err := ds.Unsubscribe(ctx, id, nil); !errors.Is(err, dataserver.ErrNotFound) {
		t.Errorf("expected Protect to have already torn down the subscription, got %v", err)
	}
}

func TestProtectTerminatesOnChainViewError(t *testing.T) {
	cv := chainview.NewDevChainView(1) // contract never registered -> ErrContractCallFailed
	ds := dataserver.NewMemory()
	ctx := context.Background()
	ds.Create(ctx, testContract, nil)

	var received *dataserver.Notification
	clientListener := func(n dataserver.Notification) { received = &n }
	wrapped := Protect(ctx, cv, ds, testContract, testDirID, testAccount, clientListener)

	id, err := ds.Subscribe(ctx, testContract, testDirID+"/f.txt", wrapped, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := ds.Notify(id, "x", nil); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if received == nil || !errors.Is(received.Err, ErrSubscriptionTerminated) {
		t.Fatalf("expected termination on a permission lookup error, got %+v", received)
	}
}

func TestFanOutDeliversToAllListeners(t *testing.T) {
	var gotA, gotB dataserver.Notification
	listeners := []ProtectedListener{
		{SubscriptionID: "a", Wrapped: func(n dataserver.Notification) { gotA = n }},
		{SubscriptionID: "b", Wrapped: func(n dataserver.Notification) { gotB = n }},
	}
	if err := FanOut(context.Background(), listeners, "payload", nil); err != nil {
		t.Fatalf("FanOut: %v", err)
	}
	if gotA.Result != "payload" || gotA.SubscriptionID != "a" {
		t.Errorf("listener a got %+v", gotA)
	}
	if gotB.Result != "payload" || gotB.SubscriptionID != "b" {
		t.Errorf("listener b got %+v", gotB)
	}
}
