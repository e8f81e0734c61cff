package dataserver

import (
	"context"
	"errors"
	"testing"
)

const testContract = "0xcontract"

func TestMemoryCreateWriteRead(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Create(ctx, testContract, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Create(ctx, testContract, nil); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists on duplicate create, got %v", err)
	}

	if err := m.Write(ctx, testContract, "dir/file.txt", "hello", nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := m.Read(ctx, testContract, "dir/file.txt", nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "hello" {
		t.Errorf("Read() = %v, want %q", got, "hello")
	}

	if err := m.Append(ctx, testContract, "dir/file.txt", " world", nil); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, _ = m.Read(ctx, testContract, "dir/file.txt", nil)
	if got != "hello world" {
		t.Errorf("after append, Read() = %v", got)
	}
}

func TestMemoryReadMissing(t *testing.T) {
	m := NewMemory()
	if _, err := m.Read(context.Background(), testContract, "nope", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryDeleteAndMkdir(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.Mkdir(ctx, testContract, "sub", nil); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := m.Mkdir(ctx, testContract, "sub", nil); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if err := m.Delete(ctx, testContract, "sub", nil); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := m.Delete(ctx, testContract, "sub", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryTerminateClearsSubscriptions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Create(ctx, testContract, nil)

	var received *Notification
	id, err := m.Subscribe(ctx, testContract, "dir/file.txt", func(n Notification) {
		received = &n
	}, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := m.Terminate(ctx, testContract, nil); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if err := m.Notify(id, "should not deliver", nil); err == nil {
		t.Errorf("expected Notify to fail after termination clears subscriptions")
	}
	if received != nil {
		t.Errorf("listener should not have been invoked")
	}

	if err := m.Write(ctx, testContract, "dir/file.txt", "x", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("writes to a terminated bubble should fail, got %v", err)
	}
}

func TestMemoryUnsubscribe(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Create(ctx, testContract, nil)
	id, err := m.Subscribe(ctx, testContract, "dir/file.txt", func(Notification) {}, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := m.Unsubscribe(ctx, id, nil); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if err := m.Unsubscribe(ctx, id, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for a second unsubscribe, got %v", err)
	}
}
