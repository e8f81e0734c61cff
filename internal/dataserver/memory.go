package dataserver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Read/List/Delete/Unsubscribe when the target
// does not exist in the store.
var ErrNotFound = errors.New("dataserver: not found")

// ErrAlreadyExists is returned by Create/Mkdir when the target already
// exists.
var ErrAlreadyExists = errors.New("dataserver: already exists")

type bubble struct {
	terminated bool
	files      map[string]string          // fullFilename -> data
	dirs       map[string]bool            // fullFilename -> is directory
	subs       map[string]subscriptionRec // subscriptionID -> rec
}

type subscriptionRec struct {
	fullFilename string
	listener     Listener
}

// Memory is an in-process DataServer reference implementation, mirroring
// the shape of a production storage backend closely enough to exercise
// the Guardian's full dispatch table in tests and local development. It
// is not durable: all state is lost on process restart.
type Memory struct {
	mu      sync.Mutex
	bubbles map[string]*bubble // contract -> bubble
}

// NewMemory creates an empty Memory data server.
func NewMemory() *Memory {
	return &Memory{bubbles: make(map[string]*bubble)}
}

func (m *Memory) bubbleFor(contract string) *bubble {
	b, ok := m.bubbles[contract]
	if !ok {
		b = &bubble{
			files: make(map[string]string),
			dirs:  make(map[string]bool),
			subs:  make(map[string]subscriptionRec),
		}
		m.bubbles[contract] = b
	}
	return b
}

func (m *Memory) Create(ctx context.Context, contract string, options map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bubbles[contract]; exists {
		return ErrAlreadyExists
	}
	m.bubbleFor(contract)
	return nil
}

func (m *Memory) Write(ctx context.Context, contract, fullFilename, data string, options map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bubbleFor(contract)
	if b.terminated {
		return ErrNotFound
	}
	b.files[fullFilename] = data
	return nil
}

func (m *Memory) Append(ctx context.Context, contract, fullFilename, data string, options map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bubbleFor(contract)
	if b.terminated {
		return ErrNotFound
	}
	b.files[fullFilename] += data
	return nil
}

func (m *Memory) Read(ctx context.Context, contract, fullFilename string, options map[string]any) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bubbles[contract]
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := b.files[fullFilename]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (m *Memory) List(ctx context.Context, contract, fullFilename string, options map[string]any) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bubbles[contract]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]string, 0)
	for name := range b.files {
		out = append(out, name)
	}
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, contract, fullFilename string, options map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bubbles[contract]
	if !ok {
		return ErrNotFound
	}
	if _, ok := b.files[fullFilename]; ok {
		delete(b.files, fullFilename)
		return nil
	}
	if _, ok := b.dirs[fullFilename]; ok {
		delete(b.dirs, fullFilename)
		return nil
	}
	return ErrNotFound
}

func (m *Memory) Mkdir(ctx context.Context, contract, fullFilename string, options map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bubbleFor(contract)
	if _, exists := b.dirs[fullFilename]; exists {
		return ErrAlreadyExists
	}
	b.dirs[fullFilename] = true
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, contract, fullFilename string, listener Listener, options map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bubbleFor(contract)
	id := uuid.NewString()
	b.subs[id] = subscriptionRec{fullFilename: fullFilename, listener: listener}
	return id, nil
}

func (m *Memory) Unsubscribe(ctx context.Context, subscriptionID string, options map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bubbles {
		if _, ok := b.subs[subscriptionID]; ok {
			delete(b.subs, subscriptionID)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) Terminate(ctx context.Context, contract string, options map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bubbles[contract]
	if !ok {
		return ErrNotFound
	}
	b.terminated = true
	for id := range b.subs {
		delete(b.subs, id)
	}
	return nil
}

// Notify delivers a notification to a registered subscription, for test
// harnesses that want to drive ProtectedSubscription end to end.
func (m *Memory) Notify(subscriptionID string, result any, err error) error {
	m.mu.Lock()
	var listener Listener
	for _, b := range m.bubbles {
		if rec, ok := b.subs[subscriptionID]; ok {
			listener = rec.listener
			break
		}
	}
	m.mu.Unlock()
	if listener == nil {
		return fmt.Errorf("dataserver: %w: subscription %s", ErrNotFound, subscriptionID)
	}
	listener(Notification{SubscriptionID: subscriptionID, Result: result, Err: err})
	return nil
}
