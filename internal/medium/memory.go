package medium

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Memory is a map-backed medium for tests and embedding. Safe for
// concurrent use.
type Memory struct {
	mu     sync.RWMutex
	slots  map[string][]byte
	closed bool
}

// NewMemory returns an empty in-memory medium.
func NewMemory() *Memory {
	return &Memory{slots: make(map[string][]byte)}
}

func (m *Memory) Read(ctx context.Context, slot string) ([]byte, error) {
	if err := checkCtxAndSlot(ctx, slot); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	blob, ok := m.slots[slot]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSlotNotExist, slot)
	}

	return slices.Clone(blob), nil
}

func (m *Memory) Write(ctx context.Context, slot string, blob []byte) error {
	if err := checkCtxAndSlot(ctx, slot); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.slots[slot] = slices.Clone(blob)

	return nil
}

func (m *Memory) Delete(ctx context.Context, slot string) error {
	if err := checkCtxAndSlot(ctx, slot); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if _, ok := m.slots[slot]; !ok {
		return fmt.Errorf("%w: %s", ErrSlotNotExist, slot)
	}

	delete(m.slots, slot)

	return nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	var out []string

	for slot := range m.slots {
		if strings.HasPrefix(slot, prefix) {
			out = append(out, slot)
		}
	}

	slices.Sort(out)

	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

// Compile-time interface check.
var _ Medium = (*Memory)(nil)
