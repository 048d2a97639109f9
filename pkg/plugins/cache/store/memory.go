package store

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySize is the number of entries a Memory store keeps when no
// size is given
const DefaultMemorySize = 512

// Memory is a bounded in-process store that evicts the least recently used
// entry when full
type Memory struct {
	entries *lru.Cache[string, string]
}

var _ Adapter = (*Memory)(nil)

// NewMemory creates a Memory store holding up to size entries.
// A size of zero or less uses DefaultMemorySize.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory store: %w", err)
	}
	return &Memory{entries: entries}, nil
}

// MustNewMemory is like NewMemory but panics on error
func MustNewMemory(size int) *Memory {
	m, err := NewMemory(size)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, ok := m.entries.Get(key)
	return v, ok, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.entries.Add(key, value)
	return nil
}

// Len returns the number of stored entries
func (m *Memory) Len() int {
	return m.entries.Len()
}

// Purge removes every entry
func (m *Memory) Purge() {
	m.entries.Purge()
}
