// Package store provides the key/value adapters the cache plugin persists
// responses in.
//
// An Adapter stores opaque strings. Implementations must be safe for
// concurrent use.
package store

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by a Func adapter whose operation is missing
var ErrNotConfigured = errors.New("store: operation not configured")

// Adapter is a string key/value store
type Adapter interface {
	// Get returns the value stored under key. found is false for a miss.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error
}

// GetFunc implements Adapter.Get
type GetFunc func(ctx context.Context, key string) (string, bool, error)

// SetFunc implements Adapter.Set
type SetFunc func(ctx context.Context, key, value string) error

// Func builds an Adapter from functions. A nil function fails with
// ErrNotConfigured.
type Func struct {
	GetFn GetFunc
	SetFn SetFunc
}

var _ Adapter = Func{}

func (f Func) Get(ctx context.Context, key string) (string, bool, error) {
	if f.GetFn == nil {
		return "", false, ErrNotConfigured
	}
	return f.GetFn(ctx, key)
}

func (f Func) Set(ctx context.Context, key, value string) error {
	if f.SetFn == nil {
		return ErrNotConfigured
	}
	return f.SetFn(ctx, key, value)
}
