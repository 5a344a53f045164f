package storagetest

import (
	"context"
	"fmt"

	"github.com/iudanet/luxta/internal/server/storage"
)

// Failing wraps a store and fails selected operations with ErrUnavailable.
// Zero value of a flag means the call is passed through
type Failing struct {
	storage.Store
	FailGet    bool
	FailSet    bool
	FailRemove bool
	FailUpdate bool
	FailScan   bool
}

var errInjected = fmt.Errorf("%w: injected failure", storage.ErrUnavailable)

// Get returns value or injected failure
func (f *Failing) Get(ctx context.Context, key string) ([]byte, error) {
	if f.FailGet {
		return nil, errInjected
	}
	return f.Store.Get(ctx, key)
}

// Set writes value or returns injected failure
func (f *Failing) Set(ctx context.Context, key string, value []byte) error {
	if f.FailSet {
		return errInjected
	}
	return f.Store.Set(ctx, key, value)
}

// Remove deletes key or returns injected failure
func (f *Failing) Remove(ctx context.Context, key string) error {
	if f.FailRemove {
		return errInjected
	}
	return f.Store.Remove(ctx, key)
}

// Update updates key or returns injected failure
func (f *Failing) Update(ctx context.Context, key string, fn storage.UpdateFunc) ([]byte, error) {
	if f.FailUpdate {
		return nil, errInjected
	}
	return f.Store.Update(ctx, key, fn)
}

// Scan iterates or returns injected failure
func (f *Failing) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	if f.FailScan {
		return errInjected
	}
	return f.Store.Scan(ctx, prefix, fn)
}
