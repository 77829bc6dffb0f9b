// Package storagetest provides KV doubles for exercising failure paths.
package storagetest

import (
	"context"
	"sync"

	"github.com/iudanet/authflow/internal/client/storage"
	"github.com/iudanet/authflow/internal/client/storage/memory"
)

// FaultyKV wraps an in-memory store and can fail or corrupt selected keys.
type FaultyKV struct {
	*memory.Store

	setErr map[string]error
	tamper map[string]string
	mu     sync.Mutex
}

var _ storage.KV = (*FaultyKV)(nil)

// New creates a FaultyKV with no faults
func New() *FaultyKV {
	return &FaultyKV{
		Store:  memory.New(),
		setErr: make(map[string]error),
		tamper: make(map[string]string),
	}
}

// FailSet makes every Set of key return err
func (f *FaultyKV) FailSet(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErr[key] = err
}

// Tamper makes Set of key store value instead of what the caller passed,
// while still reporting success
func (f *FaultyKV) Tamper(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tamper[key] = value
}

// Set applies configured faults, then writes through to the memory store
func (f *FaultyKV) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	err := f.setErr[key]
	replacement, tampered := f.tamper[key]
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if tampered {
		// Запись "успешна", но в хранилище оказалось чужое значение
		_ = f.Store.Set(ctx, key, replacement)
		return nil
	}
	return f.Store.Set(ctx, key, value)
}
