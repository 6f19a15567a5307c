// Package store defines the shared record store that duel players and the tick
// runner coordinate through. Values are opaque bytes; every multi-field change
// goes through Transact.
package store

import (
	"context"
	"errors"
	"fmt"

	"leetclash/internal/common"
)

var (
	ErrNotFound            = fmt.Errorf("record not found: %w", common.ErrNotFound)
	ErrTransactionConflict = fmt.Errorf("record is busy: %w", common.ErrTryAgain)

	// ErrAborted is returned by a TxFunc to leave the record untouched.
	ErrAborted = errors.New("transaction aborted")
)

// TxFunc computes the next value from the current one. current is nil when
// the key is absent. It may run more than once and must not have side effects.
// Returning an error commits nothing and Transact returns that error.
type TxFunc func(current []byte) (next []byte, err error)

type Store interface {
	// Read returns ErrNotFound when the key is absent.
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) error
	// Transact commits fn's result only if the key did not change while fn
	// ran, retrying on conflict. It returns the committed value.
	Transact(ctx context.Context, key string, fn TxFunc) ([]byte, error)
	// Subscribe delivers the current value immediately and then every later
	// value. An absent key is delivered as nil. Once the returned function
	// returns no callback is running or will run; it must not be called from
	// inside fn.
	Subscribe(ctx context.Context, key string, fn func(value []byte)) (unsubscribe func(), err error)
}
