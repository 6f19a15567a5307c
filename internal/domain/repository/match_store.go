package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"leetclash/internal/common"
	"leetclash/internal/domain/model"
	"leetclash/internal/platform/store"
)

var (
	ErrMatchExists = fmt.Errorf("match id already taken: %w", common.ErrConflict)
	ErrMalformed   = errors.New("stored match record is malformed")
)

// MatchStore keeps duel records as JSON documents in a store.Store.
type MatchStore struct {
	st     store.Store
	prefix string
}

func NewMatchStore(st store.Store, prefix string) *MatchStore {
	return &MatchStore{st: st, prefix: prefix}
}

func (s *MatchStore) key(id string) string {
	return s.prefix + id
}

func decode(raw []byte) (*model.Match, error) {
	var m model.Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &m, nil
}

func (s *MatchStore) Get(ctx context.Context, id string) (*model.Match, error) {
	raw, err := s.st.Read(ctx, s.key(id))
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

// Create writes m only if no record with its id exists yet.
func (s *MatchStore) Create(ctx context.Context, m *model.Match) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match %s: %w", m.ID, err)
	}
	_, err = s.st.Transact(ctx, s.key(m.ID), func(current []byte) ([]byte, error) {
		if current != nil {
			return nil, ErrMatchExists
		}
		return raw, nil
	})
	return err
}

// Update runs fn against the latest record and commits its result. fn gets
// nil when the record is absent and may run several times. Returning
// store.ErrAborted or any other error commits nothing.
func (s *MatchStore) Update(ctx context.Context, id string, fn func(current *model.Match) (*model.Match, error)) (*model.Match, error) {
	var committed *model.Match
	_, err := s.st.Transact(ctx, s.key(id), func(raw []byte) ([]byte, error) {
		var current *model.Match
		if raw != nil {
			m, err := decode(raw)
			if err != nil {
				return nil, err
			}
			current = m
		}
		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, store.ErrAborted
		}
		out, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("encode match %s: %w", id, err)
		}
		committed = next
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// Subscribe calls fn with every snapshot of the record, nil meaning absent.
// Snapshots that fail to decode are logged and skipped.
func (s *MatchStore) Subscribe(ctx context.Context, id string, fn func(*model.Match)) (func(), error) {
	return s.st.Subscribe(ctx, s.key(id), func(raw []byte) {
		if raw == nil {
			fn(nil)
			return
		}
		m, err := decode(raw)
		if err != nil {
			log.Printf("ERROR: skipping snapshot of match %s: %v", id, err)
			return
		}
		fn(m)
	})
}
