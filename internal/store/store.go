// Package store persists attribution records against a key-value backend.
// The record always travels as one opaque JSON token; there are no
// partial-field updates. With multiple concurrent writers (several tabs of
// the same visitor) the backend gives last-write-wins, which is accepted.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/attribution-relay/internal/attribution"
	"github.com/ignite/attribution-relay/internal/pkg/logger"
)

// KV is the minimal persistence contract the store needs: get/set/delete of
// a single string value with an advisory expiry.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Store reads and writes per-visitor attribution records.
type Store struct {
	kv      KV
	keyName string
	ttl     time.Duration
}

// New builds a store over the given backend. keyName is the configured
// storage key name (the cookie name in the browser-side variants); ttl is
// the attribution window.
func New(kv KV, keyName string, ttl time.Duration) *Store {
	return &Store{kv: kv, keyName: keyName, ttl: ttl}
}

func (s *Store) key(visitorID string) string {
	return s.keyName + ":" + visitorID
}

// Read returns the stored record for a visitor, or nil when nothing usable
// is stored. Corrupt data counts as absent: the next write replaces it.
func (s *Store) Read(ctx context.Context, visitorID string) (*attribution.Record, error) {
	raw, ok, err := s.kv.Get(ctx, s.key(visitorID))
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.keyName, err)
	}
	if !ok {
		return nil, nil
	}

	var rec attribution.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		logger.Warn("corrupt attribution record, treating as absent",
			"visitor_id", visitorID, "error", err.Error())
		return nil, nil
	}
	return &rec, nil
}

// Write replaces the visitor's stored record wholesale and resets the
// attribution window.
func (s *Store) Write(ctx context.Context, visitorID string, rec attribution.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal record: %w", err)
	}
	if err := s.kv.Set(ctx, s.key(visitorID), string(raw), s.ttl); err != nil {
		return fmt.Errorf("store: write %s: %w", s.keyName, err)
	}
	return nil
}

// Clear removes the visitor's stored record.
func (s *Store) Clear(ctx context.Context, visitorID string) error {
	if err := s.kv.Delete(ctx, s.key(visitorID)); err != nil {
		return fmt.Errorf("store: clear %s: %w", s.keyName, err)
	}
	return nil
}
