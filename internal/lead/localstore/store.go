// Package localstore is the authoritative copy of leads captured by this
// service: one JSON array under a single fixed key.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"leadcapture/internal/kv"
	"leadcapture/internal/lead/models"
	"leadcapture/internal/platform/metrics"
)

// Key is the only storage key the store touches.
const Key = "leads"

// Store appends, lists and removes local lead records.
type Store struct {
	kv      kv.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Store)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

func New(backend kv.Store, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{kv: backend, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// decode parses the stored array. A corrupt payload decodes to an empty array
// and is reported through the returned bool.
func decode(raw []byte) ([]models.LeadRecord, bool) {
	if len(raw) == 0 {
		return nil, true
	}
	var records []models.LeadRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, false
	}
	return records, true
}

// Append adds rec to the end of the stored array. A missing or unparseable
// array is treated as empty. Storage errors are returned for the caller to log.
func (s *Store) Append(ctx context.Context, rec models.LeadRecord) error {
	err := s.kv.Update(ctx, Key, func(current []byte, found bool) ([]byte, error) {
		records, ok := decode(current)
		if found && !ok {
			s.logger.WarnContext(ctx, "local lead array unparseable, starting over",
				"bytes", len(current),
			)
			s.metrics.IncLocalStoreFailure("decode")
		}
		return json.Marshal(append(records, rec))
	})
	if err != nil {
		s.metrics.IncLocalStoreFailure("append")
		return fmt.Errorf("append lead %s: %w", rec.ID, err)
	}
	return nil
}

// ListAll returns every stored record oldest first, tagged local. Any read or
// decode failure degrades to an empty list.
func (s *Store) ListAll(ctx context.Context) []models.LeadRecord {
	raw, err := s.kv.Get(ctx, Key)
	if errors.Is(err, kv.ErrNotFound) {
		return []models.LeadRecord{}
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "local lead store unreadable, treating as empty", "error", err)
		s.metrics.IncLocalStoreFailure("read")
		return []models.LeadRecord{}
	}

	records, ok := decode(raw)
	if !ok {
		s.logger.WarnContext(ctx, "local lead array unparseable, treating as empty", "bytes", len(raw))
		s.metrics.IncLocalStoreFailure("decode")
		return []models.LeadRecord{}
	}
	out := make([]models.LeadRecord, 0, len(records))
	for _, r := range records {
		out = append(out, r.WithSource(models.SourceLocal))
	}
	return out
}

// Exists reports whether a local record with id is stored.
func (s *Store) Exists(ctx context.Context, id string) bool {
	for _, r := range s.ListAll(ctx) {
		if r.ID == id {
			return true
		}
	}
	return false
}

// Remove drops every record with id. Removing an unknown id is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	err := s.kv.Update(ctx, Key, func(current []byte, found bool) ([]byte, error) {
		records, _ := decode(current)
		kept := make([]models.LeadRecord, 0, len(records))
		for _, r := range records {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		return json.Marshal(kept)
	})
	if err != nil {
		s.metrics.IncLocalStoreFailure("remove")
		return fmt.Errorf("remove lead %s: %w", id, err)
	}
	return nil
}
