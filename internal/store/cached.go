package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ppiankov/legalscan/internal/cache"
	"github.com/ppiankov/legalscan/internal/model"
)

// Cached is a read-through cache in front of a report store
// Reports are immutable once saved, so only Save and Delete invalidate.
type Cached struct {
	next  ReportStore
	cache cache.Cache
	ttl   time.Duration
}

// NewCached wraps next; a nil cache returns next unchanged
func NewCached(next ReportStore, c cache.Cache, ttl time.Duration) ReportStore {
	if c == nil {
		return next
	}
	return &Cached{next: next, cache: c, ttl: ttl}
}

// Save stores the report and refreshes its cache entry
func (s *Cached) Save(ctx context.Context, r *model.Report) error {
	if err := s.next.Save(ctx, r); err != nil {
		return err
	}
	s.put(r)
	return nil
}

// Get serves from cache, falling back to the store
func (s *Cached) Get(ctx context.Context, id string) (*model.Report, error) {
	if data, ok := s.cache.Get(cache.ReportKey(id)); ok {
		var r model.Report
		if err := json.Unmarshal(data, &r); err == nil {
			return &r, nil
		}
		_ = s.cache.Delete(cache.ReportKey(id))
	}

	r, err := s.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.put(r)
	return r, nil
}

// List always reads the store so history reflects deletes from other processes
func (s *Cached) List(ctx context.Context, limit int) ([]model.Report, error) {
	return s.next.List(ctx, limit)
}

// Delete removes the report from the store and the cache
func (s *Cached) Delete(ctx context.Context, id string) error {
	if err := s.cache.Delete(cache.ReportKey(id)); err != nil {
		slog.Warn("cache delete failed", slog.String("id", id), slog.Any("error", err))
	}
	return s.next.Delete(ctx, id)
}

// Ping checks the underlying store when it supports it
func (s *Cached) Ping(ctx context.Context) error {
	if p, ok := s.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close closes the underlying store
func (s *Cached) Close() error {
	return s.next.Close()
}

func (s *Cached) put(r *model.Report) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := s.cache.Set(cache.ReportKey(r.ID), data, s.ttl); err != nil {
		slog.Warn("cache set failed", slog.String("id", r.ID), slog.Any("error", err))
	}
}
