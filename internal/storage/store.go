// Package storage is the durable snapshot gateway: positions, the ATR
// cache and lifetime statistics survive restarts through a small SQLite
// key-value table.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"
	"github.com/asterfi/0xLIQD-Bybit/internal/volatility"

	_ "github.com/glebarez/go-sqlite"
)

const (
	keyPositions = "positions"
	keyATRCache  = "atr_cache"
	keyStats     = "stats"
)

// Store persists engine state in SQLite with WAL mode enabled.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the state database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create state table: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveState writes one snapshot of everything the engine needs to resume.
// Called after every state-changing operation; failures are non-fatal for
// the caller (in-memory state stays authoritative).
func (s *Store) SaveState(ctx context.Context,
	positions map[string]*domain.PositionState,
	cache map[string]volatility.CacheEntry,
	stats domain.PerformanceStats) error {

	if err := s.upsertJSON(ctx, keyPositions, positions); err != nil {
		return err
	}
	if err := s.upsertJSON(ctx, keyATRCache, cache); err != nil {
		return err
	}
	return s.upsertJSON(ctx, keyStats, stats)
}

// LoadPositions reloads the persisted position map. Returns an empty map
// when nothing was stored yet.
func (s *Store) LoadPositions(ctx context.Context) (map[string]*domain.PositionState, error) {
	positions := make(map[string]*domain.PositionState)
	if err := s.getJSON(ctx, keyPositions, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// LoadCache reloads persisted ATR cache entries. Entries older than the
// TTL are dropped here and never returned.
func (s *Store) LoadCache(ctx context.Context) (map[string]volatility.CacheEntry, error) {
	raw := make(map[string]volatility.CacheEntry)
	if err := s.getJSON(ctx, keyATRCache, &raw); err != nil {
		return nil, err
	}

	now := time.Now()
	out := make(map[string]volatility.CacheEntry, len(raw))
	for k, e := range raw {
		if !e.Expired(now) {
			out[k] = e
		}
	}
	return out, nil
}

// LoadStats reloads lifetime counters, or nil when none were stored.
func (s *Store) LoadStats(ctx context.Context) (*domain.PerformanceStats, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM state WHERE key = ?", keyStats).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var stats domain.PerformanceStats
	if err := json.Unmarshal([]byte(value), &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	return &stats, nil
}

func (s *Store) upsertJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, string(data), time.Now().Unix(),
	)
	return err
}

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(value), v)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
