package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"
)

// StateDump is a human-readable snapshot written on shutdown or panic for
// post-mortem inspection. It is not used for recovery; the SQLite store is.
type StateDump struct {
	TsUnix    int64                            `json:"ts"`
	Positions map[string]*domain.PositionState `json:"positions"`
	Stats     domain.PerformanceStats          `json:"stats"`
}

// WriteStateDump writes the dump atomically (tmp file + rename) so a crash
// mid-write never truncates an earlier dump.
func WriteStateDump(path string, positions map[string]*domain.PositionState, stats domain.PerformanceStats) error {
	dump := StateDump{
		TsUnix:    time.Now().Unix(),
		Positions: positions,
		Stats:     stats,
	}

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state dump: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".dump-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	slog.Info("State dump written",
		slog.String("path", path),
		slog.Int("positions", len(positions)))
	return nil
}
