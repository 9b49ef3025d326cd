package s0_snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

// FileSource reads a snapshot from a YAML document (fixtures, dry runs)
type FileSource struct {
	path   string
	logger *logger.Logger
}

// NewFileSource creates a file-backed snapshot source
func NewFileSource(path string, log *logger.Logger) *FileSource {
	return &FileSource{
		path:   path,
		logger: log,
	}
}

// Load reads the file on every call; the season must match the document
func (s *FileSource) Load(ctx context.Context, season string) (*contracts.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	snap, err := ParseSnapshot(data)
	if err != nil {
		return nil, err
	}
	if season != "" && snap.Season != season {
		return nil, fmt.Errorf("snapshot file has season %s, want %s: %w", snap.Season, season, contracts.ErrNoSnapshot)
	}
	if snap.Source == "" {
		snap.Source = "file:" + s.path
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}

	s.logger.WithFields(map[string]interface{}{
		"path":    s.path,
		"season":  snap.Season,
		"players": len(snap.Players),
		"teams":   len(snap.Teams),
	}).Info("Loaded snapshot from file")

	return snap, nil
}

// ParseSnapshot decodes and validates a YAML snapshot; unknown keys are rejected
func ParseSnapshot(data []byte) (*contracts.Snapshot, error) {
	var snap contracts.Snapshot
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	for i := range snap.Players {
		pos, err := contracts.ParsePosition(string(snap.Players[i].Position))
		if err != nil {
			return nil, fmt.Errorf("player %s: %w", snap.Players[i].PlayerID, err)
		}
		snap.Players[i].Position = pos
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}
