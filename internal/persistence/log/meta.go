package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"blockremental/internal/sim/session"
)

const metaFile = "session.json"

// SessionMeta is written once when a journaled session starts, so a replay can
// rebuild the same starting state and detect catalog drift.
type SessionMeta struct {
	Config         session.Config `json:"config"`
	BlocksDigest   string         `json:"blocks_digest"`
	UpgradesDigest string         `json:"upgrades_digest"`
	TuningDigest   string         `json:"tuning_digest,omitempty"`
	StartedAt      string         `json:"started_at"`
}

func WriteMeta(sessionDir string, m SessionMeta) error {
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(sessionDir, metaFile+".tmp")
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(sessionDir, metaFile))
}

func ReadMeta(sessionDir string) (SessionMeta, error) {
	var m SessionMeta
	b, err := os.ReadFile(filepath.Join(sessionDir, metaFile))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("%s: %w", metaFile, err)
	}
	return m, nil
}
