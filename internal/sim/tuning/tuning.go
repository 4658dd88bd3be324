package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	UpdateRateHz      int `yaml:"update_rate_hz"`
	DrawRateHz        int `yaml:"draw_rate_hz"`
	AccrualIntervalMs int `yaml:"accrual_interval_ms"`

	StartingPoints int64 `yaml:"starting_points"`

	InitialWidth  int `yaml:"initial_width"`
	InitialHeight int `yaml:"initial_height"`
	MaxWidth      int `yaml:"max_width"`
	MaxHeight     int `yaml:"max_height"`

	MaxQueue int `yaml:"max_queue"`

	// Digest is the sha256 of the loaded file; empty for Defaults().
	Digest string `yaml:"-"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:   "1.0",
		UpdateRateHz:      60,
		DrawRateHz:        60,
		AccrualIntervalMs: 1000,
		StartingPoints:    10,
		InitialWidth:      1,
		InitialHeight:     1,
		MaxWidth:          32,
		MaxHeight:         32,
		MaxQueue:          16,
	}
}

// Normalize fills zero values from Defaults and keeps bounds consistent.
func (t *Tuning) Normalize() {
	d := Defaults()
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = d.ProtocolVersion
	}
	if t.UpdateRateHz <= 0 {
		t.UpdateRateHz = d.UpdateRateHz
	}
	if t.DrawRateHz <= 0 {
		t.DrawRateHz = d.DrawRateHz
	}
	if t.AccrualIntervalMs <= 0 {
		t.AccrualIntervalMs = d.AccrualIntervalMs
	}
	if t.StartingPoints < 0 {
		t.StartingPoints = 0
	}
	if t.InitialWidth <= 0 {
		t.InitialWidth = d.InitialWidth
	}
	if t.InitialHeight <= 0 {
		t.InitialHeight = d.InitialHeight
	}
	if t.MaxWidth <= 0 {
		t.MaxWidth = d.MaxWidth
	}
	if t.MaxHeight <= 0 {
		t.MaxHeight = d.MaxHeight
	}
	if t.MaxWidth < t.InitialWidth {
		t.MaxWidth = t.InitialWidth
	}
	if t.MaxHeight < t.InitialHeight {
		t.MaxHeight = t.InitialHeight
	}
	if t.MaxQueue <= 0 {
		t.MaxQueue = d.MaxQueue
	}
	if t.MaxQueue > 64 {
		t.MaxQueue = 64
	}
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	sum := sha256.Sum256(raw)
	t.Digest = hex.EncodeToString(sum[:])
	return t, nil
}
