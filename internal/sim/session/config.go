package session

import "blockremental/internal/sim/tuning"

type Config struct {
	ID string `json:"id"`

	UpdateRateHz      int `json:"update_rate_hz"`
	DrawRateHz        int `json:"draw_rate_hz"`
	AccrualIntervalMs int `json:"accrual_interval_ms"`

	StartingPoints int64 `json:"starting_points"`

	InitialWidth  int `json:"initial_width"`
	InitialHeight int `json:"initial_height"`
	MaxWidth      int `json:"max_width"`
	MaxHeight     int `json:"max_height"`

	// MaxQueue sizes client outboxes; the inbox holds four times as many actions.
	MaxQueue int `json:"max_queue"`
}

// FromTuning maps a loaded tuning file onto a session config.
func FromTuning(id string, t tuning.Tuning) Config {
	t.Normalize()
	return Config{
		ID:                id,
		UpdateRateHz:      t.UpdateRateHz,
		DrawRateHz:        t.DrawRateHz,
		AccrualIntervalMs: t.AccrualIntervalMs,
		StartingPoints:    t.StartingPoints,
		InitialWidth:      t.InitialWidth,
		InitialHeight:     t.InitialHeight,
		MaxWidth:          t.MaxWidth,
		MaxHeight:         t.MaxHeight,
		MaxQueue:          t.MaxQueue,
	}
}

func (c *Config) applyDefaults() {
	d := tuning.Defaults()
	if c.ID == "" {
		c.ID = "S000001"
	}
	if c.UpdateRateHz <= 0 {
		c.UpdateRateHz = d.UpdateRateHz
	}
	if c.DrawRateHz <= 0 {
		c.DrawRateHz = d.DrawRateHz
	}
	if c.AccrualIntervalMs <= 0 {
		c.AccrualIntervalMs = d.AccrualIntervalMs
	}
	if c.StartingPoints < 0 {
		c.StartingPoints = 0
	}
	if c.InitialWidth <= 0 {
		c.InitialWidth = d.InitialWidth
	}
	if c.InitialHeight <= 0 {
		c.InitialHeight = d.InitialHeight
	}
	if c.MaxWidth < c.InitialWidth {
		c.MaxWidth = max(c.InitialWidth, d.MaxWidth)
	}
	if c.MaxHeight < c.InitialHeight {
		c.MaxHeight = max(c.InitialHeight, d.MaxHeight)
	}
	if c.MaxQueue <= 0 {
		c.MaxQueue = d.MaxQueue
	}
}
