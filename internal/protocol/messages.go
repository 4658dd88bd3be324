package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	PlayerName      string            `json:"player_name"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Params          SessionParams  `json:"params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type SessionParams struct {
	UpdateRateHz      int   `json:"update_rate_hz"`
	DrawRateHz        int   `json:"draw_rate_hz"`
	AccrualIntervalMs int   `json:"accrual_interval_ms"`
	StartingPoints    int64 `json:"starting_points"`
	Width             int   `json:"width"`
	Height            int   `json:"height"`
	MaxWidth          int   `json:"max_width"`
	MaxHeight         int   `json:"max_height"`
}

type CatalogDigests struct {
	Blocks       DigestRef `json:"blocks"`
	Upgrades     DigestRef `json:"upgrades"`
	TuningDigest string    `json:"tuning_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// CATALOG (server -> client): one catalog per message.
type CatalogMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Name            string      `json:"name"`   // "blocks" or "upgrades"
	Digest          string      `json:"digest"` // sha256 hex
	Part            int         `json:"part"`
	TotalParts      int         `json:"total_parts"`
	Data            interface{} `json:"data"`
}

// STATE (server -> client): a read-only view of one session tick.
type StateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Points        int64 `json:"points"`
	PointsPerTick int64 `json:"points_per_tick"`

	Width  int `json:"width"`
	Height int `json:"height"`
	// Cells[y][x] holds block ids ("EMPTY", "INCREMENTOR", ...).
	Cells [][]string `json:"cells"`
	// Values[y][x] is the evaluated incrementor value of the cell, 0 for non-incrementors.
	Values [][]int64 `json:"values"`

	Digest string `json:"digest,omitempty"`
}

// ACT (client -> server)
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Kind            string `json:"kind"`

	X       int    `json:"x,omitempty"`
	Y       int    `json:"y,omitempty"`
	Block   string `json:"block,omitempty"`
	Upgrade string `json:"upgrade,omitempty"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
}
