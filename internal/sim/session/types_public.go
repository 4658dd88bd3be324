package session

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// TickLogEntry records the actions applied during one update tick and the resulting state.
type TickLogEntry struct {
	Tick          uint64         `json:"tick"`
	Actions       []Action       `json:"actions,omitempty"`
	Results       []ActionResult `json:"results,omitempty"`
	Points        int64          `json:"points"`
	PointsPerTick int64          `json:"points_per_tick"`
	Digest        string         `json:"digest"`
}

// AuditEntry records one accepted purchase.
type AuditEntry struct {
	Tick       uint64 `json:"tick"`
	SessionID  string `json:"session_id"`
	ActionID   string `json:"action_id,omitempty"`
	Action     string `json:"action"` // "PLACE" or "UPGRADE"
	Pos        [2]int `json:"pos,omitempty"`
	Item       string `json:"item"`
	Cost       int64  `json:"cost"`
	PointsLeft int64  `json:"points_left"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}
