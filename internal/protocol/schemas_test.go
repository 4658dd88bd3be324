package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"blockremental/internal/protocol"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// roundTrip marshals a Go message and decodes it as generic JSON for validation.
func roundTrip(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func mustValidate(t *testing.T, s *jsonschema.Schema, v any) {
	t.Helper()
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestSchemas_ValidateSamples(t *testing.T) {
	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "player_name":"bot1",
	  "capabilities":{"max_queue":8}
	}`), &hello)
	mustValidate(t, compileSchema(t, "hello.schema.json"), hello)

	var act any
	_ = json.Unmarshal([]byte(`{
	  "type":"ACT",
	  "protocol_version":"1.0",
	  "id":"a1",
	  "kind":"PLACE",
	  "x":0,
	  "y":0,
	  "block":"INCREMENTOR"
	}`), &act)
	mustValidate(t, compileSchema(t, "act.schema.json"), act)
}

func TestSchemas_ValidateGoMessages(t *testing.T) {
	mustValidate(t, compileSchema(t, "hello.schema.json"), roundTrip(t, protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      "p1",
	}))

	mustValidate(t, compileSchema(t, "welcome.schema.json"), roundTrip(t, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "S000001",
		Params: protocol.SessionParams{
			UpdateRateHz:      60,
			DrawRateHz:        60,
			AccrualIntervalMs: 1000,
			StartingPoints:    10,
			Width:             1,
			Height:            1,
			MaxWidth:          32,
			MaxHeight:         32,
		},
		Catalogs: protocol.CatalogDigests{
			Blocks:   protocol.DigestRef{Digest: "deadbeef", Count: 3},
			Upgrades: protocol.DigestRef{Digest: "deadbeef", Count: 1},
		},
	}))

	mustValidate(t, compileSchema(t, "catalog.schema.json"), roundTrip(t, protocol.CatalogMsg{
		Type:            protocol.TypeCatalog,
		ProtocolVersion: protocol.Version,
		Name:            "blocks",
		Digest:          "deadbeef",
		Part:            1,
		TotalParts:      1,
		Data:            []map[string]any{{"id": "INCREMENTOR", "cost": 10}},
	}))

	mustValidate(t, compileSchema(t, "state.schema.json"), roundTrip(t, protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            42,
		Points:          12,
		PointsPerTick:   2,
		Width:           2,
		Height:          1,
		Cells:           [][]string{{"ADDER", "INCREMENTOR"}},
		Values:          [][]int64{{0, 2}},
	}))

	actSchema := compileSchema(t, "act.schema.json")
	mustValidate(t, actSchema, roundTrip(t, protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		ID:              "u1",
		Kind:            protocol.ActUpgrade,
		Upgrade:         "BIGGINATOR",
	}))

	mustValidate(t, compileSchema(t, "ack.schema.json"), roundTrip(t, protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          "a1",
		Accepted:        false,
		Code:            protocol.ErrInsufficientFunds,
		Message:         "need 10 points",
	}))
}

func TestSchemas_RejectMalformedAct(t *testing.T) {
	actSchema := compileSchema(t, "act.schema.json")
	bad := []string{
		`{"type":"ACT","protocol_version":"1.0","id":"a1","kind":"PLACE","x":0,"y":0}`,
		`{"type":"ACT","protocol_version":"1.0","id":"a1","kind":"UPGRADE"}`,
		`{"type":"ACT","protocol_version":"1.0","id":"a1","kind":"REMOVE","x":0,"y":0}`,
		`{"type":"ACT","protocol_version":"1.0","kind":"PLACE","block":"ADDER"}`,
	}
	for _, raw := range bad {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if err := actSchema.Validate(v); err == nil {
			t.Fatalf("expected schema rejection: %s", raw)
		}
	}
}

func TestDecodeBase(t *testing.T) {
	b, err := protocol.DecodeBase([]byte(`{"type":"ACT","protocol_version":"1.0","id":"x"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Type != protocol.TypeAct || b.ProtocolVersion != protocol.Version {
		t.Fatalf("base=%+v", b)
	}
	if _, err := protocol.DecodeBase([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
