package catalogs

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"blockremental/internal/sim/grid"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

type Catalogs struct {
	Blocks   BlockCatalog
	Upgrades UpgradeCatalog
}

type BlockCatalog struct {
	// Order is the tray order as listed in blocks.json.
	Order  []string
	Defs   map[string]BlockDef
	Digest string
}

type BlockDef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Glyph       string `json:"glyph"`
	Cost        int64  `json:"cost"`
	Description string `json:"description,omitempty"`
}

// Type is the grid block type this definition places.
func (d BlockDef) Type() grid.BlockType {
	t, _ := grid.ParseBlockType(d.ID)
	return t
}

type UpgradeCatalog struct {
	Order  []string
	Defs   map[string]UpgradeDef
	Digest string
}

type UpgradeDef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Glyph       string `json:"glyph"`
	Cost        int64  `json:"cost"`
	Description string `json:"description,omitempty"`
	Effect      Effect `json:"effect"`
}

// EffectKind names an upgrade effect. Effects are data, dispatched by kind.
type EffectKind string

const (
	EffectGrowGrid EffectKind = "GROW_GRID"
)

type Effect struct {
	Kind EffectKind `json:"kind"`
	DW   int        `json:"dw,omitempty"`
	DH   int        `json:"dh,omitempty"`
}

func (c *Catalogs) Block(t grid.BlockType) (BlockDef, bool) {
	if c == nil {
		return BlockDef{}, false
	}
	d, ok := c.Blocks.Defs[t.String()]
	return d, ok
}

// BlockList returns block definitions in tray order.
func (c *Catalogs) BlockList() []BlockDef {
	out := make([]BlockDef, 0, len(c.Blocks.Order))
	for _, id := range c.Blocks.Order {
		out = append(out, c.Blocks.Defs[id])
	}
	return out
}

func (c *Catalogs) Upgrade(id string) (UpgradeDef, bool) {
	if c == nil {
		return UpgradeDef{}, false
	}
	d, ok := c.Upgrades.Defs[id]
	return d, ok
}

func (c *Catalogs) UpgradeList() []UpgradeDef {
	out := make([]UpgradeDef, 0, len(c.Upgrades.Order))
	for _, id := range c.Upgrades.Order {
		out = append(out, c.Upgrades.Defs[id])
	}
	return out
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	if err := loadUpgrades(filepath.Join(configDir, "upgrades.json"), &c.Upgrades); err != nil {
		return nil, err
	}
	return &c, nil
}

// Defaults returns the built-in catalogs used when no config directory is available.
func Defaults() *Catalogs {
	blocks := []BlockDef{
		{ID: "INCREMENTOR", Name: "Incrementer", Glyph: "I", Cost: 10, Description: "Produces 1 point per tick."},
		{ID: "ADDER", Name: "Adder", Glyph: "A", Cost: 20, Description: "Adds its bonus to every adjacent Incrementer."},
		{ID: "DOUBLER", Name: "Doubler", Glyph: "D", Cost: 40, Description: "Doubles the bonus of every adjacent Adder."},
	}
	upgrades := []UpgradeDef{
		{ID: "BIGGINATOR", Name: "Bigginator", Glyph: "+", Cost: 15, Description: "Grows the grid by one column and one row.",
			Effect: Effect{Kind: EffectGrowGrid, DW: 1, DH: 1}},
	}
	var c Catalogs
	c.Blocks.Digest = digestDefs(blocks)
	c.Blocks.Defs = map[string]BlockDef{}
	for _, d := range blocks {
		c.Blocks.Order = append(c.Blocks.Order, d.ID)
		c.Blocks.Defs[d.ID] = d
	}
	c.Upgrades.Digest = digestDefs(upgrades)
	c.Upgrades.Defs = map[string]UpgradeDef{}
	for _, d := range upgrades {
		c.Upgrades.Order = append(c.Upgrades.Order, d.ID)
		c.Upgrades.Defs[d.ID] = d
	}
	return &c
}

// digestDefs hashes the canonical JSON of decoded definitions, so formatting
// differences in the source file never change a digest.
func digestDefs(defs any) string {
	b, _ := json.Marshal(defs)
	return sha256Hex(b)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := validate("blocks.schema.json", raw); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Digest = digestDefs(defs)
	out.Defs = map[string]BlockDef{}
	out.Order = out.Order[:0]
	for _, d := range defs {
		if d.Type() == grid.Empty {
			return fmt.Errorf("blocks.json: %q is not a placeable block", d.ID)
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("blocks.json: duplicate id %q", d.ID)
		}
		out.Defs[d.ID] = d
		out.Order = append(out.Order, d.ID)
	}
	return nil
}

func loadUpgrades(path string, out *UpgradeCatalog) error {
	out.Defs = map[string]UpgradeDef{}
	raw, err := os.ReadFile(path)
	if err != nil {
		// No upgrades file means no upgrades on offer.
		if os.IsNotExist(err) {
			out.Digest = digestDefs([]UpgradeDef{})
			return nil
		}
		return err
	}
	if err := validate("upgrades.schema.json", raw); err != nil {
		return fmt.Errorf("upgrades.json: %w", err)
	}

	var defs []UpgradeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("upgrades.json: %w", err)
	}
	out.Digest = digestDefs(defs)
	for _, d := range defs {
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("upgrades.json: duplicate id %q", d.ID)
		}
		switch d.Effect.Kind {
		case EffectGrowGrid:
			if d.Effect.DW == 0 && d.Effect.DH == 0 {
				return fmt.Errorf("upgrades.json: %s: GROW_GRID needs dw or dh", d.ID)
			}
		default:
			return fmt.Errorf("upgrades.json: %s: unknown effect kind %q", d.ID, d.Effect.Kind)
		}
		out.Defs[d.ID] = d
		out.Order = append(out.Order, d.ID)
	}
	return nil
}

func validate(schemaName string, raw []byte) error {
	src, err := schemaFS.ReadFile("schemas/" + schemaName)
	if err != nil {
		return err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaName, bytes.NewReader(src)); err != nil {
		return err
	}
	s, err := c.Compile(schemaName)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
