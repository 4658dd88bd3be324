package main

import (
	"encoding/json"
	"fmt"

	"github.com/gdamore/tcell/v2"

	"blockremental/internal/protocol"
	"blockremental/internal/sim/catalogs"
	"blockremental/internal/sim/grid"
	"blockremental/internal/sim/session"
)

// Screen layout, in terminal cells.
const (
	headerY      = 0
	blockTrayY   = 2
	upgradeTrayY = 3
	trayX        = 11
	slotW        = 4
	gridX        = 1
	gridY        = 5
	cellW        = 4
)

var (
	styleText       = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleMuted      = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleSelected   = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleTooltip    = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorNavy)
	styleTooltipOff = tcell.StyleDefault.Foreground(tcell.ColorGray).Background(tcell.ColorNavy)

	blockStyles = map[grid.BlockType]tcell.Style{
		grid.Empty:       styleMuted,
		grid.Incrementor: tcell.StyleDefault.Foreground(tcell.ColorYellow),
		grid.Adder:       tcell.StyleDefault.Foreground(tcell.ColorBlue),
		grid.Doubler:     tcell.StyleDefault.Foreground(tcell.ColorPurple),
	}
)

type targetKind int

const (
	targetNone targetKind = iota
	targetBlockSlot
	targetUpgradeSlot
	targetCell
)

type target struct {
	kind  targetKind
	index int
	x, y  int
}

// ui holds client-side presentation state only; the session owns the game.
type ui struct {
	cats *catalogs.Catalogs

	selected       int
	mouseX, mouseY int
	down           bool
	hover          target

	seq    int
	status string
}

func newUI(cats *catalogs.Catalogs) *ui {
	return &ui{cats: cats, selected: -1, mouseX: -1, mouseY: -1}
}

func (u *ui) hit(mx, my int, st session.State) target {
	switch my {
	case blockTrayY:
		if i, ok := slotAt(mx, len(u.cats.Blocks.Order)); ok {
			return target{kind: targetBlockSlot, index: i}
		}
	case upgradeTrayY:
		if i, ok := slotAt(mx, len(u.cats.Upgrades.Order)); ok {
			return target{kind: targetUpgradeSlot, index: i}
		}
	}
	if mx < gridX || my < gridY {
		return target{}
	}
	cx, cy := (mx-gridX)/cellW, my-gridY
	if (mx-gridX)%cellW == cellW-1 {
		return target{}
	}
	if cx < st.Width && cy < st.Height {
		return target{kind: targetCell, x: cx, y: cy}
	}
	return target{}
}

func slotAt(mx, n int) (int, bool) {
	if mx < trayX {
		return 0, false
	}
	off := mx - trayX
	i := off / slotW
	if i >= n || off%slotW == slotW-1 {
		return 0, false
	}
	return i, true
}

// handleMouse tracks the pointer and turns a fresh primary-button press into
// at most one action. A status line lasts until the next click or until the
// pointer moves to a different target.
func (u *ui) handleMouse(ev *tcell.EventMouse, st session.State) (session.Action, bool) {
	u.mouseX, u.mouseY = ev.Position()
	pressed := ev.Buttons()&tcell.Button1 != 0
	clicked := pressed && !u.down
	u.down = pressed

	t := u.hit(u.mouseX, u.mouseY, st)
	if t != u.hover {
		u.hover = t
		u.status = ""
	}
	if !clicked {
		return session.Action{}, false
	}
	u.status = ""

	switch t.kind {
	case targetBlockSlot:
		if u.selected == t.index {
			u.selected = -1
		} else {
			u.selected = t.index
		}
	case targetUpgradeSlot:
		return session.Action{ID: u.nextID(), Kind: session.ActionUpgrade, Upgrade: u.cats.Upgrades.Order[t.index]}, true
	case targetCell:
		if u.selected < 0 {
			u.status = "select a block first"
			return session.Action{}, false
		}
		return session.Action{
			ID:    u.nextID(),
			Kind:  session.ActionPlace,
			X:     t.x,
			Y:     t.y,
			Block: u.cats.Blocks.Order[u.selected],
		}, true
	}
	return session.Action{}, false
}

func (u *ui) nextID() string {
	u.seq++
	return fmt.Sprintf("T%d", u.seq)
}

// handleMessage consumes session outbox traffic. Only ACKs matter here; the
// screen is drawn from snapshots.
func (u *ui) handleMessage(b []byte) {
	base, err := protocol.DecodeBase(b)
	if err != nil || base.Type != protocol.TypeAck {
		return
	}
	var ack protocol.AckMsg
	if err := json.Unmarshal(b, &ack); err != nil {
		return
	}
	if ack.Accepted {
		u.status = ""
		return
	}
	u.status = fmt.Sprintf("%s rejected: %s", ack.AckFor, ack.Code)
}

func (u *ui) draw(scr tcell.Screen, st session.State) {
	scr.Clear()
	_, h := scr.Size()

	drawText(scr, 0, headerY, styleText, fmt.Sprintf("points: %d   per tick: %d   tick: %d", st.Points, st.PointsPerTick, st.Tick))

	drawText(scr, 0, blockTrayY, styleText, "blocks:")
	for i, id := range u.cats.Blocks.Order {
		style := styleMuted
		if i == u.selected {
			style = styleSelected
		}
		drawText(scr, trayX+i*slotW, blockTrayY, style, "["+u.cats.Blocks.Defs[id].Glyph+"]")
	}
	drawText(scr, 0, upgradeTrayY, styleText, "upgrades:")
	for i, id := range u.cats.Upgrades.Order {
		drawText(scr, trayX+i*slotW, upgradeTrayY, styleMuted, "["+u.cats.Upgrades.Defs[id].Glyph+"]")
	}

	for y := 0; y < st.Height; y++ {
		for x := 0; x < st.Width; x++ {
			t := st.CellAt(x, y)
			glyph := " "
			if def, ok := u.cats.Block(t); ok {
				glyph = def.Glyph
			}
			drawText(scr, gridX+x*cellW, gridY+y, blockStyles[t], "["+glyph+"]")
		}
	}

	status := u.status
	hover := u.hit(u.mouseX, u.mouseY, st)
	if hover.kind == targetCell && status == "" {
		t := st.CellAt(hover.x, hover.y)
		status = fmt.Sprintf("(%d,%d) %s", hover.x, hover.y, t)
		if t == grid.Incrementor {
			status += fmt.Sprintf(" +%d", st.ValueAt(hover.x, hover.y))
		}
	}
	if status != "" {
		drawText(scr, 0, h-1, styleText, status)
	}
	for i, line := range u.tooltip(hover) {
		style := styleTooltip
		if cost := u.cost(hover); cost > st.Points {
			style = styleTooltipOff
		}
		drawText(scr, u.mouseX+2, u.mouseY+1+i, style, " "+line+" ")
	}

	scr.Show()
}

// tooltip returns the hover text for a tray slot, nil for anything else.
func (u *ui) tooltip(t target) []string {
	switch t.kind {
	case targetBlockSlot:
		d := u.cats.Blocks.Defs[u.cats.Blocks.Order[t.index]]
		return []string{d.Name, d.Description, fmt.Sprintf("cost: %d", d.Cost)}
	case targetUpgradeSlot:
		d := u.cats.Upgrades.Defs[u.cats.Upgrades.Order[t.index]]
		return []string{d.Name, d.Description, fmt.Sprintf("cost: %d", d.Cost)}
	}
	return nil
}

func (u *ui) cost(t target) int64 {
	switch t.kind {
	case targetBlockSlot:
		return u.cats.Blocks.Defs[u.cats.Blocks.Order[t.index]].Cost
	case targetUpgradeSlot:
		return u.cats.Upgrades.Defs[u.cats.Upgrades.Order[t.index]].Cost
	}
	return 0
}

func drawText(scr tcell.Screen, x, y int, style tcell.Style, s string) {
	for _, r := range s {
		scr.SetContent(x, y, r, nil, style)
		x++
	}
}
