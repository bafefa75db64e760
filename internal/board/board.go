// Package board is the downstream display coordinator: a set of named text
// cells rendered to a writer. The scheduler drives it through the
// Coordinator contract (SetIgnoreUpdate / InternalUpdate); the board's own
// periodic Update is skipped while a batch is being applied.
package board

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	logx "pulseboard/pkg/logx"
)

type Cell struct {
	Name      string
	Text      string
	UpdatedAt time.Time
}

type Board struct {
	log logx.Logger

	mu           sync.Mutex
	out          io.Writer
	order        []string
	cells        map[string]Cell
	dirty        bool
	ignoreUpdate bool
	repaints     uint64
}

// New builds a board writing to out. order fixes the render order of known
// cells; unknown cells render after them, sorted by name.
func New(out io.Writer, order []string, log logx.Logger) *Board {
	return &Board{
		log:   log,
		out:   out,
		order: append([]string(nil), order...),
		cells: map[string]Cell{},
	}
}

// Set replaces a cell's text and marks the board dirty. Called by scheduled
// actions; it never repaints by itself.
func (b *Board) Set(name, text string) {
	b.mu.Lock()
	b.cells[name] = Cell{Name: name, Text: text, UpdatedAt: time.Now()}
	b.dirty = true
	b.mu.Unlock()
}

// SetIgnoreUpdate toggles suppression of the board's own update cycle.
func (b *Board) SetIgnoreUpdate(v bool) {
	b.mu.Lock()
	b.ignoreUpdate = v
	b.mu.Unlock()
}

// Update is the board's own periodic cycle: repaint if dirty, unless
// suppressed.
func (b *Board) Update() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ignoreUpdate || !b.dirty {
		return
	}
	b.repaintLocked()
}

// InternalUpdate repaints unconditionally. The scheduler calls it once per
// executed batch, after suppression has been lifted.
func (b *Board) InternalUpdate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.repaintLocked()
}

// Repaints reports how many times the board has been rendered.
func (b *Board) Repaints() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.repaints
}

func (b *Board) repaintLocked() {
	b.repaints++
	b.dirty = false

	var sb strings.Builder
	for _, c := range b.snapshotLocked() {
		fmt.Fprintf(&sb, "%-12s %s\n", c.Name, c.Text)
	}
	if _, err := io.WriteString(b.out, sb.String()); err != nil {
		b.log.Warn("board repaint failed", logx.Err(err))
	}
}

// snapshotLocked returns cells in render order: configured order first,
// then the rest sorted by name.
func (b *Board) snapshotLocked() []Cell {
	out := make([]Cell, 0, len(b.cells))
	seen := make(map[string]bool, len(b.order))
	for _, name := range b.order {
		if c, ok := b.cells[name]; ok {
			out = append(out, c)
			seen[name] = true
		}
	}
	rest := make([]Cell, 0, len(b.cells))
	for name, c := range b.cells {
		if !seen[name] {
			rest = append(rest, c)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Name < rest[j].Name })
	return append(out, rest...)
}
