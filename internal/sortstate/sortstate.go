// Package sortstate tracks the per-column direction of the process table.
package sortstate

import (
	"cmp"
	"fmt"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Dicklesworthstone/opsdash/internal/model"
)

// Column is a sortable process table column.
type Column string

const (
	PID    Column = "pid"
	Name   Column = "name"
	CPU    Column = "cpu"
	Memory Column = "memory"
)

// Columns lists the sortable columns in table order.
var Columns = []Column{PID, Name, CPU, Memory}

func (c Column) index() int {
	return slices.Index(Columns, c)
}

// ParseColumn accepts a column name as used on the wire.
func ParseColumn(s string) (Column, error) {
	c := Column(s)
	if c.index() < 0 {
		return "", fmt.Errorf("unknown sort column %q", s)
	}
	return c, nil
}

// State holds one direction per column. The zero value has every column
// ascending.
type State struct {
	desc [4]bool
}

func New() State { return State{} }

// Ascending reports the direction the next sort on c will use. Unknown
// columns report true.
func (s State) Ascending(c Column) bool {
	i := c.index()
	return i < 0 || !s.desc[i]
}

// Toggle returns s with c's direction flipped.
func (s State) Toggle(c Column) State {
	if i := c.index(); i >= 0 {
		s.desc[i] = !s.desc[i]
	}
	return s
}

// Sort orders a copy of procs by c in the current direction and returns it
// with the state to use next time.
func (s State) Sort(procs []model.Process, c Column) ([]model.Process, State, error) {
	if c.index() < 0 {
		return nil, s, fmt.Errorf("unknown sort column %q", c)
	}
	return Order(procs, c, s.Ascending(c)), s.Toggle(c), nil
}

// Order returns procs sorted by c. The sort is stable; names are compared
// with locale-aware collation, the other columns numerically.
func Order(procs []model.Process, c Column, ascending bool) []model.Process {
	out := slices.Clone(procs)
	compare := comparator(c)
	if !ascending {
		asc := compare
		compare = func(a, b model.Process) int { return asc(b, a) }
	}
	slices.SortStableFunc(out, compare)
	return out
}

func comparator(c Column) func(a, b model.Process) int {
	switch c {
	case Name:
		col := collate.New(language.Und)
		return func(a, b model.Process) int { return col.CompareString(a.Name, b.Name) }
	case CPU:
		return func(a, b model.Process) int { return cmp.Compare(a.CPU, b.CPU) }
	case Memory:
		return func(a, b model.Process) int { return cmp.Compare(a.Memory, b.Memory) }
	default:
		return func(a, b model.Process) int { return cmp.Compare(a.PID, b.PID) }
	}
}
