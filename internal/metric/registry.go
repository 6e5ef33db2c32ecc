package metric

import (
	"fmt"
	"strings"
)

// Table is the static catalog: per category, the ordered list of calculator
// factories. Report fields follow this order.
type Table struct {
	Player []func() PlayerMetric
	Piece  []func() PieceMetric
	Square []func() SquareMetric
}

// DefaultTable returns every built-in metric.
func DefaultTable() Table {
	return Table{
		Player: []func() PlayerMetric{
			newIsMyTurn,
			newPlayerFreedom,
			newKingsFreedom,
			newQueensFreedom,
			newPinnedPieces,
			newHangingPieces,
		},
		Piece: []func() PieceMetric{
			newFreedom,
			newIsAttacked,
			newIsDefended,
			newIsHanging,
			newIsPinned,
			newNumberOfAttackers,
			newNumberOfDefenders,
		},
		Square: []func() SquareMetric{
			newWhiteAttackers,
			newBlackAttackers,
		},
	}
}

// Registry is built once from a Table and is read-only afterwards.
type Registry struct {
	table  Table
	order  map[Category][]Descriptor
	byName map[string]Descriptor
}

var defaultRegistry = MustNewRegistry(DefaultTable())

// Default returns the registry over DefaultTable.
func Default() *Registry { return defaultRegistry }

// NewRegistry instantiates every factory once to read its descriptor and
// rejects empty names, duplicate names within a category, and descriptors
// filed under the wrong category.
func NewRegistry(t Table) (*Registry, error) {
	r := &Registry{
		table:  t,
		order:  make(map[Category][]Descriptor, len(Categories)),
		byName: make(map[string]Descriptor),
	}
	add := func(want Category, d Descriptor) error {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("%s metric with empty name", want)
		}
		if d.Category != want {
			return fmt.Errorf("metric %s registered under %s", d.FullName(), want)
		}
		if strings.Contains(d.Name, ".") {
			return fmt.Errorf("metric name %q must not contain a dot", d.Name)
		}
		if _, dup := r.byName[d.FullName()]; dup {
			return fmt.Errorf("duplicate metric %s", d.FullName())
		}
		r.byName[d.FullName()] = d
		r.order[want] = append(r.order[want], d)
		return nil
	}
	for i, f := range t.Player {
		m := f()
		if m == nil {
			return nil, fmt.Errorf("player factory %d returned nil", i)
		}
		if err := add(CategoryPlayer, m.Descriptor()); err != nil {
			return nil, err
		}
	}
	for i, f := range t.Piece {
		m := f()
		if m == nil {
			return nil, fmt.Errorf("piece factory %d returned nil", i)
		}
		if err := add(CategoryPiece, m.Descriptor()); err != nil {
			return nil, err
		}
	}
	for i, f := range t.Square {
		m := f()
		if m == nil {
			return nil, fmt.Errorf("square factory %d returned nil", i)
		}
		if err := add(CategorySquare, m.Descriptor()); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustNewRegistry panics on a malformed table; that is a build error, not an
// input error.
func MustNewRegistry(t Table) *Registry {
	r, err := NewRegistry(t)
	if err != nil {
		panic("metric registry: " + err.Error())
	}
	return r
}

// Names lists the short metric names of category c in registration order.
func (r *Registry) Names(c Category) []string {
	descs := r.order[c]
	out := make([]string, len(descs))
	for i, d := range descs {
		out[i] = d.Name
	}
	return out
}

// Describe lists the descriptors of category c in registration order.
func (r *Registry) Describe(c Category) []Descriptor {
	out := make([]Descriptor, len(r.order[c]))
	copy(out, r.order[c])
	return out
}

// Lookup resolves a full name such as "player.kingsFreedom".
func (r *Registry) Lookup(fullName string) (Descriptor, bool) {
	d, ok := r.byName[fullName]
	return d, ok
}

// Bounds returns the declared range of fullName, if it has one.
func (r *Registry) Bounds(fullName string) (Bounds, bool) {
	d, ok := r.byName[fullName]
	if !ok || d.Bounds == nil {
		return Bounds{}, false
	}
	return *d.Bounds, true
}
