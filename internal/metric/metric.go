// Package metric holds the per-player, per-piece and per-square calculators,
// the static registry that catalogs them, and the dispatcher that assembles
// a Report for one snapshot.
package metric

import (
	"errors"

	"github.com/park285/chess-metrics/internal/attack"
	"github.com/park285/chess-metrics/internal/board"
	"github.com/park285/chess-metrics/internal/pin"
	"github.com/park285/chess-metrics/internal/position"
)

// ErrMetricFailed wraps any calculator error or panic. A report is never
// returned alongside it.
var ErrMetricFailed = errors.New("metric calculation failed")

type Category string

const (
	CategoryPlayer Category = "player"
	CategoryPiece  Category = "piece"
	CategorySquare Category = "square"
)

// Categories lists the categories in dispatch order.
var Categories = []Category{CategoryPlayer, CategoryPiece, CategorySquare}

// Bounds is the theoretical range of a numeric metric.
type Bounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Descriptor is registry metadata for one metric.
type Descriptor struct {
	Name        string
	Category    Category
	Description string
	Bounds      *Bounds
}

// FullName is the registry key, e.g. "piece.freedom".
func (d Descriptor) FullName() string {
	return string(d.Category) + "." + d.Name
}

// Context is what every calculator sees for one analysis call. The analyzers
// memoize against the snapshot, so one Context is never shared across calls.
type Context struct {
	Snapshot *position.Snapshot
	Attacks  *attack.Analyzer
	Pins     *pin.Detector
}

// NewContext builds fresh analyzers over snap.
func NewContext(snap *position.Snapshot) *Context {
	return &Context{
		Snapshot: snap,
		Attacks:  attack.New(snap),
		Pins:     pin.New(snap),
	}
}

// Metric computes one value for a subject: a color for player metrics, a
// piece for piece metrics, a square for square metrics.
type Metric[S any] interface {
	Descriptor() Descriptor
	Calculate(ctx *Context, subject S) (any, error)
}

type (
	PlayerMetric = Metric[board.Color]
	PieceMetric  = Metric[board.Piece]
	SquareMetric = Metric[board.Square]
)

func bounds(lo, hi int) *Bounds {
	return &Bounds{Min: lo, Max: hi}
}
