package metric

import (
	"errors"
	"fmt"

	"github.com/park285/chess-metrics/internal/board"
	"github.com/park285/chess-metrics/internal/position"
)

// Calculator runs every registered metric over a snapshot.
type Calculator struct {
	reg *Registry
}

// NewCalculator uses reg, or the default registry when reg is nil.
func NewCalculator(reg *Registry) *Calculator {
	if reg == nil {
		reg = Default()
	}
	return &Calculator{reg: reg}
}

func (c *Calculator) Registry() *Registry { return c.reg }

// Calculate builds the full report. Any metric failure fails the whole call
// with an error wrapping ErrMetricFailed.
func (c *Calculator) Calculate(snap *position.Snapshot) (*Report, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrMetricFailed)
	}
	players, err := instantiate(c.reg.table.Player)
	if err != nil {
		return nil, err
	}
	pieces, err := instantiate(c.reg.table.Piece)
	if err != nil {
		return nil, err
	}
	squares, err := instantiate(c.reg.table.Square)
	if err != nil {
		return nil, err
	}

	ctx := NewContext(snap)
	report := &Report{}

	for _, color := range board.Colors {
		values, err := evaluate(ctx, players, color, color.String())
		if err != nil {
			return nil, err
		}
		if color == board.White {
			report.Players.White = PlayerRecord{Metrics: values}
		} else {
			report.Players.Black = PlayerRecord{Metrics: values}
		}
	}

	all := snap.Pieces()
	report.Pieces = make([]PieceRecord, 0, len(all))
	for _, p := range all {
		values, err := evaluate(ctx, pieces, p, p.String())
		if err != nil {
			return nil, err
		}
		report.Pieces = append(report.Pieces, PieceRecord{
			Type:    p.Type,
			Color:   p.Color,
			Square:  p.Square,
			Metrics: values,
		})
	}

	report.Squares = make([]SquareRecord, 0, len(board.ReportOrder))
	for _, sq := range board.ReportOrder {
		values, err := evaluate(ctx, squares, sq, sq.String())
		if err != nil {
			return nil, err
		}
		report.Squares = append(report.Squares, SquareRecord{Square: sq, Metrics: values})
	}
	return report, nil
}

func instantiate[S any](factories []func() Metric[S]) ([]Metric[S], error) {
	out := make([]Metric[S], 0, len(factories))
	for i, f := range factories {
		m := f()
		if m == nil {
			return nil, fmt.Errorf("%w: factory %d resolved to no calculator", ErrMetricFailed, i)
		}
		out = append(out, m)
	}
	return out, nil
}

func evaluate[S any](ctx *Context, metrics []Metric[S], subject S, label string) (Values, error) {
	values := make(Values, len(metrics))
	for _, m := range metrics {
		v, err := run(ctx, m, subject)
		if err != nil {
			return nil, fmt.Errorf("%w: %s for %s: %w", ErrMetricFailed, m.Descriptor().FullName(), label, err)
		}
		values[m.Descriptor().Name] = v
	}
	return values, nil
}

func run[S any](ctx *Context, m Metric[S], subject S) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	v, err = m.Calculate(ctx, subject)
	if err == nil && v == nil {
		err = errors.New("no value")
	}
	return v, err
}
