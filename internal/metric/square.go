package metric

import "github.com/park285/chess-metrics/internal/board"

// attackersMetric counts the attackers of one color on a square, occupied
// or not.
type attackersMetric struct {
	color board.Color
	name  string
}

func newWhiteAttackers() SquareMetric {
	return attackersMetric{color: board.White, name: "numberOfWhiteAttackers"}
}

func newBlackAttackers() SquareMetric {
	return attackersMetric{color: board.Black, name: "numberOfBlackAttackers"}
}

func (m attackersMetric) Descriptor() Descriptor {
	return Descriptor{
		Name:        m.name,
		Category:    CategorySquare,
		Description: m.name + " tells how many " + m.color.String() + " pieces attack this square",
		Bounds:      bounds(0, 16),
	}
}

func (m attackersMetric) Calculate(ctx *Context, sq board.Square) (any, error) {
	return ctx.Attacks.NumberOfAttackers(sq, m.color), nil
}
