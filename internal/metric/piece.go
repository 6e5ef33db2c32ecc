package metric

import "github.com/park285/chess-metrics/internal/board"

// pieceFreedom counts the legal moves of p regardless of whose turn it is.
// Each promotion choice is its own move.
func pieceFreedom(ctx *Context, p board.Piece) int {
	return len(ctx.Snapshot.MovesFrom(p.Square, p.Color))
}

func attackersOf(ctx *Context, p board.Piece) int {
	return ctx.Attacks.NumberOfAttackers(p.Square, p.Color.Opponent())
}

func defendersOf(ctx *Context, p board.Piece) int {
	return ctx.Attacks.NumberOfAttackers(p.Square, p.Color)
}

func isHanging(ctx *Context, p board.Piece) bool {
	return attackersOf(ctx, p) > 0 && defendersOf(ctx, p) == 0
}

type freedomMetric struct{}

func newFreedom() PieceMetric { return freedomMetric{} }

func (freedomMetric) Descriptor() Descriptor {
	return Descriptor{
		Name:        "freedom",
		Category:    CategoryPiece,
		Description: "freedom tells how many legal moves this piece can make",
		Bounds:      bounds(0, 27),
	}
}

func (freedomMetric) Calculate(ctx *Context, p board.Piece) (any, error) {
	return pieceFreedom(ctx, p), nil
}

type isAttackedMetric struct{}

func newIsAttacked() PieceMetric { return isAttackedMetric{} }

func (isAttackedMetric) Descriptor() Descriptor {
	return Descriptor{
		Name:        "isAttacked",
		Category:    CategoryPiece,
		Description: "isAttacked tells if at least one enemy piece attacks this piece",
	}
}

func (isAttackedMetric) Calculate(ctx *Context, p board.Piece) (any, error) {
	return attackersOf(ctx, p) > 0, nil
}

type isDefendedMetric struct{}

func newIsDefended() PieceMetric { return isDefendedMetric{} }

func (isDefendedMetric) Descriptor() Descriptor {
	return Descriptor{
		Name:        "isDefended",
		Category:    CategoryPiece,
		Description: "isDefended tells if a friendly piece could recapture on this piece's square",
	}
}

func (isDefendedMetric) Calculate(ctx *Context, p board.Piece) (any, error) {
	return defendersOf(ctx, p) > 0, nil
}

type isHangingMetric struct{}

func newIsHanging() PieceMetric { return isHangingMetric{} }

func (isHangingMetric) Descriptor() Descriptor {
	return Descriptor{
		Name:        "isHanging",
		Category:    CategoryPiece,
		Description: "isHanging tells if this piece is attacked and has no defenders",
	}
}

func (isHangingMetric) Calculate(ctx *Context, p board.Piece) (any, error) {
	return isHanging(ctx, p), nil
}

type isPinnedMetric struct{}

func newIsPinned() PieceMetric { return isPinnedMetric{} }

func (isPinnedMetric) Descriptor() Descriptor {
	return Descriptor{
		Name:        "isPinned",
		Category:    CategoryPiece,
		Description: "isPinned tells if this piece is pinned (some of its moves are invalid due to king exposure)",
	}
}

func (isPinnedMetric) Calculate(ctx *Context, p board.Piece) (any, error) {
	return ctx.Pins.IsPinned(p), nil
}

type numberOfAttackersMetric struct{}

func newNumberOfAttackers() PieceMetric { return numberOfAttackersMetric{} }

func (numberOfAttackersMetric) Descriptor() Descriptor {
	return Descriptor{
		Name:        "numberOfAttackers",
		Category:    CategoryPiece,
		Description: "numberOfAttackers tells how many enemy pieces attack this piece",
		Bounds:      bounds(0, 16),
	}
}

func (numberOfAttackersMetric) Calculate(ctx *Context, p board.Piece) (any, error) {
	return attackersOf(ctx, p), nil
}

type numberOfDefendersMetric struct{}

func newNumberOfDefenders() PieceMetric { return numberOfDefendersMetric{} }

func (numberOfDefendersMetric) Descriptor() Descriptor {
	return Descriptor{
		Name:        "numberOfDefenders",
		Category:    CategoryPiece,
		Description: "numberOfDefenders tells how many friendly pieces defend this piece",
		Bounds:      bounds(0, 16),
	}
}

func (numberOfDefendersMetric) Calculate(ctx *Context, p board.Piece) (any, error) {
	return defendersOf(ctx, p), nil
}
