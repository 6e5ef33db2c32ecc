package metric

import "github.com/park285/chess-metrics/internal/board"

type isMyTurnMetric struct{}

func newIsMyTurn() PlayerMetric { return isMyTurnMetric{} }

func (isMyTurnMetric) Descriptor() Descriptor {
	return Descriptor{
		Name:        "isMyTurn",
		Category:    CategoryPlayer,
		Description: "isMyTurn tells if this player is the side to move",
	}
}

func (isMyTurnMetric) Calculate(ctx *Context, c board.Color) (any, error) {
	return ctx.Snapshot.SideToMove() == c, nil
}

type playerFreedomMetric struct{}

func newPlayerFreedom() PlayerMetric { return playerFreedomMetric{} }

func (playerFreedomMetric) Descriptor() Descriptor {
	return Descriptor{
		Name:        "freedom",
		Category:    CategoryPlayer,
		Description: "freedom tells the sum of freedoms of all pieces for this player",
		Bounds:      bounds(0, 218),
	}
}

func (playerFreedomMetric) Calculate(ctx *Context, c board.Color) (any, error) {
	return freedomOfType(ctx, c, board.NoPieceType), nil
}

type kingsFreedomMetric struct{}

func newKingsFreedom() PlayerMetric { return kingsFreedomMetric{} }

func (kingsFreedomMetric) Descriptor() Descriptor {
	return Descriptor{
		Name:        "kingsFreedom",
		Category:    CategoryPlayer,
		Description: "kingsFreedom tells the freedom of this player's king piece",
		Bounds:      bounds(0, 8),
	}
}

// Calculate returns 0 for a color without exactly one king.
func (kingsFreedomMetric) Calculate(ctx *Context, c board.Color) (any, error) {
	king, ok := ctx.Snapshot.King(c)
	if !ok {
		return 0, nil
	}
	return pieceFreedom(ctx, king), nil
}

type queensFreedomMetric struct{}

func newQueensFreedom() PlayerMetric { return queensFreedomMetric{} }

func (queensFreedomMetric) Descriptor() Descriptor {
	return Descriptor{
		Name:        "queensFreedom",
		Category:    CategoryPlayer,
		Description: "queensFreedom tells the sum of freedoms of all queen pieces for this player",
		Bounds:      bounds(0, 27),
	}
}

func (queensFreedomMetric) Calculate(ctx *Context, c board.Color) (any, error) {
	return freedomOfType(ctx, c, board.Queen), nil
}

type pinnedPiecesMetric struct{}

func newPinnedPieces() PlayerMetric { return pinnedPiecesMetric{} }

func (pinnedPiecesMetric) Descriptor() Descriptor {
	return Descriptor{
		Name:        "numberOfPinnedPieces",
		Category:    CategoryPlayer,
		Description: "numberOfPinnedPieces tells how many of this player's pieces are pinned to their king",
		Bounds:      bounds(0, 15),
	}
}

func (pinnedPiecesMetric) Calculate(ctx *Context, c board.Color) (any, error) {
	return len(ctx.Pins.Pinned(c)), nil
}

type hangingPiecesMetric struct{}

func newHangingPieces() PlayerMetric { return hangingPiecesMetric{} }

func (hangingPiecesMetric) Descriptor() Descriptor {
	return Descriptor{
		Name:        "numberOfHangingPieces",
		Category:    CategoryPlayer,
		Description: "numberOfHangingPieces tells how many of this player's pieces are attacked and undefended",
		Bounds:      bounds(0, 16),
	}
}

func (hangingPiecesMetric) Calculate(ctx *Context, c board.Color) (any, error) {
	n := 0
	for _, p := range ctx.Snapshot.PiecesOf(c) {
		if isHanging(ctx, p) {
			n++
		}
	}
	return n, nil
}

// freedomOfType sums piece freedom over c's pieces of type pt, or over all
// of them when pt is NoPieceType.
func freedomOfType(ctx *Context, c board.Color, pt board.PieceType) int {
	total := 0
	for _, p := range ctx.Snapshot.PiecesOf(c) {
		if pt != board.NoPieceType && p.Type != pt {
			continue
		}
		total += pieceFreedom(ctx, p)
	}
	return total
}
