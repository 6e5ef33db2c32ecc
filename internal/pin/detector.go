// Package pin decides whether a piece is pinned to its own king by an enemy
// slider. The decision is pure line tracing over the snapshot; legal move
// counts play no part.
package pin

import (
	"github.com/park285/chess-metrics/internal/board"
	"github.com/park285/chess-metrics/internal/position"
)

type Detector struct {
	snap *position.Snapshot
}

func New(snap *position.Snapshot) *Detector {
	return &Detector{snap: snap}
}

func (d *Detector) IsPinned(p board.Piece) bool {
	_, ok := d.Pinner(p)
	return ok
}

// Pinner returns the enemy piece pinning p to its king. Kings are never
// pinned, and a color without a single king has no pins.
func (d *Detector) Pinner(p board.Piece) (board.Piece, bool) {
	if p.Type == board.King {
		return board.Piece{}, false
	}
	king, ok := d.snap.King(p.Color)
	if !ok || !board.AreAligned(p.Square, king.Square) {
		return board.Piece{}, false
	}
	for _, enemy := range d.snap.PiecesOf(p.Color.Opponent()) {
		if d.pins(enemy, p, king) {
			return enemy, true
		}
	}
	return board.Piece{}, false
}

// pins reports whether enemy holds p against king: the three are on one
// line, enemy slides along that line, p stands between enemy and king, and
// nothing else does.
func (d *Detector) pins(enemy, p, king board.Piece) bool {
	if !board.AreOnSameLine(p.Square, king.Square, enemy.Square) {
		return false
	}
	if !slidesAlong(enemy.Type, board.LineBetween(enemy.Square, king.Square)) {
		return false
	}
	between := board.SquaresBetween(enemy.Square, king.Square)
	found := false
	for _, sq := range between {
		if sq == p.Square {
			found = true
			continue
		}
		if d.snap.Occupied(sq) {
			return false
		}
	}
	return found
}

func slidesAlong(pt board.PieceType, line board.Line) bool {
	switch line {
	case board.RankLine, board.FileLine:
		return pt == board.Rook || pt == board.Queen
	case board.DiagonalLine:
		return pt == board.Bishop || pt == board.Queen
	default:
		return false
	}
}

// Pinned lists the pinned pieces of color c.
func (d *Detector) Pinned(c board.Color) []board.Piece {
	var out []board.Piece
	for _, p := range d.snap.PiecesOf(c) {
		if d.IsPinned(p) {
			out = append(out, p)
		}
	}
	return out
}
