// Package attack answers "does this piece threaten that square" for one
// snapshot, and counts attackers per square and color.
package attack

import (
	"go.uber.org/zap"

	"github.com/park285/chess-metrics/internal/board"
	"github.com/park285/chess-metrics/internal/obslog"
	"github.com/park285/chess-metrics/internal/position"
)

// Analyzer memoizes attacker lists per (color, square). It is not safe for
// concurrent use; each analysis call builds its own.
type Analyzer struct {
	snap      *position.Snapshot
	attackers [2][64][]board.Piece
	done      [2][64]bool
	fallbacks int
}

func New(snap *position.Snapshot) *Analyzer {
	return &Analyzer{snap: snap}
}

// CanAttack reports whether the attacker-colored piece on from could capture
// on to. Occupancy of to does not matter: the engine is asked about a variant
// with an enemy pawn standing there, attacker to move and no en passant
// target. When the engine cannot build that variant the answer comes from
// piece geometry and the snapshot's occupancy instead.
func (a *Analyzer) CanAttack(from, to board.Square, attacker board.Color) bool {
	if from == to || !from.Valid() || !to.Valid() {
		return false
	}
	p, ok := a.snap.PieceAt(from)
	if !ok || p.Color != attacker {
		return false
	}
	reach, err := a.snap.CanReach(from, to, attacker)
	if err == nil {
		return reach
	}
	a.fallbacks++
	obslog.L().Debug("attack_geometric_fallback",
		zap.String("fen", a.snap.FEN()),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Error(err),
	)
	return Geometric(a.snap, p, to)
}

// Attackers lists the pieces of color c that attack sq, in a1..h8 order.
func (a *Analyzer) Attackers(sq board.Square, c board.Color) []board.Piece {
	if !sq.Valid() {
		return nil
	}
	if a.done[c][sq] {
		return a.attackers[c][sq]
	}
	var out []board.Piece
	for _, p := range a.snap.PiecesOf(c) {
		if a.CanAttack(p.Square, sq, c) {
			out = append(out, p)
		}
	}
	a.attackers[c][sq] = out
	a.done[c][sq] = true
	return out
}

func (a *Analyzer) NumberOfAttackers(sq board.Square, c board.Color) int {
	return len(a.Attackers(sq, c))
}

// Fallbacks counts the CanAttack calls answered geometrically.
func (a *Analyzer) Fallbacks() int { return a.fallbacks }

// Geometric is the pattern test used when the engine cannot answer. Sliding
// pieces need every square strictly between from and to to be empty in snap.
func Geometric(snap *position.Snapshot, p board.Piece, to board.Square) bool {
	from := p.Square
	if from == to {
		return false
	}
	df := to.File() - from.File()
	dr := to.Rank() - from.Rank()
	switch p.Type {
	case board.Pawn:
		forward := 1
		if p.Color == board.Black {
			forward = -1
		}
		return dr == forward && (df == 1 || df == -1)
	case board.Knight:
		adf, adr := abs(df), abs(dr)
		return (adf == 1 && adr == 2) || (adf == 2 && adr == 1)
	case board.King:
		return board.Distance(from, to) == 1
	case board.Rook:
		return board.LineBetween(from, to).Orthogonal() && pathClear(snap, from, to)
	case board.Bishop:
		return board.LineBetween(from, to) == board.DiagonalLine && pathClear(snap, from, to)
	case board.Queen:
		return board.LineBetween(from, to) != board.NoLine && pathClear(snap, from, to)
	default:
		return false
	}
}

func pathClear(snap *position.Snapshot, from, to board.Square) bool {
	for _, sq := range board.SquaresBetween(from, to) {
		if snap.Occupied(sq) {
			return false
		}
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
