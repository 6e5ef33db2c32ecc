package rules

import (
	"errors"

	lchess "github.com/notnil/chess"

	"github.com/park285/chess-metrics/internal/board"
)

const notnilName = "notnil"

type notnilBackend struct{}

// Notnil is the alternate engine, backed by github.com/notnil/chess.
func Notnil() Engine { return engine{b: notnilBackend{}} }

func (notnilBackend) name() string { return notnilName }

func (notnilBackend) load(fen string) (loadedPosition, error) {
	opt, err := lchess.FEN(fen)
	if err != nil {
		return nil, err
	}
	game := lchess.NewGame(opt)
	pos := game.Position()
	if pos == nil || pos.Board() == nil {
		return nil, errors.New("engine returned no position")
	}
	return &notnilPosition{pos: pos}, nil
}

type notnilPosition struct {
	pos   *lchess.Position
	cache []board.Move
	ready bool
}

func (p *notnilPosition) turn() board.Color {
	if p.pos.Turn() == lchess.Black {
		return board.Black
	}
	return board.White
}

func (p *notnilPosition) occupants() []Occupant {
	var grid [64]*Occupant
	for sq, piece := range p.pos.Board().SquareMap() {
		if piece == lchess.NoPiece {
			continue
		}
		pt := fromNotnilType(piece.Type())
		if !pt.Valid() {
			continue
		}
		s := fromNotnilSquare(sq)
		if !s.Valid() {
			continue
		}
		grid[s] = &Occupant{Square: s, Type: pt, Color: fromNotnilColor(piece.Color())}
	}
	out := make([]Occupant, 0, 32)
	for _, o := range grid {
		if o != nil {
			out = append(out, *o)
		}
	}
	return out
}

func (p *notnilPosition) moves() []board.Move {
	if p.ready {
		return p.cache
	}
	b := p.pos.Board()
	valid := p.pos.ValidMoves()
	out := make([]board.Move, 0, len(valid))
	for _, mv := range valid {
		piece := b.Piece(mv.S1())
		out = append(out, board.Move{
			From:      fromNotnilSquare(mv.S1()),
			To:        fromNotnilSquare(mv.S2()),
			Piece:     fromNotnilType(piece.Type()),
			Color:     fromNotnilColor(piece.Color()),
			Promotion: fromNotnilType(mv.Promo()),
		})
	}
	for i := range out {
		out[i].Notation = out[i].UCI()
	}
	p.cache = out
	p.ready = true
	return out
}

func fromNotnilSquare(sq lchess.Square) board.Square {
	return board.NewSquare(int(sq.File()), int(sq.Rank()))
}

func fromNotnilColor(c lchess.Color) board.Color {
	if c == lchess.Black {
		return board.Black
	}
	return board.White
}

func fromNotnilType(pt lchess.PieceType) board.PieceType {
	switch pt {
	case lchess.Pawn:
		return board.Pawn
	case lchess.Rook:
		return board.Rook
	case lchess.Knight:
		return board.Knight
	case lchess.Bishop:
		return board.Bishop
	case lchess.Queen:
		return board.Queen
	case lchess.King:
		return board.King
	default:
		return board.NoPieceType
	}
}
