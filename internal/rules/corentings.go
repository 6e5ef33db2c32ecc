package rules

import (
	"errors"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chess-metrics/internal/board"
)

const corentingsName = "corentings"

type corentingsBackend struct{}

// Corentings is the default engine, backed by github.com/corentings/chess/v2.
func Corentings() Engine { return engine{b: corentingsBackend{}} }

func (corentingsBackend) name() string { return corentingsName }

func (corentingsBackend) load(fen string) (loadedPosition, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, err
	}
	game := nchess.NewGame(opt)
	pos := game.Position()
	if pos == nil || pos.Board() == nil {
		return nil, errors.New("engine returned no position")
	}
	return &corentingsPosition{pos: pos}, nil
}

type corentingsPosition struct {
	pos   *nchess.Position
	cache []board.Move
	ready bool
}

func (p *corentingsPosition) turn() board.Color {
	if p.pos.Turn() == nchess.Black {
		return board.Black
	}
	return board.White
}

func (p *corentingsPosition) occupants() []Occupant {
	var grid [64]*Occupant
	for sq, piece := range p.pos.Board().SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		pt := fromCorentingsType(piece.Type())
		if !pt.Valid() {
			continue
		}
		s := fromCorentingsSquare(sq)
		if !s.Valid() {
			continue
		}
		grid[s] = &Occupant{Square: s, Type: pt, Color: fromCorentingsColor(piece.Color())}
	}
	out := make([]Occupant, 0, 32)
	for _, o := range grid {
		if o != nil {
			out = append(out, *o)
		}
	}
	return out
}

func (p *corentingsPosition) moves() []board.Move {
	if p.ready {
		return p.cache
	}
	b := p.pos.Board()
	valid := p.pos.ValidMoves()
	out := make([]board.Move, 0, len(valid))
	for _, mv := range valid {
		piece := b.Piece(mv.S1())
		out = append(out, board.Move{
			From:      fromCorentingsSquare(mv.S1()),
			To:        fromCorentingsSquare(mv.S2()),
			Piece:     fromCorentingsType(piece.Type()),
			Color:     fromCorentingsColor(piece.Color()),
			Promotion: fromCorentingsType(mv.Promo()),
		})
	}
	for i := range out {
		out[i].Notation = out[i].UCI()
	}
	p.cache = out
	p.ready = true
	return out
}

func fromCorentingsSquare(sq nchess.Square) board.Square {
	return board.NewSquare(int(sq.File()), int(sq.Rank()))
}

func fromCorentingsColor(c nchess.Color) board.Color {
	if c == nchess.Black {
		return board.Black
	}
	return board.White
}

func fromCorentingsType(pt nchess.PieceType) board.PieceType {
	switch pt {
	case nchess.Pawn:
		return board.Pawn
	case nchess.Rook:
		return board.Rook
	case nchess.Knight:
		return board.Knight
	case nchess.Bishop:
		return board.Bishop
	case nchess.Queen:
		return board.Queen
	case nchess.King:
		return board.King
	default:
		return board.NoPieceType
	}
}
