// Package position holds the read-only view of one parsed position that the
// analyzers and metric calculators consume. A Snapshot never exposes the
// rules engine behind it.
package position

import (
	"errors"
	"fmt"
	"strings"

	"github.com/park285/chess-metrics/internal/board"
	"github.com/park285/chess-metrics/internal/rules"
)

var ErrInvalidPosition = errors.New("invalid position")

// InvalidPositionError reports a FEN that failed format validation or was
// rejected by the rules engine.
type InvalidPositionError struct {
	FEN string
	Err error
}

func (e *InvalidPositionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid position %q", e.FEN)
	}
	return fmt.Sprintf("invalid position %q: %v", e.FEN, e.Err)
}

func (e *InvalidPositionError) Unwrap() []error {
	return []error{ErrInvalidPosition, e.Err}
}

// Snapshot is immutable after construction and owned by a single analysis call.
type Snapshot struct {
	handle rules.Handle
	turn   board.Color
	pieces []board.Piece
	grid   [64]int8
	kings  [2][]board.Square
	moves  []board.Move
}

// New parses fen with engine and builds a snapshot. Format failures, engine
// rejections and positions failing the legality check all come back as
// *InvalidPositionError.
func New(engine rules.Engine, fen string) (*Snapshot, error) {
	fen = strings.TrimSpace(fen)
	if err := rules.ValidateFormat(fen); err != nil {
		return nil, &InvalidPositionError{FEN: fen, Err: err}
	}
	h, err := engine.Parse(fen)
	if err != nil {
		return nil, &InvalidPositionError{FEN: fen, Err: err}
	}
	return FromHandle(h)
}

// FromHandle wraps an already parsed handle.
func FromHandle(h rules.Handle) (*Snapshot, error) {
	if h == nil {
		return nil, &InvalidPositionError{Err: errors.New("nil handle")}
	}
	if !h.IsLegal() {
		return nil, &InvalidPositionError{FEN: h.FEN(), Err: rules.ErrIllegalPosition}
	}

	s := &Snapshot{handle: h, turn: h.SideToMove()}
	for i := range s.grid {
		s.grid[i] = -1
	}
	for _, o := range h.Occupants() {
		if !o.Square.Valid() || !o.Type.Valid() || s.grid[o.Square] >= 0 {
			continue
		}
		s.grid[o.Square] = int8(len(s.pieces))
		s.pieces = append(s.pieces, board.Piece{Type: o.Type, Color: o.Color, Square: o.Square})
		if o.Type == board.King {
			s.kings[o.Color] = append(s.kings[o.Color], o.Square)
		}
	}

	moves, err := h.LegalMoves(rules.MoveOptions{})
	if err != nil {
		return nil, &InvalidPositionError{FEN: h.FEN(), Err: err}
	}
	s.moves = append(s.moves, onlyColor(moves, s.turn)...)

	// The side not to move is listed with the turn handed over. A position
	// where that is impossible (the side to move is giving check it cannot
	// legally be in) reports no mobility for that side.
	other := s.turn.Opponent()
	if moves, err := h.LegalMoves(rules.MoveOptions{SideToMove: &other, ClearEnPassant: true}); err == nil {
		s.moves = append(s.moves, onlyColor(moves, other)...)
	}
	return s, nil
}

func onlyColor(moves []board.Move, c board.Color) []board.Move {
	out := make([]board.Move, 0, len(moves))
	for _, mv := range moves {
		if mv.Color == c {
			out = append(out, mv)
		}
	}
	return out
}

func (s *Snapshot) FEN() string { return s.handle.FEN() }

func (s *Snapshot) SideToMove() board.Color { return s.turn }

// Pieces returns a copy of the occupant list in a1..h8 order.
func (s *Snapshot) Pieces() []board.Piece {
	out := make([]board.Piece, len(s.pieces))
	copy(out, s.pieces)
	return out
}

func (s *Snapshot) PiecesOf(c board.Color) []board.Piece {
	var out []board.Piece
	for _, p := range s.pieces {
		if p.Color == c {
			out = append(out, p)
		}
	}
	return out
}

func (s *Snapshot) PieceAt(sq board.Square) (board.Piece, bool) {
	if !sq.Valid() || s.grid[sq] < 0 {
		return board.Piece{}, false
	}
	return s.pieces[s.grid[sq]], true
}

func (s *Snapshot) Occupied(sq board.Square) bool {
	return sq.Valid() && s.grid[sq] >= 0
}

// King returns the king of color c. A color with no king, or with more than
// one, has no king as far as the analyzers are concerned.
func (s *Snapshot) King(c board.Color) (board.Piece, bool) {
	if len(s.kings[c]) != 1 {
		return board.Piece{}, false
	}
	return s.PieceAt(s.kings[c][0])
}

// AllMoves lists the legal moves of both colors, side to move first.
func (s *Snapshot) AllMoves() []board.Move {
	out := make([]board.Move, len(s.moves))
	copy(out, s.moves)
	return out
}

// MovesFrom lists the legal moves of the color-c piece on sq.
func (s *Snapshot) MovesFrom(sq board.Square, c board.Color) []board.Move {
	var out []board.Move
	for _, mv := range s.moves {
		if mv.From == sq && mv.Color == c {
			out = append(out, mv)
		}
	}
	return out
}

// CanReach reports whether the color-c piece on from could legally capture on
// to, were an enemy pawn standing there and c to move. It returns an error
// wrapping rules.ErrHypothetical when the engine cannot build that position.
func (s *Snapshot) CanReach(from, to board.Square, c board.Color) (bool, error) {
	moves, err := s.handle.LegalMoves(rules.MoveOptions{
		From:           &from,
		SideToMove:     &c,
		ClearEnPassant: true,
		Place:          []rules.Occupant{{Square: to, Type: board.Pawn, Color: c.Opponent()}},
	})
	if err != nil {
		if !errors.Is(err, rules.ErrHypothetical) {
			err = fmt.Errorf("%w: %v", rules.ErrHypothetical, err)
		}
		return false, err
	}
	for _, mv := range moves {
		if mv.To == to {
			return true, nil
		}
	}
	return false, nil
}
