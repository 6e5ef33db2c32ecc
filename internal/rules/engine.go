package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/park285/chess-metrics/internal/board"
)

var (
	ErrInvalidFEN      = errors.New("invalid FEN")
	ErrIllegalPosition = errors.New("illegal chess position")
	ErrHypothetical    = errors.New("hypothetical position rejected")
	ErrUnknownEngine   = errors.New("unknown rules engine")
)

// Occupant is one (square, type, color) triple on the board.
type Occupant struct {
	Square board.Square
	Type   board.PieceType
	Color  board.Color
}

// MoveOptions narrows or alters the position before legal moves are listed.
// Nil pointers keep the position as parsed.
type MoveOptions struct {
	From           *board.Square
	SideToMove     *board.Color
	ClearEnPassant bool
	Place          []Occupant
}

func (o MoveOptions) alters() bool {
	return o.SideToMove != nil || o.ClearEnPassant || len(o.Place) > 0
}

// Handle is a parsed position owned by one analysis call.
type Handle interface {
	FEN() string
	SideToMove() board.Color
	Occupants() []Occupant
	LegalMoves(opts MoveOptions) ([]board.Move, error)
	IsLegal() bool
}

// Engine parses FEN strings into handles. Implementations must be safe to
// share; every Parse returns an independent handle.
type Engine interface {
	Name() string
	Parse(fen string) (Handle, error)
}

// backend adapts one chess library to the shared handle logic.
type backend interface {
	name() string
	load(fen string) (loadedPosition, error)
}

type loadedPosition interface {
	turn() board.Color
	occupants() []Occupant
	moves() []board.Move
}

type engine struct {
	b backend
}

func (e engine) Name() string { return e.b.name() }

func (e engine) Parse(raw string) (Handle, error) {
	fen := strings.TrimSpace(raw)
	decoded, err := ParseFEN(fen)
	if err != nil {
		return nil, err
	}
	// 배치와 맞지 않는 캐슬링 권리는 라이브러리에 넘기기 전에 제거
	if decoded.NormalizeCastling() {
		fen = decoded.String()
	}
	pos, err := safeLoad(e.b, fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalPosition, err)
	}
	return &handle{b: e.b, fen: fen, decoded: decoded, pos: pos}, nil
}

// New returns the engine registered under name.
func New(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", corentingsName:
		return Corentings(), nil
	case notnilName:
		return Notnil(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

type handle struct {
	b       backend
	fen     string
	decoded FEN
	pos     loadedPosition
}

func (h *handle) FEN() string { return h.fen }

func (h *handle) SideToMove() board.Color { return h.pos.turn() }

func (h *handle) Occupants() []Occupant { return h.pos.occupants() }

// IsLegal requires one king per color, kings apart and no pawn on a back rank.
func (h *handle) IsLegal() bool {
	return h.decoded.Legal()
}

func (h *handle) LegalMoves(opts MoveOptions) (moves []board.Move, err error) {
	pos := h.pos
	if opts.alters() {
		variant := h.decoded.Variant(opts).String()
		pos, err = safeLoad(h.b, variant)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrHypothetical, variant, err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			moves = nil
			err = fmt.Errorf("%w: move generation panicked: %v", ErrHypothetical, r)
		}
	}()

	all := pos.moves()
	if opts.From == nil {
		return all, nil
	}
	out := make([]board.Move, 0, len(all))
	for _, mv := range all {
		if mv.From == *opts.From {
			out = append(out, mv)
		}
	}
	return out, nil
}

func safeLoad(b backend, fen string) (pos loadedPosition, err error) {
	defer func() {
		if r := recover(); r != nil {
			pos = nil
			err = fmt.Errorf("%s panicked loading %q: %v", b.name(), fen, r)
		}
	}()
	return b.load(fen)
}
