package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/park285/chess-metrics/internal/board"
)

var (
	placementChars = regexp.MustCompile(`^[rnbqkpRNBQKP1-8/]+$`)
	castlingChars  = regexp.MustCompile(`^([KQkq]+|-)$`)
	enPassantToken = regexp.MustCompile(`^([a-h][36]|-)$`)
	clockToken     = regexp.MustCompile(`^\d+$`)
)

type cell struct {
	Type  board.PieceType
	Color board.Color
}

// FEN is a decoded Forsyth-Edwards record. Only the fields the hypothetical
// variants touch are structured; clocks are kept verbatim.
type FEN struct {
	cells     [64]cell
	Turn      board.Color
	Castling  string
	EnPassant string
	HalfMove  int
	FullMove  int
}

// ValidateFormat checks the six-field structure without consulting an engine.
func ValidateFormat(fen string) error {
	_, err := ParseFEN(fen)
	return err
}

func ParseFEN(raw string) (FEN, error) {
	var out FEN
	parts := strings.Fields(strings.TrimSpace(raw))
	if len(parts) != 6 {
		return out, fmt.Errorf("%w: expected 6 fields, got %d", ErrInvalidFEN, len(parts))
	}
	if !placementChars.MatchString(parts[0]) {
		return out, fmt.Errorf("%w: bad placement characters", ErrInvalidFEN)
	}
	if err := out.decodePlacement(parts[0]); err != nil {
		return out, err
	}
	switch parts[1] {
	case "w":
		out.Turn = board.White
	case "b":
		out.Turn = board.Black
	default:
		return out, fmt.Errorf("%w: bad side to move %q", ErrInvalidFEN, parts[1])
	}
	if !castlingChars.MatchString(parts[2]) {
		return out, fmt.Errorf("%w: bad castling field %q", ErrInvalidFEN, parts[2])
	}
	out.Castling = parts[2]
	if !enPassantToken.MatchString(parts[3]) {
		return out, fmt.Errorf("%w: bad en passant field %q", ErrInvalidFEN, parts[3])
	}
	out.EnPassant = parts[3]
	if !clockToken.MatchString(parts[4]) || !clockToken.MatchString(parts[5]) {
		return out, fmt.Errorf("%w: clocks must be non-negative integers", ErrInvalidFEN)
	}
	var err error
	if out.HalfMove, err = strconv.Atoi(parts[4]); err != nil {
		return out, fmt.Errorf("%w: halfmove clock %q out of range", ErrInvalidFEN, parts[4])
	}
	if out.FullMove, err = strconv.Atoi(parts[5]); err != nil {
		return out, fmt.Errorf("%w: fullmove number %q out of range", ErrInvalidFEN, parts[5])
	}
	return out, nil
}

func (f *FEN) decodePlacement(placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("%w: expected 8 ranks, got %d", ErrInvalidFEN, len(ranks))
	}
	for i, row := range ranks {
		rank := 7 - i
		file := 0
		for j := 0; j < len(row); j++ {
			c := row[j]
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				continue
			}
			pt, color, ok := board.PieceTypeFromFEN(c)
			if !ok || file > 7 {
				return fmt.Errorf("%w: rank %d overflows", ErrInvalidFEN, rank+1)
			}
			f.cells[board.NewSquare(file, rank)] = cell{Type: pt, Color: color}
			file++
		}
		if file != 8 {
			return fmt.Errorf("%w: rank %d has %d files", ErrInvalidFEN, rank+1, file)
		}
	}
	return nil
}

// Occupants lists the pieces in a1..h8 order.
func (f FEN) Occupants() []Occupant {
	out := make([]Occupant, 0, 32)
	for sq := board.A1; sq <= board.H8; sq++ {
		c := f.cells[sq]
		if c.Type == board.NoPieceType {
			continue
		}
		out = append(out, Occupant{Square: sq, Type: c.Type, Color: c.Color})
	}
	return out
}

// Put overwrites a square and drops castling rights that depended on the
// piece that stood there.
func (f *FEN) Put(o Occupant) {
	f.cells[o.Square] = cell{Type: o.Type, Color: o.Color}
	drop := ""
	switch o.Square {
	case board.E1:
		drop = "KQ"
	case board.H1:
		drop = "K"
	case board.A1:
		drop = "Q"
	case board.E8:
		drop = "kq"
	case board.H8:
		drop = "k"
	case board.A8:
		drop = "q"
	}
	if drop == "" || f.Castling == "-" {
		return
	}
	rights := f.Castling
	for _, r := range drop {
		rights = strings.ReplaceAll(rights, string(r), "")
	}
	if rights == "" {
		rights = "-"
	}
	f.Castling = rights
}

// PawnOnBackRank reports a pawn on rank 1 or 8, which no legal game reaches.
func (f FEN) PawnOnBackRank() bool {
	for file := 0; file < 8; file++ {
		if f.cells[board.NewSquare(file, 0)].Type == board.Pawn || f.cells[board.NewSquare(file, 7)].Type == board.Pawn {
			return true
		}
	}
	return false
}

// Kings lists the squares holding a king of color c.
func (f FEN) Kings(c board.Color) []board.Square {
	var out []board.Square
	for sq := board.A1; sq <= board.H8; sq++ {
		if cell := f.cells[sq]; cell.Type == board.King && cell.Color == c {
			out = append(out, sq)
		}
	}
	return out
}

// KingsPlaced reports exactly one king per color with the two kings not on
// adjacent squares.
func (f FEN) KingsPlaced() bool {
	white, black := f.Kings(board.White), f.Kings(board.Black)
	if len(white) != 1 || len(black) != 1 {
		return false
	}
	return board.Distance(white[0], black[0]) > 1
}

// Legal is the placement check applied before any analysis.
func (f FEN) Legal() bool {
	return f.KingsPlaced() && !f.PawnOnBackRank()
}

var castlingHomes = []struct {
	right byte
	king  board.Square
	rook  board.Square
	color board.Color
}{
	{'K', board.E1, board.H1, board.White},
	{'Q', board.E1, board.A1, board.White},
	{'k', board.E8, board.H8, board.Black},
	{'q', board.E8, board.A8, board.Black},
}

// NormalizeCastling keeps only the rights whose king and rook still stand on
// their home squares, in KQkq order. It reports whether the field changed.
func (f *FEN) NormalizeCastling() bool {
	var sb strings.Builder
	for _, h := range castlingHomes {
		if !strings.ContainsRune(f.Castling, rune(h.right)) {
			continue
		}
		if f.cells[h.king] != (cell{Type: board.King, Color: h.color}) || f.cells[h.rook] != (cell{Type: board.Rook, Color: h.color}) {
			continue
		}
		sb.WriteByte(h.right)
	}
	rights := sb.String()
	if rights == "" {
		rights = "-"
	}
	if rights == f.Castling {
		return false
	}
	f.Castling = rights
	return true
}

func (f FEN) String() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			c := f.cells[board.NewSquare(file, rank)]
			if c.Type == board.NoPieceType {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			ch := c.Type.FENChar()
			if c.Color == board.White {
				ch -= 'a' - 'A'
			}
			sb.WriteByte(ch)
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}
	castling := f.Castling
	if castling == "" {
		castling = "-"
	}
	ep := f.EnPassant
	if ep == "" {
		ep = "-"
	}
	fmt.Fprintf(&sb, " %s %s %s %d %d", f.Turn.FENChar(), castling, ep, f.HalfMove, f.FullMove)
	return sb.String()
}

// Variant applies the hypothetical edits of opts to a copy of f.
func (f FEN) Variant(opts MoveOptions) FEN {
	v := f
	if opts.SideToMove != nil {
		v.Turn = *opts.SideToMove
	}
	if opts.ClearEnPassant {
		v.EnPassant = "-"
	}
	for _, o := range opts.Place {
		v.Put(o)
	}
	return v
}
