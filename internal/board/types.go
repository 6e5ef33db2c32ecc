package board

import (
	"fmt"
	"strings"
)

// Color is the side a piece belongs to.
type Color uint8

const (
	White Color = iota
	Black
)

// Colors lists both sides in report order.
var Colors = [2]Color{White, Black}

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// FENChar returns the side-to-move token used in FEN.
func (c Color) FENChar() string {
	if c == White {
		return "w"
	}
	return "b"
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	default:
		return White, fmt.Errorf("unknown color %q", s)
	}
}

// PieceType follows the rules-engine convention of a zero NoPieceType.
type PieceType uint8

const (
	NoPieceType PieceType = iota
	Pawn
	Rook
	Knight
	Bishop
	Queen
	King
)

var pieceTypeNames = map[PieceType]string{
	Pawn:   "pawn",
	Rook:   "rook",
	Knight: "knight",
	Bishop: "bishop",
	Queen:  "queen",
	King:   "king",
}

func (p PieceType) String() string {
	if name, ok := pieceTypeNames[p]; ok {
		return name
	}
	return "none"
}

func (p PieceType) Valid() bool {
	return p >= Pawn && p <= King
}

func (p PieceType) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PieceType) UnmarshalText(text []byte) error {
	parsed, err := ParsePieceType(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func ParsePieceType(s string) (PieceType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for pt, n := range pieceTypeNames {
		if n == name {
			return pt, nil
		}
	}
	return NoPieceType, fmt.Errorf("unknown piece type %q", s)
}

// FENChar returns the lowercase FEN letter for the type.
func (p PieceType) FENChar() byte {
	switch p {
	case Pawn:
		return 'p'
	case Rook:
		return 'r'
	case Knight:
		return 'n'
	case Bishop:
		return 'b'
	case Queen:
		return 'q'
	case King:
		return 'k'
	default:
		return 0
	}
}

// PieceTypeFromFEN maps a FEN letter of either case to its type and color.
func PieceTypeFromFEN(c byte) (PieceType, Color, bool) {
	color := Black
	if c >= 'A' && c <= 'Z' {
		color = White
		c += 'a' - 'A'
	}
	switch c {
	case 'p':
		return Pawn, color, true
	case 'r':
		return Rook, color, true
	case 'n':
		return Knight, color, true
	case 'b':
		return Bishop, color, true
	case 'q':
		return Queen, color, true
	case 'k':
		return King, color, true
	default:
		return NoPieceType, color, false
	}
}

// Piece is a snapshot of one board occupant. Two values describing the same
// occupant of an unchanged position compare equal.
type Piece struct {
	Type   PieceType
	Color  Color
	Square Square
}

func (p Piece) File() int { return p.Square.File() }
func (p Piece) Rank() int { return p.Square.Rank() }

func (p Piece) String() string {
	return fmt.Sprintf("%s %s on %s", p.Color, p.Type, p.Square)
}

// Move is an enumeration artifact of the rules engine; it is never replayed.
type Move struct {
	From      Square
	To        Square
	Piece     PieceType
	Color     Color
	Promotion PieceType
	Notation  string
}

func (m Move) HasPromotion() bool {
	return m.Promotion != NoPieceType
}

// UCI renders the move in long algebraic form, e.g. e7e8q.
func (m Move) UCI() string {
	s := m.From.String() + m.To.String()
	if m.HasPromotion() {
		s += string(m.Promotion.FENChar())
	}
	return s
}
