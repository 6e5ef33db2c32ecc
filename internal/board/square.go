package board

import (
	"fmt"
	"strings"
)

// Square indexes the 64 board squares as rank*8+file with a1 = 0.
type Square int8

// NoSquare marks an absent square, e.g. a missing king.
const NoSquare Square = -1

const (
	A1 Square = iota
	B1
	C1
	D1
	E1
	F1
	G1
	H1
	A2
	B2
	C2
	D2
	E2
	F2
	G2
	H2
	A3
	B3
	C3
	D3
	E3
	F3
	G3
	H3
	A4
	B4
	C4
	D4
	E4
	F4
	G4
	H4
	A5
	B5
	C5
	D5
	E5
	F5
	G5
	H5
	A6
	B6
	C6
	D6
	E6
	F6
	G6
	H6
	A7
	B7
	C7
	D7
	E7
	F7
	G7
	H7
	A8
	B8
	C8
	D8
	E8
	F8
	G8
	H8
)

// ReportOrder is the rank-8-to-1, file-a-to-h enumeration used by reports.
var ReportOrder = func() [64]Square {
	var out [64]Square
	i := 0
	for rank := 7; rank >= 0; rank-- {
		for file := 0; file < 8; file++ {
			out[i] = NewSquare(file, rank)
			i++
		}
	}
	return out
}()

// NewSquare builds a square from zero-based file (a=0) and rank (1=0).
func NewSquare(file, rank int) Square {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return NoSquare
	}
	return Square(rank*8 + file)
}

// ParseSquare accepts names like "e4" in either case.
func ParseSquare(name string) (Square, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return NoSquare, fmt.Errorf("invalid square %q", name)
	}
	return NewSquare(int(s[0]-'a'), int(s[1]-'1')), nil
}

func (s Square) Valid() bool { return s >= A1 && s <= H8 }

func (s Square) File() int { return int(s) % 8 }

func (s Square) Rank() int { return int(s) / 8 }

// Coordinates returns (file, rank), both in [0,7].
func (s Square) Coordinates() (int, int) { return s.File(), s.Rank() }

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + s.File()), byte('1' + s.Rank())})
}

func (s Square) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Square) UnmarshalText(text []byte) error {
	sq, err := ParseSquare(string(text))
	if err != nil {
		return err
	}
	*s = sq
	return nil
}
