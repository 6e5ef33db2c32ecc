package board

// Line classifies how two squares are connected.
type Line uint8

const (
	NoLine Line = iota
	RankLine
	FileLine
	DiagonalLine
)

// Orthogonal reports whether the line runs along a rank or file.
func (l Line) Orthogonal() bool { return l == RankLine || l == FileLine }

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

// LineBetween returns the line shared by a and b. Identical squares share
// every line; callers handling distinct squares must check that first.
func LineBetween(a, b Square) Line {
	df := b.File() - a.File()
	dr := b.Rank() - a.Rank()
	switch {
	case dr == 0:
		return RankLine
	case df == 0:
		return FileLine
	case abs(df) == abs(dr):
		return DiagonalLine
	default:
		return NoLine
	}
}

// AreAligned reports whether a and b share a rank, file or diagonal.
func AreAligned(a, b Square) bool {
	return LineBetween(a, b) != NoLine
}

// AreOnSameLine reports whether all three squares lie on one rank, file or
// diagonal. The diagonal case requires the s1-s3 delta to match as well, so
// two crossing diagonals through s2 do not qualify.
func AreOnSameLine(s1, s2, s3 Square) bool {
	f1, r1 := s1.Coordinates()
	f2, r2 := s2.Coordinates()
	f3, r3 := s3.Coordinates()

	if r1 == r2 && r2 == r3 {
		return true
	}
	if f1 == f2 && f2 == f3 {
		return true
	}
	return abs(r1-r2) == abs(f1-f2) &&
		abs(r2-r3) == abs(f2-f3) &&
		abs(r1-r3) == abs(f1-f3)
}

// SquaresBetween returns the squares strictly between from and to, ordered
// from from toward to. Unaligned or adjacent squares yield nil.
func SquaresBetween(from, to Square) []Square {
	if from == to || !AreAligned(from, to) {
		return nil
	}
	fileStep := sign(to.File() - from.File())
	rankStep := sign(to.Rank() - from.Rank())

	var out []Square
	file, rank := from.File()+fileStep, from.Rank()+rankStep
	for file != to.File() || rank != to.Rank() {
		out = append(out, NewSquare(file, rank))
		file += fileStep
		rank += rankStep
	}
	return out
}

// Distance is the Chebyshev (king-move) distance.
func Distance(a, b Square) int {
	df := abs(b.File() - a.File())
	dr := abs(b.Rank() - a.Rank())
	if df > dr {
		return df
	}
	return dr
}

// Direction returns the unit step from a toward b on each axis.
func Direction(a, b Square) (int, int) {
	return sign(b.File() - a.File()), sign(b.Rank() - a.Rank())
}
