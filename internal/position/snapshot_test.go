package position

import (
	"errors"
	"testing"

	"github.com/park285/chess-metrics/internal/board"
	"github.com/park285/chess-metrics/internal/rules"
	"github.com/park285/chess-metrics/internal/rules/rulestest"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestNewRejectsBadInput(t *testing.T) {
	cases := []struct {
		fen   string
		cause error
	}{
		{"invalid-fen", rules.ErrInvalidFEN},
		{"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0", rules.ErrInvalidFEN},
		{"4k2P/8/8/8/8/8/8/4K3 w - - 0 1", rules.ErrIllegalPosition},
		{"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 99999999999999999999", rules.ErrInvalidFEN},
		{"8/8/8/8/8/8/8/8 w - - 0 1", rules.ErrIllegalPosition},
		{"8/8/8/8/8/8/8/4K3 w - - 0 1", rules.ErrIllegalPosition},
		{"4k3/8/8/8/8/8/8/3KK3 w - - 0 1", rules.ErrIllegalPosition},
		{"3Kk3/8/8/8/8/8/8/8 w - - 0 1", rules.ErrIllegalPosition},
	}
	for _, e := range []rules.Engine{rules.Corentings(), rules.Notnil()} {
		for _, tc := range cases {
			fen := tc.fen
			_, err := New(e, fen)
			if !errors.Is(err, ErrInvalidPosition) || !errors.Is(err, tc.cause) {
				t.Fatalf("%s New(%q) = %v, want ErrInvalidPosition wrapping %v", e.Name(), fen, err, tc.cause)
			}
			var ipe *InvalidPositionError
			if !errors.As(err, &ipe) || ipe.FEN != fen {
				t.Fatalf("%s New(%q): expected *InvalidPositionError with FEN, got %#v", e.Name(), fen, err)
			}
		}
	}
}

func TestStaleCastlingRightsDropped(t *testing.T) {
	for _, e := range []rules.Engine{rules.Corentings(), rules.Notnil()} {
		s, err := New(e, "4k3/8/8/8/8/8/8/4K2R w KQkq - 0 1")
		if err != nil {
			t.Fatalf("%s New: %v", e.Name(), err)
		}
		if s.FEN() != "4k3/8/8/8/8/8/8/4K2R w K - 0 1" {
			t.Fatalf("%s: FEN() = %q", e.Name(), s.FEN())
		}
		if n := len(s.MovesFrom(board.E1, board.White)); n != 6 {
			t.Errorf("%s: white king moves = %d, want 6", e.Name(), n)
		}
		if n := len(s.MovesFrom(board.E8, board.Black)); n != 5 {
			t.Errorf("%s: black king moves = %d, want 5", e.Name(), n)
		}
	}
}

func TestSnapshotStartPosition(t *testing.T) {
	s, err := New(rules.Corentings(), "  "+startFEN+"\n")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.FEN() != startFEN {
		t.Fatalf("FEN not trimmed: %q", s.FEN())
	}
	if s.SideToMove() != board.White {
		t.Fatalf("side to move = %v", s.SideToMove())
	}
	if n := len(s.Pieces()); n != 32 {
		t.Fatalf("pieces = %d", n)
	}
	if n := len(s.PiecesOf(board.Black)); n != 16 {
		t.Fatalf("black pieces = %d", n)
	}
	p, ok := s.PieceAt(board.D1)
	if !ok || p.Type != board.Queen || p.Color != board.White {
		t.Fatalf("d1 = %+v %v", p, ok)
	}
	if s.Occupied(board.E4) {
		t.Fatalf("e4 should be empty")
	}
	king, ok := s.King(board.Black)
	if !ok || king.Square != board.E8 {
		t.Fatalf("black king = %+v %v", king, ok)
	}
	if n := len(s.AllMoves()); n != 40 {
		t.Fatalf("all moves = %d, want 40", n)
	}
	if n := len(s.MovesFrom(board.G8, board.Black)); n != 2 {
		t.Fatalf("g8 knight moves = %d", n)
	}
	if n := len(s.MovesFrom(board.G8, board.White)); n != 0 {
		t.Fatalf("g8 has no white piece, got %d moves", n)
	}
}

func TestPiecesIsACopy(t *testing.T) {
	s, err := New(rules.Corentings(), startFEN)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	first := s.Pieces()
	first[0].Type = board.Queen
	again := s.Pieces()
	if again[0].Type == board.Queen {
		t.Fatalf("Pieces leaked internal storage")
	}
	if again[0] != s.Pieces()[0] {
		t.Fatalf("repeated queries disagree")
	}
}

func TestCanReach(t *testing.T) {
	s, err := New(rules.Notnil(), startFEN)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ok, err := s.CanReach(board.E2, board.D3, board.White)
	if err != nil || !ok {
		t.Fatalf("e2 pawn should reach d3: %v %v", ok, err)
	}
	ok, err = s.CanReach(board.A1, board.A3, board.White)
	if err != nil || ok {
		t.Fatalf("blocked a1 rook should not reach a3: %v %v", ok, err)
	}
	ok, err = s.CanReach(board.G8, board.F6, board.Black)
	if err != nil || !ok {
		t.Fatalf("g8 knight should reach f6 off-turn: %v %v", ok, err)
	}
}

func TestKinglessAndDoubleKing(t *testing.T) {
	fake := &rulestest.Engine{}
	s, err := New(fake, "8/8/8/8/8/8/8/K1K5 w - - 0 1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := s.King(board.White); ok {
		t.Fatalf("two white kings must not resolve to a king")
	}
	if _, ok := s.King(board.Black); ok {
		t.Fatalf("black has no king")
	}
}

func TestFakeEngineDrivesSnapshot(t *testing.T) {
	calls := 0
	fake := &rulestest.Engine{
		Calls: &calls,
		Moves: []board.Move{
			{From: board.E1, To: board.E2, Piece: board.King, Color: board.White},
			{From: board.E8, To: board.E7, Piece: board.King, Color: board.Black},
			{From: board.E8, To: board.D7, Piece: board.King, Color: board.Black},
		},
	}
	s, err := New(fake, "4k3/8/8/8/8/8/8/4K3 b - - 0 1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one query per color, got %d", calls)
	}
	all := s.AllMoves()
	if len(all) != 3 || all[0].Color != board.Black {
		t.Fatalf("moves = %+v", all)
	}
	if n := len(s.MovesFrom(board.E1, board.White)); n != 1 {
		t.Fatalf("white king moves = %d", n)
	}

	fake.RejectHypotheticals = true
	if _, err := s.CanReach(board.E1, board.E2, board.White); !errors.Is(err, rules.ErrHypothetical) {
		t.Fatalf("expected ErrHypothetical, got %v", err)
	}
}
