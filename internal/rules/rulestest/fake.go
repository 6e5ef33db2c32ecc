// Package rulestest provides a scripted rules engine for tests that must not
// depend on a real move generator.
package rulestest

import (
	"fmt"

	"github.com/park285/chess-metrics/internal/board"
	"github.com/park285/chess-metrics/internal/rules"
)

// Engine answers every legal-move query from a fixed move list, filtered by
// the side to move and origin square. Its handles skip the king placement
// check so kingless or double-king boards can reach the analyzers.
type Engine struct {
	Moves               []board.Move
	RejectHypotheticals bool
	Calls               *int
}

func (e *Engine) Name() string { return "fake" }

func (e *Engine) Parse(fen string) (rules.Handle, error) {
	decoded, err := rules.ParseFEN(fen)
	if err != nil {
		return nil, err
	}
	return &handle{engine: e, fen: fen, decoded: decoded}, nil
}

type handle struct {
	engine  *Engine
	fen     string
	decoded rules.FEN
}

func (h *handle) FEN() string                 { return h.fen }
func (h *handle) SideToMove() board.Color     { return h.decoded.Turn }
func (h *handle) Occupants() []rules.Occupant { return h.decoded.Occupants() }
func (h *handle) IsLegal() bool               { return !h.decoded.PawnOnBackRank() }

func (h *handle) LegalMoves(opts rules.MoveOptions) ([]board.Move, error) {
	if h.engine.Calls != nil {
		*h.engine.Calls++
	}
	if h.engine.RejectHypotheticals && len(opts.Place) > 0 {
		return nil, fmt.Errorf("%w: scripted rejection", rules.ErrHypothetical)
	}
	side := h.decoded.Turn
	if opts.SideToMove != nil {
		side = *opts.SideToMove
	}
	var out []board.Move
	for _, mv := range h.engine.Moves {
		if mv.Color != side {
			continue
		}
		if opts.From != nil && mv.From != *opts.From {
			continue
		}
		out = append(out, mv)
	}
	return out, nil
}
