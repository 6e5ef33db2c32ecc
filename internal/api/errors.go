package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/park285/chess-metrics/internal/domain"
	"github.com/park285/chess-metrics/internal/metric"
	"github.com/park285/chess-metrics/internal/position"
	"github.com/park285/chess-metrics/internal/rules"
	"github.com/park285/chess-metrics/internal/service/analysis"
	"github.com/park285/chess-metrics/pkg/metricsdto"
)

// classify maps a service error to an HTTP status and error body.
func (s *Server) classify(fen string, err error) (int, metricsdto.DomainError) {
	data := map[string]any{"FEN": sanitizeForError(fen)}
	switch {
	case errors.Is(err, rules.ErrInvalidFEN):
		return fasthttp.StatusBadRequest, metricsdto.DomainError{
			Code:    metricsdto.CodeInvalidFEN,
			Message: s.msgs.Text("errors.invalid_fen", data, "Invalid FEN string format"),
		}
	case errors.Is(err, position.ErrInvalidPosition):
		return fasthttp.StatusBadRequest, metricsdto.DomainError{
			Code:    metricsdto.CodeInvalidFEN,
			Message: s.msgs.Text("errors.illegal_position", data, "Invalid chess position"),
		}
	case errors.Is(err, metric.ErrMetricFailed):
		return fasthttp.StatusInternalServerError, metricsdto.DomainError{
			Code:    metricsdto.CodeAnalysisError,
			Message: s.msgs.Text("errors.metric_failed", data, "Error analyzing chess position"),
		}
	case errors.Is(err, analysis.ErrUnknownFormat):
		return fasthttp.StatusBadRequest, metricsdto.DomainError{
			Code:    metricsdto.CodeBadRequest,
			Message: s.msgs.Text("errors.bad_request", nil, "Malformed request"),
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fasthttp.StatusServiceUnavailable, metricsdto.DomainError{
			Code:    metricsdto.CodeInternal,
			Message: s.msgs.Text("errors.internal", nil, "Internal server error"),
			Details: "request canceled",
		}
	default:
		return fasthttp.StatusInternalServerError, metricsdto.DomainError{
			Code:    metricsdto.CodeInternal,
			Message: s.msgs.Text("errors.internal", nil, "Internal server error"),
		}
	}
}

var unsafeFragments = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(javascript|data|vbscript):`),
	regexp.MustCompile(`(?i)on\w+=`),
	regexp.MustCompile(`(?i)(eval|function|settimeout|setinterval|alert|confirm|prompt)\s*\(`),
	regexp.MustCompile(`(?i)(document|window)\.`),
	regexp.MustCompile(`\.\.[/\\]`),
}

const sanitizedLimit = 100

// sanitizeForError strips markup, script fragments and quoting characters
// from user input echoed back in messages, and caps its length.
func sanitizeForError(input string) string {
	if input == "" {
		return "[invalid input]"
	}
	out := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>':
			return -1
		}
		return r
	}, input)
	for _, re := range unsafeFragments {
		out = re.ReplaceAllString(out, "")
	}
	out = strings.Map(func(r rune) rune {
		switch r {
		case '\'', '"', ';', '(', ')', '{', '}', '[', ']', '`', '\\':
			return -1
		}
		return r
	}, out)
	if runes := []rune(out); len(runes) > sanitizedLimit {
		out = string(runes[:sanitizedLimit])
	}
	return out
}

func toAnalysisResponse(res *analysis.Result) (metricsdto.AnalysisResponse, error) {
	players, err := json.Marshal(res.Report.Players)
	if err != nil {
		return metricsdto.AnalysisResponse{}, fmt.Errorf("encode players: %w", err)
	}
	pieces, err := json.Marshal(res.Report.Pieces)
	if err != nil {
		return metricsdto.AnalysisResponse{}, fmt.Errorf("encode pieces: %w", err)
	}
	squares, err := json.Marshal(res.Report.Squares)
	if err != nil {
		return metricsdto.AnalysisResponse{}, fmt.Errorf("encode squares: %w", err)
	}
	return metricsdto.AnalysisResponse{
		Version:    metricsdto.APIVersion,
		ID:         res.ID,
		FEN:        res.FEN,
		GameType:   metricsdto.GameTypeStandard,
		Engine:     res.Engine,
		Cached:     res.Cached,
		DurationMS: float64(res.Duration.Microseconds()) / 1000,
		Players:    players,
		Pieces:     pieces,
		Squares:    squares,
	}, nil
}

func toRecordDTO(rec *domain.AnalysisRecord) metricsdto.AnalysisRecord {
	return metricsdto.AnalysisRecord{
		ID:         rec.ID,
		FEN:        rec.FEN,
		Engine:     rec.Engine,
		SideToMove: rec.SideToMove,
		Pieces:     rec.Pieces,
		Pinned:     rec.Pinned,
		Hanging:    rec.Hanging,
		Cached:     rec.Cached,
		DurationMS: float64(rec.Duration.Microseconds()) / 1000,
		CreatedAt:  rec.CreatedAt,
	}
}
