// Package api exposes the analysis service over fasthttp and a websocket
// live endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chess-metrics/internal/metric"
	"github.com/park285/chess-metrics/internal/msgcat"
	"github.com/park285/chess-metrics/internal/service/analysis"
	"github.com/park285/chess-metrics/pkg/metricsdto"
)

const (
	apiPrefix     = "/api/v1"
	fenPathPrefix = apiPrefix + "/standard/fen/"
	pgnPathPrefix = apiPrefix + "/standard/pgn/"
	historyPrefix = apiPrefix + "/history/"
	maxBodySize   = 16 << 10
)

type Server struct {
	svc     *analysis.Service
	msgs    *msgcat.Catalog
	logger  *zap.Logger
	started time.Time
	srv     *fasthttp.Server
}

func NewServer(svc *analysis.Service, msgs *msgcat.Catalog, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("analysis service is required")
	}
	if msgs == nil {
		msgs = msgcat.MustDefault()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, msgs: msgs, logger: logger, started: time.Now()}
	s.srv = &fasthttp.Server{
		Handler:            s.Handler(),
		Name:               "chess-metrics",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxRequestBodySize: maxBodySize,
	}
	return s, nil
}

// ListenAndServe blocks until ctx ends or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}

// Handler routes requests by path, then by method.
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("api handler panicked", zap.Any("panic", r), zap.ByteString("path", ctx.Path()))
				s.writeError(ctx, fasthttp.StatusInternalServerError, metricsdto.CodeInternal, s.msgs.Text("errors.internal", nil, "Internal server error"), "")
			}
		}()

		path := string(ctx.Path())
		switch {
		case path == apiPrefix+"/health":
			s.only(ctx, fasthttp.MethodGet, s.handleHealth)
		case path == apiPrefix+"/metrics":
			s.only(ctx, fasthttp.MethodGet, s.handleMetrics)
		case path == apiPrefix+"/standard/fen":
			s.only(ctx, fasthttp.MethodPost, s.handleAnalyzePost)
		case strings.HasPrefix(path, fenPathPrefix):
			s.only(ctx, fasthttp.MethodGet, s.handleAnalyzePath)
		case strings.HasPrefix(path, pgnPathPrefix):
			s.only(ctx, fasthttp.MethodGet, s.handlePGN)
		case path == apiPrefix+"/history":
			s.only(ctx, fasthttp.MethodGet, s.handleHistory)
		case strings.HasPrefix(path, historyPrefix):
			s.only(ctx, fasthttp.MethodGet, s.handleHistoryItem)
		case path == apiPrefix+"/board.svg":
			s.only(ctx, fasthttp.MethodGet, func(ctx *fasthttp.RequestCtx) { s.handleBoard(ctx, analysis.FormatSVG) })
		case path == apiPrefix+"/board.png":
			s.only(ctx, fasthttp.MethodGet, func(ctx *fasthttp.RequestCtx) { s.handleBoard(ctx, analysis.FormatPNG) })
		default:
			msg := s.msgs.Text("errors.not_found", map[string]any{"Path": sanitizeForError(path)}, "Endpoint not found")
			s.writeError(ctx, fasthttp.StatusNotFound, metricsdto.CodeNotFound, msg, "")
		}
	}
}

func (s *Server) only(ctx *fasthttp.RequestCtx, method string, h fasthttp.RequestHandler) {
	if string(ctx.Method()) != method {
		ctx.Response.Header.Set("Allow", method)
		msg := s.msgs.Text("errors.method_not_allowed", map[string]any{
			"Method": sanitizeForError(string(ctx.Method())),
			"Path":   sanitizeForError(string(ctx.Path())),
		}, "Method not allowed")
		s.writeError(ctx, fasthttp.StatusMethodNotAllowed, metricsdto.CodeMethodNotAllowed, msg, "")
		return
	}
	h(ctx)
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	s.writeJSON(ctx, fasthttp.StatusOK, metricsdto.HealthResponse{
		Status:    "healthy",
		Version:   metricsdto.APIVersion,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.started).Seconds(),
	})
}

func (s *Server) handleMetrics(ctx *fasthttp.RequestCtx) {
	reg := s.svc.Registry()
	s.writeJSON(ctx, fasthttp.StatusOK, metricsdto.MetricsResponse{
		Player: describe(reg, metric.CategoryPlayer),
		Piece:  describe(reg, metric.CategoryPiece),
		Square: describe(reg, metric.CategorySquare),
	})
}

func describe(reg *metric.Registry, c metric.Category) []metricsdto.MetricDescriptor {
	descs := reg.Describe(c)
	out := make([]metricsdto.MetricDescriptor, 0, len(descs))
	for _, d := range descs {
		item := metricsdto.MetricDescriptor{Name: d.Name, Description: d.Description}
		if d.Bounds != nil {
			lo, hi := d.Bounds.Min, d.Bounds.Max
			item.Min, item.Max = &lo, &hi
		}
		out = append(out, item)
	}
	return out
}

func (s *Server) handleAnalyzePath(ctx *fasthttp.RequestCtx) {
	raw := strings.TrimPrefix(string(ctx.URI().PathOriginal()), fenPathPrefix)
	fen, err := url.PathUnescape(raw)
	if err != nil {
		fen = raw
	}
	s.analyze(ctx, fen)
}

func (s *Server) handleAnalyzePost(ctx *fasthttp.RequestCtx) {
	var req metricsdto.FENRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, metricsdto.CodeBadRequest, s.msgs.Text("errors.bad_request", nil, "Malformed request body"), "")
		return
	}
	s.analyze(ctx, req.FEN)
}

func (s *Server) analyze(ctx *fasthttp.RequestCtx, fen string) {
	if strings.TrimSpace(fen) == "" {
		s.writeError(ctx, fasthttp.StatusBadRequest, metricsdto.CodeInvalidFEN, s.msgs.Text("errors.missing_fen", nil, "A FEN string is required"), "")
		return
	}
	res, err := s.svc.Analyze(ctx, fen)
	if err != nil {
		s.fail(ctx, fen, err)
		return
	}
	body, err := toAnalysisResponse(res)
	if err != nil {
		s.fail(ctx, fen, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, body)
}

func (s *Server) handlePGN(ctx *fasthttp.RequestCtx) {
	raw := strings.TrimPrefix(string(ctx.URI().PathOriginal()), pgnPathPrefix)
	pgn, err := url.PathUnescape(raw)
	if err != nil {
		pgn = raw
	}
	s.writeJSON(ctx, fasthttp.StatusNotImplemented, metricsdto.PGNResponse{
		Message: s.msgs.Text("errors.not_implemented", nil, "PGN analysis is coming soon"),
		PGN:     sanitizeForError(pgn),
	})
}

func (s *Server) handleHistory(ctx *fasthttp.RequestCtx) {
	limit := 0
	if v := ctx.QueryArgs().Peek("limit"); len(v) > 0 {
		n, err := strconv.Atoi(string(v))
		if err != nil || n < 0 {
			s.writeError(ctx, fasthttp.StatusBadRequest, metricsdto.CodeBadRequest, s.msgs.Text("errors.bad_request", nil, "Malformed request"), "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	records, err := s.svc.History(ctx, limit)
	if err != nil {
		s.fail(ctx, "", err)
		return
	}
	resp := metricsdto.HistoryResponse{Count: len(records), Items: make([]metricsdto.AnalysisRecord, 0, len(records))}
	for _, rec := range records {
		resp.Items = append(resp.Items, toRecordDTO(rec))
	}
	s.writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (s *Server) handleHistoryItem(ctx *fasthttp.RequestCtx) {
	id := strings.TrimPrefix(string(ctx.Path()), historyPrefix)
	rec, err := s.svc.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, analysis.ErrAnalysisNotFound) {
			msg := s.msgs.Text("errors.analysis_not_found", map[string]any{"ID": sanitizeForError(id)}, "Analysis not found")
			s.writeError(ctx, fasthttp.StatusNotFound, metricsdto.CodeNotFound, msg, "")
			return
		}
		s.fail(ctx, "", err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, toRecordDTO(rec))
}

func (s *Server) handleBoard(ctx *fasthttp.RequestCtx, format analysis.Format) {
	fen := string(ctx.QueryArgs().Peek("fen"))
	if strings.TrimSpace(fen) == "" {
		s.writeError(ctx, fasthttp.StatusBadRequest, metricsdto.CodeInvalidFEN, s.msgs.Text("errors.missing_fen", nil, "A FEN string is required"), "")
		return
	}
	img, err := s.svc.RenderBoard(ctx, fen, format)
	if err != nil {
		s.fail(ctx, fen, err)
		return
	}
	switch format {
	case analysis.FormatPNG:
		ctx.SetContentType("image/png")
	default:
		ctx.SetContentType("image/svg+xml")
	}
	ctx.Response.Header.Set("Cache-Control", "public, max-age=300")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(img)
}

func (s *Server) fail(ctx *fasthttp.RequestCtx, fen string, err error) {
	status, body := s.classify(fen, err)
	if status >= fasthttp.StatusInternalServerError {
		s.logger.Error("api request failed",
			zap.ByteString("path", ctx.Path()),
			zap.String("code", body.Code),
			zap.Error(err),
		)
	} else {
		s.logger.Info("api request rejected",
			zap.ByteString("path", ctx.Path()),
			zap.String("code", body.Code),
			zap.Error(err),
		)
	}
	s.writeError(ctx, status, body.Code, body.Message, body.Details)
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode response", zap.Error(err))
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"error":{"code":"INTERNAL_ERROR","message":"Internal server error"}}`)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(raw)
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, status int, code, message, details string) {
	s.writeJSON(ctx, status, metricsdto.ErrorResponse{
		Error:     metricsdto.DomainError{Code: code, Message: message, Details: details},
		Timestamp: time.Now().UTC(),
	})
}
