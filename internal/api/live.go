package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-metrics/internal/msgcat"
	"github.com/park285/chess-metrics/internal/service/analysis"
	"github.com/park285/chess-metrics/pkg/metricsdto"
)

const (
	livePath         = apiPrefix + "/live"
	liveReadLimit    = 8 << 10
	liveWriteTimeout = 5 * time.Second
)

// LiveServer answers analysis requests over a websocket, one response per
// message, in arrival order.
type LiveServer struct {
	api    *Server
	logger *zap.Logger
}

func NewLiveServer(svc *analysis.Service, msgs *msgcat.Catalog, logger *zap.Logger) (*LiveServer, error) {
	s, err := NewServer(svc, msgs, logger)
	if err != nil {
		return nil, err
	}
	return &LiveServer{api: s, logger: s.logger}, nil
}

func (l *LiveServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(livePath, l.serveWS)
	return mux
}

// ListenAndServe blocks until ctx ends or the listener fails.
func (l *LiveServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           l.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		l.logger.Info("live websocket listening", zap.String("addr", ln.Addr().String()), zap.String("path", livePath))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown live server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (l *LiveServer) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		l.logger.Warn("live websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(liveReadLimit)

	ctx := r.Context()
	l.logger.Debug("live client connected", zap.String("remote", r.RemoteAddr))
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			l.logClose(err)
			return
		}
		if typ != websocket.MessageText {
			_ = conn.Close(websocket.StatusUnsupportedData, "text messages only")
			return
		}
		resp := l.answer(ctx, data)

		wctx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
		err = wsjson.Write(wctx, conn, resp)
		cancel()
		if err != nil {
			l.logClose(err)
			return
		}
	}
}

func (l *LiveServer) answer(ctx context.Context, data []byte) metricsdto.LiveResponse {
	msgs := l.api.msgs
	var req metricsdto.LiveRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return metricsdto.LiveResponse{Error: &metricsdto.DomainError{
			Code:    metricsdto.CodeBadRequest,
			Message: msgs.Text("live.bad_message", nil, "Malformed message"),
		}}
	}
	if strings.TrimSpace(req.FEN) == "" {
		return metricsdto.LiveResponse{ID: req.ID, Error: &metricsdto.DomainError{
			Code:    metricsdto.CodeInvalidFEN,
			Message: msgs.Text("errors.missing_fen", nil, "A FEN string is required"),
		}}
	}

	res, err := l.api.svc.Analyze(ctx, req.FEN)
	if err == nil {
		var body metricsdto.AnalysisResponse
		body, err = toAnalysisResponse(res)
		if err == nil {
			return metricsdto.LiveResponse{ID: req.ID, Result: &body}
		}
	}
	_, derr := l.api.classify(req.FEN, err)
	return metricsdto.LiveResponse{ID: req.ID, Error: &derr}
}

func (l *LiveServer) logClose(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		l.logger.Debug("live client disconnected")
	default:
		l.logger.Info("live connection closed", zap.Error(err))
	}
}
