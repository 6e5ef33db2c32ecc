package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/chess-metrics/internal/rules"
	"github.com/park285/chess-metrics/internal/service/analysis"
	"github.com/park285/chess-metrics/pkg/metricsdto"
)

const (
	startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	pinFEN   = "4k3/4r3/8/8/8/8/4N3/4K3 w - - 0 1"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	svc, err := analysis.NewService(rules.Corentings(), nil, analysis.NewMemoryRepository(), analysis.NewBoardRenderer(), analysis.Config{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	s, err := NewServer(svc, nil, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func do(t *testing.T, s *Server, method, uri string, body []byte) *fasthttp.Response {
	t.Helper()
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}
	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	s.Handler()(&ctx)

	resp := &fasthttp.Response{}
	ctx.Response.CopyTo(resp)
	return resp
}

func decode[T any](t *testing.T, resp *fasthttp.Response) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(resp.Body(), &v); err != nil {
		t.Fatalf("decode %s: %v", resp.Body(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp := do(t, s, fasthttp.MethodGet, "/api/v1/health", nil)
	if resp.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode())
	}
	h := decode[metricsdto.HealthResponse](t, resp)
	if h.Status != "healthy" || h.Version != metricsdto.APIVersion || h.Uptime < 0 || h.Timestamp.IsZero() {
		t.Fatalf("health = %+v", h)
	}
}

func TestAnalyzeByPath(t *testing.T) {
	s := newTestServer(t)
	resp := do(t, s, fasthttp.MethodGet, "/api/v1/standard/fen/"+url.PathEscape(startFEN), nil)
	if resp.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d body=%s", resp.StatusCode(), resp.Body())
	}
	if ct := string(resp.Header.ContentType()); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type = %s", ct)
	}

	var body struct {
		Version  string `json:"version"`
		ID       string `json:"id"`
		FEN      string `json:"fen"`
		GameType string `json:"gameType"`
		Cached   bool   `json:"cached"`
		Players  map[string]map[string]any
		Pieces   []map[string]any
		Squares  []map[string]any
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Version != metricsdto.APIVersion || body.FEN != startFEN || body.GameType != "standard" || body.ID == "" {
		t.Fatalf("body = %+v", body)
	}
	if body.Players["white"]["isMyTurn"] != true || body.Players["black"]["isMyTurn"] != false {
		t.Fatalf("players = %v", body.Players)
	}
	if len(body.Pieces) != 32 || len(body.Squares) != 64 {
		t.Fatalf("pieces=%d squares=%d", len(body.Pieces), len(body.Squares))
	}
	if body.Pieces[0]["square"] != "a1" || body.Pieces[0]["type"] != "rook" {
		t.Fatalf("first piece = %v", body.Pieces[0])
	}
	if body.Squares[0]["square"] != "a8" {
		t.Fatalf("first square = %v", body.Squares[0])
	}
}

func TestAnalyzeByPost(t *testing.T) {
	s := newTestServer(t)
	payload, _ := json.Marshal(metricsdto.FENRequest{FEN: pinFEN})
	resp := do(t, s, fasthttp.MethodPost, "/api/v1/standard/fen", payload)
	if resp.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d body=%s", resp.StatusCode(), resp.Body())
	}
	if !bytes.Contains(resp.Body(), []byte(`"numberOfPinnedPieces":1`)) {
		t.Fatalf("pinned count missing: %s", resp.Body())
	}

	bad := do(t, s, fasthttp.MethodPost, "/api/v1/standard/fen", []byte("{"))
	if bad.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("malformed body status = %d", bad.StatusCode())
	}
	if e := decode[metricsdto.ErrorResponse](t, bad); e.Error.Code != metricsdto.CodeBadRequest {
		t.Fatalf("error = %+v", e)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	s := newTestServer(t)
	cases := []struct {
		name string
		uri  string
		want string
	}{
		{"format", "/api/v1/standard/fen/" + url.PathEscape("8/8/8 w - - 0 1"), "Invalid FEN: 8/8/8 w - - 0 1"},
		{"illegal", "/api/v1/standard/fen/" + url.PathEscape("P3k3/8/8/8/8/8/8/4K3 w - - 0 1"), "P3k3/8/8/8/8/8/8/4K3 w - - 0 1 is not a legal chess position"},
		{"markup", "/api/v1/standard/fen/" + url.PathEscape("<script>alert(1)</script>"), "Invalid FEN: script1/script"},
	}
	for _, tc := range cases {
		resp := do(t, s, fasthttp.MethodGet, tc.uri, nil)
		if resp.StatusCode() != fasthttp.StatusBadRequest {
			t.Fatalf("%s: status = %d", tc.name, resp.StatusCode())
		}
		e := decode[metricsdto.ErrorResponse](t, resp)
		if e.Error.Code != metricsdto.CodeInvalidFEN || e.Error.Message != tc.want || e.Timestamp.IsZero() {
			t.Fatalf("%s: error = %+v", tc.name, e)
		}
	}

	empty := do(t, s, fasthttp.MethodPost, "/api/v1/standard/fen", []byte(`{"fen":"   "}`))
	if empty.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("empty fen status = %d", empty.StatusCode())
	}
}

func TestRoutingErrors(t *testing.T) {
	s := newTestServer(t)

	resp := do(t, s, fasthttp.MethodGet, "/api/v2/nothing", nil)
	if resp.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode())
	}
	if e := decode[metricsdto.ErrorResponse](t, resp); e.Error.Code != metricsdto.CodeNotFound {
		t.Fatalf("error = %+v", e)
	}

	resp = do(t, s, fasthttp.MethodDelete, "/api/v1/health", nil)
	if resp.StatusCode() != fasthttp.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode())
	}
	if allow := string(resp.Header.Peek("Allow")); allow != fasthttp.MethodGet {
		t.Fatalf("Allow = %q", allow)
	}
	if e := decode[metricsdto.ErrorResponse](t, resp); e.Error.Code != metricsdto.CodeMethodNotAllowed {
		t.Fatalf("error = %+v", e)
	}
}

func TestMetricsIntrospection(t *testing.T) {
	s := newTestServer(t)
	resp := do(t, s, fasthttp.MethodGet, "/api/v1/metrics", nil)
	m := decode[metricsdto.MetricsResponse](t, resp)
	if len(m.Player) != 6 || len(m.Piece) != 7 || len(m.Square) != 2 {
		t.Fatalf("counts = %d/%d/%d", len(m.Player), len(m.Piece), len(m.Square))
	}
	first := m.Piece[0]
	if first.Name != "freedom" || first.Min == nil || *first.Min != 0 || first.Max == nil || *first.Max != 27 {
		t.Fatalf("piece.freedom = %+v", first)
	}
	if m.Player[0].Name != "isMyTurn" || m.Player[0].Min != nil {
		t.Fatalf("player.isMyTurn = %+v", m.Player[0])
	}
}

func TestHistoryEndpoints(t *testing.T) {
	s := newTestServer(t)
	for _, fen := range []string{startFEN, pinFEN} {
		if resp := do(t, s, fasthttp.MethodGet, "/api/v1/standard/fen/"+url.PathEscape(fen), nil); resp.StatusCode() != fasthttp.StatusOK {
			t.Fatalf("analyze %s: %d", fen, resp.StatusCode())
		}
	}

	resp := do(t, s, fasthttp.MethodGet, "/api/v1/history?limit=1", nil)
	h := decode[metricsdto.HistoryResponse](t, resp)
	if h.Count != 1 || len(h.Items) != 1 {
		t.Fatalf("history = %+v", h)
	}

	all := decode[metricsdto.HistoryResponse](t, do(t, s, fasthttp.MethodGet, "/api/v1/history", nil))
	if all.Count != 2 {
		t.Fatalf("history count = %d", all.Count)
	}
	item := do(t, s, fasthttp.MethodGet, "/api/v1/history/"+all.Items[0].ID, nil)
	if item.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("item status = %d", item.StatusCode())
	}
	if rec := decode[metricsdto.AnalysisRecord](t, item); rec.ID != all.Items[0].ID {
		t.Fatalf("record = %+v", rec)
	}

	if resp := do(t, s, fasthttp.MethodGet, "/api/v1/history/missing", nil); resp.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("missing status = %d", resp.StatusCode())
	}
	if resp := do(t, s, fasthttp.MethodGet, "/api/v1/history?limit=abc", nil); resp.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("bad limit status = %d", resp.StatusCode())
	}
}

func TestBoardImages(t *testing.T) {
	s := newTestServer(t)

	svg := do(t, s, fasthttp.MethodGet, "/api/v1/board.svg?fen="+url.QueryEscape(pinFEN), nil)
	if svg.StatusCode() != fasthttp.StatusOK || string(svg.Header.ContentType()) != "image/svg+xml" {
		t.Fatalf("svg status=%d type=%s", svg.StatusCode(), svg.Header.ContentType())
	}
	if !bytes.Contains(svg.Body(), []byte("<svg")) {
		t.Fatalf("svg body = %.60s", svg.Body())
	}

	png := do(t, s, fasthttp.MethodGet, "/api/v1/board.png?fen="+url.QueryEscape(startFEN), nil)
	if png.StatusCode() != fasthttp.StatusOK || string(png.Header.ContentType()) != "image/png" {
		t.Fatalf("png status=%d type=%s", png.StatusCode(), png.Header.ContentType())
	}
	if !bytes.HasPrefix(png.Body(), []byte("\x89PNG")) {
		t.Fatalf("not a png")
	}

	if resp := do(t, s, fasthttp.MethodGet, "/api/v1/board.svg", nil); resp.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("missing fen status = %d", resp.StatusCode())
	}
}

func TestPGNPlaceholder(t *testing.T) {
	s := newTestServer(t)
	resp := do(t, s, fasthttp.MethodGet, "/api/v1/standard/pgn/1.e4%20e5", nil)
	if resp.StatusCode() != fasthttp.StatusNotImplemented {
		t.Fatalf("status = %d", resp.StatusCode())
	}
	p := decode[metricsdto.PGNResponse](t, resp)
	if p.PGN != "1.e4 e5" || !strings.Contains(p.Message, "coming soon") {
		t.Fatalf("pgn = %+v", p)
	}
}

func TestSanitizeForError(t *testing.T) {
	cases := map[string]string{
		"":                                "[invalid input]",
		`<b onclick="x">hi</b>`:           "b xhi/b",
		"javascript:alert('x')":           "x",
		"../../etc/passwd":                "etc/passwd",
		"document.cookie;window.location": "cookielocation",
		strings.Repeat("a", 150):          strings.Repeat("a", 100),
	}
	for in, want := range cases {
		if got := sanitizeForError(in); got != want {
			t.Fatalf("sanitizeForError(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestServeInMemory(t *testing.T) {
	s := newTestServer(t)
	ln := fasthttputil.NewInmemoryListener()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI("http://metrics.local/api/v1/health")
	if err := client.DoTimeout(req, resp, 5*time.Second); err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("server did not shut down")
	}
}
