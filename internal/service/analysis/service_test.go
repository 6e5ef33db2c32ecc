package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/park285/chess-metrics/internal/board"
	"github.com/park285/chess-metrics/internal/domain"
	"github.com/park285/chess-metrics/internal/position"
	"github.com/park285/chess-metrics/internal/rules"
	"github.com/park285/chess-metrics/internal/service/cache"
)

const (
	startFEN  = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	petrovFEN = "rnbqkb1r/pppp1ppp/5n2/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3"
	pinFEN    = "4k3/4r3/8/8/8/8/4N3/4K3 w - - 0 1"
)

func newTestCache(t *testing.T) (*cache.CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	host, portStr, err := net.SplitHostPort(mr.Addr())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	svc, err := cache.NewCacheService(cache.CacheConfig{Host: host, Port: port}, nil)
	if err != nil {
		t.Fatalf("NewCacheService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc, mr
}

func newTestService(t *testing.T, cacheSvc *cache.CacheService) (*Service, Repository) {
	t.Helper()
	repo := NewMemoryRepository()
	svc, err := NewService(rules.Corentings(), cacheSvc, repo, NewBoardRenderer(), Config{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo
}

func TestNewServiceRequiresDeps(t *testing.T) {
	repo := NewMemoryRepository()
	renderer := NewBoardRenderer()
	cases := []struct {
		name     string
		engine   rules.Engine
		repo     Repository
		renderer BoardRenderer
	}{
		{"engine", nil, repo, renderer},
		{"repo", rules.Corentings(), nil, renderer},
		{"renderer", rules.Corentings(), repo, nil},
	}
	for _, tc := range cases {
		if _, err := NewService(tc.engine, nil, tc.repo, tc.renderer, Config{}, nil); err == nil {
			t.Fatalf("missing %s should fail", tc.name)
		}
	}

	svc, err := NewService(rules.Corentings(), nil, repo, renderer, Config{HistoryLimit: 500}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if svc.cfg.HistoryLimit != defaultHistoryLimit || svc.cfg.CacheTTL != defaultCacheTTL {
		t.Fatalf("defaults not applied: %+v", svc.cfg)
	}
}

func TestAnalyzeRecordsHistory(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.Analyze(ctx, "  "+startFEN+"\n")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Cached {
		t.Fatalf("first analysis without cache must not be cached")
	}
	if _, err := uuid.Parse(res.ID); err != nil {
		t.Fatalf("id %q is not a uuid: %v", res.ID, err)
	}
	if res.FEN != startFEN || res.Engine != "corentings" {
		t.Fatalf("result = %+v", res)
	}
	if got := res.Report.Players.White.Metrics.Int("freedom"); got != 20 {
		t.Fatalf("white freedom = %d", got)
	}

	history, err := svc.History(ctx, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history len = %d", len(history))
	}
	rec := history[0]
	if rec.ID != res.ID || rec.Pieces != 32 || rec.SideToMove != "white" || rec.Pinned != 0 || rec.Hanging != 0 {
		t.Fatalf("record = %+v", rec)
	}

	got, err := svc.Lookup(ctx, res.ID)
	if err != nil || got.FEN != startFEN {
		t.Fatalf("Lookup = %+v, %v", got, err)
	}
}

func TestAnalyzeCountsPinnedAndHanging(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.Analyze(ctx, petrovFEN); err != nil {
		t.Fatalf("Analyze petrov: %v", err)
	}
	if _, err := svc.Analyze(ctx, pinFEN); err != nil {
		t.Fatalf("Analyze pin: %v", err)
	}
	history, err := svc.History(ctx, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	byFEN := map[string]*domain.AnalysisRecord{}
	for _, rec := range history {
		byFEN[rec.FEN] = rec
	}
	if rec := byFEN[petrovFEN]; rec == nil || rec.Hanging != 2 {
		t.Fatalf("petrov record = %+v", rec)
	}
	if rec := byFEN[pinFEN]; rec == nil || rec.Pinned != 1 || rec.Hanging != 1 || rec.SideToMove != "white" {
		t.Fatalf("pin record = %+v", rec)
	}
}

func TestAnalyzeUsesCache(t *testing.T) {
	cacheSvc, mr := newTestCache(t)
	svc, _ := newTestService(t, cacheSvc)
	ctx := context.Background()

	first, err := svc.Analyze(ctx, petrovFEN)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if first.Cached {
		t.Fatalf("first call should compute")
	}
	key := reportCacheKey(petrovFEN)
	if !mr.Exists(key) {
		t.Fatalf("report not stored under %s", key)
	}
	if ttl := mr.TTL(key); ttl != defaultCacheTTL {
		t.Fatalf("ttl = %v", ttl)
	}

	second, err := svc.Analyze(ctx, petrovFEN)
	if err != nil {
		t.Fatalf("Analyze cached: %v", err)
	}
	if !second.Cached {
		t.Fatalf("second call should hit the cache")
	}
	if first.ID == second.ID {
		t.Fatalf("each analysis gets its own id")
	}

	a, _ := json.Marshal(first.Report)
	b, _ := json.Marshal(second.Report)
	if !bytes.Equal(a, b) {
		t.Fatalf("cached report differs:\n%s\n%s", a, b)
	}
}

func TestAnalyzeIgnoresCorruptCache(t *testing.T) {
	cacheSvc, mr := newTestCache(t)
	svc, _ := newTestService(t, cacheSvc)

	if err := mr.Set(reportCacheKey(startFEN), "{broken"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	res, err := svc.Analyze(context.Background(), startFEN)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Cached {
		t.Fatalf("corrupt entry must be recomputed")
	}
}

func TestAnalyzeInvalidFEN(t *testing.T) {
	svc, repo := newTestService(t, nil)
	ctx := context.Background()

	for _, fen := range []string{"", "not a fen", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1", "P3k3/8/8/8/8/8/8/4K3 w - - 0 1"} {
		_, err := svc.Analyze(ctx, fen)
		if !errors.Is(err, position.ErrInvalidPosition) {
			t.Fatalf("Analyze(%q) err = %v", fen, err)
		}
	}
	history, err := repo.RecentAnalyses(ctx, 10)
	if err != nil {
		t.Fatalf("RecentAnalyses: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("invalid input must not be recorded: %d", len(history))
	}
}

func TestAnalyzeCanceledContext(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Analyze(ctx, startFEN); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestHistoryLimitCapped(t *testing.T) {
	svc, repo := newTestService(t, nil)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < maxHistoryLimit+5; i++ {
		rec := &domain.AnalysisRecord{ID: uuid.NewString(), FEN: startFEN, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := repo.InsertAnalysis(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	history, err := svc.History(ctx, 1000)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != maxHistoryLimit {
		t.Fatalf("history len = %d", len(history))
	}
	if !history[0].CreatedAt.After(history[1].CreatedAt) {
		t.Fatalf("history not most recent first")
	}
	def, _ := svc.History(ctx, 0)
	if len(def) != defaultHistoryLimit {
		t.Fatalf("default history len = %d", len(def))
	}
}

func TestLookupNotFound(t *testing.T) {
	svc, _ := newTestService(t, nil)
	for _, id := range []string{"", "nope", uuid.NewString()} {
		if _, err := svc.Lookup(context.Background(), id); !errors.Is(err, ErrAnalysisNotFound) {
			t.Fatalf("Lookup(%q) err = %v", id, err)
		}
	}
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository().(*memrepo)
	repo.maxRecords = 2

	now := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		rec := &domain.AnalysisRecord{ID: id, CreatedAt: now.Add(time.Duration(i) * time.Minute)}
		if err := repo.InsertAnalysis(ctx, rec); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	if err := repo.InsertAnalysis(ctx, &domain.AnalysisRecord{ID: "c"}); !errors.Is(err, ErrDuplicateAnalysis) {
		t.Fatalf("duplicate err = %v", err)
	}
	if rec, _ := repo.GetAnalysis(ctx, "a"); rec != nil {
		t.Fatalf("oldest record should be evicted")
	}

	items, err := repo.RecentAnalyses(ctx, 0)
	if err != nil {
		t.Fatalf("RecentAnalyses: %v", err)
	}
	if len(items) != 2 || items[0].ID != "c" || items[1].ID != "b" {
		t.Fatalf("items = %+v", items)
	}
	items[0].FEN = "mutated"
	again, _ := repo.GetAnalysis(ctx, "c")
	if again.FEN == "mutated" {
		t.Fatalf("repository must return copies")
	}
}

func TestAnnotate(t *testing.T) {
	svc, _ := newTestService(t, nil)
	snap, err := position.New(svc.engine, pinFEN)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	report, _, err := svc.report(context.Background(), snap)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	ann := annotate(snap, report)
	if len(ann.Pinned) != 1 || ann.Pinned[0] != board.E2 {
		t.Fatalf("pinned = %v", ann.Pinned)
	}
	if len(ann.PinLines) != 1 || ann.PinLines[0] != (PinLine{From: board.E7, To: board.E1}) {
		t.Fatalf("pin lines = %v", ann.PinLines)
	}
	// the king cannot recapture on e2 while the rook covers it
	if len(ann.Hanging) != 1 || ann.Hanging[0] != board.E2 {
		t.Fatalf("hanging = %v", ann.Hanging)
	}
}

func TestRenderBoard(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	pngData, err := svc.RenderBoard(ctx, petrovFEN, FormatPNG)
	if err != nil {
		t.Fatalf("RenderBoard png: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != canvasSize || b.Dy() != canvasSize {
		t.Fatalf("png bounds = %v", b)
	}

	svgData, err := svc.RenderBoard(ctx, pinFEN, FormatSVG)
	if err != nil {
		t.Fatalf("RenderBoard svg: %v", err)
	}
	doc := string(svgData)
	if !strings.Contains(doc, "<svg") || !strings.Contains(doc, "</svg>") {
		t.Fatalf("not an svg document: %.80s", doc)
	}
	if !strings.Contains(doc, "<line") {
		t.Fatalf("pin line missing")
	}
	if !strings.Contains(doc, "<title>"+pinFEN+"</title>") {
		t.Fatalf("title missing")
	}

	if _, err := svc.RenderBoard(ctx, startFEN, Format("gif")); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("gif err = %v", err)
	}
	if _, err := svc.RenderBoard(ctx, "bogus", FormatSVG); !errors.Is(err, position.ErrInvalidPosition) {
		t.Fatalf("bogus err = %v", err)
	}
}

func TestPieceIconsRasterize(t *testing.T) {
	for _, c := range board.Colors {
		for pt := board.Pawn; pt <= board.King; pt++ {
			img, err := renderPieceImage(pt, c, 48)
			if err != nil {
				t.Fatalf("%s %s: %v", c, pt, err)
			}
			_, _, _, a := img.At(24, 70*48/100).RGBA()
			if a == 0 {
				t.Fatalf("%s %s: body pixel is transparent", c, pt)
			}
		}
	}
	if _, err := pieceIconSVG(board.NoPieceType, board.White); err == nil {
		t.Fatalf("missing outline should fail")
	}
}
