// Package analysis runs the metric calculator behind a cache, records each
// analysis in a history repository and renders annotated boards.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-metrics/internal/board"
	"github.com/park285/chess-metrics/internal/domain"
	"github.com/park285/chess-metrics/internal/metric"
	"github.com/park285/chess-metrics/internal/pin"
	"github.com/park285/chess-metrics/internal/position"
	"github.com/park285/chess-metrics/internal/rules"
	"github.com/park285/chess-metrics/internal/service/cache"
)

var (
	ErrUnknownFormat    = errors.New("unknown board image format")
	ErrAnalysisNotFound = errors.New("analysis not found")
)

const (
	defaultCacheTTL     = time.Hour
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	reportKeyPrefix     = "metrics:report:"
)

type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

type Config struct {
	CacheTTL     time.Duration
	HistoryLimit int
}

type Service struct {
	engine   rules.Engine
	calc     *metric.Calculator
	cache    *cache.CacheService
	repo     Repository
	renderer BoardRenderer
	cfg      Config
	logger   *zap.Logger
}

// Result is one analysis as returned to callers.
type Result struct {
	ID       string
	FEN      string
	Engine   string
	Report   *metric.Report
	Cached   bool
	Duration time.Duration
}

// NewService wires the analysis pipeline. cacheSvc may be nil, in which case
// every call computes its report.
func NewService(engine rules.Engine, cacheSvc *cache.CacheService, repo Repository, renderer BoardRenderer, cfg Config, logger *zap.Logger) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("rules engine is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("analysis repository is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("board renderer is required")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > maxHistoryLimit {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		engine:   engine,
		calc:     metric.NewCalculator(nil),
		cache:    cacheSvc,
		repo:     repo,
		renderer: renderer,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

func (s *Service) Engine() rules.Engine { return s.engine }

func (s *Service) Registry() *metric.Registry { return s.calc.Registry() }

// Analyze computes, or loads from cache, the metric report for fen.
func (s *Service) Analyze(ctx context.Context, fen string) (*Result, error) {
	started := time.Now()
	snap, err := position.New(s.engine, fen)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report, cached, err := s.report(ctx, snap)
	if err != nil {
		s.logger.Error("metric calculation failed", zap.String("fen", snap.FEN()), zap.Error(err))
		return nil, err
	}

	res := &Result{
		ID:       uuid.NewString(),
		FEN:      snap.FEN(),
		Engine:   s.engine.Name(),
		Report:   report,
		Cached:   cached,
		Duration: time.Since(started),
	}
	s.record(ctx, snap, res)

	s.logger.Info("metrics_analysis",
		zap.String("id", res.ID),
		zap.String("fen", res.FEN),
		zap.String("engine", res.Engine),
		zap.Bool("cached", res.Cached),
		zap.Int("pieces", len(report.Pieces)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (s *Service) report(ctx context.Context, snap *position.Snapshot) (*metric.Report, bool, error) {
	key := reportCacheKey(snap.FEN())
	if s.cache != nil {
		var cached metric.Report
		if err := s.cache.Get(ctx, key, &cached); err != nil {
			s.logger.Warn("failed to load cached metric report", zap.String("key", key), zap.Error(err))
		} else if len(cached.Squares) > 0 {
			return &cached, true, nil
		}
	}

	report, err := s.calc.Calculate(snap)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache metric report", zap.String("key", key), zap.Error(err))
		}
	}
	return report, false, nil
}

// record writes the history entry. Failures are logged and never surfaced.
func (s *Service) record(ctx context.Context, snap *position.Snapshot, res *Result) {
	rec := &domain.AnalysisRecord{
		ID:         res.ID,
		FEN:        res.FEN,
		Engine:     res.Engine,
		SideToMove: snap.SideToMove().String(),
		Pieces:     len(res.Report.Pieces),
		Cached:     res.Cached,
		Duration:   res.Duration,
		CreatedAt:  time.Now().UTC(),
	}
	for _, c := range board.Colors {
		player := res.Report.Player(c).Metrics
		rec.Pinned += player.Int("numberOfPinnedPieces")
		rec.Hanging += player.Int("numberOfHangingPieces")
	}
	if err := s.repo.InsertAnalysis(ctx, rec); err != nil {
		s.logger.Warn("failed to record analysis", zap.String("id", rec.ID), zap.Error(err))
	}
}

// History lists recent analyses, most recent first. A non-positive limit
// uses the configured default; limits above the maximum are capped.
func (s *Service) History(ctx context.Context, limit int) ([]*domain.AnalysisRecord, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.repo.RecentAnalyses(ctx, limit)
}

func (s *Service) Lookup(ctx context.Context, id string) (*domain.AnalysisRecord, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrAnalysisNotFound
	}
	rec, err := s.repo.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrAnalysisNotFound
	}
	return rec, nil
}

// RenderBoard draws fen with pinned pieces outlined, hanging pieces filled
// and a line from every pinner to the king it pins against.
func (s *Service) RenderBoard(ctx context.Context, fen string, format Format) ([]byte, error) {
	switch format {
	case FormatSVG, FormatPNG:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	snap, err := position.New(s.engine, fen)
	if err != nil {
		return nil, err
	}
	report, _, err := s.report(ctx, snap)
	if err != nil {
		return nil, err
	}
	ann := annotate(snap, report)

	if format == FormatPNG {
		return s.renderer.RenderPNG(ctx, snap, ann)
	}
	return s.renderer.RenderSVG(ctx, snap, ann)
}

func annotate(snap *position.Snapshot, report *metric.Report) Annotations {
	var ann Annotations
	for _, p := range report.Pieces {
		if p.Metrics.Bool("isHanging") {
			ann.Hanging = append(ann.Hanging, p.Square)
		}
	}
	pins := pin.New(snap)
	for _, p := range snap.Pieces() {
		pinner, ok := pins.Pinner(p)
		if !ok {
			continue
		}
		ann.Pinned = append(ann.Pinned, p.Square)
		if king, ok := snap.King(p.Color); ok {
			ann.PinLines = append(ann.PinLines, PinLine{From: pinner.Square, To: king.Square})
		}
	}
	return ann
}

func reportCacheKey(fen string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(fen)))
	return reportKeyPrefix + hex.EncodeToString(sum[:])
}
