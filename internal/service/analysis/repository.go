package analysis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/park285/chess-metrics/internal/domain"
)

var ErrDuplicateAnalysis = errors.New("analysis record already exists")

type Repository interface {
	InsertAnalysis(ctx context.Context, rec *domain.AnalysisRecord) error
	RecentAnalyses(ctx context.Context, limit int) ([]*domain.AnalysisRecord, error)
	GetAnalysis(ctx context.Context, id string) (*domain.AnalysisRecord, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// EnsureSchema creates the history table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS metric_analyses (
			id           UUID PRIMARY KEY,
			fen          TEXT NOT NULL,
			engine       TEXT NOT NULL,
			side_to_move TEXT NOT NULL,
			pieces       INTEGER NOT NULL,
			pinned       INTEGER NOT NULL,
			hanging      INTEGER NOT NULL,
			cached       BOOLEAN NOT NULL DEFAULT FALSE,
			duration_us  BIGINT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS metric_analyses_created_at_idx ON metric_analyses (created_at DESC)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure metric_analyses schema: %w", err)
	}
	return nil
}

func (r *repository) InsertAnalysis(ctx context.Context, rec *domain.AnalysisRecord) error {
	if rec == nil {
		return fmt.Errorf("nil analysis record")
	}

	const query = `
		INSERT INTO metric_analyses (
			id,
			fen,
			engine,
			side_to_move,
			pieces,
			pinned,
			hanging,
			cached,
			duration_us,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`

	res, err := r.db.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.FEN,
		rec.Engine,
		rec.SideToMove,
		rec.Pieces,
		rec.Pinned,
		rec.Hanging,
		rec.Cached,
		rec.Duration.Microseconds(),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateAnalysis
	}
	return nil
}

const selectAnalysis = `
		SELECT
			id,
			fen,
			engine,
			side_to_move,
			pieces,
			pinned,
			hanging,
			cached,
			duration_us,
			created_at
		FROM metric_analyses`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*domain.AnalysisRecord, error) {
	var (
		rec        domain.AnalysisRecord
		durationUS sql.NullInt64
	)
	if err := row.Scan(
		&rec.ID,
		&rec.FEN,
		&rec.Engine,
		&rec.SideToMove,
		&rec.Pieces,
		&rec.Pinned,
		&rec.Hanging,
		&rec.Cached,
		&durationUS,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	if durationUS.Valid {
		rec.Duration = time.Duration(durationUS.Int64) * time.Microsecond
	}
	return &rec, nil
}

func (r *repository) RecentAnalyses(ctx context.Context, limit int) ([]*domain.AnalysisRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := r.db.QueryContext(ctx, selectAnalysis+`
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select analyses: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.AnalysisRecord, 0, limit)
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}

func (r *repository) GetAnalysis(ctx context.Context, id string) (*domain.AnalysisRecord, error) {
	rec, err := scanAnalysis(r.db.QueryRowContext(ctx, selectAnalysis+`
		WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return rec, nil
}
