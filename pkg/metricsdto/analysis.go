package metricsdto

import (
	"encoding/json"
	"time"
)

const (
	APIVersion       = "1.0.0"
	GameTypeStandard = "standard"
)

type FENRequest struct {
	FEN string `json:"fen"`
}

// AnalysisResponse carries the report sections already encoded, so their
// flat record layout survives unchanged.
type AnalysisResponse struct {
	Version    string          `json:"version"`
	ID         string          `json:"id"`
	FEN        string          `json:"fen"`
	GameType   string          `json:"gameType"`
	Engine     string          `json:"engine"`
	Cached     bool            `json:"cached"`
	DurationMS float64         `json:"durationMs"`
	Players    json.RawMessage `json:"players"`
	Pieces     json.RawMessage `json:"pieces"`
	Squares    json.RawMessage `json:"squares"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
}

type MetricDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Min         *int   `json:"min,omitempty"`
	Max         *int   `json:"max,omitempty"`
}

type MetricsResponse struct {
	Player []MetricDescriptor `json:"player"`
	Piece  []MetricDescriptor `json:"piece"`
	Square []MetricDescriptor `json:"square"`
}

type PGNResponse struct {
	Message string `json:"message"`
	PGN     string `json:"pgn"`
}
