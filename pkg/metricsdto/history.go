package metricsdto

import "time"

type AnalysisRecord struct {
	ID         string    `json:"id"`
	FEN        string    `json:"fen"`
	Engine     string    `json:"engine"`
	SideToMove string    `json:"sideToMove"`
	Pieces     int       `json:"pieces"`
	Pinned     int       `json:"pinned"`
	Hanging    int       `json:"hanging"`
	Cached     bool      `json:"cached"`
	DurationMS float64   `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

type HistoryResponse struct {
	Count int              `json:"count"`
	Items []AnalysisRecord `json:"items"`
}
