package metricsdto

// LiveRequest is one inbound websocket message.
type LiveRequest struct {
	ID  string `json:"id"`
	FEN string `json:"fen"`
}

// LiveResponse answers a LiveRequest with exactly one of Result or Error.
type LiveResponse struct {
	ID     string            `json:"id"`
	Result *AnalysisResponse `json:"result,omitempty"`
	Error  *DomainError      `json:"error,omitempty"`
}
