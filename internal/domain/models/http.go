package models

// ORBRequest filters the latest ORB snapshot.
type ORBRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"omitempty,alphanum,max=10"`
	Timeframe string `query:"timeframe" json:"timeframe" validate:"omitempty,oneof=15min 30min 60min"`
}

// IndexLottoRequest filters the latest index-lotto snapshot.
type IndexLottoRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,alphanum,max=10"`
}

// SessionResponse is the session clock plus current size advice.
type SessionResponse struct {
	SessionStatus
	PositionSizing PositionSizing `json:"positionSizing"`
}

// HealthResponse reports liveness and feed state.
type HealthResponse struct {
	Status        string `json:"status"`
	FeedConnected bool   `json:"feedConnected"`
	LastScan      string `json:"lastScan,omitempty"`
}
