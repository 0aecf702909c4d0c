package models

import "errors"

var (
	ErrNoTicks               = errors.New("no ticks observed in opening range window")
	ErrDegenerateRange       = errors.New("degenerate range: entry equals stop")
	ErrMarketDataUnavailable = errors.New("market data unavailable for every tracked symbol")
	ErrSnapshotNotReady      = errors.New("scan snapshot not ready")
	ErrUnknownSymbol         = errors.New("unknown symbol")
)
