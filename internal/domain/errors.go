package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidQuote     = errors.New("invalid quote")
	ErrUnknownExchange  = errors.New("unknown exchange")
	ErrUnknownSymbol    = errors.New("symbol outside configured universe")
	ErrInvalidThreshold = errors.New("threshold must be positive")
	ErrInvalidLimit     = errors.New("invalid limit")
	ErrInvalidDate      = errors.New("invalid date key, want YYYY-MM-DD")
	ErrInvalidDuration  = errors.New("duration must be positive")
	ErrWSDisconnect     = errors.New("websocket disconnected")
)
