package domain

import "context"

// QuoteCache mirrors the freshest quote per (exchange, symbol) into shared
// storage so external tools can read live prices without the scanner process.
type QuoteCache interface {
	SetQuote(ctx context.Context, q PriceQuote) error
	// GetQuote returns ErrNotFound when no quote has been mirrored yet.
	GetQuote(ctx context.Context, exchange ExchangeID, symbol string) (PriceQuote, error)
}

// SignalBus is an ephemeral pub/sub channel for opportunity events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel that is closed when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
