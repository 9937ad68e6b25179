package domain

import "time"

// ExchangeID identifies one of the two exchanges the scanner compares.
type ExchangeID string

const (
	ExchangeHyperliquid ExchangeID = "hyperliquid"
	ExchangeBinance     ExchangeID = "binance"
)

// Transport records how a quote reached the scanner.
type Transport string

const (
	TransportREST   Transport = "REST"
	TransportStream Transport = "STREAM"
)

// PriceQuote is a single price observation for a symbol on one exchange.
// Quotes are ephemeral: the ledger keeps only the freshest one per
// (exchange, symbol), last write wins regardless of transport.
type PriceQuote struct {
	Symbol     string
	Exchange   ExchangeID
	Price      float64
	ObservedAt time.Time
	Transport  Transport
}

// Age returns how old the quote is relative to now.
func (q PriceQuote) Age(now time.Time) time.Duration {
	return now.Sub(q.ObservedAt)
}
