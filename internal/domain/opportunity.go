package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direction indicates which exchange offers the lower (buy) price.
type Direction string

const (
	DirectionBuyASellB Direction = "BUY_A_SELL_B"
	DirectionBuyBSellA Direction = "BUY_B_SELL_A"
)

// Opportunity is a detected price gap between the two exchanges for one
// symbol. It is ephemeral; the persisted form is OpportunityRecord.
type Opportunity struct {
	Symbol     string
	PriceA     float64
	PriceB     float64
	AbsDiff    float64
	PctDiff    float64
	Direction  Direction
	DetectedAt time.Time
}

// OpportunityRecord is the persisted, immutable form of an Opportunity.
// The JSON shape is stable across process restarts; DetectedAtMs is the
// detection time in epoch milliseconds.
type OpportunityRecord struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	PriceA        float64   `json:"priceA"`
	PriceB        float64   `json:"priceB"`
	AbsDiff       float64   `json:"absDiff"`
	PctDiff       float64   `json:"pctDiff"`
	Direction     Direction `json:"direction"`
	DetectedAtMs  int64     `json:"detectedAt"`
	DetectedAtISO string    `json:"detectedAtISO"`
	Transport     Transport `json:"transport"`
}

// DetectedAt returns the detection time reconstructed from epoch milliseconds.
func (r OpportunityRecord) DetectedAt() time.Time {
	return time.UnixMilli(r.DetectedAtMs).UTC()
}

// DateKey returns the YYYY-MM-DD (UTC) key the record is indexed under.
func (r OpportunityRecord) DateKey() string {
	return r.DetectedAt().Format("2006-01-02")
}

// NewRecordID builds a record ID from the detection time and a random
// suffix: monotonically biased by the epoch-ms prefix, unique even under
// sub-millisecond concurrent creation, not strictly increasing.
func NewRecordID(at time.Time) string {
	return fmt.Sprintf("%d-%s", at.UnixMilli(), uuid.NewString()[:8])
}

// NewRecord assigns identity and the ISO timestamp to a detected opportunity.
func NewRecord(opp Opportunity, transport Transport) OpportunityRecord {
	at := opp.DetectedAt.UTC()
	return OpportunityRecord{
		ID:            NewRecordID(at),
		Symbol:        opp.Symbol,
		PriceA:        opp.PriceA,
		PriceB:        opp.PriceB,
		AbsDiff:       opp.AbsDiff,
		PctDiff:       opp.PctDiff,
		Direction:     opp.Direction,
		DetectedAtMs:  at.UnixMilli(),
		DetectedAtISO: at.Format(time.RFC3339Nano),
		Transport:     transport,
	}
}

// Stats is the running aggregate over every record inserted through the
// normal insertion path. Retention deletes never retro-correct it: the
// counters, RunningMeanPct, and Best are historical.
type Stats struct {
	TotalCount       uint64               `json:"totalCount"`
	CountBySymbol    map[string]uint64    `json:"countBySymbol"`
	CountByDirection map[Direction]uint64 `json:"countByDirection"`
	RunningMeanPct   float64              `json:"runningMeanPct"`
	Best             *OpportunityRecord   `json:"best"`
	LastUpdatedAt    time.Time            `json:"lastUpdatedAt"`
}
