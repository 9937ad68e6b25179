// Package arbitrage implements the price-gap detector and its debounce.
package arbitrage

import (
	"math"
	"time"

	"github.com/ppedziwiatr/nautilus/internal/domain"
)

// Detect compares the freshest quotes from the two exchanges and reports an
// opportunity when the percentage gap meets the threshold (inclusive).
//
// quoteA must come from exchange A and quoteB from exchange B; Direction is
// BUY_A_SELL_B when A is cheaper. The comparison is pure: for a fixed `at`
// instant identical inputs yield an identical Opportunity.
//
//	absDiff = |priceA - priceB|
//	pctDiff = absDiff / ((priceA + priceB) / 2) * 100
func Detect(quoteA, quoteB domain.PriceQuote, thresholdPct float64, at time.Time) (domain.Opportunity, bool) {
	absDiff := math.Abs(quoteA.Price - quoteB.Price)
	avg := (quoteA.Price + quoteB.Price) / 2
	pctDiff := absDiff / avg * 100

	if pctDiff < thresholdPct {
		return domain.Opportunity{}, false
	}

	// Equal prices never reach here: their pctDiff is 0, below any
	// positive threshold.
	direction := domain.DirectionBuyBSellA
	if quoteA.Price < quoteB.Price {
		direction = domain.DirectionBuyASellB
	}

	return domain.Opportunity{
		Symbol:     quoteA.Symbol,
		PriceA:     quoteA.Price,
		PriceB:     quoteB.Price,
		AbsDiff:    absDiff,
		PctDiff:    pctDiff,
		Direction:  direction,
		DetectedAt: at,
	}, true
}
