// Package cost estimates token usage and dollar cost for report runs and
// decides whether a run may proceed given its estimate.
package cost

const (
	inputShare     = 0.7
	confidenceLow  = 0.8
	confidenceHigh = 1.2
)

// PriceTable holds per-million-token prices.
type PriceTable struct {
	InputPer1M  float64 `json:"input_per_1m"`
	OutputPer1M float64 `json:"output_per_1m"`
	Currency    string  `json:"currency"`
}

// DefaultPrices is the price table used when none is configured.
var DefaultPrices = PriceTable{InputPer1M: 0.075, OutputPer1M: 0.30, Currency: "USD"}

// SplitTokens divides a token total into input and output shares (70/30).
func SplitTokens(total int) (input, output int) {
	return int(float64(total) * inputShare), int(float64(total) * (1 - inputShare))
}

// Price returns the input, output and total cost of the given token counts.
func (p PriceTable) Price(input, output int) (inCost, outCost, total float64) {
	inCost = float64(input) / 1_000_000 * p.InputPer1M
	outCost = float64(output) / 1_000_000 * p.OutputPer1M
	return inCost, outCost, inCost + outCost
}

// Range returns the ±20% confidence bounds around total.
func Range(total float64) (lo, hi float64) {
	return total * confidenceLow, total * confidenceHigh
}
