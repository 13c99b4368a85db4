package core

import "fmt"

// WinnerSelection is the outcome of scanning a revealed bid sequence.
type WinnerSelection struct {
	// Index is the position of the winning bidder in submission order.
	Index int
	// Amount is the winning (lowest) bid amount.
	Amount int64
	// Score is the winner's qualification snapshot, truncated to 8 bits.
	Score uint8
}

// SelectWinner picks the winning bidder from a flat revealed sequence where
// values[2i] is bidder i's amount and values[2i+1] is bidder i's
// qualification score snapshot. Scores are truncated to their low 8 bits
// before comparison.
//
// Lowest amount wins. Equal amounts are broken by the higher truncated
// score; a further tie keeps the earliest (first-submitted) bidder. The scan
// is a single deterministic linear pass and a pure function of its input.
//
// A sequence that is empty or of odd length violates the reveal protocol.
func SelectWinner(values []int64) (WinnerSelection, error) {
	if len(values) == 0 || len(values)%2 != 0 {
		return WinnerSelection{}, fmt.Errorf("revealed sequence has %d values, want a positive even count: %w", len(values), ErrProtocol)
	}

	best := WinnerSelection{
		Index:  0,
		Amount: values[0],
		Score:  uint8(values[1]),
	}
	for i := 1; i < len(values)/2; i++ {
		amount := values[2*i]
		score := uint8(values[2*i+1])
		if amount < best.Amount || (amount == best.Amount && score > best.Score) {
			best = WinnerSelection{Index: i, Amount: amount, Score: score}
		}
	}
	return best, nil
}
