package oddsmath

import "fmt"

// WinReturn computes the total return (stake included) of a winning bet at
// American odds
// stake 100 at -110 → 190.91
// stake 100 at +150 → 250.00
func WinReturn(stake float64, american int) (float64, error) {
	if stake <= 0 {
		return 0, fmt.Errorf("invalid stake: must be positive")
	}
	if american == 0 {
		return 0, fmt.Errorf("invalid American odds: cannot be 0")
	}

	if american > 0 {
		// Positive odds: stake + stake * (odds / 100)
		return stake + stake*(float64(american)/100.0), nil
	}

	// Negative odds: stake + stake * (100 / |odds|)
	return stake + stake*(100.0/float64(-american)), nil
}

// Profit computes net profit from a total return
func Profit(actualReturn, stake float64) float64 {
	return actualReturn - stake
}
