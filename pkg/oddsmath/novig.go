package oddsmath

import "fmt"

// RemoveVigTwoWay removes vig from a two-outcome market using the
// multiplicative method (standard for moneylines, spreads, and totals)
//
// Formula:
// 1. totalProb = prob1 + prob2 (typically > 1.0)
// 2. fairProb1 = prob1 / totalProb, fairProb2 = prob2 / totalProb
//
// Example:
// Side A: -110 (52.38%) | Side B: -110 (52.38%)
// Overround: 104.76% → Fair: 50% / 50%
func RemoveVigTwoWay(prob1, prob2 float64) (fair1, fair2 float64, err error) {
	if prob1 <= 0 || prob1 >= 1 || prob2 <= 0 || prob2 >= 1 {
		return 0, 0, fmt.Errorf("probabilities must be between 0 and 1")
	}

	totalProb := prob1 + prob2
	if totalProb <= 1.0 {
		return 0, 0, fmt.Errorf("no vig detected: probabilities sum to <= 1.0")
	}

	return prob1 / totalProb, prob2 / totalProb, nil
}

// VigPercentage calculates the overround in a market
// Vig% = (TotalProb - 1.0) * 100
func VigPercentage(probabilities []float64) (float64, error) {
	if len(probabilities) == 0 {
		return 0, fmt.Errorf("no probabilities provided")
	}

	totalProb := 0.0
	for _, prob := range probabilities {
		if prob <= 0 || prob >= 1 {
			return 0, fmt.Errorf("all probabilities must be between 0 and 1")
		}
		totalProb += prob
	}

	if totalProb <= 1.0 {
		return 0, nil // No vig
	}

	return (totalProb - 1.0) * 100.0, nil
}
