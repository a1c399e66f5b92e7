package utils

import "math"

// Percent returns the share of total represented by votes, rounded to the
// nearest whole percent. A zero total yields 0 for every option rather than
// a division error.
func Percent(votes, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(votes) / float64(total) * 100))
}
