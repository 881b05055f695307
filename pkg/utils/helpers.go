package utils

import "time"

//InSlice returns true if given value appears in given slice
func InSlice[T comparable](lookingFor T, slice []T) bool {
	for _, s := range slice {
		if s == lookingFor {
			return true
		}
	}

	return false
}

//Backoff returns the delay before retry number 'attempt' (starting at 1): base * 2^(attempt-1), capped at max
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 { //avoid overflowing the shift
		return max
	}

	delay := base * time.Duration(1<<uint(attempt-1))
	if delay > max || delay <= 0 {
		return max
	}

	return delay
}
