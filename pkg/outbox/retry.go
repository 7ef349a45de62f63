package outbox

import (
	"math"
	"math/rand"
	"time"
	"unicode/utf8"
)

// backoff is 1s * 2^(attempts-1), capped at maxBackoff.
func backoff(attempts int, maxBackoff time.Duration) time.Duration {
	if attempts <= 0 {
		return 0
	}
	d := time.Duration(math.Pow(2, float64(attempts-1)) * float64(time.Second))
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

// jitter returns a duration in [0, maxJitter].
func jitter(r *rand.Rand, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 || r == nil {
		return 0
	}
	return time.Duration(r.Int63n(int64(maxJitter) + 1)) //nolint:gosec
}

// truncateError cuts err's text to at most maxBytes without splitting a rune.
func truncateError(err error, maxBytes int) string {
	if err == nil || maxBytes <= 0 {
		return ""
	}
	s := err.Error()
	if len(s) <= maxBytes {
		return s
	}
	b := []byte(s[:maxBytes])
	for len(b) > 0 && !utf8.Valid(b) {
		b = b[:len(b)-1]
	}
	return string(b)
}
