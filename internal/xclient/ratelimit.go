package xclient

import (
	"os"
	"strconv"

	"golang.org/x/time/rate"
)

// The user tweet timeline allows 1500 requests per 15 minutes per app,
// a little under 2 rps sustained.
const (
	defaultRPS   = 1.5
	defaultBurst = 5
)

// newDefaultLimiter creates a rate limiter using env overrides if present.
func newDefaultLimiter() *rate.Limiter {
	rps := defaultRPS
	burst := defaultBurst
	if v := os.Getenv("X_API_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	if v := os.Getenv("X_API_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
