package summarizer

import (
	"time"

	"golang.org/x/time/rate"
)

// newLimiter ограничивает запросы к API суммаризации: perMinute в минуту,
// всплеск до perMinute.
func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}
