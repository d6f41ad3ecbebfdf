// internal/retry/backoff.go
package retry

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	jitterMin  = 0.85
	jitterSpan = 0.30
)

// JitterSource возвращает число из [0, 1).
type JitterSource interface {
	Float64() float64
}

type defaultJitter struct{}

func (defaultJitter) Float64() float64 { return rand.Float64() }

// Exponential реализует backoff.BackOff без верхней границы задержки:
// n-я задержка равна initial * 2^(n-1) * jitter, jitter из [0.85, 1.15).
type Exponential struct {
	initial time.Duration
	jitter  JitterSource
	attempt int
}

var _ backoff.BackOff = (*Exponential)(nil)

// NewExponential создаёт расписание задержек для cfg.
func NewExponential(cfg Config, src JitterSource) *Exponential {
	if src == nil {
		src = defaultJitter{}
	}
	return &Exponential{initial: cfg.InitialBackoff, jitter: src}
}

// NextBackOff возвращает задержку перед следующей попыткой.
func (e *Exponential) NextBackOff() time.Duration {
	e.attempt++
	return Delay(e.initial, e.attempt, e.jitter.Float64())
}

// Reset начинает расписание заново.
func (e *Exponential) Reset() {
	e.attempt = 0
}

// Delay считает задержку после неудачной попытки attempt (с единицы).
// u - равномерное число из [0, 1), превращается в множитель 0.85..1.15.
func Delay(initial time.Duration, attempt int, u float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := jitterMin + u*jitterSpan
	d := float64(initial) * math.Pow(2, float64(attempt-1)) * factor
	// лимита нет, но Duration не должен переполниться
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
