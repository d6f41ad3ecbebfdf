// internal/retry/retry.go
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = time.Second
)

// ErrInvalidConfig возвращается, когда параметры ретраев некорректны.
var ErrInvalidConfig = errors.New("invalid retry config")

// Config задаёт политику повторов: MaxRetries повторов после первой попытки,
// задержка InitialBackoff * 2^(attempt-1) * jitter.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultConfig возвращает 3 повтора с начальной задержкой в 1 секунду.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
	}
}

// Validate проверяет параметры политики.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must be >= 0, got %d", ErrInvalidConfig, c.MaxRetries)
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("%w: initial backoff must be positive, got %s", ErrInvalidConfig, c.InitialBackoff)
	}
	return nil
}

// ExhaustedError is returned once every attempt has failed.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

// Unwrap возвращает ошибку последней попытки.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Permanent помечает ошибку как неповторяемую: Do вернёт её сразу.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Operation is one attempt of a remote mutation.
type Operation[T any] func(ctx context.Context) (T, error)

type options struct {
	logger  *zap.Logger
	name    string
	onRetry func(attempt int, err error, wait time.Duration)
	jitter  JitterSource
}

// Option настраивает отдельный вызов Do.
type Option func(*options)

// WithLogger задаёт логгер для промежуточных ошибок.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName задаёт имя операции для логов и ошибок.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithOnRetry registers an observer called before each wait.
func WithOnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(o *options) { o.onRetry = fn }
}

// WithJitter подменяет источник случайности (для тестов).
func WithJitter(src JitterSource) Option {
	return func(o *options) {
		if src != nil {
			o.jitter = src
		}
	}
}

// Do выполняет op до MaxRetries+1 раз. Промежуточные ошибки логируются и
// отбрасываются, наружу уходит только последняя (внутри *ExhaustedError).
// Ошибки, помеченные Permanent, и отмена контекста прерывают цикл сразу.
func Do[T any](ctx context.Context, cfg Config, op Operation[T], opts ...Option) (T, error) {
	var zero T
	if err := cfg.Validate(); err != nil {
		return zero, err
	}

	o := options{
		logger: zap.NewNop(),
		jitter: defaultJitter{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger.Named("retry")
	if o.name != "" {
		log = log.With(zap.String("operation", o.name))
	}

	attempts := 0
	var permanentErr error
	wrapped := func() (T, error) {
		attempts++
		res, err := op(ctx)
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			permanentErr = permanent.Unwrap()
		}
		return res, err
	}

	result, err := backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(NewExponential(cfg, o.jitter)),
		backoff.WithMaxTries(uint(cfg.MaxRetries)+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn("Attempt failed, retrying",
				zap.Int("attempt", attempts),
				zap.Int("max_attempts", cfg.MaxRetries+1),
				zap.Duration("backoff", wait),
				zap.Error(err))
			if o.onRetry != nil {
				o.onRetry(attempts, err, wait)
			}
		}),
	)
	if err == nil {
		if attempts > 1 {
			log.Info("Operation succeeded after retries", zap.Int("attempts", attempts))
		}
		return result, nil
	}

	// Ошибка отмены контекста отдаётся как есть.
	if ctxErr := context.Cause(ctx); ctxErr != nil && errors.Is(err, ctxErr) {
		log.Warn("Retry loop cancelled", zap.Int("attempts", attempts), zap.Error(err))
		return zero, err
	}

	if permanentErr != nil {
		log.Error("Operation failed with non-retryable error",
			zap.Int("attempts", attempts),
			zap.Error(permanentErr))
		return zero, permanentErr
	}

	log.Error("Operation failed",
		zap.Int("attempts", attempts),
		zap.Error(err))
	return zero, &ExhaustedError{Op: o.name, Attempts: attempts, Err: err}
}
