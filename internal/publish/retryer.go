package publish

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/simplesurance/docpub/internal/docpuberr"
	"github.com/simplesurance/docpub/internal/logfields"
)

const (
	defRetryTimeout           = 2 * time.Minute
	defBackoffInitialInterval = 5 * time.Second
)

// Retryer executes a function repeatedly until it succeeded, it returned an
// error that does not wrap docpuberr.RetryableError, or the retry timeout
// expired.
// It is only used for best-effort operations, the fatal pipeline steps are
// never retried.
type Retryer struct {
	logger                     *zap.Logger
	defTimeout                 time.Duration
	backoffInitialInterval     time.Duration
	backoffRandomizationFactor float64
	shutdownChan               chan struct{}
}

func NewRetryer() *Retryer {
	return &Retryer{
		logger:                     zap.L().Named("retryer"),
		defTimeout:                 defRetryTimeout,
		backoffInitialInterval:     defBackoffInitialInterval,
		backoffRandomizationFactor: backoff.DefaultRandomizationFactor,
		shutdownChan:               make(chan struct{}),
	}
}

// Run executes fn until it was successful, it returned an error that does
// not wrap docpuberr.RetryableError, the retry timeout expired or the
// context was cancelled.
func (r *Retryer) Run(ctx context.Context, fn func(context.Context) error, logF []zap.Field) error {
	var tryCnt uint

	ctx, cancel := context.WithTimeout(ctx, r.defTimeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.backoffInitialInterval
	bo.RandomizationFactor = r.backoffRandomizationFactor

	retryTimer := time.NewTimer(0)
	defer retryTimer.Stop()

	baseLogger := r.logger.With(logF...)

	for {
		tryCnt++
		logger := baseLogger.With(zap.Uint("try_count", tryCnt))

		select {
		case <-ctx.Done():
			logger.Info(
				"operation cancelled",
				logfields.Event("operation_cancelled"),
			)

			return ctx.Err()

		case <-retryTimer.C:
			err := fn(ctx)
			if err == nil {
				logger.Debug(
					"operation executed successfully",
					logfields.Event("operation_succeeded"),
				)

				return nil
			}

			logger = logger.With(zap.Error(err))

			if errors.Is(err, context.Canceled) {
				logger.Info(
					"operation cancelled",
					logfields.Event("operation_cancelled"),
				)

				return err
			}

			var retryErr *docpuberr.RetryableError
			if !errors.As(err, &retryErr) {
				logger.Info(
					"operation failed, error is not retryable",
					logfields.Event("operation_failed"),
				)

				return err
			}

			retryIn := bo.NextBackOff()
			if !retryErr.After.IsZero() {
				if until := time.Until(retryErr.After); until > retryIn {
					retryIn = until
				}
			}

			retryTimer.Reset(retryIn)
			logger.Info(
				"operation failed, retry scheduled",
				logfields.Event("operation_retry_scheduled"),
				zap.Duration("retry_in", retryIn),
			)

		case <-r.shutdownChan:
			logger.Info(
				"terminating, operation not retried",
				logfields.Event("operation_retry_aborted"),
			)

			return nil
		}
	}
}

// Stop notifies all Run() methods to terminate.
// It does not wait for their termination.
func (r *Retryer) Stop() {
	select {
	case <-r.shutdownChan:
		return // already closed
	default:
		close(r.shutdownChan)
	}
}
