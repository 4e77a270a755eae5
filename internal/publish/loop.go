package publish

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/simplesurance/docpub/internal/logfields"
)

// Loop executes publish runs for release contexts received on a channel.
// Runs are executed one at a time in receive order, the single worker
// serializes runs from this process. Pipelines running concurrently outside
// of this process are not guarded against.
type Loop struct {
	publisher *Publisher
	ch        <-chan *ReleaseContext
	logger    *zap.Logger

	ctx          context.Context
	cancelFn     context.CancelFunc
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

func NewLoop(publisher *Publisher, ch <-chan *ReleaseContext) *Loop {
	ctx, cancelFn := context.WithCancel(context.Background())

	l := Loop{
		publisher: publisher,
		ch:        ch,
		logger:    zap.L().Named("publish_loop"),
		ctx:       ctx,
		cancelFn:  cancelFn,
	}

	// registered here instead of in Start, a Stop racing a not yet
	// scheduled Start must wait until the loop ran and terminated
	l.wg.Add(1)

	return &l
}

// Start processes release contexts until Stop is called or the channel is
// closed. It blocks.
// It must be called exactly once.
func (l *Loop) Start() {
	defer l.wg.Done()

	l.logger.Info("publish loop started", logfields.Event("publish_loop_started"))

	for {
		select {
		case <-l.ctx.Done():
			l.logger.Info("publish loop terminated", logfields.Event("publish_loop_terminated"))
			return

		case releaseCtx, open := <-l.ch:
			if !open {
				l.logger.Info(
					"publish loop terminated, trigger channel was closed",
					logfields.Event("publish_loop_terminated"),
				)
				return
			}

			if err := l.publisher.Run(l.ctx, releaseCtx); err != nil {
				l.logger.Error(
					"publish run failed",
					logfields.Event("publish_run_failed"),
					zap.Error(err),
				)
			}
		}
	}
}

// Stop cancels the running publish run, terminates the loop and waits for
// its termination.
// It blocks until Start ran and returned.
func (l *Loop) Stop() {
	l.shutdownOnce.Do(l.cancelFn)
	l.wg.Wait()
}
