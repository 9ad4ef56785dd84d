package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"uk.co.dudmesh.tweetqueue/internal/service/delivery"
)

type countingRunner struct {
	calls      atomic.Int32
	concurrent atomic.Int32
	overlapped atomic.Bool
	delay      time.Duration
	err        error
}

func (r *countingRunner) RunPass(ctx context.Context) (delivery.PassSummary, error) {
	if r.concurrent.Add(1) > 1 {
		r.overlapped.Store(true)
	}
	defer r.concurrent.Add(-1)

	r.calls.Add(1)
	time.Sleep(r.delay)
	return delivery.PassSummary{}, r.err
}

func TestJob(t *testing.T) {
	t.Run("Runs On Start", func(t *testing.T) {
		runner := &countingRunner{}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			NewJob(time.Hour, runner, true).Run(ctx)
			close(done)
		}()

		assert.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		cancel()
		<-done
	})

	t.Run("Keeps Ticking After Errors", func(t *testing.T) {
		runner := &countingRunner{err: errors.New("selection failed")}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			NewJob(5*time.Millisecond, runner, false).Run(ctx)
			close(done)
		}()

		assert.Eventually(t, func() bool { return runner.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
		cancel()
		<-done
	})

	t.Run("Skips Overlapping Ticks", func(t *testing.T) {
		runner := &countingRunner{delay: 50 * time.Millisecond}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			NewJob(2*time.Millisecond, runner, false).Run(ctx)
			close(done)
		}()

		time.Sleep(120 * time.Millisecond)
		cancel()
		<-done

		assert.False(t, runner.overlapped.Load())
		assert.LessOrEqual(t, runner.calls.Load(), int32(3))
	})
}
