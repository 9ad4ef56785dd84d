package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"uk.co.dudmesh.tweetqueue/internal/model"
	"uk.co.dudmesh.tweetqueue/internal/service/delivery"
)

type PassRunner interface {
	RunPass(ctx context.Context) (delivery.PassSummary, error)
}

// Job triggers a delivery pass on every tick. A tick that arrives while the
// previous pass is still running is skipped.
type Job struct {
	interval   time.Duration
	runner     PassRunner
	runOnStart bool

	mu        sync.Mutex
	isRunning bool
}

func NewJob(interval time.Duration, runner PassRunner, runOnStart bool) *Job {
	return &Job{
		interval:   interval,
		runner:     runner,
		runOnStart: runOnStart,
	}
}

// Run blocks until ctx is cancelled.
func (j *Job) Run(ctx context.Context) {
	log.Infof("delivery scheduler started, interval=%s", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	trigger := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.tick(ctx)
		}()
	}

	if j.runOnStart {
		trigger()
	}
	for {
		select {
		case <-ticker.C:
			trigger()
		case <-ctx.Done():
			wg.Wait()
			log.Info("delivery scheduler stopped")
			return
		}
	}
}

func (j *Job) tick(ctx context.Context) {
	j.mu.Lock()
	if j.isRunning {
		j.mu.Unlock()
		log.Debug("delivery pass still running, skipping tick")
		return
	}
	j.isRunning = true
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.isRunning = false
		j.mu.Unlock()
	}()

	_, err := j.runner.RunPass(ctx)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrorPassInProgress):
		log.Debug("delivery pass running in another process, skipping tick")
	case ctx.Err() != nil:
	default:
		log.Errorf("scheduled delivery pass: %+v", err)
	}
}
