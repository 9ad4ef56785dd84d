package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"

	"uk.co.dudmesh.tweetqueue/internal/lock"
	"uk.co.dudmesh.tweetqueue/internal/metrics"
	"uk.co.dudmesh.tweetqueue/internal/model"
)

// RunPass delivers every work item that is unprocessed and due at the start of
// the pass. Failures of individual items are recorded against the item and
// never abort the pass; only missing configuration, a held pass lock or a
// failed selection query are returned as errors.
func (s *service) RunPass(ctx context.Context) (PassSummary, error) {
	start := time.Now()
	summary := PassSummary{StartedAt: s.now().UTC()}

	if s.publisher == nil {
		metrics.PassesTotal.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("running pass: %w", model.ErrorConfiguration)
	}

	unlock, err := s.lock.Acquire(ctx)
	if err != nil {
		if errors.Is(err, lock.ErrorNotHeld) {
			metrics.PassesTotal.WithLabelValues("skipped").Inc()
			return summary, model.ErrorPassInProgress
		}
		metrics.PassesTotal.WithLabelValues("failed").Inc()
		return summary, err
	}
	defer unlock()

	now := summary.StartedAt
	items, err := s.store.ListDueUnprocessed(ctx, now)
	if err != nil {
		metrics.PassesTotal.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("selecting due work items: %w", err)
	}
	log.Infof("delivery pass: found %d due work items, now=%s", len(items), now.Format(time.RFC3339))

	token := s.newToken()
	staleBefore := now.Add(-s.claimTTL)

	var total, succeeded, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for i := range items {
		item := items[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			claimed, err := s.store.ClaimDelivery(ctx, item.ID, token, now, staleBefore)
			if err != nil {
				log.Errorf("delivery pass: claiming work item %s: %+v", item.ID, err)
				total.Add(1)
				failed.Add(1)
				return nil
			}
			if !claimed {
				metrics.ClaimsLostTotal.Inc()
				return nil
			}

			total.Add(1)
			if s.processItem(ctx, item) {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.Total = int(total.Load())
	summary.Succeeded = int(succeeded.Load())
	summary.Failed = int(failed.Load())

	metrics.PassesTotal.WithLabelValues("completed").Inc()
	metrics.PassItems.Observe(float64(summary.Total))
	metrics.PassDuration.Observe(time.Since(start).Seconds())
	log.Infof("delivery pass complete: total=%d succeeded=%d failed=%d", summary.Total, summary.Succeeded, summary.Failed)

	return summary, nil
}

// processItem resolves, sends and records one claimed work item.
func (s *service) processItem(ctx context.Context, item model.ScheduledDelivery) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("delivery pass: work item %s panicked: %v", item.ID, r)
			ok = false
		}
	}()

	result := outcome{tweetID: item.TweetID}
	tweet, tokens, err := s.resolve(ctx, item)
	if err != nil && !errors.Is(err, model.ErrorNotFound) {
		// The item stays claimed and becomes eligible again once the claim goes stale.
		log.Errorf("delivery pass: resolving work item %s: %+v", item.ID, err)
		return false
	}
	if err == nil {
		result.twitterID, err = s.publish(ctx, tweet, tokens, "pass")
	}
	result.err = err

	if result.err != nil && ctx.Err() != nil {
		// Interrupted, not rejected: the platform may still have accepted the post.
		// The item stays claimed and is retried once the claim goes stale.
		log.Warnf("delivery pass: work item %s interrupted: %v", item.ID, result.err)
		return false
	}

	// A sent tweet must be recorded even if the pass is being cancelled.
	writeCtx := context.WithoutCancel(ctx)
	message := errorMessage(result.err)
	if err := s.record(writeCtx, result, []model.ScheduledDelivery{item}, func(model.ScheduledDelivery) *string {
		return message
	}); err != nil {
		log.Errorf("delivery pass: recording work item %s: %+v", item.ID, err)
		return false
	}

	if result.err != nil {
		log.Warnf("delivery pass: work item %s failed: %v", item.ID, result.err)
		return false
	}
	log.Infof("delivery pass: posted tweet %s as %s", item.TweetID, result.twitterID)
	return true
}

func (s *service) resolve(ctx context.Context, item model.ScheduledDelivery) (*model.Tweet, *model.TwitterTokens, error) {
	tweet, err := s.store.GetTweet(ctx, item.TweetID)
	if err != nil {
		return nil, nil, err
	}
	tokens, err := s.store.GetCredential(ctx, item.UserID)
	if err != nil {
		return nil, nil, err
	}
	return tweet, tokens, nil
}
