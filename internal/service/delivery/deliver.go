package delivery

import (
	"context"
	"fmt"
	"time"

	"uk.co.dudmesh.tweetqueue/internal/metrics"
	"uk.co.dudmesh.tweetqueue/internal/model"
	"uk.co.dudmesh.tweetqueue/pkg/oauth1"
	"uk.co.dudmesh.tweetqueue/pkg/platform"
)

// publish formats the tweet and sends it with the owner's tokens. A panic in the
// publisher is returned as an error so it is recorded like any other failure.
func (s *service) publish(ctx context.Context, tweet *model.Tweet, tokens *model.TwitterTokens, source string) (twitterID string, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("publishing tweet %s: panic: %v", tweet.ID, r)
		}

		outcome := "succeeded"
		if err != nil {
			outcome = "failed"
		}
		metrics.DeliveriesTotal.WithLabelValues(source, outcome).Inc()
		metrics.DeliveryDuration.Observe(time.Since(start).Seconds())
	}()

	text := platform.FormatText(tweet.Content, tweet.Hashtags)
	twitterID, err = s.publisher.CreateTweet(ctx, text, oauth1.Token{
		Token:  tokens.AccessToken,
		Secret: tokens.AccessTokenSecret,
	})
	return twitterID, classify(err)
}
