package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/labstack/gommon/log"

	"uk.co.dudmesh.tweetqueue/internal/model"
)

// PostNow sends one tweet immediately. A non-empty callerID must own the tweet.
// Missing tweets and unconnected accounts fail without touching any state.
// Once an attempt has been made, any work item still pending for the tweet is
// closed so the scheduler cannot post it a second time.
func (s *service) PostNow(ctx context.Context, tweetID model.TweetID, callerID model.UserID) PostResult {
	if s.publisher == nil {
		return PostResult{Error: fmt.Errorf("posting tweet: %w", model.ErrorConfiguration)}
	}

	tweet, err := s.store.GetTweet(ctx, tweetID)
	if err != nil {
		return PostResult{Error: err}
	}
	if callerID != "" && tweet.UserID != callerID {
		return PostResult{Error: model.NotFound("tweet", string(tweetID))}
	}

	tokens, err := s.store.GetCredential(ctx, tweet.UserID)
	if err != nil {
		if errors.Is(err, model.ErrorNotFound) {
			return PostResult{Error: model.ErrorNotConnected}
		}
		return PostResult{Error: fmt.Errorf("loading credentials: %w", err)}
	}

	result := outcome{tweetID: tweet.ID}
	result.twitterID, result.err = s.publish(ctx, tweet, tokens, "immediate")

	writeCtx := context.WithoutCancel(ctx)
	pending, err := s.store.ListUnprocessedForTweet(writeCtx, tweet.ID)
	if err != nil {
		log.Errorf("post now: listing pending work items for tweet %s: %+v", tweet.ID, err)
		pending = nil
	}

	message := model.StringPtr(SupersededMessage)
	if result.err != nil {
		message = errorMessage(result.err)
	}
	recordErr := s.record(writeCtx, result, pending, func(model.ScheduledDelivery) *string {
		return message
	})
	if recordErr != nil {
		log.Errorf("post now: recording tweet %s: %+v", tweet.ID, recordErr)
	}

	if result.err != nil {
		log.Warnf("post now: tweet %s failed: %v", tweet.ID, result.err)
		return PostResult{Error: result.err}
	}

	log.Infof("post now: posted tweet %s as %s", tweet.ID, result.twitterID)
	res := PostResult{Success: true, TwitterID: result.twitterID}
	if recordErr != nil {
		res.Error = fmt.Errorf("recording posted tweet: %w", recordErr)
	}
	return res
}
