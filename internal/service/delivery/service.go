package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nrednav/cuid2"

	"uk.co.dudmesh.tweetqueue/internal/lock"
	"uk.co.dudmesh.tweetqueue/internal/model"
	"uk.co.dudmesh.tweetqueue/pkg/oauth1"
)

const (
	DefaultWorkers  = 4
	DefaultClaimTTL = 10 * time.Minute

	SupersededMessage = "superseded by immediate send"
)

type CredentialStore interface {
	GetCredential(ctx context.Context, userID model.UserID) (*model.TwitterTokens, error)
}

type TweetStore interface {
	GetTweet(ctx context.Context, id model.TweetID) (*model.Tweet, error)
	UpdateTweetStatus(ctx context.Context, id model.TweetID, status model.TweetStatus, postedAt *time.Time, twitterID *string) error
}

type DeliveryStore interface {
	ListDueUnprocessed(ctx context.Context, now time.Time) ([]model.ScheduledDelivery, error)
	ListUnprocessedForTweet(ctx context.Context, tweetID model.TweetID) ([]model.ScheduledDelivery, error)
	ClaimDelivery(ctx context.Context, id model.DeliveryID, token string, now, staleBefore time.Time) (bool, error)
	MarkProcessed(ctx context.Context, id model.DeliveryID, processedAt time.Time, errorMessage *string) error
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Store interface {
	CredentialStore
	TweetStore
	DeliveryStore
	Transactor
}

// Publisher creates a post on the platform on behalf of token's owner.
type Publisher interface {
	CreateTweet(ctx context.Context, text string, token oauth1.Token) (string, error)
}

// PassSummary counts the items a pass claimed and how they ended.
type PassSummary struct {
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"timestamp"`
}

// PostResult is the outcome of an immediate send. Error is set whenever the
// send failed, and also when the tweet went out but recording it did not.
type PostResult struct {
	Success   bool
	TwitterID string
	Error     error
}

type service struct {
	store     Store
	publisher Publisher
	lock      lock.PassLock
	now       func() time.Time
	newToken  func() string
	workers   int
	claimTTL  time.Duration
}

type Option func(*service)

func WithClock(fn func() time.Time) Option {
	return func(s *service) {
		s.now = fn
	}
}

func WithPassLock(l lock.PassLock) Option {
	return func(s *service) {
		s.lock = l
	}
}

func WithWorkers(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithClaimTTL(ttl time.Duration) Option {
	return func(s *service) {
		if ttl > 0 {
			s.claimTTL = ttl
		}
	}
}

func WithClaimTokens(fn func() string) Option {
	return func(s *service) {
		s.newToken = fn
	}
}

// New builds the delivery engine. A nil publisher means the platform consumer
// credentials were never configured; every operation then fails with
// model.ErrorConfiguration.
func New(store Store, publisher Publisher, opts ...Option) *service {
	s := &service{
		store:     store,
		publisher: publisher,
		lock:      lock.NewNoop(),
		now:       time.Now,
		newToken:  cuid2.Generate,
		workers:   DefaultWorkers,
		claimTTL:  DefaultClaimTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// outcome is the result of one delivery attempt that is ready to be written back.
type outcome struct {
	tweetID   model.TweetID
	twitterID string
	err       error
}

// record writes the tweet status and then latches every given work item, in
// one transaction. The processed flag is always the last write.
func (s *service) record(ctx context.Context, result outcome, items []model.ScheduledDelivery, itemMessage func(model.ScheduledDelivery) *string) error {
	return s.store.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now().UTC()
		if result.err == nil {
			twitterID := result.twitterID
			if err := s.store.UpdateTweetStatus(ctx, result.tweetID, model.TweetStatusPublished, &now, &twitterID); err != nil {
				return fmt.Errorf("marking tweet published: %w", err)
			}
		} else {
			err := s.store.UpdateTweetStatus(ctx, result.tweetID, model.TweetStatusFailed, nil, nil)
			if err != nil && !errors.Is(err, model.ErrorNotFound) {
				return fmt.Errorf("marking tweet failed: %w", err)
			}
		}

		for _, item := range items {
			if err := s.store.MarkProcessed(ctx, item.ID, now, itemMessage(item)); err != nil {
				return fmt.Errorf("marking work item %s processed: %w", item.ID, err)
			}
		}
		return nil
	})
}

func classify(err error) error {
	if errors.Is(err, oauth1.ErrorConfiguration) && !errors.Is(err, model.ErrorConfiguration) {
		return fmt.Errorf("%w: %v", model.ErrorConfiguration, err)
	}
	return err
}

func errorMessage(err error) *string {
	if err == nil {
		return nil
	}
	return model.StringPtr(err.Error())
}
