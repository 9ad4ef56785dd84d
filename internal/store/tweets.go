package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"uk.co.dudmesh.tweetqueue/internal/model"
)

func (s *Store) CreateTweet(ctx context.Context, tweet *model.Tweet) error {
	if tweet.ID == "" {
		tweet.ID = model.NewTweetID()
	}
	if tweet.Status == "" {
		tweet.Status = model.TweetStatusDraft
	}
	if tweet.CreatedAt.IsZero() {
		tweet.CreatedAt = time.Now().UTC()
	}
	if len([]rune(tweet.Content)) > model.MaxTweetLength {
		return fmt.Errorf("tweet content longer than %d characters", model.MaxTweetLength)
	}

	query, args, err := s.db.BindNamed(`insert into tweets
		(id, user_id, content, hashtags, status, scheduled_for, posted_at, twitter_id, created_at)
		values(:id, :user_id, :content, :hashtags, :status, :scheduled_for, :posted_at, :twitter_id, :created_at)`, utcTweet(*tweet))
	if err != nil {
		return fmt.Errorf("binding tweet: %w", err)
	}
	res, err := s.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("inserting tweet: %w", err)
	}
	if ok, err := expectOneRow(res.RowsAffected()); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("inserting tweet %s: no rows affected", tweet.ID)
	}
	return nil
}

func (s *Store) GetTweet(ctx context.Context, id model.TweetID) (*model.Tweet, error) {
	tweet := &model.Tweet{}
	err := s.conn(ctx).GetContext(ctx, tweet, s.rebind(`select
		id, user_id, content, hashtags, status, scheduled_for, posted_at, twitter_id, created_at, updated_at
		from tweets where id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFound("tweet", string(id))
		}
		return nil, fmt.Errorf("fetching tweet: %w", err)
	}
	return tweet, nil
}

// UpdateTweetStatus overwrites the delivery fields of a tweet. Writing the same
// published state twice is harmless, which keeps retried passes idempotent.
func (s *Store) UpdateTweetStatus(ctx context.Context, id model.TweetID, status model.TweetStatus, postedAt *time.Time, twitterID *string) error {
	res, err := s.conn(ctx).ExecContext(ctx, s.rebind(`update tweets
		set status = ?, posted_at = ?, twitter_id = ?, updated_at = ?
		where id = ?`), status, utcPtr(postedAt), twitterID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating tweet status: %w", err)
	}
	if ok, err := expectOneRow(res.RowsAffected()); err != nil {
		return err
	} else if !ok {
		return model.NotFound("tweet", string(id))
	}
	return nil
}

func utcTweet(t model.Tweet) model.Tweet {
	t.ScheduledFor = utcPtr(t.ScheduledFor)
	t.PostedAt = utcPtr(t.PostedAt)
	t.CreatedAt = t.CreatedAt.UTC()
	return t
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
