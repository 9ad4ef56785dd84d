package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type TweetID string
type TweetStatus string

const (
	TweetStatusDraft     TweetStatus = "draft"
	TweetStatusScheduled TweetStatus = "scheduled"
	TweetStatusPublished TweetStatus = "published"
	TweetStatusFailed    TweetStatus = "failed"
)

const MaxTweetLength = 280

// Hashtags are stored without the leading '#', as a JSON array in a text column.
type Hashtags []string

func (h Hashtags) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(h))
	if err != nil {
		return nil, fmt.Errorf("marshalling hashtags: %w", err)
	}
	return string(b), nil
}

func (h *Hashtags) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*h = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported hashtags type %T", src)
	}
	if len(raw) == 0 {
		*h = nil
		return nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return fmt.Errorf("unmarshalling hashtags: %w", err)
	}
	*h = tags
	return nil
}

type Tweet struct {
	ID           TweetID     `db:"id" json:"id"`
	UserID       UserID      `db:"user_id" json:"userId"`
	Content      string      `db:"content" json:"content"`
	Hashtags     Hashtags    `db:"hashtags" json:"hashtags"`
	Status       TweetStatus `db:"status" json:"status"`
	ScheduledFor *time.Time  `db:"scheduled_for" json:"scheduledFor,omitempty"`
	PostedAt     *time.Time  `db:"posted_at" json:"postedAt,omitempty"`
	TwitterID    *string     `db:"twitter_id" json:"twitterId,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    *time.Time  `db:"updated_at" json:"updatedAt,omitempty"`
}
