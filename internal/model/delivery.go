package model

import "time"

type DeliveryID string

// ScheduledDelivery is a work item linking a tweet to the time it becomes due.
// Processed is a one-way latch: once set it is never cleared.
type ScheduledDelivery struct {
	ID           DeliveryID `db:"id" json:"id"`
	UserID       UserID     `db:"user_id" json:"userId"`
	TweetID      TweetID    `db:"tweet_id" json:"tweetId"`
	ScheduledFor time.Time  `db:"scheduled_for" json:"scheduledFor"`
	Processed    bool       `db:"processed" json:"processed"`
	ProcessedAt  *time.Time `db:"processed_at" json:"processedAt,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"errorMessage,omitempty"`
	ClaimToken   *string    `db:"claim_token" json:"-"`
	ClaimedAt    *time.Time `db:"claimed_at" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
}
