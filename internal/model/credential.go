package model

import "time"

type UserID string // owner id issued by the account service

// TwitterTokens are the per-user access credentials. The engine only reads them.
type TwitterTokens struct {
	UserID            UserID    `db:"user_id" json:"userId"`
	AccessToken       string    `db:"access_token" json:"-"`
	AccessTokenSecret string    `db:"access_token_secret" json:"-"`
	TwitterUsername   string    `db:"twitter_username" json:"twitterUsername"`
	TwitterUserID     string    `db:"twitter_user_id" json:"twitterUserId"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
}
