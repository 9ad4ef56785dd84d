package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"uk.co.dudmesh.tweetqueue/internal/model"
)

func (s *Store) GetCredential(ctx context.Context, userID model.UserID) (*model.TwitterTokens, error) {
	tokens := &model.TwitterTokens{}
	err := s.conn(ctx).GetContext(ctx, tokens, s.rebind(`select
		user_id, access_token, access_token_secret, twitter_username, twitter_user_id, created_at
		from twitter_tokens where user_id = ?`), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFound("twitter tokens for user", string(userID))
		}
		return nil, fmt.Errorf("fetching twitter tokens: %w", err)
	}
	return tokens, nil
}

// PutCredential upserts the tokens for a user. Only the account service and tests write here.
func (s *Store) PutCredential(ctx context.Context, tokens *model.TwitterTokens) error {
	if tokens.CreatedAt.IsZero() {
		tokens.CreatedAt = time.Now().UTC()
	}
	query, args, err := s.db.BindNamed(`insert into twitter_tokens
		(user_id, access_token, access_token_secret, twitter_username, twitter_user_id, created_at)
		values(:user_id, :access_token, :access_token_secret, :twitter_username, :twitter_user_id, :created_at)
		on conflict(user_id) do update set
			access_token = excluded.access_token,
			access_token_secret = excluded.access_token_secret,
			twitter_username = excluded.twitter_username,
			twitter_user_id = excluded.twitter_user_id`, tokens)
	if err != nil {
		return fmt.Errorf("binding twitter tokens: %w", err)
	}
	if _, err := s.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting twitter tokens: %w", err)
	}
	return nil
}
