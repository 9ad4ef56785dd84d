package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"uk.co.dudmesh.tweetqueue/internal/model"
)

const deliveryColumns = `id, user_id, tweet_id, scheduled_for, processed, processed_at,
	error_message, claim_token, claimed_at, created_at`

func (s *Store) CreateDelivery(ctx context.Context, delivery *model.ScheduledDelivery) error {
	if delivery.ID == "" {
		delivery.ID = model.NewDeliveryID()
	}
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now().UTC()
	}

	row := *delivery
	row.ScheduledFor = row.ScheduledFor.UTC()
	row.ProcessedAt = utcPtr(row.ProcessedAt)
	row.ClaimedAt = utcPtr(row.ClaimedAt)
	row.CreatedAt = row.CreatedAt.UTC()

	query, args, err := s.db.BindNamed(`insert into scheduling_queue
		(id, user_id, tweet_id, scheduled_for, processed, processed_at, error_message, claim_token, claimed_at, created_at)
		values(:id, :user_id, :tweet_id, :scheduled_for, :processed, :processed_at, :error_message, :claim_token, :claimed_at, :created_at)`, row)
	if err != nil {
		return fmt.Errorf("binding scheduled delivery: %w", err)
	}
	if _, err := s.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting scheduled delivery: %w", err)
	}
	return nil
}

func (s *Store) GetDelivery(ctx context.Context, id model.DeliveryID) (*model.ScheduledDelivery, error) {
	delivery := &model.ScheduledDelivery{}
	err := s.conn(ctx).GetContext(ctx, delivery, s.rebind(`select `+deliveryColumns+`
		from scheduling_queue where id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFound("scheduled delivery", string(id))
		}
		return nil, fmt.Errorf("fetching scheduled delivery: %w", err)
	}
	return delivery, nil
}

// ListDueUnprocessed returns every unprocessed work item scheduled at or before now.
func (s *Store) ListDueUnprocessed(ctx context.Context, now time.Time) ([]model.ScheduledDelivery, error) {
	deliveries := []model.ScheduledDelivery{}
	err := s.conn(ctx).SelectContext(ctx, &deliveries, s.rebind(`select `+deliveryColumns+`
		from scheduling_queue
		where processed = ? and scheduled_for <= ?
		order by scheduled_for asc, id asc`), false, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("listing due deliveries: %w", err)
	}
	return deliveries, nil
}

func (s *Store) ListUnprocessedForTweet(ctx context.Context, tweetID model.TweetID) ([]model.ScheduledDelivery, error) {
	deliveries := []model.ScheduledDelivery{}
	err := s.conn(ctx).SelectContext(ctx, &deliveries, s.rebind(`select `+deliveryColumns+`
		from scheduling_queue
		where tweet_id = ? and processed = ?`), tweetID, false)
	if err != nil {
		return nil, fmt.Errorf("listing deliveries for tweet: %w", err)
	}
	return deliveries, nil
}

// ClaimDelivery marks an unprocessed item as owned by token. It succeeds when the
// item is unclaimed or its previous claim is older than staleBefore, so two
// overlapping passes never both deliver the same item.
func (s *Store) ClaimDelivery(ctx context.Context, id model.DeliveryID, token string, now, staleBefore time.Time) (bool, error) {
	res, err := s.conn(ctx).ExecContext(ctx, s.rebind(`update scheduling_queue
		set claim_token = ?, claimed_at = ?
		where id = ? and processed = ? and (claim_token is null or claimed_at is null or claimed_at < ?)`),
		token, now.UTC(), id, false, staleBefore.UTC())
	if err != nil {
		return false, fmt.Errorf("claiming scheduled delivery: %w", err)
	}
	return expectOneRow(res.RowsAffected())
}

// MarkProcessed latches the processed flag. Marking an already processed item is a no-op.
func (s *Store) MarkProcessed(ctx context.Context, id model.DeliveryID, processedAt time.Time, errorMessage *string) error {
	res, err := s.conn(ctx).ExecContext(ctx, s.rebind(`update scheduling_queue
		set processed = ?, processed_at = ?, error_message = ?
		where id = ? and processed = ?`), true, processedAt.UTC(), errorMessage, id, false)
	if err != nil {
		return fmt.Errorf("marking scheduled delivery processed: %w", err)
	}
	ok, err := expectOneRow(res.RowsAffected())
	if err != nil || ok {
		return err
	}

	if _, err := s.GetDelivery(ctx, id); err != nil {
		return err
	}
	return nil
}
