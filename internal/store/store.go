package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type txKey struct{}

type Store struct {
	driver string
	db     *sqlx.DB
}

func Open(driver, url string) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sqlx.Connect(driver, url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if driver == DriverSQLite {
		// sqlite serialises writers; one connection avoids SQLITE_BUSY between workers.
		db.SetMaxOpenConns(1)
	}

	return &Store{driver: driver, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithinTx runs fn in a transaction. Store calls made with the context passed
// to fn join it; nested calls reuse the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back after %v: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type execer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func (s *Store) conn(ctx context.Context) execer {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return s.db
}

func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

// Migrate creates the tables the engine reads and writes. The account and
// editing services own the same tables; this keeps standalone deployments and tests working.
func (s *Store) Migrate(ctx context.Context) error {
	timestamp := "DATETIME"
	if s.driver == DriverPostgres {
		timestamp = "TIMESTAMPTZ"
	}

	statements := []string{
		fmt.Sprintf(`create table if not exists twitter_tokens(
			user_id             text not null primary key,
			access_token        text not null,
			access_token_secret text not null,
			twitter_username    text not null default '',
			twitter_user_id     text not null default '',
			created_at          %[1]s not null
		)`, timestamp),
		fmt.Sprintf(`create table if not exists tweets(
			id            text not null primary key,
			user_id       text not null,
			content       text not null,
			hashtags      text not null default '[]',
			status        text not null default 'draft',
			scheduled_for %[1]s null,
			posted_at     %[1]s null,
			twitter_id    text null,
			created_at    %[1]s not null,
			updated_at    %[1]s null
		)`, timestamp),
		fmt.Sprintf(`create table if not exists scheduling_queue(
			id            text not null primary key,
			user_id       text not null,
			tweet_id      text not null,
			scheduled_for %[1]s not null,
			processed     boolean not null default false,
			processed_at  %[1]s null,
			error_message text null,
			claim_token   text null,
			claimed_at    %[1]s null,
			created_at    %[1]s not null
		)`, timestamp),
		`create index if not exists scheduling_queue_due on scheduling_queue(processed, scheduled_for)`,
		`create unique index if not exists scheduling_queue_one_pending on scheduling_queue(tweet_id) where processed = false`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}
	}
	return nil
}

func expectOneRow(rowsAffected int64, err error) (bool, error) {
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}
