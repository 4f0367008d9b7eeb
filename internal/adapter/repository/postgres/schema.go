package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const reviewChannel = "review_created"

// Reviews carry no foreign key to listings: deleting a listing leaves its reviews in place.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		id          uuid PRIMARY KEY,
		owner_id    text NOT NULL,
		title       text NOT NULL,
		author      text NOT NULL,
		price       double precision NOT NULL CHECK (price >= 0),
		location    text NOT NULL,
		description text NOT NULL,
		images      text[] NOT NULL DEFAULT '{}',
		created_at  timestamptz NOT NULL,
		updated_at  timestamptz NOT NULL,
		version     bigint NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS listings_created_at_idx ON listings (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS listings_owner_id_idx ON listings (owner_id)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id         uuid PRIMARY KEY,
		listing_id uuid NOT NULL,
		user_id    text NOT NULL,
		author     text NOT NULL,
		rating     smallint NOT NULL CHECK (rating BETWEEN 1 AND 5),
		body       text NOT NULL,
		created_at timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS reviews_listing_created_idx ON reviews (listing_id, created_at DESC)`,
	fmt.Sprintf(`CREATE OR REPLACE FUNCTION notify_review_created() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('%s', row_to_json(NEW)::text);
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`, reviewChannel),
	`DROP TRIGGER IF EXISTS reviews_notify_insert ON reviews`,
	`CREATE TRIGGER reviews_notify_insert AFTER INSERT ON reviews
		FOR EACH ROW EXECUTE FUNCTION notify_review_created()`,
}

// Migrate creates tables, indexes and the review insert trigger. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return tx.Commit()
}
