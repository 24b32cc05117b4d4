package database

import (
	"context"
	"fmt"
	"log/slog"
)

// schema is the full DDL, applied idempotently at startup. The engine's
// invariants lean on the constraints here: the votes primary key backs
// one-vote-per-round, and donations/payouts/events are append-only tables
// with no UPDATE path in the codebase.
const schema = `
CREATE TABLE IF NOT EXISTS campaigns (
	id BIGSERIAL PRIMARY KEY,
	creator TEXT NOT NULL,
	goal_display NUMERIC(20, 2) NOT NULL,
	goal_native NUMERIC(20, 4) NOT NULL,
	conversion_rate NUMERIC(20, 6) NOT NULL,
	conversion_at TIMESTAMPTZ NOT NULL,
	deadline TIMESTAMPTZ NOT NULL,
	total_raised_native NUMERIC(20, 4) NOT NULL DEFAULT 0,
	released_native NUMERIC(20, 4) NOT NULL DEFAULT 0,
	goal_reached BOOLEAN NOT NULL DEFAULT FALSE,
	finalized BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS milestones (
	campaign_id BIGINT NOT NULL REFERENCES campaigns(id),
	idx INT NOT NULL,
	amount_display NUMERIC(20, 2) NOT NULL,
	amount_native NUMERIC(20, 4) NOT NULL,
	released BOOLEAN NOT NULL DEFAULT FALSE,
	evidence_uri TEXT NOT NULL DEFAULT '',
	proposed_at TIMESTAMPTZ,
	proposal_round INT NOT NULL DEFAULT 0,
	votes_for INT NOT NULL DEFAULT 0,
	votes_against INT NOT NULL DEFAULT 0,
	PRIMARY KEY (campaign_id, idx)
);

CREATE TABLE IF NOT EXISTS donors (
	campaign_id BIGINT NOT NULL REFERENCES campaigns(id),
	donor TEXT NOT NULL,
	balance_native NUMERIC(20, 4) NOT NULL DEFAULT 0,
	PRIMARY KEY (campaign_id, donor)
);

CREATE TABLE IF NOT EXISTS donations (
	id UUID PRIMARY KEY,
	campaign_id BIGINT NOT NULL REFERENCES campaigns(id),
	donor TEXT NOT NULL,
	amount_native NUMERIC(20, 4) NOT NULL,
	amount_display NUMERIC(20, 2) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_donations_campaign ON donations(campaign_id, created_at);

CREATE TABLE IF NOT EXISTS votes (
	campaign_id BIGINT NOT NULL REFERENCES campaigns(id),
	milestone_idx INT NOT NULL,
	round INT NOT NULL,
	voter TEXT NOT NULL,
	approve BOOLEAN NOT NULL,
	balance_snapshot NUMERIC(20, 4) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (campaign_id, milestone_idx, round, voter)
);

CREATE TABLE IF NOT EXISTS payouts (
	id UUID PRIMARY KEY,
	campaign_id BIGINT NOT NULL REFERENCES campaigns(id),
	kind TEXT NOT NULL,
	recipient TEXT NOT NULL,
	amount_native NUMERIC(20, 4) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payouts_campaign ON payouts(campaign_id, created_at);

CREATE TABLE IF NOT EXISTS events (
	id UUID PRIMARY KEY,
	campaign_id BIGINT NOT NULL REFERENCES campaigns(id),
	kind TEXT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_events_campaign ON events(campaign_id, created_at);
`

// Migrate applies the schema. All statements are IF NOT EXISTS, so running
// it on every startup is safe.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Postgres.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	slog.Info("database schema up to date")
	return nil
}
