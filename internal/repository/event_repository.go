package repository

import (
	"fmt"

	"github.com/changolabs/chango/internal/model"
)

// EventRepository handles the append-only event feed.
type EventRepository struct{}

// NewEventRepository creates a new event repository.
func NewEventRepository() *EventRepository {
	return &EventRepository{}
}

// Append writes one event record. Events are written in the same
// transaction as the state change they describe, so the feed never shows a
// mutation that did not commit.
func (r *EventRepository) Append(db DBExecutor, e *model.Event) error {
	query := `
		INSERT INTO events (id, campaign_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := db.Exec(query, e.ID, e.CampaignID, e.Kind, e.Payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

// ListByCampaign returns a campaign's event history, oldest first.
func (r *EventRepository) ListByCampaign(db DBExecutor, campaignID int64) ([]*model.Event, error) {
	query := `
		SELECT id, campaign_id, kind, payload, created_at
		FROM events
		WHERE campaign_id = $1
		ORDER BY created_at ASC
	`

	var events []*model.Event
	if err := db.Select(&events, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return events, nil
}
