package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/changolabs/chango/internal/engine"
	"github.com/changolabs/chango/internal/model"
)

// DBExecutor interface for database operations (can be *sqlx.DB or *sqlx.Tx)
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
}

// CampaignRepository handles campaign row operations.
type CampaignRepository struct{}

// NewCampaignRepository creates a new campaign repository.
func NewCampaignRepository() *CampaignRepository {
	return &CampaignRepository{}
}

// Create inserts a new campaign and fills in its assigned id.
func (r *CampaignRepository) Create(db DBExecutor, campaign *model.Campaign) error {
	query := `
		INSERT INTO campaigns (
			creator, goal_display, goal_native, conversion_rate, conversion_at,
			deadline, total_raised_native, released_native, goal_reached,
			finalized, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	err := db.Get(&campaign.ID, query,
		campaign.Creator, campaign.GoalDisplay, campaign.GoalNative,
		campaign.ConversionRate, campaign.ConversionAt, campaign.Deadline,
		campaign.TotalRaisedNative, campaign.ReleasedNative,
		campaign.GoalReached, campaign.Finalized,
		campaign.CreatedAt, campaign.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	return nil
}

// GetByID retrieves a campaign without locking it.
func (r *CampaignRepository) GetByID(db DBExecutor, id int64) (*model.Campaign, error) {
	return r.get(db, id, "")
}

// LockByID retrieves a campaign under SELECT ... FOR UPDATE. Holding the
// row lock for the duration of the transaction serializes all mutating
// operations on the campaign; operations on other campaigns proceed in
// parallel.
func (r *CampaignRepository) LockByID(db DBExecutor, id int64) (*model.Campaign, error) {
	return r.get(db, id, "FOR UPDATE")
}

func (r *CampaignRepository) get(db DBExecutor, id int64, locking string) (*model.Campaign, error) {
	query := fmt.Sprintf(`
		SELECT id, creator, goal_display, goal_native, conversion_rate,
		       conversion_at, deadline, total_raised_native, released_native,
		       goal_reached, finalized, created_at, updated_at
		FROM campaigns
		WHERE id = $1
		%s
	`, locking)

	var campaign model.Campaign
	err := db.Get(&campaign, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return &campaign, nil
}

// UpdateLedger persists the mutable ledger columns of a campaign.
func (r *CampaignRepository) UpdateLedger(db DBExecutor, campaign *model.Campaign, at time.Time) error {
	query := `
		UPDATE campaigns
		SET total_raised_native = $1,
		    released_native = $2,
		    goal_reached = $3,
		    finalized = $4,
		    updated_at = $5
		WHERE id = $6
	`

	result, err := db.Exec(query,
		campaign.TotalRaisedNative, campaign.ReleasedNative,
		campaign.GoalReached, campaign.Finalized, at, campaign.ID)
	if err != nil {
		return fmt.Errorf("failed to update campaign ledger: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return engine.ErrNotFound
	}

	return nil
}
