package repository

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/changolabs/chango/internal/model"
)

// DonationRepository handles donor balances and the append-only donation
// audit log.
type DonationRepository struct{}

// NewDonationRepository creates a new donation repository.
func NewDonationRepository() *DonationRepository {
	return &DonationRepository{}
}

// UpsertBalance sets a donor's cumulative remaining balance, creating the
// donor entry on first donation.
func (r *DonationRepository) UpsertBalance(db DBExecutor, campaignID int64, donor string, balance decimal.Decimal) error {
	query := `
		INSERT INTO donors (campaign_id, donor, balance_native)
		VALUES ($1, $2, $3)
		ON CONFLICT (campaign_id, donor)
		DO UPDATE SET balance_native = EXCLUDED.balance_native
	`

	_, err := db.Exec(query, campaignID, donor, balance)
	if err != nil {
		return fmt.Errorf("failed to upsert donor balance: %w", err)
	}

	return nil
}

// ListBalances returns the donor-keyed balance map of a campaign.
func (r *DonationRepository) ListBalances(db DBExecutor, campaignID int64) (map[string]decimal.Decimal, error) {
	query := `
		SELECT campaign_id, donor, balance_native
		FROM donors
		WHERE campaign_id = $1
	`

	var rows []model.DonorBalance
	if err := db.Select(&rows, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to list donor balances: %w", err)
	}

	balances := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		balances[row.Donor] = row.BalanceNative
	}

	return balances, nil
}

// Append writes one immutable donation audit record.
func (r *DonationRepository) Append(db DBExecutor, d *model.Donation) error {
	query := `
		INSERT INTO donations (id, campaign_id, donor, amount_native, amount_display, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := db.Exec(query, d.ID, d.CampaignID, d.Donor,
		d.AmountNative, d.AmountDisplay, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append donation: %w", err)
	}

	return nil
}

// ListByCampaign returns a campaign's donation history, oldest first.
func (r *DonationRepository) ListByCampaign(db DBExecutor, campaignID int64) ([]*model.Donation, error) {
	query := `
		SELECT id, campaign_id, donor, amount_native, amount_display, created_at
		FROM donations
		WHERE campaign_id = $1
		ORDER BY created_at ASC
	`

	var donations []*model.Donation
	if err := db.Select(&donations, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}

	return donations, nil
}
