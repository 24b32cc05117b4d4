package repository

import (
	"fmt"

	"github.com/changolabs/chango/internal/model"
)

// PayoutRepository handles the append-only outbound payout log consumed by
// the external settlement collaborator.
type PayoutRepository struct{}

// NewPayoutRepository creates a new payout repository.
func NewPayoutRepository() *PayoutRepository {
	return &PayoutRepository{}
}

// Append writes one payout record. It is written after the ledger columns
// already reflect the debit, in the same transaction.
func (r *PayoutRepository) Append(db DBExecutor, p *model.Payout) error {
	query := `
		INSERT INTO payouts (id, campaign_id, kind, recipient, amount_native, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := db.Exec(query, p.ID, p.CampaignID, p.Kind,
		p.Recipient, p.AmountNative, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append payout: %w", err)
	}

	return nil
}

// ListByCampaign returns a campaign's payout history, oldest first.
func (r *PayoutRepository) ListByCampaign(db DBExecutor, campaignID int64) ([]*model.Payout, error) {
	query := `
		SELECT id, campaign_id, kind, recipient, amount_native, created_at
		FROM payouts
		WHERE campaign_id = $1
		ORDER BY created_at ASC
	`

	var payouts []*model.Payout
	if err := db.Select(&payouts, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}

	return payouts, nil
}
