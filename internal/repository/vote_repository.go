package repository

import (
	"fmt"

	"github.com/changolabs/chango/internal/model"
)

// VoteRepository handles per-round vote records.
type VoteRepository struct{}

// NewVoteRepository creates a new vote repository.
func NewVoteRepository() *VoteRepository {
	return &VoteRepository{}
}

// Insert records one vote. The primary key (campaign, milestone, round,
// voter) backs the one-vote-per-round invariant at the storage level; the
// engine rejects duplicates before this point.
func (r *VoteRepository) Insert(db DBExecutor, v *model.Vote) error {
	query := `
		INSERT INTO votes (campaign_id, milestone_idx, round, voter, approve, balance_snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := db.Exec(query, v.CampaignID, v.MilestoneIndex, v.Round,
		v.Voter, v.Approve, v.BalanceSnapshot, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}

	return nil
}

// ListVoters returns the identities that voted in a specific proposal
// round of a milestone.
func (r *VoteRepository) ListVoters(db DBExecutor, campaignID int64, milestoneIndex, round int) ([]string, error) {
	query := `
		SELECT voter
		FROM votes
		WHERE campaign_id = $1 AND milestone_idx = $2 AND round = $3
	`

	var voters []string
	if err := db.Select(&voters, query, campaignID, milestoneIndex, round); err != nil {
		return nil, fmt.Errorf("failed to list voters: %w", err)
	}

	return voters, nil
}
