package repository

import (
	"fmt"
	"strings"

	"github.com/changolabs/chango/internal/model"
)

// MilestoneRepository handles milestone row operations.
type MilestoneRepository struct{}

// NewMilestoneRepository creates a new milestone repository.
func NewMilestoneRepository() *MilestoneRepository {
	return &MilestoneRepository{}
}

// InsertAll inserts the campaign's fixed milestone sequence in one batch.
// Milestones are only ever created here, at campaign creation.
func (r *MilestoneRepository) InsertAll(db DBExecutor, campaignID int64, milestones []*model.Milestone) error {
	if len(milestones) == 0 {
		return nil
	}

	valuesClause := make([]string, len(milestones))
	args := make([]interface{}, 0, len(milestones)*4)

	for i, m := range milestones {
		valuesClause[i] = fmt.Sprintf("($%d, $%d, $%d, $%d)",
			i*4+1, i*4+2, i*4+3, i*4+4)
		args = append(args, campaignID, m.Index, m.AmountDisplay, m.AmountNative)
	}

	query := fmt.Sprintf(`
		INSERT INTO milestones (campaign_id, idx, amount_display, amount_native)
		VALUES %s
	`, strings.Join(valuesClause, ", "))

	_, err := db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert milestones: %w", err)
	}

	return nil
}

// ListByCampaign returns the campaign's milestones in index order.
func (r *MilestoneRepository) ListByCampaign(db DBExecutor, campaignID int64) ([]*model.Milestone, error) {
	query := `
		SELECT campaign_id, idx, amount_display, amount_native, released,
		       evidence_uri, proposed_at, proposal_round, votes_for, votes_against
		FROM milestones
		WHERE campaign_id = $1
		ORDER BY idx ASC
	`

	var milestones []*model.Milestone
	err := db.Select(&milestones, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}

	return milestones, nil
}

// UpdateProposal persists a freshly opened proposal round: the voting
// window timestamp, the evidence reference, the bumped round and the reset
// tallies.
func (r *MilestoneRepository) UpdateProposal(db DBExecutor, m *model.Milestone) error {
	query := `
		UPDATE milestones
		SET proposed_at = $1,
		    evidence_uri = $2,
		    proposal_round = $3,
		    votes_for = 0,
		    votes_against = 0
		WHERE campaign_id = $4 AND idx = $5
	`

	_, err := db.Exec(query, m.ProposedAt, m.EvidenceURI, m.ProposalRound,
		m.CampaignID, m.Index)
	if err != nil {
		return fmt.Errorf("failed to update milestone proposal: %w", err)
	}

	return nil
}

// UpdateTally persists the running vote counters of the current round.
func (r *MilestoneRepository) UpdateTally(db DBExecutor, m *model.Milestone) error {
	query := `
		UPDATE milestones
		SET votes_for = $1, votes_against = $2
		WHERE campaign_id = $3 AND idx = $4
	`

	_, err := db.Exec(query, m.VotesFor, m.VotesAgainst, m.CampaignID, m.Index)
	if err != nil {
		return fmt.Errorf("failed to update milestone tally: %w", err)
	}

	return nil
}

// MarkReleased flips the terminal released flag. The status guard in the
// WHERE clause makes the write a no-op if the milestone was already
// released, mirroring the engine's invariant at the storage level.
func (r *MilestoneRepository) MarkReleased(db DBExecutor, campaignID int64, index int) error {
	query := `
		UPDATE milestones
		SET released = TRUE
		WHERE campaign_id = $1 AND idx = $2 AND released = FALSE
	`

	result, err := db.Exec(query, campaignID, index)
	if err != nil {
		return fmt.Errorf("failed to mark milestone released: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("milestone not found or already released")
	}

	return nil
}
