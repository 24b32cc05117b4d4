package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Campaign represents a crowdfunding campaign in the database.
//
// GoalNative and the milestone native amounts are derived from the display
// amounts exactly once, at creation time, using ConversionRate. The rate is
// never recomputed afterwards.
type Campaign struct {
	ID                int64           `db:"id" json:"id"`
	Creator           string          `db:"creator" json:"creator"`
	GoalDisplay       decimal.Decimal `db:"goal_display" json:"goal_display"`
	GoalNative        decimal.Decimal `db:"goal_native" json:"goal_native"`
	ConversionRate    decimal.Decimal `db:"conversion_rate" json:"conversion_rate"`
	ConversionAt      time.Time       `db:"conversion_at" json:"conversion_at"`
	Deadline          time.Time       `db:"deadline" json:"deadline"`
	TotalRaisedNative decimal.Decimal `db:"total_raised_native" json:"total_raised_native"`
	ReleasedNative    decimal.Decimal `db:"released_native" json:"released_native"`
	GoalReached       bool            `db:"goal_reached" json:"goal_reached"`
	Finalized         bool            `db:"finalized" json:"finalized"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Milestone is one tranche of a campaign's fixed milestone sequence.
//
// ProposalRound starts at 0 (never proposed) and is bumped on every
// proposal; the vote tallies and the voter set belong to the current round
// only, so a re-proposal starts a fresh vote.
type Milestone struct {
	CampaignID    int64           `db:"campaign_id" json:"campaign_id"`
	Index         int             `db:"idx" json:"index"`
	AmountDisplay decimal.Decimal `db:"amount_display" json:"amount_display"`
	AmountNative  decimal.Decimal `db:"amount_native" json:"amount_native"`
	Released      bool            `db:"released" json:"released"`
	EvidenceURI   string          `db:"evidence_uri" json:"evidence_uri"`
	ProposedAt    *time.Time      `db:"proposed_at" json:"proposed_at,omitempty"`
	ProposalRound int             `db:"proposal_round" json:"proposal_round"`
	VotesFor      int             `db:"votes_for" json:"votes_for"`
	VotesAgainst  int             `db:"votes_against" json:"votes_against"`
}

// DonorBalance is the cumulative remaining contribution of one donor to one
// campaign. A refund zeroes the balance but keeps the row.
type DonorBalance struct {
	CampaignID    int64           `db:"campaign_id" json:"campaign_id"`
	Donor         string          `db:"donor" json:"donor"`
	BalanceNative decimal.Decimal `db:"balance_native" json:"balance_native"`
}

// Donation is an append-only audit record of a single contribution. It is
// never mutated after creation; its ID doubles as the receipt id callers
// can use to deduplicate retried submissions.
type Donation struct {
	ID            string          `db:"id" json:"id"`
	CampaignID    int64           `db:"campaign_id" json:"campaign_id"`
	Donor         string          `db:"donor" json:"donor"`
	AmountNative  decimal.Decimal `db:"amount_native" json:"amount_native"`
	AmountDisplay decimal.Decimal `db:"amount_display" json:"amount_display"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Vote records one donor's vote in one proposal round of one milestone.
// BalanceSnapshot captures the voter's balance at vote time so a weighted
// tally could be computed later without a schema change.
type Vote struct {
	CampaignID      int64           `db:"campaign_id" json:"campaign_id"`
	MilestoneIndex  int             `db:"milestone_idx" json:"milestone_index"`
	Round           int             `db:"round" json:"round"`
	Voter           string          `db:"voter" json:"voter"`
	Approve         bool            `db:"approve" json:"approve"`
	BalanceSnapshot decimal.Decimal `db:"balance_snapshot" json:"balance_snapshot"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

const (
	PayoutKindRelease = "release"
	PayoutKindRefund  = "refund"
)

// Payout is the append-only record of money leaving escrow, written after
// the ledger state already reflects the debit. The external settlement
// collaborator consumes these rows; re-reading one never re-applies it.
type Payout struct {
	ID           string          `db:"id" json:"id"`
	CampaignID   int64           `db:"campaign_id" json:"campaign_id"`
	Kind         string          `db:"kind" json:"kind"`
	Recipient    string          `db:"recipient" json:"recipient"`
	AmountNative decimal.Decimal `db:"amount_native" json:"amount_native"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
