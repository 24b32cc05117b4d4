package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/changolabs/chango/internal/engine"
	"github.com/changolabs/chango/internal/model"
)

// MilestoneView is the read model of one milestone: the stored row plus
// the computed vote-progress fields of its current proposal round.
type MilestoneView struct {
	Index         int             `json:"index"`
	AmountDisplay decimal.Decimal `json:"amount_display"`
	AmountNative  decimal.Decimal `json:"amount_native"`
	Released      bool            `json:"released"`
	EvidenceURI   string          `json:"evidence_uri"`
	ProposedAt    *time.Time      `json:"proposed_at,omitempty"`
	ProposalRound int             `json:"proposal_round"`
	Status        string          `json:"status"`
	Tally         engine.Tally    `json:"tally"`
}

// CampaignView is the read model of a full campaign: the record, derived
// status and escrow balance, and every milestone with its tally.
type CampaignView struct {
	ID                      int64           `json:"id"`
	Creator                 string          `json:"creator"`
	GoalDisplay             decimal.Decimal `json:"goal_display"`
	GoalNative              decimal.Decimal `json:"goal_native"`
	ConversionRate          decimal.Decimal `json:"conversion_rate"`
	ConversionAt            time.Time       `json:"conversion_at"`
	Deadline                time.Time       `json:"deadline"`
	TotalRaisedNative       decimal.Decimal `json:"total_raised_native"`
	ReleasedNative          decimal.Decimal `json:"released_native"`
	EscrowNative            decimal.Decimal `json:"escrow_native"`
	GoalReached             bool            `json:"goal_reached"`
	Finalized               bool            `json:"finalized"`
	Status                  string          `json:"status"`
	DonorCount              int             `json:"donor_count"`
	MilestoneSumMatchesGoal bool            `json:"milestone_sum_matches_goal"`
	Milestones              []MilestoneView `json:"milestones"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// DonationReceipt is returned to the donor after a successful donation.
// ReceiptID is the audit record's id; callers can use it to deduplicate
// retried submissions, since replaying a donate is not idempotent.
type DonationReceipt struct {
	ReceiptID         string          `json:"receipt_id"`
	CampaignID        int64           `json:"campaign_id"`
	Donor             string          `json:"donor"`
	AmountNative      decimal.Decimal `json:"amount_native"`
	AmountDisplay     decimal.Decimal `json:"amount_display"`
	DonorBalance      decimal.Decimal `json:"donor_balance"`
	TotalRaisedNative decimal.Decimal `json:"total_raised_native"`
	GoalReached       bool            `json:"goal_reached"`
	CreatedAt         time.Time       `json:"created_at"`
}

// VoteReceipt reports a recorded vote and the tally it produced.
type VoteReceipt struct {
	CampaignID     int64        `json:"campaign_id"`
	MilestoneIndex int          `json:"milestone_index"`
	Round          int          `json:"round"`
	Voter          string       `json:"voter"`
	Approve        bool         `json:"approve"`
	Tally          engine.Tally `json:"tally"`
}

// ReleaseReceipt reports a finalized milestone. PayoutID references the
// outbound payout record the settlement collaborator will act on.
type ReleaseReceipt struct {
	PayoutID          string          `json:"payout_id"`
	CampaignID        int64           `json:"campaign_id"`
	MilestoneIndex    int             `json:"milestone_index"`
	Recipient         string          `json:"recipient"`
	AmountNative      decimal.Decimal `json:"amount_native"`
	CampaignFinalized bool            `json:"campaign_finalized"`
	Tally             engine.Tally    `json:"tally"`
}

// RefundReceipt reports a refunded donor balance.
type RefundReceipt struct {
	PayoutID          string          `json:"payout_id"`
	CampaignID        int64           `json:"campaign_id"`
	Donor             string          `json:"donor"`
	AmountNative      decimal.Decimal `json:"amount_native"`
	TotalRaisedNative decimal.Decimal `json:"total_raised_native"`
}

func newMilestoneView(st *engine.State, m *model.Milestone) MilestoneView {
	tally := engine.ComputeTally(m.VotesFor, m.VotesAgainst, st.DonorCount())
	return MilestoneView{
		Index:         m.Index,
		AmountDisplay: m.AmountDisplay,
		AmountNative:  m.AmountNative,
		Released:      m.Released,
		EvidenceURI:   m.EvidenceURI,
		ProposedAt:    m.ProposedAt,
		ProposalRound: m.ProposalRound,
		Status:        engine.MilestoneStatus(m, tally),
		Tally:         tally,
	}
}

func newCampaignView(st *engine.State, now time.Time) *CampaignView {
	c := st.Campaign
	view := &CampaignView{
		ID:                      c.ID,
		Creator:                 c.Creator,
		GoalDisplay:             c.GoalDisplay,
		GoalNative:              c.GoalNative,
		ConversionRate:          c.ConversionRate,
		ConversionAt:            c.ConversionAt,
		Deadline:                c.Deadline,
		TotalRaisedNative:       c.TotalRaisedNative,
		ReleasedNative:          c.ReleasedNative,
		EscrowNative:            st.Escrow(),
		GoalReached:             c.GoalReached,
		Finalized:               c.Finalized,
		Status:                  engine.CampaignStatus(c, now),
		DonorCount:              st.DonorCount(),
		MilestoneSumMatchesGoal: engine.MilestoneSumMatchesGoal(c, st.Milestones),
		Milestones:              make([]MilestoneView, 0, len(st.Milestones)),
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
	}
	for _, m := range st.Milestones {
		view.Milestones = append(view.Milestones, newMilestoneView(st, m))
	}
	return view
}
