// Package engine implements the escrow ledger and milestone-governance
// state machine. It is pure: all operations act on an in-memory campaign
// aggregate and the caller supplies the clock, so the rules are testable
// without any storage. The service layer maps each operation onto one
// database transaction holding the campaign's row lock, which gives the
// single-writer-per-campaign semantics the invariants require.
package engine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/changolabs/chango/internal/model"
)

// MilestoneSpec is the creator-supplied definition of one tranche.
type MilestoneSpec struct {
	AmountDisplay decimal.Decimal
}

// CreateParams carries everything CreateCampaign needs. Rate and RateAt
// come from the external price oracle; the engine treats them as ordinary
// arguments and never fetches a rate itself.
type CreateParams struct {
	Creator     string
	GoalDisplay decimal.Decimal
	Deadline    time.Time
	Milestones  []MilestoneSpec
	Rate        decimal.Decimal
	RateAt      time.Time
}

// NewCampaign validates the parameters and builds the campaign record and
// its fixed milestone sequence. The milestone set can never be changed
// afterwards. The campaign ID is assigned by storage, not here.
func NewCampaign(p CreateParams, now time.Time) (*model.Campaign, []*model.Milestone, error) {
	if strings.TrimSpace(p.Creator) == "" {
		return nil, nil, ErrInvalidParameters
	}
	if !p.GoalDisplay.IsPositive() || !p.Rate.IsPositive() {
		return nil, nil, ErrInvalidParameters
	}
	if !p.Deadline.After(now) {
		return nil, nil, ErrInvalidParameters
	}
	if len(p.Milestones) == 0 {
		return nil, nil, ErrInvalidParameters
	}
	for _, ms := range p.Milestones {
		if !ms.AmountDisplay.IsPositive() {
			return nil, nil, ErrInvalidParameters
		}
	}

	c := &model.Campaign{
		Creator:           strings.TrimSpace(p.Creator),
		GoalDisplay:       p.GoalDisplay,
		GoalNative:        ToNative(p.GoalDisplay, p.Rate),
		ConversionRate:    p.Rate,
		ConversionAt:      p.RateAt,
		Deadline:          p.Deadline,
		TotalRaisedNative: decimal.Zero,
		ReleasedNative:    decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	milestones := make([]*model.Milestone, 0, len(p.Milestones))
	for i, ms := range p.Milestones {
		milestones = append(milestones, &model.Milestone{
			Index:         i,
			AmountDisplay: ms.AmountDisplay,
			AmountNative:  ToNative(ms.AmountDisplay, p.Rate),
		})
	}
	return c, milestones, nil
}

// MilestoneSumMatchesGoal reports whether the milestone native amounts add
// up to the campaign goal. The engine does not enforce this; it is an
// advisory signal for the UI collaborator. Finalize defends against
// over-allocation with the escrow balance check instead.
func MilestoneSumMatchesGoal(c *model.Campaign, milestones []*model.Milestone) bool {
	sum := decimal.Zero
	for _, m := range milestones {
		sum = sum.Add(m.AmountNative)
	}
	return sum.Equal(c.GoalNative)
}

// State is the fully loaded aggregate of one campaign: the record itself,
// its milestones in index order, the remaining balance per donor, and the
// voter set of each milestone's current proposal round. Every mutating
// operation of the engine acts on a State; the caller is responsible for
// loading it under the campaign's write lock and persisting the result.
type State struct {
	Campaign   *model.Campaign
	Milestones []*model.Milestone
	// Balances maps donor identity to remaining contribution. A zero entry
	// means the donor was fully refunded.
	Balances map[string]decimal.Decimal
	// Voted maps milestone index to the set of donors who already voted in
	// that milestone's current proposal round.
	Voted map[int]map[string]bool
}

// NewState wraps a freshly created or freshly loaded campaign aggregate.
// The balance map and the per-milestone voter sets may be nil for a new
// campaign; they are initialized here so the operations never have to.
func NewState(c *model.Campaign, milestones []*model.Milestone, balances map[string]decimal.Decimal, voted map[int]map[string]bool) *State {
	if balances == nil {
		balances = make(map[string]decimal.Decimal)
	}
	if voted == nil {
		voted = make(map[int]map[string]bool)
	}
	return &State{
		Campaign:   c,
		Milestones: milestones,
		Balances:   balances,
		Voted:      voted,
	}
}

// DonorCount returns the number of donors with a positive remaining
// balance. This is the quorum basis: a refunded donor cannot vote, so
// counting them would let exited donors block governance forever.
func (s *State) DonorCount() int {
	n := 0
	for _, bal := range s.Balances {
		if bal.IsPositive() {
			n++
		}
	}
	return n
}

// Escrow returns the funds still held: everything raised minus everything
// released. Refunds debit TotalRaisedNative directly.
func (s *State) Escrow() decimal.Decimal {
	return s.Campaign.TotalRaisedNative.Sub(s.Campaign.ReleasedNative)
}

func (s *State) milestone(index int) (*model.Milestone, error) {
	if index < 0 || index >= len(s.Milestones) {
		return nil, ErrNotFound
	}
	return s.Milestones[index], nil
}

// Tally computes the vote progress of the milestone's current proposal
// round. Returns ErrNotFound for an out-of-range index.
func (s *State) Tally(index int) (Tally, error) {
	m, err := s.milestone(index)
	if err != nil {
		return Tally{}, err
	}
	return ComputeTally(m.VotesFor, m.VotesAgainst, s.DonorCount()), nil
}

// CheckConservation verifies that the sum of donor balances equals the
// campaign's raised total. It is a defensive invariant check; a violation
// indicates a bug, never a user error.
func (s *State) CheckConservation() bool {
	sum := decimal.Zero
	for _, bal := range s.Balances {
		sum = sum.Add(bal)
	}
	return sum.Equal(s.Campaign.TotalRaisedNative)
}

// MilestoneStatus derives the lifecycle label of a milestone from its
// stored fields and the current tally. Like CampaignStatus it is computed
// per read and never stored.
func MilestoneStatus(m *model.Milestone, tally Tally) string {
	switch {
	case m.Released:
		return "released"
	case m.ProposedAt == nil:
		return "pending"
	case tally.CanFinalize:
		return "approved"
	default:
		return "proposed"
	}
}

// CampaignStatus derives the human-facing lifecycle label of a campaign at
// the given instant. It is computed per read and never stored.
func CampaignStatus(c *model.Campaign, now time.Time) string {
	switch {
	case c.Finalized:
		return "finalized"
	case c.GoalReached:
		return "funded"
	case now.After(c.Deadline):
		return "failed"
	default:
		return "active"
	}
}
