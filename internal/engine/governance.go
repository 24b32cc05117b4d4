package engine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProposeResult reports the freshly opened proposal round.
type ProposeResult struct {
	Index       int
	Round       int
	EvidenceURI string
	ProposedAt  time.Time
}

// ProposeRelease opens (or reopens) the voting window for a milestone.
// Only the campaign creator may propose. Proposing a released milestone is
// impossible; proposing anything else — including a milestone whose vote
// is still running — bumps the proposal round, which discards the previous
// tally and voter set so the new vote starts clean.
func (s *State) ProposeRelease(index int, caller, evidenceURI string, now time.Time) (*ProposeResult, error) {
	m, err := s.milestone(index)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(caller) != s.Campaign.Creator {
		return nil, ErrUnauthorized
	}
	if m.Released {
		return nil, ErrInvalidState
	}

	proposedAt := now
	m.ProposedAt = &proposedAt
	m.EvidenceURI = evidenceURI
	m.ProposalRound++
	m.VotesFor = 0
	m.VotesAgainst = 0
	s.Voted[index] = make(map[string]bool)
	s.Campaign.UpdatedAt = now

	return &ProposeResult{
		Index:       index,
		Round:       m.ProposalRound,
		EvidenceURI: evidenceURI,
		ProposedAt:  proposedAt,
	}, nil
}

// VoteResult reports a recorded vote together with the updated tally.
type VoteResult struct {
	Index           int
	Round           int
	Voter           string
	Approve         bool
	BalanceSnapshot decimal.Decimal
	Tally           Tally
}

// Vote records one donor's vote on the milestone's current proposal round.
// Each donor votes exactly once per round and the vote is final; a
// re-proposal resets eligibility. Voting power is one vote per donor
// regardless of contribution size.
func (s *State) Vote(index int, voter string, approve bool, now time.Time) (*VoteResult, error) {
	m, err := s.milestone(index)
	if err != nil {
		return nil, err
	}
	if m.Released || m.ProposedAt == nil {
		return nil, ErrNoActiveVote
	}
	voter = strings.TrimSpace(voter)
	balance, ok := s.Balances[voter]
	if !ok || !balance.IsPositive() {
		return nil, ErrNotADonor
	}
	if s.Voted[index][voter] {
		return nil, ErrAlreadyVoted
	}

	if approve {
		m.VotesFor++
	} else {
		m.VotesAgainst++
	}
	if s.Voted[index] == nil {
		s.Voted[index] = make(map[string]bool)
	}
	s.Voted[index][voter] = true
	s.Campaign.UpdatedAt = now

	return &VoteResult{
		Index:           index,
		Round:           m.ProposalRound,
		Voter:           voter,
		Approve:         approve,
		BalanceSnapshot: balance,
		Tally:           ComputeTally(m.VotesFor, m.VotesAgainst, s.DonorCount()),
	}, nil
}

// ReleaseResult reports a released milestone tranche.
type ReleaseResult struct {
	Index             int
	Recipient         string
	AmountNative      decimal.Decimal
	CampaignFinalized bool
	Tally             Tally
}

// Finalize releases the milestone tranche to the creator once its vote has
// passed. Anyone may call it: finalization is the mechanical consequence
// of an already-passed vote, not a privileged action.
//
// The ledger is mutated fully before the caller records the outbound
// payout, so the state already says "spent" when the transfer side effect
// is issued; a second Finalize on the same milestone fails with
// ErrInvalidState rather than double-paying.
func (s *State) Finalize(index int, now time.Time) (*ReleaseResult, error) {
	m, err := s.milestone(index)
	if err != nil {
		return nil, err
	}
	if m.Released || m.ProposedAt == nil {
		return nil, ErrInvalidState
	}
	tally := ComputeTally(m.VotesFor, m.VotesAgainst, s.DonorCount())
	if !tally.CanFinalize {
		return nil, ErrVoteNotPassed
	}
	// Unreachable when milestone amounts are bounded by the goal, but the
	// milestone-sum invariant is advisory, so defend rather than assume.
	if s.Escrow().LessThan(m.AmountNative) {
		return nil, ErrInsufficientEscrow
	}

	m.Released = true
	s.Campaign.ReleasedNative = s.Campaign.ReleasedNative.Add(m.AmountNative)
	s.Campaign.UpdatedAt = now

	allReleased := true
	for _, ms := range s.Milestones {
		if !ms.Released {
			allReleased = false
			break
		}
	}
	if allReleased {
		s.Campaign.Finalized = true
	}

	return &ReleaseResult{
		Index:             index,
		Recipient:         s.Campaign.Creator,
		AmountNative:      m.AmountNative,
		CampaignFinalized: s.Campaign.Finalized,
		Tally:             tally,
	}, nil
}
