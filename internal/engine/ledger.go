package engine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DonationResult reports the outcome of a successful donation.
type DonationResult struct {
	Donor         string
	AmountNative  decimal.Decimal
	AmountDisplay decimal.Decimal
	NewBalance    decimal.Decimal
	NewTotal      decimal.Decimal
	FirstDonation bool
	GoalReached   bool
	GoalCrossed   bool
}

// Donate applies a contribution to the campaign ledger. The donor balance,
// the raised total and the goal latch move together or not at all: all
// preconditions are checked before the first mutation.
//
// Donations are rejected once the deadline is reached even if the goal is
// still open, so latecomers cannot grief the refund window. Replaying the
// same donate call adds again; deduplication belongs to the caller.
func (s *State) Donate(donor string, amount decimal.Decimal, now time.Time) (*DonationResult, error) {
	donor = strings.TrimSpace(donor)
	if donor == "" || !amount.IsPositive() {
		return nil, ErrInvalidParameters
	}
	if s.Campaign.Finalized {
		return nil, ErrInvalidState
	}
	if !now.Before(s.Campaign.Deadline) {
		return nil, ErrInvalidState
	}

	prev, existed := s.Balances[donor]
	newBalance := prev.Add(amount)
	s.Balances[donor] = newBalance
	s.Campaign.TotalRaisedNative = s.Campaign.TotalRaisedNative.Add(amount)
	s.Campaign.UpdatedAt = now

	// One-way latch: once the goal is reached it stays reached, even though
	// refunds can no longer reduce the total anyway.
	crossed := false
	if !s.Campaign.GoalReached && s.Campaign.TotalRaisedNative.GreaterThanOrEqual(s.Campaign.GoalNative) {
		s.Campaign.GoalReached = true
		crossed = true
	}

	return &DonationResult{
		Donor:         donor,
		AmountNative:  amount,
		AmountDisplay: ToDisplay(amount, s.Campaign.ConversionRate),
		NewBalance:    newBalance,
		NewTotal:      s.Campaign.TotalRaisedNative,
		FirstDonation: !existed,
		GoalReached:   s.Campaign.GoalReached,
		GoalCrossed:   crossed,
	}, nil
}

// RefundResult reports the outcome of a successful refund.
type RefundResult struct {
	Donor    string
	Amount   decimal.Decimal
	NewTotal decimal.Decimal
}

// Refund returns a donor's entire remaining contribution. It is the
// system's safety valve: available to every donor once the campaign has
// failed (deadline passed, goal never reached), with no vote and no
// cooperation from anyone else. The balance is zeroed and the total
// debited before the caller records the outbound payout, so a repeated
// call fails with ErrNothingToRefund instead of paying twice.
func (s *State) Refund(donor string, now time.Time) (*RefundResult, error) {
	donor = strings.TrimSpace(donor)
	if donor == "" {
		return nil, ErrInvalidParameters
	}
	if s.Campaign.GoalReached || !now.After(s.Campaign.Deadline) {
		return nil, ErrRefundNotEligible
	}
	balance, ok := s.Balances[donor]
	if !ok || !balance.IsPositive() {
		return nil, ErrNothingToRefund
	}

	s.Balances[donor] = decimal.Zero
	s.Campaign.TotalRaisedNative = s.Campaign.TotalRaisedNative.Sub(balance)
	s.Campaign.UpdatedAt = now

	return &RefundResult{
		Donor:    donor,
		Amount:   balance,
		NewTotal: s.Campaign.TotalRaisedNative,
	}, nil
}
