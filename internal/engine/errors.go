package engine

import "errors"

var (
	ErrInvalidParameters  = errors.New("invalid parameters")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidState       = errors.New("invalid state")
	ErrNotADonor          = errors.New("not a donor")
	ErrAlreadyVoted       = errors.New("already voted")
	ErrNoActiveVote       = errors.New("no active vote")
	ErrVoteNotPassed      = errors.New("vote not passed")
	ErrInsufficientEscrow = errors.New("insufficient escrow balance")
	ErrRefundNotEligible  = errors.New("refund not eligible")
	ErrNothingToRefund    = errors.New("nothing to refund")
)
