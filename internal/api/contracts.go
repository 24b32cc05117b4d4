package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request bodies of the JSON API. Amounts are decimal strings or numbers;
// shopspring/decimal accepts both.

type MilestoneSpecRequest struct {
	AmountDisplay decimal.Decimal `json:"amount_display"`
}

type CreateCampaignRequest struct {
	Creator        string                 `json:"creator"`
	GoalDisplay    decimal.Decimal        `json:"goal_display"`
	Deadline       time.Time              `json:"deadline"`
	Milestones     []MilestoneSpecRequest `json:"milestones"`
	ConversionRate decimal.Decimal        `json:"conversion_rate"`
	ConversionAt   time.Time              `json:"conversion_at"`
}

type DonateRequest struct {
	Donor        string          `json:"donor"`
	AmountNative decimal.Decimal `json:"amount_native"`
}

type ProposeReleaseRequest struct {
	Caller      string `json:"caller"`
	EvidenceURI string `json:"evidence_uri"`
}

type VoteRequest struct {
	Voter   string `json:"voter"`
	Approve bool   `json:"approve"`
}

type FinalizeRequest struct {
	Caller string `json:"caller"`
}

type RefundRequest struct {
	Donor string `json:"donor"`
}

// ErrorPayload is the error half of the response envelope.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the JSON envelope of every failed request.
type ErrorResponse struct {
	Error ErrorPayload `json:"error"`
}
