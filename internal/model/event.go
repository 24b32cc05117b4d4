package model

import (
	"encoding/json"
	"time"
)

const (
	EventCampaignCreated    = "campaign.created"
	EventDonationReceived   = "donation.received"
	EventMilestoneProposed  = "milestone.proposed"
	EventVoteCast           = "vote.cast"
	EventMilestoneFinalized = "milestone.finalized"
	EventRefundIssued       = "refund.issued"
)

// Event is the canonical history record emitted for every successful
// mutating operation, intended for external indexing and audit.
type Event struct {
	ID         string          `db:"id" json:"id"`
	CampaignID int64           `db:"campaign_id" json:"campaign_id"`
	Kind       string          `db:"kind" json:"kind"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
