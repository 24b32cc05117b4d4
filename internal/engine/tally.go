package engine

// Governance constants. These are fixed by design, not configurable per
// campaign: every campaign plays by the same rules.
const (
	// QuorumPct is the minimum percentage of a campaign's donors that must
	// vote before a milestone vote is decisive.
	QuorumPct = 30

	// ApprovalThresholdPct is the percentage of cast votes that the "for"
	// side must strictly exceed. Strict comparison keeps a 50/50 tie from
	// passing.
	ApprovalThresholdPct = 50
)

// Tally is the computed vote progress of a milestone's current proposal
// round. It is derived on demand and never stored.
type Tally struct {
	VotesFor      int  `json:"votes_for"`
	VotesAgainst  int  `json:"votes_against"`
	TotalVotes    int  `json:"total_votes"`
	DonorCount    int  `json:"donor_count"`
	QuorumNeeded  int  `json:"quorum_needed"`
	QuorumReached bool `json:"quorum_reached"`
	ApprovalPct   int  `json:"approval_pct"`
	CanFinalize   bool `json:"can_finalize"`
}

// ComputeTally evaluates the quorum and approval rules for a proposal
// round. donorCount is the number of donors with a positive remaining
// balance; refunded donors cannot vote, so they do not count toward quorum.
func ComputeTally(votesFor, votesAgainst, donorCount int) Tally {
	t := Tally{
		VotesFor:     votesFor,
		VotesAgainst: votesAgainst,
		TotalVotes:   votesFor + votesAgainst,
		DonorCount:   donorCount,
	}
	// ceil(donorCount * QuorumPct / 100)
	t.QuorumNeeded = (donorCount*QuorumPct + 99) / 100
	t.QuorumReached = t.TotalVotes >= t.QuorumNeeded
	if t.TotalVotes > 0 {
		t.ApprovalPct = t.VotesFor * 100 / t.TotalVotes
	}
	t.CanFinalize = t.QuorumReached && t.ApprovalPct > ApprovalThresholdPct
	return t
}
