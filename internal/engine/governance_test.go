package engine

import (
	"errors"
	"testing"
	"time"
)

// fundedState returns the documented scenario after donations: four
// donors (1.2, 1.2, 0.8, 0.3), total 3.5, goal 3.4130 reached.
func fundedState(t *testing.T) *State {
	t.Helper()
	st := testState(t)
	now := t0.Add(time.Hour)
	for _, d := range []struct {
		donor  string
		amount string
	}{
		{"donor-1", "1.2"},
		{"donor-2", "1.2"},
		{"donor-3", "0.8"},
		{"donor-4", "0.3"},
	} {
		if _, err := st.Donate(d.donor, dec(d.amount), now); err != nil {
			t.Fatalf("Donate(%s): %v", d.donor, err)
		}
	}
	if !st.Campaign.GoalReached {
		t.Fatal("setup: goal not reached")
	}
	return st
}

func TestProposeRelease(t *testing.T) {
	st := fundedState(t)
	now := t0.Add(2 * time.Hour)

	res, err := st.ProposeRelease(0, "creator-1", "ipfs://evidence-1", now)
	if err != nil {
		t.Fatalf("ProposeRelease: %v", err)
	}
	if res.Round != 1 {
		t.Errorf("Round = %d, want 1", res.Round)
	}
	if st.Milestones[0].ProposedAt == nil || !st.Milestones[0].ProposedAt.Equal(now) {
		t.Error("proposed_at not set to proposal time")
	}
	if st.Milestones[0].EvidenceURI != "ipfs://evidence-1" {
		t.Errorf("EvidenceURI = %q", st.Milestones[0].EvidenceURI)
	}
}

func TestProposeReleaseRejections(t *testing.T) {
	st := fundedState(t)
	now := t0.Add(2 * time.Hour)

	if _, err := st.ProposeRelease(0, "donor-1", "ipfs://x", now); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-creator propose: got %v, want ErrUnauthorized", err)
	}
	if _, err := st.ProposeRelease(5, "creator-1", "ipfs://x", now); !errors.Is(err, ErrNotFound) {
		t.Errorf("out-of-range index: got %v, want ErrNotFound", err)
	}

	st.Milestones[0].Released = true
	if _, err := st.ProposeRelease(0, "creator-1", "ipfs://x", now); !errors.Is(err, ErrInvalidState) {
		t.Errorf("propose on released: got %v, want ErrInvalidState", err)
	}
}

func TestVote(t *testing.T) {
	st := fundedState(t)
	now := t0.Add(2 * time.Hour)

	// No open voting window yet.
	if _, err := st.Vote(0, "donor-1", true, now); !errors.Is(err, ErrNoActiveVote) {
		t.Errorf("vote without proposal: got %v, want ErrNoActiveVote", err)
	}

	if _, err := st.ProposeRelease(0, "creator-1", "ipfs://evidence", now); err != nil {
		t.Fatalf("ProposeRelease: %v", err)
	}

	res, err := st.Vote(0, "donor-1", true, now)
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if res.Tally.VotesFor != 1 || res.Tally.TotalVotes != 1 {
		t.Errorf("tally after first vote: %+v", res.Tally)
	}
	if !res.BalanceSnapshot.Equal(dec("1.2")) {
		t.Errorf("BalanceSnapshot = %s, want 1.2", res.BalanceSnapshot)
	}

	// One vote per donor per round, final.
	if _, err := st.Vote(0, "donor-1", false, now); !errors.Is(err, ErrAlreadyVoted) {
		t.Errorf("second vote: got %v, want ErrAlreadyVoted", err)
	}
	// Non-donors have no say.
	if _, err := st.Vote(0, "stranger", true, now); !errors.Is(err, ErrNotADonor) {
		t.Errorf("stranger vote: got %v, want ErrNotADonor", err)
	}
}

func TestReProposalResetsVote(t *testing.T) {
	st := fundedState(t)
	now := t0.Add(2 * time.Hour)

	if _, err := st.ProposeRelease(0, "creator-1", "ipfs://round-1", now); err != nil {
		t.Fatalf("ProposeRelease: %v", err)
	}
	if _, err := st.Vote(0, "donor-1", false, now); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if _, err := st.Vote(0, "donor-2", false, now); err != nil {
		t.Fatalf("Vote: %v", err)
	}

	// The vote is failing; the creator starts over with fresh evidence.
	res, err := st.ProposeRelease(0, "creator-1", "ipfs://round-2", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("re-propose: %v", err)
	}
	if res.Round != 2 {
		t.Errorf("Round = %d, want 2", res.Round)
	}
	if st.Milestones[0].VotesFor != 0 || st.Milestones[0].VotesAgainst != 0 {
		t.Error("tally not reset on re-proposal")
	}

	// Everyone may vote again in the new round.
	if _, err := st.Vote(0, "donor-1", true, now.Add(time.Hour)); err != nil {
		t.Errorf("vote in new round: %v", err)
	}
}

func TestFinalize(t *testing.T) {
	st := fundedState(t)
	now := t0.Add(2 * time.Hour)

	if _, err := st.ProposeRelease(0, "creator-1", "ipfs://evidence", now); err != nil {
		t.Fatalf("ProposeRelease: %v", err)
	}

	// Below quorum (1 of 4 donors) the tally cannot pass the vote.
	if _, err := st.Vote(0, "donor-1", true, now); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if _, err := st.Finalize(0, now); !errors.Is(err, ErrVoteNotPassed) {
		t.Errorf("finalize below quorum: got %v, want ErrVoteNotPassed", err)
	}

	// 2 for / 1 against of 4 donors: quorum 2 met, approval 66% > 50.
	if _, err := st.Vote(0, "donor-2", true, now); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if _, err := st.Vote(0, "donor-3", false, now); err != nil {
		t.Fatalf("Vote: %v", err)
	}

	res, err := st.Finalize(0, now)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !res.AmountNative.Equal(dec("2.0478")) {
		t.Errorf("released %s, want 2.0478", res.AmountNative)
	}
	if res.Recipient != "creator-1" {
		t.Errorf("Recipient = %q, want creator-1", res.Recipient)
	}
	if res.CampaignFinalized {
		t.Error("campaign finalized with milestone 1 still pending")
	}
	if !st.Campaign.ReleasedNative.Equal(dec("2.0478")) {
		t.Errorf("ReleasedNative = %s", st.Campaign.ReleasedNative)
	}
	if !st.Escrow().Equal(dec("1.4522")) {
		t.Errorf("Escrow = %s, want 1.4522", st.Escrow())
	}

	// Released is terminal: finalize, vote and propose all fail now.
	if _, err := st.Finalize(0, now); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second finalize: got %v, want ErrInvalidState", err)
	}
	if _, err := st.Vote(0, "donor-4", true, now); !errors.Is(err, ErrNoActiveVote) {
		t.Errorf("vote after release: got %v, want ErrNoActiveVote", err)
	}
	if _, err := st.ProposeRelease(0, "creator-1", "ipfs://again", now); !errors.Is(err, ErrInvalidState) {
		t.Errorf("propose after release: got %v, want ErrInvalidState", err)
	}
}

func TestFinalizeLastMilestoneFinalizesCampaign(t *testing.T) {
	st := fundedState(t)
	now := t0.Add(2 * time.Hour)

	for index := 0; index < 2; index++ {
		if _, err := st.ProposeRelease(index, "creator-1", "ipfs://evidence", now); err != nil {
			t.Fatalf("ProposeRelease(%d): %v", index, err)
		}
		for _, donor := range []string{"donor-1", "donor-2"} {
			if _, err := st.Vote(index, donor, true, now); err != nil {
				t.Fatalf("Vote(%d, %s): %v", index, donor, err)
			}
		}
		res, err := st.Finalize(index, now)
		if err != nil {
			t.Fatalf("Finalize(%d): %v", index, err)
		}
		if want := index == 1; res.CampaignFinalized != want {
			t.Errorf("after milestone %d: CampaignFinalized = %v, want %v", index, res.CampaignFinalized, want)
		}
	}
	if !st.Campaign.Finalized {
		t.Error("campaign not finalized after all releases")
	}
	// 3.5 raised - 3.4130 released = 0.0870 still in escrow.
	if !st.Escrow().Equal(dec("0.0870")) {
		t.Errorf("Escrow = %s, want 0.0870", st.Escrow())
	}
}

func TestFinalizeInsufficientEscrow(t *testing.T) {
	// Milestone amounts are not bounded by the goal (advisory invariant),
	// so an over-allocated milestone can pass its vote while escrow cannot
	// cover it. Finalize must refuse rather than overdraw.
	c, milestones, err := NewCampaign(CreateParams{
		Creator:     "creator-1",
		GoalDisplay: dec("100"),
		Deadline:    t0.Add(72 * time.Hour),
		Milestones:  []MilestoneSpec{{AmountDisplay: dec("150")}},
		Rate:        dec("1"),
		RateAt:      t0,
	}, t0)
	if err != nil {
		t.Fatalf("NewCampaign: %v", err)
	}
	st := NewState(c, milestones, nil, nil)
	now := t0.Add(time.Hour)

	if _, err := st.Donate("donor-1", dec("100"), now); err != nil {
		t.Fatalf("Donate: %v", err)
	}
	if _, err := st.ProposeRelease(0, "creator-1", "ipfs://evidence", now); err != nil {
		t.Fatalf("ProposeRelease: %v", err)
	}
	if _, err := st.Vote(0, "donor-1", true, now); err != nil {
		t.Fatalf("Vote: %v", err)
	}

	if _, err := st.Finalize(0, now); !errors.Is(err, ErrInsufficientEscrow) {
		t.Errorf("got %v, want ErrInsufficientEscrow", err)
	}
	if st.Milestones[0].Released {
		t.Error("failed finalize marked the milestone released")
	}
	if !st.Campaign.ReleasedNative.IsZero() {
		t.Error("failed finalize debited escrow")
	}
}

func TestFinalizeNeverProposed(t *testing.T) {
	st := fundedState(t)
	if _, err := st.Finalize(1, t0.Add(2*time.Hour)); !errors.Is(err, ErrInvalidState) {
		t.Errorf("got %v, want ErrInvalidState", err)
	}
}

func TestMilestoneStatus(t *testing.T) {
	st := fundedState(t)
	now := t0.Add(2 * time.Hour)

	tally, err := st.Tally(0)
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	if got := MilestoneStatus(st.Milestones[0], tally); got != "pending" {
		t.Errorf("status = %q, want pending", got)
	}

	if _, err := st.ProposeRelease(0, "creator-1", "ipfs://evidence", now); err != nil {
		t.Fatalf("ProposeRelease: %v", err)
	}
	tally, _ = st.Tally(0)
	if got := MilestoneStatus(st.Milestones[0], tally); got != "proposed" {
		t.Errorf("status = %q, want proposed", got)
	}

	for _, donor := range []string{"donor-1", "donor-2"} {
		if _, err := st.Vote(0, donor, true, now); err != nil {
			t.Fatalf("Vote: %v", err)
		}
	}
	tally, _ = st.Tally(0)
	if got := MilestoneStatus(st.Milestones[0], tally); got != "approved" {
		t.Errorf("status = %q, want approved", got)
	}

	if _, err := st.Finalize(0, now); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	tally, _ = st.Tally(0)
	if got := MilestoneStatus(st.Milestones[0], tally); got != "released" {
		t.Errorf("status = %q, want released", got)
	}
}
