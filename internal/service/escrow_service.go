package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/changolabs/chango/internal/engine"
	"github.com/changolabs/chango/internal/metrics"
	"github.com/changolabs/chango/internal/model"
	"github.com/changolabs/chango/internal/repository"
)

// EscrowService maps every engine operation onto one PostgreSQL
// transaction. Each mutating operation begins a transaction, locks the
// campaign row (SELECT ... FOR UPDATE), loads the full aggregate, applies
// the engine rules in memory, persists the dirty rows plus an audit event,
// and commits. Holding the row lock serializes all writers of a campaign;
// campaigns are independent, so writers of different campaigns proceed in
// parallel. A failed precondition rolls the transaction back, leaving
// state untouched.
type EscrowService struct {
	postgres      *sqlx.DB
	campaignRepo  *repository.CampaignRepository
	milestoneRepo *repository.MilestoneRepository
	donationRepo  *repository.DonationRepository
	voteRepo      *repository.VoteRepository
	payoutRepo    *repository.PayoutRepository
	eventRepo     *repository.EventRepository

	// now is swappable so tests can pin the clock.
	now func() time.Time
}

// NewEscrowService creates a new EscrowService instance.
func NewEscrowService(postgres *sqlx.DB) *EscrowService {
	return &EscrowService{
		postgres:      postgres,
		campaignRepo:  repository.NewCampaignRepository(),
		milestoneRepo: repository.NewMilestoneRepository(),
		donationRepo:  repository.NewDonationRepository(),
		voteRepo:      repository.NewVoteRepository(),
		payoutRepo:    repository.NewPayoutRepository(),
		eventRepo:     repository.NewEventRepository(),
		now:           time.Now,
	}
}

// CreateCampaign validates the parameters, converts the goal and every
// milestone amount at the supplied oracle rate, and stores the campaign
// with its fixed milestone sequence. The rate is locked here and never
// recomputed.
func (s *EscrowService) CreateCampaign(ctx context.Context, p engine.CreateParams) (*CampaignView, error) {
	start := time.Now()
	status := "failed"
	defer func() {
		metrics.RecordOperationDuration("create_campaign", status, time.Since(start).Seconds())
	}()

	now := s.now()
	campaign, milestones, err := engine.NewCampaign(p, now)
	if err != nil {
		return nil, err
	}

	tx, err := s.postgres.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.campaignRepo.Create(tx, campaign); err != nil {
		return nil, err
	}
	for _, m := range milestones {
		m.CampaignID = campaign.ID
	}
	if err := s.milestoneRepo.InsertAll(tx, campaign.ID, milestones); err != nil {
		return nil, err
	}

	if err := s.emit(tx, campaign.ID, model.EventCampaignCreated, map[string]any{
		"creator":         campaign.Creator,
		"goal_display":    campaign.GoalDisplay,
		"goal_native":     campaign.GoalNative,
		"conversion_rate": campaign.ConversionRate,
		"deadline":        campaign.Deadline,
		"milestones":      len(milestones),
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	status = "success"

	slog.Info("campaign created",
		"campaign_id", campaign.ID,
		"creator", campaign.Creator,
		"goal_native", campaign.GoalNative)

	return newCampaignView(engine.NewState(campaign, milestones, nil, nil), now), nil
}

// GetCampaign returns the full read model of a campaign. No lock is
// taken; reads see the last committed state.
func (s *EscrowService) GetCampaign(ctx context.Context, campaignID int64) (*CampaignView, error) {
	st, err := s.load(s.postgres, campaignID)
	if err != nil {
		return nil, err
	}
	return newCampaignView(st, s.now()), nil
}

// GetMilestone returns one milestone's read model including its tally.
func (s *EscrowService) GetMilestone(ctx context.Context, campaignID int64, index int) (*MilestoneView, error) {
	st, err := s.load(s.postgres, campaignID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(st.Milestones) {
		return nil, engine.ErrNotFound
	}
	view := newMilestoneView(st, st.Milestones[index])
	return &view, nil
}

// ListDonations returns a campaign's append-only donation history.
func (s *EscrowService) ListDonations(ctx context.Context, campaignID int64) ([]*model.Donation, error) {
	if _, err := s.campaignRepo.GetByID(s.postgres, campaignID); err != nil {
		return nil, err
	}
	return s.donationRepo.ListByCampaign(s.postgres, campaignID)
}

// ListEvents returns a campaign's event feed, the canonical history
// consumed by external indexers.
func (s *EscrowService) ListEvents(ctx context.Context, campaignID int64) ([]*model.Event, error) {
	if _, err := s.campaignRepo.GetByID(s.postgres, campaignID); err != nil {
		return nil, err
	}
	return s.eventRepo.ListByCampaign(s.postgres, campaignID)
}

// ListPayouts returns a campaign's outbound payout records (releases and
// refunds), the surface the settlement collaborator reads.
func (s *EscrowService) ListPayouts(ctx context.Context, campaignID int64) ([]*model.Payout, error) {
	if _, err := s.campaignRepo.GetByID(s.postgres, campaignID); err != nil {
		return nil, err
	}
	return s.payoutRepo.ListByCampaign(s.postgres, campaignID)
}

// Donate applies a contribution to a campaign's ledger and appends the
// immutable audit record whose id doubles as the donation receipt.
func (s *EscrowService) Donate(ctx context.Context, campaignID int64, donor string, amount decimal.Decimal) (*DonationReceipt, error) {
	start := time.Now()
	status := "failed"
	defer func() {
		metrics.RecordOperationDuration("donate", status, time.Since(start).Seconds())
	}()

	now := s.now()

	tx, err := s.postgres.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	st, err := s.loadLocked(tx, campaignID)
	if err != nil {
		return nil, err
	}

	res, err := st.Donate(donor, amount, now)
	if err != nil {
		return nil, err
	}
	if !st.CheckConservation() {
		return nil, fmt.Errorf("ledger conservation violated on campaign %d", campaignID)
	}

	if err := s.donationRepo.UpsertBalance(tx, campaignID, res.Donor, res.NewBalance); err != nil {
		return nil, err
	}
	if err := s.campaignRepo.UpdateLedger(tx, st.Campaign, now); err != nil {
		return nil, err
	}

	donation := &model.Donation{
		ID:            uuid.NewString(),
		CampaignID:    campaignID,
		Donor:         res.Donor,
		AmountNative:  res.AmountNative,
		AmountDisplay: res.AmountDisplay,
		CreatedAt:     now,
	}
	if err := s.donationRepo.Append(tx, donation); err != nil {
		return nil, err
	}

	if err := s.emit(tx, campaignID, model.EventDonationReceived, map[string]any{
		"receipt_id":    donation.ID,
		"donor":         res.Donor,
		"amount_native": res.AmountNative,
		"new_total":     res.NewTotal,
		"goal_reached":  res.GoalReached,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	status = "success"

	if res.GoalCrossed {
		slog.Info("campaign goal reached",
			"campaign_id", campaignID,
			"total_raised_native", res.NewTotal)
	}

	return &DonationReceipt{
		ReceiptID:         donation.ID,
		CampaignID:        campaignID,
		Donor:             res.Donor,
		AmountNative:      res.AmountNative,
		AmountDisplay:     res.AmountDisplay,
		DonorBalance:      res.NewBalance,
		TotalRaisedNative: res.NewTotal,
		GoalReached:       res.GoalReached,
		CreatedAt:         now,
	}, nil
}

// ProposeRelease opens (or reopens) the voting window of a milestone.
// Creator only.
func (s *EscrowService) ProposeRelease(ctx context.Context, campaignID int64, index int, caller, evidenceURI string) (*MilestoneView, error) {
	start := time.Now()
	status := "failed"
	defer func() {
		metrics.RecordOperationDuration("propose_release", status, time.Since(start).Seconds())
	}()

	now := s.now()

	tx, err := s.postgres.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	st, err := s.loadLocked(tx, campaignID)
	if err != nil {
		return nil, err
	}

	res, err := st.ProposeRelease(index, caller, evidenceURI, now)
	if err != nil {
		return nil, err
	}

	milestone := st.Milestones[index]
	if err := s.milestoneRepo.UpdateProposal(tx, milestone); err != nil {
		return nil, err
	}
	if err := s.campaignRepo.UpdateLedger(tx, st.Campaign, now); err != nil {
		return nil, err
	}

	if err := s.emit(tx, campaignID, model.EventMilestoneProposed, map[string]any{
		"milestone_index": res.Index,
		"round":           res.Round,
		"evidence_uri":    res.EvidenceURI,
		"amount_native":   milestone.AmountNative,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	status = "success"

	view := newMilestoneView(st, milestone)
	return &view, nil
}

// Vote records one donor's vote on a milestone's current proposal round.
func (s *EscrowService) Vote(ctx context.Context, campaignID int64, index int, voter string, approve bool) (*VoteReceipt, error) {
	start := time.Now()
	status := "failed"
	defer func() {
		metrics.RecordOperationDuration("vote", status, time.Since(start).Seconds())
	}()

	now := s.now()

	tx, err := s.postgres.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	st, err := s.loadLocked(tx, campaignID)
	if err != nil {
		return nil, err
	}

	res, err := st.Vote(index, voter, approve, now)
	if err != nil {
		return nil, err
	}

	if err := s.milestoneRepo.UpdateTally(tx, st.Milestones[index]); err != nil {
		return nil, err
	}
	if err := s.voteRepo.Insert(tx, &model.Vote{
		CampaignID:      campaignID,
		MilestoneIndex:  res.Index,
		Round:           res.Round,
		Voter:           res.Voter,
		Approve:         res.Approve,
		BalanceSnapshot: res.BalanceSnapshot,
		CreatedAt:       now,
	}); err != nil {
		return nil, err
	}

	if err := s.emit(tx, campaignID, model.EventVoteCast, map[string]any{
		"milestone_index": res.Index,
		"round":           res.Round,
		"voter":           res.Voter,
		"approve":         res.Approve,
		"tally":           res.Tally,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	status = "success"

	return &VoteReceipt{
		CampaignID:     campaignID,
		MilestoneIndex: res.Index,
		Round:          res.Round,
		Voter:          res.Voter,
		Approve:        res.Approve,
		Tally:          res.Tally,
	}, nil
}

// Finalize releases a milestone tranche to the creator once its vote has
// passed. Callable by anyone. The ledger rows are updated before the
// payout record is appended, so the committed state already says "spent"
// when the settlement collaborator picks the payout up.
func (s *EscrowService) Finalize(ctx context.Context, campaignID int64, index int, caller string) (*ReleaseReceipt, error) {
	start := time.Now()
	status := "failed"
	defer func() {
		metrics.RecordOperationDuration("finalize", status, time.Since(start).Seconds())
	}()

	now := s.now()

	tx, err := s.postgres.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	st, err := s.loadLocked(tx, campaignID)
	if err != nil {
		return nil, err
	}

	res, err := st.Finalize(index, now)
	if err != nil {
		return nil, err
	}

	if err := s.milestoneRepo.MarkReleased(tx, campaignID, index); err != nil {
		return nil, err
	}
	if err := s.campaignRepo.UpdateLedger(tx, st.Campaign, now); err != nil {
		return nil, err
	}

	payout := &model.Payout{
		ID:           uuid.NewString(),
		CampaignID:   campaignID,
		Kind:         model.PayoutKindRelease,
		Recipient:    res.Recipient,
		AmountNative: res.AmountNative,
		CreatedAt:    now,
	}
	if err := s.payoutRepo.Append(tx, payout); err != nil {
		return nil, err
	}

	if err := s.emit(tx, campaignID, model.EventMilestoneFinalized, map[string]any{
		"milestone_index":    res.Index,
		"recipient":          res.Recipient,
		"amount_native":      res.AmountNative,
		"payout_id":          payout.ID,
		"campaign_finalized": res.CampaignFinalized,
		"caller":             caller,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	status = "success"

	slog.Info("milestone released",
		"campaign_id", campaignID,
		"milestone_index", res.Index,
		"amount_native", res.AmountNative,
		"campaign_finalized", res.CampaignFinalized)

	return &ReleaseReceipt{
		PayoutID:          payout.ID,
		CampaignID:        campaignID,
		MilestoneIndex:    res.Index,
		Recipient:         res.Recipient,
		AmountNative:      res.AmountNative,
		CampaignFinalized: res.CampaignFinalized,
		Tally:             res.Tally,
	}, nil
}

// RequestRefund returns a donor's remaining contribution after a campaign
// has failed. Self-service; no vote involved.
func (s *EscrowService) RequestRefund(ctx context.Context, campaignID int64, donor string) (*RefundReceipt, error) {
	start := time.Now()
	status := "failed"
	defer func() {
		metrics.RecordOperationDuration("request_refund", status, time.Since(start).Seconds())
	}()

	now := s.now()

	tx, err := s.postgres.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	st, err := s.loadLocked(tx, campaignID)
	if err != nil {
		return nil, err
	}

	res, err := st.Refund(donor, now)
	if err != nil {
		return nil, err
	}
	if !st.CheckConservation() {
		return nil, fmt.Errorf("ledger conservation violated on campaign %d", campaignID)
	}

	if err := s.donationRepo.UpsertBalance(tx, campaignID, res.Donor, decimal.Zero); err != nil {
		return nil, err
	}
	if err := s.campaignRepo.UpdateLedger(tx, st.Campaign, now); err != nil {
		return nil, err
	}

	payout := &model.Payout{
		ID:           uuid.NewString(),
		CampaignID:   campaignID,
		Kind:         model.PayoutKindRefund,
		Recipient:    res.Donor,
		AmountNative: res.Amount,
		CreatedAt:    now,
	}
	if err := s.payoutRepo.Append(tx, payout); err != nil {
		return nil, err
	}

	if err := s.emit(tx, campaignID, model.EventRefundIssued, map[string]any{
		"donor":         res.Donor,
		"amount_native": res.Amount,
		"new_total":     res.NewTotal,
		"payout_id":     payout.ID,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	status = "success"

	slog.Info("refund issued",
		"campaign_id", campaignID,
		"donor", res.Donor,
		"amount_native", res.Amount)

	return &RefundReceipt{
		PayoutID:          payout.ID,
		CampaignID:        campaignID,
		Donor:             res.Donor,
		AmountNative:      res.Amount,
		TotalRaisedNative: res.NewTotal,
	}, nil
}

// loadLocked loads the full campaign aggregate under the campaign's row
// lock. Everything a mutating operation can touch is read here, inside
// the transaction, so the engine works on a consistent snapshot that no
// other writer can move.
func (s *EscrowService) loadLocked(tx *sqlx.Tx, campaignID int64) (*engine.State, error) {
	campaign, err := s.campaignRepo.LockByID(tx, campaignID)
	if err != nil {
		return nil, err
	}
	return s.loadRest(tx, campaign)
}

// load loads the aggregate without locking, for read-only paths.
func (s *EscrowService) load(db repository.DBExecutor, campaignID int64) (*engine.State, error) {
	campaign, err := s.campaignRepo.GetByID(db, campaignID)
	if err != nil {
		return nil, err
	}
	return s.loadRest(db, campaign)
}

func (s *EscrowService) loadRest(db repository.DBExecutor, campaign *model.Campaign) (*engine.State, error) {
	milestones, err := s.milestoneRepo.ListByCampaign(db, campaign.ID)
	if err != nil {
		return nil, err
	}
	balances, err := s.donationRepo.ListBalances(db, campaign.ID)
	if err != nil {
		return nil, err
	}

	voted := make(map[int]map[string]bool)
	for _, m := range milestones {
		// Only an open voting window needs its voter set; released and
		// never-proposed milestones reject votes before the set is read.
		if m.ProposedAt == nil || m.Released {
			continue
		}
		voters, err := s.voteRepo.ListVoters(db, campaign.ID, m.Index, m.ProposalRound)
		if err != nil {
			return nil, err
		}
		set := make(map[string]bool, len(voters))
		for _, v := range voters {
			set[v] = true
		}
		voted[m.Index] = set
	}

	return engine.NewState(campaign, milestones, balances, voted), nil
}

// emit appends one audit event in the enclosing transaction, so the feed
// never shows a mutation that did not commit.
func (s *EscrowService) emit(tx *sqlx.Tx, campaignID int64, kind string, payload map[string]any, at time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	if err := s.eventRepo.Append(tx, &model.Event{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		Kind:       kind,
		Payload:    raw,
		CreatedAt:  at,
	}); err != nil {
		return err
	}
	metrics.RecordEventEmitted(kind)
	return nil
}
