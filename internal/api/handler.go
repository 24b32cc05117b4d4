package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/changolabs/chango/internal/engine"
	"github.com/changolabs/chango/internal/model"
	"github.com/changolabs/chango/internal/service"
)

// Service is the operation surface the handlers need. The concrete
// implementation is service.EscrowService; tests substitute a stub.
type Service interface {
	CreateCampaign(ctx context.Context, p engine.CreateParams) (*service.CampaignView, error)
	GetCampaign(ctx context.Context, campaignID int64) (*service.CampaignView, error)
	GetMilestone(ctx context.Context, campaignID int64, index int) (*service.MilestoneView, error)
	ListDonations(ctx context.Context, campaignID int64) ([]*model.Donation, error)
	ListEvents(ctx context.Context, campaignID int64) ([]*model.Event, error)
	ListPayouts(ctx context.Context, campaignID int64) ([]*model.Payout, error)
	Donate(ctx context.Context, campaignID int64, donor string, amount decimal.Decimal) (*service.DonationReceipt, error)
	ProposeRelease(ctx context.Context, campaignID int64, index int, caller, evidenceURI string) (*service.MilestoneView, error)
	Vote(ctx context.Context, campaignID int64, index int, voter string, approve bool) (*service.VoteReceipt, error)
	Finalize(ctx context.Context, campaignID int64, index int, caller string) (*service.ReleaseReceipt, error)
	RequestRefund(ctx context.Context, campaignID int64, donor string) (*service.RefundReceipt, error)
}

// Handler exposes the escrow engine over JSON. It is deliberately thin:
// parse, call, map the error, encode. All rules live in the engine.
type Handler struct {
	service Service
}

// NewHandler creates a new Handler.
func NewHandler(svc Service) *Handler {
	return &Handler{service: svc}
}

func campaignIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func milestoneIndexParam(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "index"))
}

func (h *Handler) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	specs := make([]engine.MilestoneSpec, 0, len(req.Milestones))
	for _, m := range req.Milestones {
		specs = append(specs, engine.MilestoneSpec{AmountDisplay: m.AmountDisplay})
	}

	view, err := h.service.CreateCampaign(r.Context(), engine.CreateParams{
		Creator:     req.Creator,
		GoalDisplay: req.GoalDisplay,
		Deadline:    req.Deadline,
		Milestones:  specs,
		Rate:        req.ConversionRate,
		RateAt:      req.ConversionAt,
	})
	if err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) getCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", "invalid campaign id")
		return
	}
	view, err := h.service.GetCampaign(r.Context(), id)
	if err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) listDonations(w http.ResponseWriter, r *http.Request) {
	id, err := campaignIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", "invalid campaign id")
		return
	}
	donations, err := h.service.ListDonations(r.Context(), id)
	if err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error())
		return
	}
	if donations == nil {
		donations = []*model.Donation{}
	}
	writeJSON(w, http.StatusOK, donations)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	id, err := campaignIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", "invalid campaign id")
		return
	}
	events, err := h.service.ListEvents(r.Context(), id)
	if err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error())
		return
	}
	if events == nil {
		events = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) listPayouts(w http.ResponseWriter, r *http.Request) {
	id, err := campaignIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", "invalid campaign id")
		return
	}
	payouts, err := h.service.ListPayouts(r.Context(), id)
	if err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error())
		return
	}
	if payouts == nil {
		payouts = []*model.Payout{}
	}
	writeJSON(w, http.StatusOK, payouts)
}

func (h *Handler) donate(w http.ResponseWriter, r *http.Request) {
	id, err := campaignIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", "invalid campaign id")
		return
	}
	var req DonateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	receipt, err := h.service.Donate(r.Context(), id, req.Donor, req.AmountNative)
	if err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) getMilestone(w http.ResponseWriter, r *http.Request) {
	id, err := campaignIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", "invalid campaign id")
		return
	}
	index, err := milestoneIndexParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", "invalid milestone index")
		return
	}
	view, err := h.service.GetMilestone(r.Context(), id, index)
	if err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) proposeRelease(w http.ResponseWriter, r *http.Request) {
	id, err := campaignIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", "invalid campaign id")
		return
	}
	index, err := milestoneIndexParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", "invalid milestone index")
		return
	}
	var req ProposeReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	view, err := h.service.ProposeRelease(r.Context(), id, index, req.Caller, req.EvidenceURI)
	if err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) vote(w http.ResponseWriter, r *http.Request) {
	id, err := campaignIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", "invalid campaign id")
		return
	}
	index, err := milestoneIndexParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", "invalid milestone index")
		return
	}
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	receipt, err := h.service.Vote(r.Context(), id, index, req.Voter, req.Approve)
	if err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	id, err := campaignIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", "invalid campaign id")
		return
	}
	index, err := milestoneIndexParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", "invalid milestone index")
		return
	}
	var req FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	receipt, err := h.service.Finalize(r.Context(), id, index, req.Caller)
	if err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) requestRefund(w http.ResponseWriter, r *http.Request) {
	id, err := campaignIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", "invalid campaign id")
		return
	}
	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	receipt, err := h.service.RequestRefund(r.Context(), id, req.Donor)
	if err != nil {
		status, code := mapEngineError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
