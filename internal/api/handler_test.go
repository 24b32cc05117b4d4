package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/changolabs/chango/internal/engine"
	"github.com/changolabs/chango/internal/model"
	"github.com/changolabs/chango/internal/service"
)

// stubService lets each test pin the responses of the operations it
// exercises.
type stubService struct {
	createCampaign func(engine.CreateParams) (*service.CampaignView, error)
	getCampaign    func(int64) (*service.CampaignView, error)
	donate         func(int64, string, decimal.Decimal) (*service.DonationReceipt, error)
	vote           func(int64, int, string, bool) (*service.VoteReceipt, error)
	finalize       func(int64, int, string) (*service.ReleaseReceipt, error)
	requestRefund  func(int64, string) (*service.RefundReceipt, error)
}

func (s *stubService) CreateCampaign(_ context.Context, p engine.CreateParams) (*service.CampaignView, error) {
	return s.createCampaign(p)
}

func (s *stubService) GetCampaign(_ context.Context, id int64) (*service.CampaignView, error) {
	return s.getCampaign(id)
}

func (s *stubService) GetMilestone(_ context.Context, id int64, index int) (*service.MilestoneView, error) {
	return nil, engine.ErrNotFound
}

func (s *stubService) ListDonations(_ context.Context, id int64) ([]*model.Donation, error) {
	return nil, nil
}

func (s *stubService) ListEvents(_ context.Context, id int64) ([]*model.Event, error) {
	return nil, nil
}

func (s *stubService) ListPayouts(_ context.Context, id int64) ([]*model.Payout, error) {
	return nil, nil
}

func (s *stubService) Donate(_ context.Context, id int64, donor string, amount decimal.Decimal) (*service.DonationReceipt, error) {
	return s.donate(id, donor, amount)
}

func (s *stubService) ProposeRelease(_ context.Context, id int64, index int, caller, evidenceURI string) (*service.MilestoneView, error) {
	return nil, engine.ErrUnauthorized
}

func (s *stubService) Vote(_ context.Context, id int64, index int, voter string, approve bool) (*service.VoteReceipt, error) {
	return s.vote(id, index, voter, approve)
}

func (s *stubService) Finalize(_ context.Context, id int64, index int, caller string) (*service.ReleaseReceipt, error) {
	return s.finalize(id, index, caller)
}

func (s *stubService) RequestRefund(_ context.Context, id int64, donor string) (*service.RefundReceipt, error) {
	return s.requestRefund(id, donor)
}

type stubPinger struct{}

func (stubPinger) Ping() error { return nil }

func newTestRouter(svc *stubService) http.Handler {
	return NewRouter(NewHandler(svc), stubPinger{})
}

func TestDonateEndpoint(t *testing.T) {
	svc := &stubService{
		donate: func(id int64, donor string, amount decimal.Decimal) (*service.DonationReceipt, error) {
			if id != 7 || donor != "donor-1" || !amount.Equal(decimal.RequireFromString("1.2")) {
				t.Errorf("unexpected args: %d %q %s", id, donor, amount)
			}
			return &service.DonationReceipt{
				ReceiptID:         "r-1",
				CampaignID:        id,
				Donor:             donor,
				AmountNative:      amount,
				TotalRaisedNative: amount,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/7/donations",
		strings.NewReader(`{"donor":"donor-1","amount_native":"1.2"}`))
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var receipt service.DonationReceipt
	if err := json.Unmarshal(rec.Body.Bytes(), &receipt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if receipt.ReceiptID != "r-1" {
		t.Errorf("ReceiptID = %q", receipt.ReceiptID)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid parameters", engine.ErrInvalidParameters, http.StatusBadRequest, "invalid_parameters"},
		{"not found", engine.ErrNotFound, http.StatusNotFound, "not_found"},
		{"unauthorized", engine.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
		{"already voted", engine.ErrAlreadyVoted, http.StatusConflict, "already_voted"},
		{"refund not eligible", engine.ErrRefundNotEligible, http.StatusUnprocessableEntity, "refund_not_eligible"},
		{"nothing to refund", engine.ErrNothingToRefund, http.StatusUnprocessableEntity, "nothing_to_refund"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				requestRefund: func(int64, string) (*service.RefundReceipt, error) {
					return nil, tt.err
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/1/refunds",
				strings.NewReader(`{"donor":"donor-1"}`))
			rec := httptest.NewRecorder()
			newTestRouter(svc).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestVoteEndpoint(t *testing.T) {
	svc := &stubService{
		vote: func(id int64, index int, voter string, approve bool) (*service.VoteReceipt, error) {
			if id != 3 || index != 1 || voter != "donor-2" || !approve {
				t.Errorf("unexpected args: %d %d %q %v", id, index, voter, approve)
			}
			return &service.VoteReceipt{
				CampaignID:     id,
				MilestoneIndex: index,
				Voter:          voter,
				Approve:        approve,
				Tally:          engine.ComputeTally(2, 1, 4),
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/3/milestones/1/votes",
		strings.NewReader(`{"voter":"donor-2","approve":true}`))
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var receipt service.VoteReceipt
	if err := json.Unmarshal(rec.Body.Bytes(), &receipt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !receipt.Tally.CanFinalize {
		t.Error("expected a passing tally in the response")
	}
}

func TestInvalidPathParams(t *testing.T) {
	svc := &stubService{
		getCampaign: func(int64) (*service.CampaignView, error) {
			t.Fatal("service must not be called for a bad id")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/campaigns/abc", nil)
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	svc := &stubService{
		donate: func(int64, string, decimal.Decimal) (*service.DonationReceipt, error) {
			t.Fatal("service must not be called for malformed JSON")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/1/donations",
		strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	newTestRouter(&stubService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
