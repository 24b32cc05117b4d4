package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/changolabs/chango/internal/engine"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorPayload{Code: code, Message: message}})
}

// mapEngineError translates an engine sentinel error into an HTTP status
// and a stable machine-readable code. Precondition failures that are
// neither bad input nor missing resources map to 422: the request was
// well-formed but the ledger's current state forbids it.
func mapEngineError(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrInvalidParameters):
		return http.StatusBadRequest, "invalid_parameters"
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, engine.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, engine.ErrAlreadyVoted):
		return http.StatusConflict, "already_voted"
	case errors.Is(err, engine.ErrInvalidState):
		return http.StatusUnprocessableEntity, "invalid_state"
	case errors.Is(err, engine.ErrNotADonor):
		return http.StatusUnprocessableEntity, "not_a_donor"
	case errors.Is(err, engine.ErrNoActiveVote):
		return http.StatusUnprocessableEntity, "no_active_vote"
	case errors.Is(err, engine.ErrVoteNotPassed):
		return http.StatusUnprocessableEntity, "vote_not_passed"
	case errors.Is(err, engine.ErrInsufficientEscrow):
		return http.StatusUnprocessableEntity, "insufficient_escrow"
	case errors.Is(err, engine.ErrRefundNotEligible):
		return http.StatusUnprocessableEntity, "refund_not_eligible"
	case errors.Is(err, engine.ErrNothingToRefund):
		return http.StatusUnprocessableEntity, "nothing_to_refund"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
