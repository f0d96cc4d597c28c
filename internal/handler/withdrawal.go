package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"rewardhub/internal/model"
)

type withdrawalRequest struct {
	RewardID string                   `json:"rewardId"`
	Metadata model.RedemptionMetadata `json:"metadata"`
}

type statusRequest struct {
	Status model.WithdrawalStatus `json:"status"`
}

func (s *Server) handleRequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var in withdrawalRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.deps.Withdrawals.Request(r.Context(), userID(r), in.RewardID, in.Metadata)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListMyWithdrawals(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Withdrawals.ListMine(r.Context(), userID(r), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetWithdrawal(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Withdrawals.Get(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminListWithdrawals(w http.ResponseWriter, r *http.Request) {
	status := model.WithdrawalStatus(r.URL.Query().Get("status"))
	out, err := s.deps.Withdrawals.ListAll(r.Context(), actor(r), status, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetWithdrawalStatus(w http.ResponseWriter, r *http.Request) {
	var in statusRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.deps.Withdrawals.SetStatus(r.Context(), actor(r), chi.URLParam(r, "id"), in.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
