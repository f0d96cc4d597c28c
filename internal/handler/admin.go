package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rewardhub/internal/model"
	"rewardhub/internal/service"
)

type adjustRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type adjustFunc func(ctx context.Context, actor model.Actor, userID string, amount int64, reason string) (*model.User, error)

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Catalog.ListUsers(r.Context(), actor(r), queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminGetUser(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Accounts.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminCredit(w http.ResponseWriter, r *http.Request) {
	s.adjust(w, r, s.deps.Ledger.AdminCredit)
}

func (s *Server) handleAdminDebit(w http.ResponseWriter, r *http.Request) {
	s.adjust(w, r, s.deps.Ledger.AdminDebit)
}

func (s *Server) adjust(w http.ResponseWriter, r *http.Request, fn adjustFunc) {
	var in adjustRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := fn(r.Context(), actor(r), chi.URLParam(r, "id"), in.Amount, in.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminUserTransactions(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Ledger.History(r.Context(), chi.URLParam(r, "id"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminListTasks(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Catalog.ListTasks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in service.TaskInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.deps.Catalog.CreateTask(r.Context(), actor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var in service.TaskInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.deps.Catalog.UpdateTask(r.Context(), actor(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Catalog.DeleteTask(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminListRewards(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Catalog.ListRewards(r.Context(), true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateReward(w http.ResponseWriter, r *http.Request) {
	var in service.RewardInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.deps.Catalog.CreateReward(r.Context(), actor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateReward(w http.ResponseWriter, r *http.Request) {
	var in service.RewardInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.deps.Catalog.UpdateReward(r.Context(), actor(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteReward(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Catalog.DeleteReward(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in model.Settings
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.deps.Catalog.UpdateSettings(r.Context(), actor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Catalog.Analytics(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
