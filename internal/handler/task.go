package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Tasks.ListForUser(r.Context(), userID(r), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Tasks.CanComplete(r.Context(), userID(r), chi.URLParam(r, "id"), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Tasks.Complete(r.Context(), userID(r), chi.URLParam(r, "id"), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListRewards(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Catalog.ListRewards(r.Context(), false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetReward(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Catalog.GetReward(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Catalog.Settings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
