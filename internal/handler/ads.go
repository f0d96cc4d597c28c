package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"rewardhub/internal/service"
)

type activeRequest struct {
	Active bool `json:"active"`
}

func (s *Server) handleListAds(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Ads.ListActive(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStartAdView(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Ads.StartView(r.Context(), userID(r), chi.URLParam(r, "id"), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleClaimAdView(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Ads.ClaimView(r.Context(), userID(r), chi.URLParam(r, "id"), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAd(w http.ResponseWriter, r *http.Request) {
	var in service.AdInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.deps.Ads.CreateAd(r.Context(), actor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleSetAdActive(w http.ResponseWriter, r *http.Request) {
	var in activeRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.deps.Ads.SetAdActive(r.Context(), actor(r), chi.URLParam(r, "id"), in.Active); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
