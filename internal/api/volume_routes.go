package api

import (
	"net/http"

	"github.com/coinpulse/coinpulse-backend/internal/aggregate"
)

func (s *Server) handleVolumes(w http.ResponseWriter, r *http.Request) {
	slices := parseLimit(r, aggregate.MaxDistributionSlices, aggregate.MaxDistributionSlices)
	view, err := s.agg.GetVolumes(r.Context(), slices)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleVolumeHistory(w http.ResponseWriter, r *http.Request) {
	view, err := s.agg.GetVolumeHistory(r.Context(), windowParam(r))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleExchangeVolumes(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, aggregate.MaxSeriesLimit, aggregate.MaxSeriesLimit)
	view, err := s.agg.GetExchangeVolumeHistory(r.Context(), windowParam(r), limit)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
