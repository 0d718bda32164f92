package api

import "net/http"

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	view, err := s.agg.GetPrices(r.Context(), windowParam(r))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
