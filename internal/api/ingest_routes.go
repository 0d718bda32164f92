package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/coinpulse/coinpulse-backend/internal/external"
	"github.com/coinpulse/coinpulse-backend/internal/models"
)

// handleIngestRun runs one ingestion cycle on demand, through the same
// scheduler entry point the periodic job uses. The bearer gate in front of
// it belongs to the shared auth middleware.
func (s *Server) handleIngestRun(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion not configured")
		return
	}

	result, err := s.ingest.RunNow(r.Context())
	if err != nil {
		fmt.Printf("[API] Ingestion cycle failed: %v\n", err)

		var provErr *external.ProviderError
		switch {
		case errors.Is(err, external.ErrProviderThrottled):
			writeError(w, http.StatusServiceUnavailable, "market data provider is throttling requests")
		case errors.As(err, &provErr):
			writeError(w, http.StatusBadGateway, provErr.Error())
		default:
			writeError(w, http.StatusInternalServerError, "ingestion cycle failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := s.usageRepo.Get(r.Context())
	if err != nil {
		fmt.Printf("[API] Error fetching usage: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch usage")
		return
	}
	if usage == nil {
		usage = &models.Usage{}
	}
	writeJSON(w, http.StatusOK, usage)
}
