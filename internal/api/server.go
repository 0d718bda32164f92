package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinpulse/coinpulse-backend/internal/aggregate"
	"github.com/coinpulse/coinpulse-backend/internal/ingest"
	"github.com/coinpulse/coinpulse-backend/internal/repository"
)

const defaultWindow = "24h"

// IngestRunner triggers one ingestion cycle outside the normal schedule.
// The scheduler satisfies it, so manual runs share its logging and policy.
type IngestRunner interface {
	RunNow(ctx context.Context) (*ingest.CycleResult, error)
}

type Server struct {
	pool       *pgxpool.Pool
	agg        *aggregate.Service
	usageRepo  *repository.UsageRepo
	ingest     IngestRunner
	httpServer *http.Server
	apiKey     string
}

func NewServer(pool *pgxpool.Pool, port int, apiKey, corsOrigin, homeSymbol string, runner IngestRunner) *Server {
	s := &Server{
		pool: pool,
		agg: aggregate.NewService(
			repository.NewPriceSnapshotRepo(pool),
			repository.NewVolumeSnapshotRepo(pool),
			homeSymbol,
		),
		usageRepo: repository.NewUsageRepo(pool),
		ingest:    runner,
		apiKey:    apiKey,
	}

	mux := http.NewServeMux()

	// Price routes
	mux.HandleFunc("GET /v1/prices", s.handlePrices)

	// Volume routes
	mux.HandleFunc("GET /v1/volumes", s.handleVolumes)
	mux.HandleFunc("GET /v1/volumes/history", s.handleVolumeHistory)
	mux.HandleFunc("GET /v1/volumes/exchanges", s.handleExchangeVolumes)

	// Ingestion trigger + usage
	mux.HandleFunc("POST /v1/ingest/run", s.handleIngestRun)
	mux.HandleFunc("GET /v1/usage", s.handleUsage)

	// Health check (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)

	handler := s.authMiddleware(corsMiddleware(mux, corsOrigin))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	fmt.Printf("[API] REST API server started on http://localhost%s\n", s.httpServer.Addr)
	fmt.Printf("[API] Health check: http://localhost%s/health\n", s.httpServer.Addr)
	if s.apiKey != "" {
		fmt.Println("[API] Authentication: enabled (Bearer token)")
	} else {
		fmt.Println("[API] Authentication: disabled (no API_KEY configured)")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- request helpers ---

func windowParam(r *http.Request) string {
	if v := r.URL.Query().Get("window"); v != "" {
		return v
	}
	return defaultWindow
}

func parseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeQueryError maps read-path errors: validation failures are the
// caller's fault, an empty store is an explicit empty result, everything
// else is a server fault.
func writeQueryError(w http.ResponseWriter, err error) {
	var ve *aggregate.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Msg)
	case errors.Is(err, aggregate.ErrNoData):
		writeJSON(w, http.StatusOK, map[string]bool{"noData": true})
	default:
		fmt.Printf("[API] Query error: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to build view")
	}
}
