package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"market-analytics-lab/internal/costs"
	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/engine"
	"market-analytics-lab/internal/querycache"
)

// QueryRequest is the JSON body of /query and /estimate.
type QueryRequest struct {
	Query      string   `json:"query"`
	From       string   `json:"from"` // YYYY-MM-DD
	To         string   `json:"to"`
	Entities   []string `json:"entities,omitempty"`
	MaxCostUSD float64  `json:"max_cost_usd,omitempty"`
	DryRun     bool     `json:"dry_run,omitempty"`
}

// QueryResponse is the JSON body of a successful /query.
type QueryResponse struct {
	Query    string   `json:"query"`
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	Warnings []string `json:"warnings,omitempty"`
}

// EstimateResponse is the JSON body of /estimate and dry-run /query.
type EstimateResponse struct {
	Query       string  `json:"query"`
	RowsScanned int64   `json:"rows_scanned"`
	Bytes       int64   `json:"bytes"`
	CostUSD     float64 `json:"cost_usd"`
}

// InvalidateRequest is the JSON body of /invalidate.
type InvalidateRequest struct {
	Entities []string `json:"entities"`
}

// StatusResponse is the JSON body of /status.
type StatusResponse struct {
	Status   string           `json:"status"`
	Uptime   string           `json:"uptime"`
	Queries  []string         `json:"queries"`
	CacheLen int              `json:"cache_len"`
	Cache    querycache.Stats `json:"cache"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	query, params, req, ok := s.decodeQueryRequest(w, r)
	if !ok {
		return
	}

	if req.DryRun {
		est, err := s.engine.Estimate(r.Context(), query, params)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, estimateResponse(query, est))
		return
	}

	table, err := s.engine.Compute(r.Context(), query, params)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		Query:    string(table.Query),
		Columns:  table.Columns,
		Rows:     table.Rows,
		Warnings: table.Warnings,
	})
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	query, params, _, ok := s.decodeQueryRequest(w, r)
	if !ok {
		return
	}

	est, err := s.engine.Estimate(r.Context(), query, params)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, estimateResponse(query, est))
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var req InvalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}
	if len(req.Entities) == 0 {
		writeError(w, http.StatusBadRequest, "entities required")
		return
	}
	for _, entity := range req.Entities {
		s.engine.Invalidate(entity)
	}
	s.log.Info().Strs("entities", req.Entities).Msg("cache invalidated")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	queries := make([]string, len(domain.AllQueries))
	for i, q := range domain.AllQueries {
		queries[i] = string(q)
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:   "running",
		Uptime:   time.Since(s.started).String(),
		Queries:  queries,
		CacheLen: s.cache.Len(),
		Cache:    s.cache.Stats(),
	})
}

func (s *Server) decodeQueryRequest(w http.ResponseWriter, r *http.Request) (domain.QueryName, domain.QueryParams, *QueryRequest, bool) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
		return "", domain.QueryParams{}, nil, false
	}

	from, err := time.ParseInLocation(domain.DateLayout, req.From, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date: "+req.From)
		return "", domain.QueryParams{}, nil, false
	}
	to, err := time.ParseInLocation(domain.DateLayout, req.To, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date: "+req.To)
		return "", domain.QueryParams{}, nil, false
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to precedes from")
		return "", domain.QueryParams{}, nil, false
	}

	budget := req.MaxCostUSD
	if budget == 0 {
		budget = s.defaultBudgetUSD
	}
	params := domain.QueryParams{
		From:       from,
		To:         to,
		Entities:   req.Entities,
		MaxCostUSD: budget,
	}
	return domain.QueryName(req.Query), params, &req, true
}

// writeEngineError maps the engine error taxonomy onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var budgetErr *costs.BudgetExceededError
	switch {
	case errors.Is(err, engine.ErrUnknownQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &budgetErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error().Err(err).Msg("query failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func estimateResponse(query domain.QueryName, est domain.CostEstimate) EstimateResponse {
	return EstimateResponse{
		Query:       string(query),
		RowsScanned: est.RowsScanned,
		Bytes:       est.Bytes,
		CostUSD:     est.CostUSD,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
