// Package api exposes the query pipeline over HTTP and MCP. The HTTP surface
// is bearer-token protected except for the health probe.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shuvo-iitkgp/data-query-copilot/internal/audit"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/retry"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/schema"
)

const maxQueryBodySize = 1 << 20 // 1MB

// QueryRunner abstracts the retry pipeline for the API layer.
type QueryRunner interface {
	Run(ctx context.Context, question string) retry.Result
}

// SchemaProvider abstracts the schema service for the API layer.
type SchemaProvider interface {
	Schema(ctx context.Context) (*schema.Schema, error)
	Version(ctx context.Context) (string, error)
}

// AppDeps holds the dependencies of the HTTP handler.
type AppDeps struct {
	Runner QueryRunner
	Schema SchemaProvider
	Audit  *audit.Store // optional; if nil, runs are not persisted
	Token  string
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question string `json:"question"`
}

// QueryResponse is the body of a successful POST /query.
type QueryResponse struct {
	RunID  string       `json:"run_id"`
	Result retry.Result `json:"result"`
}

// NewAppHandler builds the HTTP routing tree.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/query", handleQuery(deps))
		r.Get("/schema", handleGetSchema(deps))
		r.Get("/runs", handleListRuns(deps))
		r.Get("/runs/{id}", handleGetRun(deps))
	})

	return r
}

func handleQuery(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodySize)
		defer r.Body.Close()

		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		result := deps.Runner.Run(r.Context(), req.Question)

		runID := uuid.New().String()
		if deps.Audit != nil {
			version := ""
			if deps.Schema != nil {
				version, _ = deps.Schema.Version(r.Context())
			}
			run := audit.FromResult(runID, req.Question, version, result)
			if err := deps.Audit.SaveRun(run); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to persist run: %v", err)
				return
			}
		}

		respondJSON(w, QueryResponse{RunID: runID, Result: result})
	}
}

func handleGetSchema(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Schema.Schema(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load schema: %v", err)
			return
		}
		respondJSON(w, s)
	}
}

func handleListRuns(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Audit == nil {
			httpError(w, http.StatusNotImplemented, "api_error", "run history is not enabled")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)

		runs, err := deps.Audit.ListRuns(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list runs: %v", err)
			return
		}
		if runs == nil {
			runs = []audit.Run{}
		}
		respondJSON(w, runs)
	}
}

func handleGetRun(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Audit == nil {
			httpError(w, http.StatusNotImplemented, "api_error", "run history is not enabled")
			return
		}
		id := chi.URLParam(r, "id")

		run, err := deps.Audit.GetRun(id)
		if errors.Is(err, audit.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "run not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get run: %v", err)
			return
		}
		respondJSON(w, run)
	}
}
