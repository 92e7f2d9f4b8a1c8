package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/config"
	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/lexical"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

type RefitRequester interface {
	PublishRefitRequested(ctx context.Context, reason string) error
}

type Router struct {
	cfg      config.Config
	searcher ports.EvidenceSearcher
	corpus   ports.CorpusManager
	refits   RefitRequester

	metricsHandler http.Handler
	observe        func(http.Handler) http.Handler
	mcpHandler     http.Handler
}

func NewRouter(
	cfg config.Config,
	searcher ports.EvidenceSearcher,
	corpus ports.CorpusManager,
	refits RefitRequester,
) *Router {
	return &Router{
		cfg:      cfg,
		searcher: searcher,
		corpus:   corpus,
		refits:   refits,
	}
}

// WithMetrics exposes handler on /metrics and wraps every request with middleware.
func (rt *Router) WithMetrics(handler http.Handler, middleware func(http.Handler) http.Handler) *Router {
	rt.metricsHandler = handler
	rt.observe = middleware
	return rt
}

// WithMCP mounts an MCP transport on /mcp behind the same API protections as /v1.
func (rt *Router) WithMCP(handler http.Handler) *Router {
	rt.mcpHandler = handler
	return rt
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/v1/evidence/search", rt.searchEvidence)
	api.HandleFunc("/v1/corpus/refit", rt.requestRefit)
	api.HandleFunc("/v1/corpus/snapshot", rt.getSnapshot)
	if rt.mcpHandler != nil {
		api.Handle("/mcp", rt.mcpHandler)
	}

	var protected http.Handler = api
	protected = maxBodyMiddleware(protected, rt.cfg.APIMaxBodyBytes)
	protected = backpressureMiddleware(protected, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	protected = rateLimitMiddleware(protected, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	protected = apiKeyMiddleware(protected, rt.cfg.APIKey)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.metricsHandler != nil {
		mux.Handle("/metrics", rt.metricsHandler)
	}
	mux.Handle("/", protected)

	var handler http.Handler = mux
	if rt.observe != nil {
		handler = rt.observe(handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if rt.corpus != nil {
		if stats := rt.corpus.Current(); stats != nil {
			body["snapshot_version"] = stats.Version
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (rt *Router) searchEvidence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body searchRequestBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, decodeErrorMessage(err))
		return
	}

	req := body.apply(rt.cfg.NewSearchRequest(""))
	req.RequestID = requestIDFromContext(r.Context())

	resp, err := rt.searcher.Search(r.Context(), req)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("search_failed", "request_id", req.RequestID, "error", err)
		}
		writeError(w, r, status, err.Error())
		return
	}
	slog.Info("search_completed",
		"request_id", req.RequestID,
		"returned", len(resp.Results),
		"total_before_filtering", resp.TotalBeforeFiltering,
		"degraded", resp.Diagnostics.Degraded,
		"snapshot_version", resp.Diagnostics.SnapshotVersion,
	)
	writeJSON(w, http.StatusOK, searchResponseBody{RequestID: req.RequestID, SearchResponse: resp})
}

func (rt *Router) requestRefit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if rt.refits == nil {
		writeError(w, r, http.StatusServiceUnavailable, "refit queue is not configured")
		return
	}

	var body refitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, decodeErrorMessage(err))
		return
	}
	reason := strings.TrimSpace(body.Reason)
	if reason == "" {
		reason = "api"
	}
	if err := rt.refits.PublishRefitRequested(r.Context(), reason); err != nil {
		slog.Error("refit_request_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeError(w, r, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "reason": reason})
}

func (rt *Router) getSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var stats *lexical.CorpusStatistics
	if rt.corpus != nil {
		stats = rt.corpus.Current()
	}
	if stats == nil {
		writeError(w, r, http.StatusNotFound, domain.ErrSnapshotNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponseBody{
		Version:               stats.Version,
		FittedAt:              stats.FittedAt.UTC().Format(time.RFC3339),
		DocumentCount:         stats.DocumentCount,
		AverageDocumentLength: stats.AverageDocumentLength,
		VocabularySize:        len(stats.DocumentFrequency),
	})
}

func decodeErrorMessage(err error) string {
	if errors.Is(err, io.EOF) {
		return "request body is required"
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return "request body too large"
	}
	return "invalid json: " + err.Error()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":      message,
		"request_id": requestIDFromContext(r.Context()),
	})
}
