package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/chrisisia/traza-assistant/internal/core/ports"
	"github.com/chrisisia/traza-assistant/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	answerer ports.TraceAnswerer
	recorder ports.TraceRecorder
	fetcher  ports.TraceFetcher
	metrics  *metrics.HTTPServerMetrics
	apiKey   string
}

func NewRouter(
	answerer ports.TraceAnswerer,
	recorder ports.TraceRecorder,
	fetcher ports.TraceFetcher,
	m *metrics.HTTPServerMetrics,
	apiKey string,
) *Router {
	return &Router{
		answerer: answerer,
		recorder: recorder,
		fetcher:  fetcher,
		metrics:  m,
		apiKey:   apiKey,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/chat/query", rt.authorized(rt.chatQuery))
	mux.HandleFunc("/v1/traces", rt.authorized(rt.recordTrace))
	mux.HandleFunc("/v1/traces/", rt.authorized(rt.traceByTickbar))

	var handler http.Handler = mux
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) chatQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question    string `json:"question"`
		AutoConfirm bool   `json:"auto_confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	answer, err := rt.answerer.Answer(r.Context(), req.Question, req.AutoConfirm)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	rt.metrics.RecordQuestion(serviceName, string(answer.Outcome), answer.CandidateCount)
	if answer.Fetch != nil {
		rt.metrics.RecordFetch(serviceName, metrics.FetchObservation{
			Succeeded:     answer.Fetch.Succeeded,
			Failed:        answer.Fetch.Failed,
			SkippedBudget: answer.Fetch.SkippedBudget,
			Discarded:     answer.Fetch.Discarded,
			BytesUsed:     answer.Fetch.BytesUsed,
		})
	}

	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) recordTrace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Tickbar  string          `json:"tickbar"`
		Document json.RawMessage `json:"document"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	record, err := rt.recorder.Record(r.Context(), req.Tickbar, req.Document)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, record)
}

func (rt *Router) traceByTickbar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	tickbar := strings.TrimPrefix(r.URL.Path, "/v1/traces/")
	if tickbar == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tickbar is required"})
		return
	}

	doc, err := rt.fetcher.Trace(r.Context(), tickbar)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	slog.Warn("request failed",
		"request_id", requestIDFromContext(ctx),
		"status", status,
		"error", err,
	)
	writeJSON(w, status, map[string]string{"error": mapErrorToMessage(status)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
