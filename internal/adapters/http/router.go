package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aniketgiri96/Ragnetic/internal/core/domain"
	"github.com/aniketgiri96/Ragnetic/internal/core/ports"
	"github.com/aniketgiri96/Ragnetic/internal/observability/metrics"
)

const serviceName = "api"

// maxUploadBytes bounds multipart parsing memory, not the document size.
const maxUploadBytes = 32 << 20

type Router struct {
	ingestor ports.DocumentIngestor
	reader   ports.DocumentReader
	answerer ports.AnswerService
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	reader ports.DocumentReader,
	answerer ports.AnswerService,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	return &Router{
		ingestor: ingestor,
		reader:   reader,
		answerer: answerer,
		metrics:  httpMetrics,
		logger:   logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/rag/query", rt.query)
	mux.HandleFunc("/v1/rag/query/stream", rt.queryStream)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(rt.logger, handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	kbID, err := strconv.Atoi(strings.TrimSpace(r.FormValue("kb_id")))
	if err != nil || kbID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "form field 'kb_id' must be a positive integer"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		kbID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.writeError(w, r, "upload document", err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type queryRequest struct {
	KnowledgeBaseID int    `json:"kb_id"`
	Question        string `json:"question"`
	History         string `json:"history,omitempty"`
	TopK            int    `json:"top_k,omitempty"`
}

func (req *queryRequest) validate() (domain.AnswerRequest, string) {
	if req.KnowledgeBaseID <= 0 {
		return domain.AnswerRequest{}, "kb_id must be a positive integer"
	}
	if strings.TrimSpace(req.Question) == "" {
		return domain.AnswerRequest{}, "question is required"
	}
	return domain.AnswerRequest{
		KnowledgeBaseID: req.KnowledgeBaseID,
		Question:        req.Question,
		History:         req.History,
		TopK:            req.TopK,
	}, ""
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	answerReq, problem := req.validate()
	if problem != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": problem})
		return
	}

	start := time.Now()
	answer, err := rt.answerer.Answer(r.Context(), answerReq)
	if err != nil {
		rt.writeError(w, r, "answer query", err)
		return
	}

	rt.recordAnswer("/v1/rag/query", answer, time.Since(start))
	writeJSON(w, http.StatusOK, answer)
}

// queryStream emits server-sent events: one "chunk" event per generated
// fragment, then a final "answer" event carrying the full response envelope.
func (rt *Router) queryStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	answerReq, problem := req.validate()
	if problem != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": problem})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	start := time.Now()
	answer, err := rt.answerer.AnswerStream(r.Context(), answerReq, func(chunk string) error {
		return writeSSE(w, flusher, "chunk", chunk)
	})
	if err != nil {
		// Headers are already sent; report the failure in-band.
		_ = writeSSE(w, flusher, "error", err.Error())
		rt.logger.Error("stream query failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		return
	}

	envelope, err := json.Marshal(answer)
	if err != nil {
		_ = writeSSE(w, flusher, "error", "encode answer")
		return
	}
	_ = writeSSE(w, flusher, "answer", string(envelope))
	rt.recordAnswer("/v1/rag/query/stream", answer, time.Since(start))
}

func (rt *Router) recordAnswer(endpoint string, answer *domain.Answer, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordRAGObservation(serviceName, endpoint, len(answer.Sources), duration)
	rt.metrics.RecordFaithfulness(serviceName, endpoint, answer.Faithfulness.Score, answer.Faithfulness.LowFaithfulness)
	rt.metrics.RecordTokenUsage(serviceName, endpoint, answer.TokenUsed, len(answer.Text)/4)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error(operation+" failed", "request_id", requestIDFromContext(r.Context()), "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	// SSE multi-line payloads need one data: field per line.
	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w, "\n"); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
