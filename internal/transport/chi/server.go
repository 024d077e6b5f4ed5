// Package chi exposes the chat and indexing use cases over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/knowchain/internal/domain"
	logpkg "github.com/kailas-cloud/knowchain/internal/logger"
	healthuc "github.com/kailas-cloud/knowchain/internal/usecase/health"
	indexuc "github.com/kailas-cloud/knowchain/internal/usecase/index"
	"github.com/kailas-cloud/knowchain/internal/version"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest       = "bad_request"
	CodeUnauthorized     = "unauthorized"
	CodeNotFound         = "collection_not_found"
	CodeExtractionFailed = "extraction_failed"
	CodeFetchFailed      = "fetch_failed"
	CodeIndexFailed      = "index_failed"
	CodeRetrievalFailed  = "retrieval_failed"
	CodeCompletionFailed = "completion_failed"
	CodeProviderError    = "provider_error"
	CodeInternalError    = "internal_error"
)

// Indexer ingests content into a collection.
type Indexer interface {
	IndexWeb(ctx context.Context, seed, collectionName string) (indexuc.Report, error)
	IndexPDF(ctx context.Context, path, collectionName string) (indexuc.Report, error)
	IndexText(ctx context.Context, text, collectionName string) (indexuc.Report, error)
	Reset(ctx context.Context, collectionName string) error
}

// Answerer answers a question within a conversation.
type Answerer interface {
	Answer(ctx context.Context, sessionID, query, collectionName string) (string, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// ChatRequest is the body of POST /chat/{web,pdf,text}.
type ChatRequest struct {
	SessionID      string `json:"sessionId"`
	Query          string `json:"query"`
	CollectionName string `json:"collectionName,omitempty"`
}

// ChatResponse carries the model's answer.
type ChatResponse struct {
	Answer string `json:"answer"`
}

// IndexWebRequest is the body of POST /chat/index/web.
type IndexWebRequest struct {
	URL            string `json:"url"`
	CollectionName string `json:"collectionName,omitempty"`
}

// IndexTextRequest is the body of POST /chat/index/text.
type IndexTextRequest struct {
	Text           string `json:"text"`
	CollectionName string `json:"collectionName,omitempty"`
}

// IndexResponse summarizes a finished indexing call.
type IndexResponse struct {
	Message    string `json:"message"`
	Collection string `json:"collection"`
	Documents  int    `json:"documents"`
	Fragments  int    `json:"fragments"`
	Batches    int    `json:"batches"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server implements the HTTP routes on top of the use cases.
type Server struct {
	indexer       Indexer
	answerer      Answerer
	health        HealthChecker
	maxUpload     int64
	uploadDir     string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. maxUploadBytes bounds PDF uploads.
func NewServer(indexer Indexer, answerer Answerer, health HealthChecker, maxUploadBytes int64, logger *zap.Logger) *Server {
	s := &Server{
		indexer:   indexer,
		answerer:  answerer,
		health:    health,
		maxUpload: maxUploadBytes,
		uploadDir: os.TempDir(),
		logger:    logger,
	}
	// Order matters: the first match wins.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeBadRequest),
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, CodeNotFound),
		typedHandler[*domain.ExtractionError](http.StatusUnprocessableEntity, CodeExtractionFailed),
		typedHandler[*domain.FetchError](http.StatusBadGateway, CodeFetchFailed),
		typedHandler[*domain.IndexError](http.StatusBadGateway, CodeIndexFailed),
		typedHandler[*domain.RetrievalError](http.StatusBadGateway, CodeRetrievalFailed),
		typedHandler[*domain.CompletionError](http.StatusBadGateway, CodeCompletionFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrCompletionProviderError, http.StatusBadGateway, CodeProviderError),
	}
	return s
}

// Routes mounts every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", s.Banner)
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/chat", func(r chi.Router) {
		r.Post("/web", s.chatHandler(domain.CollectionWeb, false))
		r.Post("/pdf", s.chatHandler(domain.CollectionPDF, true))
		r.Post("/text", s.chatHandler(domain.CollectionText, true))

		r.Post("/index/web", s.IndexWeb)
		r.Post("/index/pdf", s.IndexPDF)
		r.Post("/index/text", s.IndexText)
	})

	r.Delete("/collections/{name}", s.ResetCollection)
}

// Banner handles GET /.
func (s *Server) Banner(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "KnowChain backend running, version "+version.String()+"\n")
}

// chatHandler handles POST /chat/{web,pdf,text}. The web route always answers
// from its default collection.
func (s *Server) chatHandler(defaultCollection string, allowOverride bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
			return
		}
		if req.SessionID == "" {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "sessionId is required")
			return
		}
		if req.Query == "" {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "query is required")
			return
		}

		collection := defaultCollection
		if allowOverride && req.CollectionName != "" {
			collection = req.CollectionName
		}

		ctx := logpkg.WithFields(r.Context(), zap.String("session_id", req.SessionID))
		answer, err := s.answerer.Answer(ctx, req.SessionID, req.Query, collection)
		if err != nil {
			s.handleDomainError(ctx, w, err)
			return
		}

		writeJSON(w, http.StatusOK, ChatResponse{Answer: answer})
	}
}

// IndexWeb handles POST /chat/index/web.
func (s *Server) IndexWeb(w http.ResponseWriter, r *http.Request) {
	var req IndexWebRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "URL is required")
		return
	}

	report, err := s.indexer.IndexWeb(r.Context(), req.URL, req.CollectionName)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse("Website indexed successfully", report))
}

// IndexText handles POST /chat/index/text.
func (s *Server) IndexText(w http.ResponseWriter, r *http.Request) {
	var req IndexTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Text content is required")
		return
	}

	report, err := s.indexer.IndexText(r.Context(), req.Text, req.CollectionName)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse("Text indexed successfully", report))
}

// ResetCollection handles DELETE /collections/{name}: the index and every
// fragment of the collection are removed.
func (s *Server) ResetCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.indexer.Reset(r.Context(), name); err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	logpkg.FromContext(r.Context()).Info("Collection reset", zap.String("collection", name))
	w.WriteHeader(http.StatusNoContent)
}

// IndexPDF handles POST /chat/index/pdf (multipart: file, collectionName).
// The upload is stored in a temporary file that is removed once indexing ends.
func (s *Server) IndexPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "PDF file is required")
		return
	}
	defer file.Close()

	path, err := s.saveUpload(file)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			s.logger.Warn("Failed to delete uploaded PDF", zap.String("path", path), zap.Error(err))
		}
	}()

	report, err := s.indexer.IndexPDF(r.Context(), path, r.FormValue("collectionName"))
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse("PDF indexed successfully", report))
}

func (s *Server) saveUpload(src io.Reader) (string, error) {
	dst, err := os.CreateTemp(s.uploadDir, "knowchain-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("store upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("close upload: %w", err)
	}
	return dst.Name(), nil
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

func indexResponse(msg string, r indexuc.Report) IndexResponse {
	return IndexResponse{
		Message:    msg,
		Collection: r.Collection,
		Documents:  r.Documents,
		Fragments:  r.Fragments,
		Batches:    r.Batches,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Error: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, clientMessage(err))
		return true
	}
}

// typedHandler matches an error type anywhere in the chain.
func typedHandler[T error](status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		var target T
		if !errors.As(err, &target) {
			return false
		}
		writeError(w, status, code, clientMessage(err))
		return true
	}
}

// clientMessage keeps only the part of err that is safe to show: input
// problems are echoed, remote failures are summarized.
func clientMessage(err error) string {
	var ie *domain.IndexError
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrCollectionNotFound):
		return err.Error()
	case errors.As(err, &ie):
		return fmt.Sprintf("indexing stopped at batch %d of %d; %d batches were stored",
			ie.Completed+1, ie.Total, ie.Completed)
	case errors.Is(err, domain.ErrEmptyDocument):
		return "no text could be extracted"
	}

	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return fmt.Sprintf("could not fetch %s after %d attempts", fe.Location, fe.Attempts)
	}
	var ee *domain.ExtractionError
	if errors.As(err, &ee) {
		return "could not extract text from " + ee.Source
	}

	msg := err.Error()
	if i := strings.Index(msg, ":"); i > 0 {
		msg = msg[:i]
	}
	return msg
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logpkg.FromContext(ctx)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("Request failed", zap.Error(err))
			return
		}
	}
	log.Error("Internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
