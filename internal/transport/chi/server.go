// Package chi exposes the query and ingest services over HTTP.
package chi

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ipwarehouse/internal/domain"
	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
	logpkg "github.com/kailas-cloud/ipwarehouse/internal/logger"
	healthuc "github.com/kailas-cloud/ipwarehouse/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ipwarehouse/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/ipwarehouse/internal/usecase/query"
)

const (
	maxQueryBody     = 1 << 20
	maxDocumentsBody = 32 << 20
)

// Error codes of ErrorResponse.
const (
	CodeBadRequest      = "bad_request"
	CodeUnauthorized    = "unauthorized"
	CodeParseError      = "parse_error"
	CodeInvalidPipeline = "invalid_pipeline"
	CodeUnknownCategory = "unknown_category"
	CodeMissingKeyField = "missing_key_field"
	CodeInternalError   = "internal_error"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Query string `json:"query"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the HTTP API.
type Server struct {
	query         *queryuc.Service
	ingest        *ingestuc.Service
	health        *healthuc.Service
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	query *queryuc.Service,
	ingest *ingestuc.Service,
	health *healthuc.Service,
) *Server {
	s := &Server{
		query:  query,
		ingest: ingest,
		health: health,
	}
	// Parse and pipeline errors carry the offending query, which the caller sent.
	s.errorHandlers = []errorHandler{
		detailHandler(domain.ErrParse, http.StatusBadRequest, CodeParseError),
		detailHandler(domain.ErrInvalidPipeline, http.StatusBadRequest, CodeInvalidPipeline),
		sentinelHandler(domain.ErrUnknownCategory, http.StatusNotFound, CodeUnknownCategory),
		sentinelHandler(domain.ErrMissingKeyField, http.StatusUnprocessableEntity, CodeMissingKeyField),
	}
	return s
}

// Query handles POST /v1/query. Rows stream back as newline-delimited JSON:
// a document per line, or a JSON string per line for prettyprinted output.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "query is required")
		return
	}

	r = r.WithContext(logpkg.With(r.Context(), logpkg.Query(req.Query)))
	rows, err := s.query.Run(r.Context(), req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	var buf []byte
	for row, err := range rows {
		if err != nil {
			// Status is already sent; the error travels as the final line.
			logpkg.FromContext(r.Context()).Error("query stream failed", zap.Error(err))
			_ = json.NewEncoder(w).Encode(ErrorResponse{Code: CodeInternalError, Message: "internal error"})
			return
		}
		buf = buf[:0]
		if row.Formatted {
			line, _ := json.Marshal(row.Text)
			buf = append(buf, line...)
		} else {
			line, _ := row.Doc.MarshalJSON()
			buf = append(buf, line...)
		}
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// LoadDocuments handles POST /v1/categories/{category}/documents.
// The body is one JSON object or an array of them.
func (s *Server) LoadDocuments(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	r = r.WithContext(logpkg.With(r.Context(), logpkg.Category(category)))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentsBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	docs, err := document.ParseMany(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	stats, err := s.ingest.Load(r.Context(), category, docs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that answers with the sentinel's own message.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// detailHandler is sentinelHandler answering with the full error message.
func detailHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
