// Package chi exposes the chat engine over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BrennenFa/ChatEpstein/internal/domain"
	"github.com/BrennenFa/ChatEpstein/internal/logger"
	chatuc "github.com/BrennenFa/ChatEpstein/internal/usecase/chat"
	healthuc "github.com/BrennenFa/ChatEpstein/internal/usecase/health"
)

const maxMessageLen = 2000

// Error codes returned in the machine-readable "code" field.
const (
	codeBadRequest           = "bad_request"
	codeValidationFailed     = "validation_failed"
	codeRateLimited          = "rate_limited"
	codeUpstreamError        = "upstream_error"
	codeRetrievalUnavailable = "retrieval_unavailable"
	codeInternalError        = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Answer           string            `json:"answer"`
	Citations        map[string]string `json:"citations"`
	SessionID        string            `json:"session_id"`
	TokensUsed       int               `json:"tokens_used"`
	PromptTokens     int               `json:"prompt_tokens"`
	CompletionTokens int               `json:"completion_tokens"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ChatService runs one conversational turn.
type ChatService interface {
	HandleTurn(ctx context.Context, sessionID, message string) (chatuc.TurnResult, error)
}

// HealthService reports component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// Server implements the HTTP API.
type Server struct {
	chat          ChatService
	health        HealthService
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(chat ChatService, health HealthService, logger *zap.Logger) *Server {
	s := &Server{
		chat:   chat,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrRetrieval, http.StatusServiceUnavailable, codeRetrievalUnavailable),
		sentinelHandler(domain.ErrEntityExtraction, http.StatusBadGateway, codeUpstreamError),
		sentinelHandler(domain.ErrRerank, http.StatusBadGateway, codeUpstreamError),
		sentinelHandler(domain.ErrGeneration, http.StatusBadGateway, codeUpstreamError),
	}
	return s
}

// Register mounts all routes on the given router. apiMiddlewares apply to the
// /api/v1 group only, leaving health and metrics untouched.
func (s *Server) Register(r chi.Router, apiMiddlewares ...func(http.Handler) http.Handler) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api/v1", func(r chi.Router) {
		for _, mw := range apiMiddlewares {
			r.Use(mw)
		}
		r.Post("/chat", s.Chat)
	})
}

// Chat handles POST /api/v1/chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "message is required")
		return
	}
	if utf8.RuneCountInString(message) > maxMessageLen {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"message must not exceed "+strconv.Itoa(maxMessageLen)+" characters")
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result, err := s.chat.HandleTurn(r.Context(), sessionID, message)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	w.Header().Set("X-Tokens-Used", strconv.Itoa(result.Usage.TotalTokens))
	writeJSON(w, http.StatusOK, chatResponse{
		Answer:           result.Answer,
		Citations:        result.Citations,
		SessionID:        sessionID,
		TokensUsed:       result.Usage.TotalTokens,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
	})
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

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
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
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrRateLimited,
		domain.ErrRetrieval,
		domain.ErrEntityExtraction,
		domain.ErrRerank,
		domain.ErrGeneration,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContext(ctx, s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
