// Package chat orchestrates a full conversational retrieval turn.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BrennenFa/ChatEpstein/internal/domain"
	"github.com/BrennenFa/ChatEpstein/internal/metrics"
)

// TurnResult is the outcome of one completed chat turn.
type TurnResult struct {
	Answer    string
	Citations map[string]string
	Usage     domain.TokenUsage
}

// sessionLock serializes turns within one session. Refcounted so idle
// sessions don't pin a mutex forever.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Service runs the retrieval-augmented chat pipeline.
type Service struct {
	entities   EntityExtractor
	retriever  Retriever
	reranker   Reranker
	assembler  Assembler
	generator  Generator
	citations  CitationVerifier
	sessions   SessionStore
	llmTimeout time.Duration
	logger     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// New creates a chat service. llmTimeout bounds each individual completion
// call, not the whole turn.
func New(
	entities EntityExtractor,
	retriever Retriever,
	reranker Reranker,
	assembler Assembler,
	generator Generator,
	citations CitationVerifier,
	sessions SessionStore,
	llmTimeout time.Duration,
	logger *zap.Logger,
) *Service {
	return &Service{
		entities:   entities,
		retriever:  retriever,
		reranker:   reranker,
		assembler:  assembler,
		generator:  generator,
		citations:  citations,
		sessions:   sessions,
		llmTimeout: llmTimeout,
		logger:     logger,
		locks:      make(map[string]*sessionLock),
	}
}

// HandleTurn runs one chat turn. Turns for the same session are serialized;
// turns for different sessions run concurrently.
func (s *Service) HandleTurn(ctx context.Context, sessionID, message string) (TurnResult, error) {
	unlock := s.lockSession(sessionID)
	defer unlock()

	start := time.Now()
	result, err := s.runTurn(ctx, sessionID, message)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	metrics.TurnDuration.Observe(time.Since(start).Seconds())

	return result, err
}

func (s *Service) runTurn(ctx context.Context, sessionID, message string) (TurnResult, error) {
	log := s.logger.With(zap.String("session_id", sessionID))
	history := s.sessions.History(sessionID)

	var usage domain.TokenUsage

	// A follow-up question only makes sense against history; the first turn
	// skips the reformulation call entirely.
	standalone := message
	if len(history) > 0 {
		res, err := s.complete(ctx, "reformulate", reformulatePrompt, history, message)
		if err != nil {
			return TurnResult{}, fmt.Errorf("reformulate query: %w", err)
		}
		usage.Add(res.PromptTokens, res.CompletionTokens)
		if text := strings.TrimSpace(res.Text); text != "" {
			standalone = text
		}
	}

	entities, err := s.entities.Extract(ctx, standalone)
	if err != nil {
		return TurnResult{}, err
	}

	candidates, err := s.retriever.Retrieve(ctx, standalone, entities)
	if err != nil {
		return TurnResult{}, err
	}

	ranked, err := s.reranker.Rerank(ctx, standalone, candidates)
	if err != nil {
		return TurnResult{}, err
	}

	assembled := s.assembler.Assemble(ctx, ranked)

	// The answer call sees the original message; reformulation only steers
	// retrieval.
	res, err := s.complete(ctx, "answer", qaSystemPrompt(assembled.Text), history, message)
	if err != nil {
		return TurnResult{}, fmt.Errorf("generate answer: %w", err)
	}
	usage.Add(res.PromptTokens, res.CompletionTokens)

	answer, citations := s.citations.Verify(res.Text, assembled.Citations)

	// History keeps the raw answer; the sources section is rebuilt every turn
	// and would only bloat the reformulation context.
	s.sessions.Append(sessionID, message, res.Text)

	log.Info("turn completed",
		zap.Int("entities", len(entities)),
		zap.Int("candidates", len(candidates)),
		zap.Int("ranked", len(ranked)),
		zap.Int("citations", len(citations)),
		zap.Int("total_tokens", usage.TotalTokens),
	)

	return TurnResult{Answer: answer, Citations: citations, Usage: usage}, nil
}

func (s *Service) complete(ctx context.Context, op, system string, history []domain.Message, user string) (domain.CompletionResult, error) {
	cctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()
	return s.generator.Complete(cctx, op, system, history, user)
}

// lockSession acquires the per-session turn lock and returns its release.
func (s *Service) lockSession(sessionID string) func() {
	s.mu.Lock()
	l := s.locks[sessionID]
	if l == nil {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}
}
