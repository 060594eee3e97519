package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/BrennenFa/ChatEpstein/internal/domain"
	"github.com/BrennenFa/ChatEpstein/internal/usecase/assembly"
)

type completeCall struct {
	op      string
	system  string
	history []domain.Message
	user    string
}

type mockGenerator struct {
	mu      sync.Mutex
	calls   []completeCall
	results map[string]domain.CompletionResult // keyed by op
	errs    map[string]error
	inUse   atomic.Int32
	maxUse  atomic.Int32
	delay   time.Duration
}

func (m *mockGenerator) Complete(_ context.Context, op, system string, history []domain.Message, user string) (domain.CompletionResult, error) {
	cur := m.inUse.Add(1)
	if cur > m.maxUse.Load() {
		m.maxUse.Store(cur)
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.inUse.Add(-1)

	m.mu.Lock()
	m.calls = append(m.calls, completeCall{op: op, system: system, history: history, user: user})
	m.mu.Unlock()

	if err := m.errs[op]; err != nil {
		return domain.CompletionResult{}, err
	}
	return m.results[op], nil
}

func (m *mockGenerator) callOps() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]string, len(m.calls))
	for i, c := range m.calls {
		ops[i] = c.op
	}
	return ops
}

type mockExtractor struct {
	entities []string
	err      error
	lastQ    string
}

func (m *mockExtractor) Extract(_ context.Context, q string) ([]string, error) {
	m.lastQ = q
	return m.entities, m.err
}

type mockRetriever struct {
	passages []domain.Passage
	err      error
	lastQ    string
	lastEnts []string
}

func (m *mockRetriever) Retrieve(_ context.Context, q string, ents []string) ([]domain.Passage, error) {
	m.lastQ = q
	m.lastEnts = ents
	return m.passages, m.err
}

type mockReranker struct {
	ranked []domain.RankedPassage
	err    error
}

func (m *mockReranker) Rerank(_ context.Context, _ string, _ []domain.Passage) ([]domain.RankedPassage, error) {
	return m.ranked, m.err
}

type mockAssembler struct {
	out assembly.AssembledContext
}

func (m *mockAssembler) Assemble(_ context.Context, _ []domain.RankedPassage) assembly.AssembledContext {
	return m.out
}

type mockVerifier struct{}

func (mockVerifier) Verify(answer string, index map[string]domain.Citation) (string, map[string]string) {
	out := make(map[string]string, len(index))
	for k, c := range index {
		out[k] = c.Link
	}
	return answer + "\n\n[sources]", out
}

type mockSessions struct {
	mu      sync.Mutex
	history map[string][]domain.Message
	appends []string // "sessionID|user|assistant"
}

func newMockSessions() *mockSessions {
	return &mockSessions{history: make(map[string][]domain.Message)}
}

func (m *mockSessions) History(id string) []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history[id]
}

func (m *mockSessions) Append(id, user, assistant string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends = append(m.appends, fmt.Sprintf("%s|%s|%s", id, user, assistant))
}

type fixture struct {
	gen      *mockGenerator
	ext      *mockExtractor
	ret      *mockRetriever
	rer      *mockReranker
	asm      *mockAssembler
	sessions *mockSessions
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		gen: &mockGenerator{results: map[string]domain.CompletionResult{
			"reformulate": {Text: "standalone question", PromptTokens: 10, CompletionTokens: 5},
			"answer":      {Text: "the answer (DOC-001, Page 1)", PromptTokens: 100, CompletionTokens: 50},
		}, errs: map[string]error{}},
		ext: &mockExtractor{entities: []string{"alice"}},
		ret: &mockRetriever{passages: []domain.Passage{{ID: "p-1", Content: "text"}}},
		rer: &mockReranker{ranked: []domain.RankedPassage{{Passage: domain.Passage{ID: "p-1"}, Score: 0.9}}},
		asm: &mockAssembler{out: assembly.AssembledContext{
			Text: "=== DOCUMENT 1 ===",
			Citations: map[string]domain.Citation{
				"DOC-001, Page 1": {DocumentID: "DOC-001", Page: "1", Link: "https://example.com/d"},
			},
		}},
		sessions: newMockSessions(),
	}
	f.svc = New(f.ext, f.ret, f.rer, f.asm, f.gen, mockVerifier{}, f.sessions, time.Minute, zap.NewNop())
	return f
}

func TestHandleTurn_FirstTurnSkipsReformulation(t *testing.T) {
	f := newFixture()

	res, err := f.svc.HandleTurn(context.Background(), "sess-1", "who is alice?")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	ops := f.gen.callOps()
	if len(ops) != 1 || ops[0] != "answer" {
		t.Fatalf("expected single answer call, got %v", ops)
	}
	// Retrieval uses the raw message when no reformulation ran.
	if f.ret.lastQ != "who is alice?" {
		t.Errorf("retrieval query = %q", f.ret.lastQ)
	}
	if len(f.ret.lastEnts) != 1 || f.ret.lastEnts[0] != "alice" {
		t.Errorf("retrieval entities = %v", f.ret.lastEnts)
	}

	if res.Answer != "the answer (DOC-001, Page 1)\n\n[sources]" {
		t.Errorf("answer = %q", res.Answer)
	}
	if res.Citations["DOC-001, Page 1"] != "https://example.com/d" {
		t.Errorf("citations = %v", res.Citations)
	}
	if res.Usage.TotalTokens != 150 {
		t.Errorf("total tokens = %d, want 150", res.Usage.TotalTokens)
	}

	// History records the raw answer, not the sources-augmented one.
	want := "sess-1|who is alice?|the answer (DOC-001, Page 1)"
	if len(f.sessions.appends) != 1 || f.sessions.appends[0] != want {
		t.Errorf("appends = %v, want [%s]", f.sessions.appends, want)
	}
}

func TestHandleTurn_FollowUpReformulates(t *testing.T) {
	f := newFixture()
	f.sessions.history["sess-1"] = []domain.Message{
		{Role: domain.RoleUser, Text: "who is alice?"},
		{Role: domain.RoleAssistant, Text: "alice is a person"},
	}

	res, err := f.svc.HandleTurn(context.Background(), "sess-1", "where did she go?")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	ops := f.gen.callOps()
	if len(ops) != 2 || ops[0] != "reformulate" || ops[1] != "answer" {
		t.Fatalf("ops = %v", ops)
	}
	// Retrieval and extraction see the standalone rewrite.
	if f.ret.lastQ != "standalone question" {
		t.Errorf("retrieval query = %q", f.ret.lastQ)
	}
	if f.ext.lastQ != "standalone question" {
		t.Errorf("extraction query = %q", f.ext.lastQ)
	}
	// The answer call still sees the original message and history.
	last := f.gen.calls[1]
	if last.user != "where did she go?" || len(last.history) != 2 {
		t.Errorf("answer call user=%q history=%d", last.user, len(last.history))
	}
	// Both calls' usage is summed.
	if res.Usage.TotalTokens != 165 {
		t.Errorf("total tokens = %d, want 165", res.Usage.TotalTokens)
	}
}

func TestHandleTurn_PipelineErrorSkipsAppend(t *testing.T) {
	f := newFixture()
	f.ret.err = fmt.Errorf("index gone: %w", domain.ErrRetrieval)

	_, err := f.svc.HandleTurn(context.Background(), "sess-1", "who is alice?")
	if !errors.Is(err, domain.ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval, got %v", err)
	}
	if len(f.sessions.appends) != 0 {
		t.Errorf("failed turn must not touch history: %v", f.sessions.appends)
	}
}

func TestHandleTurn_GenerationError(t *testing.T) {
	f := newFixture()
	f.gen.errs["answer"] = fmt.Errorf("model down: %w", domain.ErrGeneration)

	_, err := f.svc.HandleTurn(context.Background(), "sess-1", "q")
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if len(f.sessions.appends) != 0 {
		t.Errorf("failed turn must not touch history: %v", f.sessions.appends)
	}
}

func TestHandleTurn_SameSessionSerialized(t *testing.T) {
	f := newFixture()
	f.gen.delay = 20 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.HandleTurn(context.Background(), "sess-1", "q"); err != nil {
				t.Errorf("HandleTurn: %v", err)
			}
		}()
	}
	wg.Wait()

	if max := f.gen.maxUse.Load(); max != 1 {
		t.Errorf("same-session turns overlapped: max concurrency %d", max)
	}
}

func TestHandleTurn_DistinctSessionsRunConcurrently(t *testing.T) {
	f := newFixture()
	f.gen.delay = 30 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.svc.HandleTurn(context.Background(), fmt.Sprintf("sess-%d", i), "q"); err != nil {
				t.Errorf("HandleTurn: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if max := f.gen.maxUse.Load(); max < 2 {
		t.Errorf("expected overlapping turns across sessions, max concurrency %d", max)
	}
}
