package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/BrennenFa/ChatEpstein/internal/domain"
)

func TestAppendAndHistory(t *testing.T) {
	s := New(50, 4)

	s.Append("sess-1", "hello", "hi there")

	got := s.History("sess-1")
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Role != domain.RoleUser || got[0].Text != "hello" {
		t.Errorf("unexpected first message: %+v", got[0])
	}
	if got[1].Role != domain.RoleAssistant || got[1].Text != "hi there" {
		t.Errorf("unexpected second message: %+v", got[1])
	}
}

func TestHistory_UnknownSession(t *testing.T) {
	s := New(50, 4)
	if got := s.History("nope"); len(got) != 0 {
		t.Fatalf("expected empty history, got %v", got)
	}
}

func TestAppend_TruncatesToLastTwoExchanges(t *testing.T) {
	s := New(50, 4)

	for i := 1; i <= 3; i++ {
		s.Append("sess-1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	got := s.History("sess-1")
	if len(got) != 4 {
		t.Fatalf("expected 4 messages after truncation, got %d", len(got))
	}
	// First exchange dropped; second and third survive in order.
	want := []string{"q2", "a2", "q3", "a3"}
	for i, w := range want {
		if got[i].Text != w {
			t.Errorf("message[%d] = %q, want %q", i, got[i].Text, w)
		}
	}
}

func TestAppend_EvictsOldestAtCap(t *testing.T) {
	s := New(50, 4)

	for i := 0; i < 50; i++ {
		s.Append(fmt.Sprintf("sess-%d", i), "q", "a")
	}
	if s.Len() != 50 {
		t.Fatalf("expected 50 sessions, got %d", s.Len())
	}

	// 51st session evicts the first-created one.
	s.Append("sess-50", "q", "a")

	if s.Len() != 50 {
		t.Fatalf("expected 50 sessions after eviction, got %d", s.Len())
	}
	if got := s.History("sess-0"); len(got) != 0 {
		t.Errorf("expected oldest session evicted, history = %v", got)
	}
	if got := s.History("sess-50"); len(got) != 2 {
		t.Errorf("expected new session present, history = %v", got)
	}
	if got := s.History("sess-1"); len(got) != 2 {
		t.Errorf("expected second-oldest session to survive, history = %v", got)
	}
}

func TestAppend_ExistingSessionDoesNotEvict(t *testing.T) {
	s := New(2, 4)

	s.Append("a", "q", "a")
	s.Append("b", "q", "a")

	// Appending to a known session at cap must not evict anything.
	s.Append("a", "q2", "a2")

	if s.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", s.Len())
	}
	if got := s.History("b"); len(got) != 2 {
		t.Errorf("session b should survive, history = %v", got)
	}
}

func TestHistory_ReturnsCopy(t *testing.T) {
	s := New(50, 4)
	s.Append("sess-1", "q", "a")

	got := s.History("sess-1")
	got[0].Text = "mutated"

	if fresh := s.History("sess-1"); fresh[0].Text != "q" {
		t.Fatal("History must return a copy, not the backing slice")
	}
}

func TestConcurrentAppends(t *testing.T) {
	s := New(50, 4)

	var wg sync.WaitGroup
	for g := 0; g < 20; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("sess-%d", (g*100+i)%75)
				s.Append(id, "q", "a")
				s.History(id)
			}
		}(g)
	}
	wg.Wait()

	if s.Len() > 50 {
		t.Fatalf("store exceeded cap: %d sessions", s.Len())
	}
}
