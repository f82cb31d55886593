package state

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func question() TriviaQuestion {
	return TriviaQuestion{
		Question:         "capital of France?",
		CorrectAnswer:    "Paris",
		IncorrectAnswers: []string{"Lyon", "Nice", "Lille"},
	}
}

func TestStartTriviaRejectsSecondSession(t *testing.T) {
	s := NewStore()
	fetch := func(context.Context) (TriviaQuestion, error) { return question(), nil }
	ctx := context.Background()

	if _, err := s.StartTrivia(ctx, 1, fetch); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StartTrivia(ctx, 1, fetch); !errors.Is(err, ErrGameInProgress) {
		t.Fatalf("got %v, want ErrGameInProgress", err)
	}
	// Other channels are independent.
	if _, err := s.StartTrivia(ctx, 2, fetch); err != nil {
		t.Fatal(err)
	}
}

func TestStartTriviaFetchFailureLeavesNoSession(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	boom := errors.New("opentdb down")
	if _, err := s.StartTrivia(ctx, 1, func(context.Context) (TriviaQuestion, error) {
		return TriviaQuestion{}, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if s.TriviaActive(1) {
		t.Fatal("failed fetch left a session behind")
	}
}

func TestEvaluateTriviaCaseInsensitive(t *testing.T) {
	s := NewStore()
	_, _ = s.StartTrivia(context.Background(), 1, func(context.Context) (TriviaQuestion, error) { return question(), nil })

	if s.EvaluateTrivia(1, "london") {
		t.Fatal("wrong answer accepted")
	}
	if !s.TriviaActive(1) {
		t.Fatal("wrong answer ended the session")
	}
	if !s.EvaluateTrivia(1, "pArIs") {
		t.Fatal("case-insensitive answer rejected")
	}
	if s.TriviaActive(1) {
		t.Fatal("correct answer did not clear the session")
	}
}

func TestTriviaHintShowsAllCandidates(t *testing.T) {
	s := NewStore()
	_, _ = s.StartTrivia(context.Background(), 1, func(context.Context) (TriviaQuestion, error) { return question(), nil })
	answers, ok := s.TriviaHint(1)
	if !ok || len(answers) != 4 {
		t.Fatalf("got %v, %v", answers, ok)
	}
	seen := map[string]bool{}
	for _, a := range answers {
		seen[a] = true
	}
	for _, want := range []string{"Paris", "Lyon", "Nice", "Lille"} {
		if !seen[want] {
			t.Errorf("missing %q", want)
		}
	}
}

func TestConcurrentStarts(t *testing.T) {
	s := NewStore()
	fetch := func(context.Context) (TriviaQuestion, error) { return question(), nil }
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.StartTrivia(context.Background(), 1, fetch)
		}()
	}
	wg.Wait()
	if !s.TriviaActive(1) {
		t.Fatal("no session after concurrent starts")
	}
	if !s.EvaluateTrivia(1, "paris") {
		t.Fatal("session not answerable")
	}
	if s.TriviaActive(1) {
		t.Fatal("more than one coexisting session")
	}
}

func TestHookMatching(t *testing.T) {
	s := NewStore()
	s.InitChannel(1, []Hook{{Pattern: "hello", Kind: MatchSubstring, Response: "hi"}})
	s.AddHook(1, Hook{Pattern: "exact phrase", Kind: MatchExact, Response: "precisely"})

	if resp, ok := s.MatchHooks(1, "well HELLO there"); !ok || resp != "hi" {
		t.Fatalf("substring match: %q, %v", resp, ok)
	}
	if _, ok := s.MatchHooks(1, "Exact Phrase"); ok {
		t.Fatal("exact matching must be case-sensitive")
	}
	if resp, ok := s.MatchHooks(1, "exact phrase"); !ok || resp != "precisely" {
		t.Fatalf("exact match: %q, %v", resp, ok)
	}

	// Same pattern replaces, later registration wins on multi-match.
	s.AddHook(1, Hook{Pattern: "hello", Kind: MatchSubstring, Response: "updated"})
	if resp, _ := s.MatchHooks(1, "hello"); resp != "updated" {
		t.Fatalf("replacement: got %q", resp)
	}

	if !s.RemoveHook(1, "hello") {
		t.Fatal("remove failed")
	}
	if s.RemoveHook(1, "hello") {
		t.Fatal("double remove succeeded")
	}
}

func TestLastRegisteredHookWins(t *testing.T) {
	s := NewStore()
	s.InitChannel(1, nil)
	s.AddHook(1, Hook{Pattern: "cat", Kind: MatchSubstring, Response: "first"})
	s.AddHook(1, Hook{Pattern: "catalog", Kind: MatchSubstring, Response: "second"})
	if resp, _ := s.MatchHooks(1, "browsing the catalog"); resp != "second" {
		t.Fatalf("got %q, want second", resp)
	}
}
