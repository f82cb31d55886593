// Package state holds the per-channel runtime state: registered message hooks
// and the (at most one) in-progress trivia session. One entry per configured
// channel, created at startup and mutated for the process lifetime.
package state

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
)

// MatchKind selects how a hook pattern is compared against chat messages.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchSubstring
)

func (k MatchKind) String() string {
	if k == MatchSubstring {
		return "substring"
	}
	return "exact"
}

// ParseMatchKind parses the stored/user-facing kind name.
func ParseMatchKind(s string) (MatchKind, bool) {
	switch strings.ToLower(s) {
	case "exact":
		return MatchExact, true
	case "substring":
		return MatchSubstring, true
	}
	return 0, false
}

// Hook is a trigger evaluated against every non-command chat message.
type Hook struct {
	Pattern  string
	Kind     MatchKind
	Response string
}

// TriviaQuestion is one fetched question with its answer candidates.
type TriviaQuestion struct {
	Question         string
	CorrectAnswer    string
	IncorrectAnswers []string
}

// ErrGameInProgress is returned by StartTrivia when a session already exists.
var ErrGameInProgress = errors.New("trivia game already in progress")

type channelState struct {
	hooks  []Hook
	trivia *TriviaQuestion
}

// Store is the concurrency-safe map of per-channel state. The lock is held
// only across in-memory operations; StartTrivia releases it around the
// network fetch, which is the one documented check-then-commit race
// (last-write-wins, never two coexisting sessions).
type Store struct {
	mu       sync.Mutex
	channels map[int64]*channelState
}

func NewStore() *Store {
	return &Store{channels: make(map[int64]*channelState)}
}

// InitChannel registers a channel with its persisted hooks.
func (s *Store) InitChannel(channelID int64, hooks []Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[channelID] = &channelState{hooks: hooks}
}

func (s *Store) get(channelID int64) *channelState {
	cs, ok := s.channels[channelID]
	if !ok {
		cs = &channelState{}
		s.channels[channelID] = cs
	}
	return cs
}

// Hooks returns a copy of the channel's hooks.
func (s *Store) Hooks(channelID int64) []Hook {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.channels[channelID]
	if !ok {
		return nil
	}
	out := make([]Hook, len(cs.hooks))
	copy(out, cs.hooks)
	return out
}

// AddHook registers a hook, replacing one with the same pattern.
func (s *Store) AddHook(channelID int64, h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.get(channelID)
	for i := range cs.hooks {
		if cs.hooks[i].Pattern == h.Pattern {
			cs.hooks[i] = h
			return
		}
	}
	cs.hooks = append(cs.hooks, h)
}

// RemoveHook deletes a hook by pattern.
func (s *Store) RemoveHook(channelID int64, pattern string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.channels[channelID]
	if !ok {
		return false
	}
	for i := range cs.hooks {
		if cs.hooks[i].Pattern == pattern {
			cs.hooks = append(cs.hooks[:i], cs.hooks[i+1:]...)
			return true
		}
	}
	return false
}

// MatchHooks evaluates a message against the channel's hooks. Substring
// matching is case-insensitive, exact matching is not. When several hooks
// match, the last registered one wins.
func (s *Store) MatchHooks(channelID int64, message string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.channels[channelID]
	if !ok {
		return "", false
	}
	var response string
	matched := false
	lowered := strings.ToLower(message)
	for _, h := range cs.hooks {
		switch h.Kind {
		case MatchSubstring:
			if strings.Contains(lowered, strings.ToLower(h.Pattern)) {
				response, matched = h.Response, true
			}
		case MatchExact:
			if message == h.Pattern {
				response, matched = h.Response, true
			}
		}
	}
	return response, matched
}

// StartTrivia begins a session for a channel: rejected under the lock if one
// is already in progress, then the question is fetched with the lock
// released, then committed under a fresh lock. Two concurrent starts can both
// pass the initial check; the later commit wins, which is accepted.
func (s *Store) StartTrivia(ctx context.Context, channelID int64, fetch func(ctx context.Context) (TriviaQuestion, error)) (TriviaQuestion, error) {
	s.mu.Lock()
	if s.get(channelID).trivia != nil {
		s.mu.Unlock()
		return TriviaQuestion{}, ErrGameInProgress
	}
	s.mu.Unlock()

	q, err := fetch(ctx)
	if err != nil {
		return TriviaQuestion{}, err
	}

	s.mu.Lock()
	s.get(channelID).trivia = &q
	s.mu.Unlock()
	return q, nil
}

// EvaluateTrivia checks a chat message against the current session's answer,
// case-insensitively. On a match the session is cleared.
func (s *Store) EvaluateTrivia(channelID int64, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.channels[channelID]
	if !ok || cs.trivia == nil {
		return false
	}
	if strings.EqualFold(cs.trivia.CorrectAnswer, message) {
		cs.trivia = nil
		return true
	}
	return false
}

// TriviaHint returns the four candidate answers in random order, without
// revealing which is correct.
func (s *Store) TriviaHint(channelID int64) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.channels[channelID]
	if !ok || cs.trivia == nil {
		return nil, false
	}
	answers := make([]string, 0, len(cs.trivia.IncorrectAnswers)+1)
	answers = append(answers, cs.trivia.CorrectAnswer)
	answers = append(answers, cs.trivia.IncorrectAnswers...)
	rand.Shuffle(len(answers), func(i, j int) {
		answers[i], answers[j] = answers[j], answers[i]
	})
	return answers, true
}

// GiveUpTrivia ends the session and reveals the correct answer.
func (s *Store) GiveUpTrivia(channelID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.channels[channelID]
	if !ok || cs.trivia == nil {
		return "", false
	}
	answer := cs.trivia.CorrectAnswer
	cs.trivia = nil
	return answer, true
}

// TriviaActive reports whether the channel has an in-progress session.
func (s *Store) TriviaActive(channelID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.channels[channelID]
	return ok && cs.trivia != nil
}
