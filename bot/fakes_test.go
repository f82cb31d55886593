package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/onnwee/stammer/db"
	"github.com/onnwee/stammer/state"
	"github.com/onnwee/stammer/twitchapi"
)

type aliasKey struct {
	owner int64
	alias string
}

type storedCommand struct {
	kind  string
	expr  string
	usage int64
}

type historyRow struct {
	command string
	args    string
	output  string
}

// fakeStore is an in-memory Store for dispatcher tests.
type fakeStore struct {
	mu           sync.Mutex
	aliases      map[aliasKey]string
	commands     map[string]*storedCommand
	history      []historyRow
	suggestions  []string
	explanations map[string]string
	lurkers      map[int64]time.Time
	reminders    []db.Reminder
	hooks        map[string]db.HookRow
	firstMsgs    map[int64]string
	offline      map[int64]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		aliases:      make(map[aliasKey]string),
		commands:     make(map[string]*storedCommand),
		explanations: make(map[string]string),
		lurkers:      make(map[int64]time.Time),
		hooks:        make(map[string]db.HookRow),
		firstMsgs:    make(map[int64]string),
		offline:      make(map[int64]time.Duration),
	}
}

func (f *fakeStore) LogMessage(_ context.Context, _, _ int64, _, _, _ string, _ time.Time) error {
	return nil
}

func (f *fakeStore) FirstMessage(_ context.Context, _, senderID int64) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.firstMsgs[senderID]
	return msg, ok, nil
}

func (f *fakeStore) WordRatio(_ context.Context, _, _ int64, _ string, _ rune) (float64, error) {
	return 0.25, nil
}

func (f *fakeStore) SetAlias(_ context.Context, ownerID int64, alias, expansion string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aliases[aliasKey{ownerID, alias}] = expansion
	return nil
}

func (f *fakeStore) GetAlias(_ context.Context, ownerID int64, alias string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.aliases[aliasKey{ownerID, alias}]
	return e, ok, nil
}

func (f *fakeStore) RemoveAlias(_ context.Context, ownerID int64, alias string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := aliasKey{ownerID, alias}
	if _, ok := f.aliases[k]; !ok {
		return 0, nil
	}
	delete(f.aliases, k)
	return 1, nil
}

func (f *fakeStore) UpsertChannelCommand(_ context.Context, _ int64, name, kind, expression string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands[name] = &storedCommand{kind: kind, expr: expression}
	return nil
}

func (f *fakeStore) GetChannelCommand(_ context.Context, _ int64, name string) (string, string, int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.commands[name]
	if !ok {
		return "", "", 0, false, nil
	}
	c.usage++
	return c.kind, c.expr, c.usage, true, nil
}

func (f *fakeStore) RemoveChannelCommand(_ context.Context, _ int64, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.commands[name]; !ok {
		return 0, nil
	}
	delete(f.commands, name)
	return 1, nil
}

func (f *fakeStore) InsertReminder(_ context.Context, r *db.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders = append(f.reminders, *r)
	return nil
}

func (f *fakeStore) DueReminders(_ context.Context, forUserID int64) ([]db.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due, keep []db.Reminder
	now := time.Now()
	for _, r := range f.reminders {
		if r.ForUserID == forUserID && !r.RaiseAt.After(now) {
			due = append(due, r)
		} else {
			keep = append(keep, r)
		}
	}
	f.reminders = keep
	return due, nil
}

func (f *fakeStore) ClearSentReminders(_ context.Context, fromUserID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keep []db.Reminder
	var n int64
	for _, r := range f.reminders {
		if r.FromUserID == fromUserID {
			n++
		} else {
			keep = append(keep, r)
		}
	}
	f.reminders = keep
	return n, nil
}

func (f *fakeStore) SetLurk(_ context.Context, userID int64, since time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lurkers[userID] = since
	return nil
}

func (f *fakeStore) EndLurk(_ context.Context, userID int64) (time.Duration, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	since, ok := f.lurkers[userID]
	if !ok {
		return 0, false, nil
	}
	delete(f.lurkers, userID)
	return time.Since(since), true, nil
}

func (f *fakeStore) OfflineTime(_ context.Context, _, offlinerID int64) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offline[offlinerID], nil
}

func (f *fakeStore) InsertHook(_ context.Context, _ int64, h db.HookRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[h.Pattern] = h
	return nil
}

func (f *fakeStore) DeleteHook(_ context.Context, _ int64, pattern string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.hooks[pattern]; !ok {
		return 0, nil
	}
	delete(f.hooks, pattern)
	return 1, nil
}

func (f *fakeStore) SaveSuggestion(_ context.Context, _ int64, _, text string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suggestions = append(f.suggestions, text)
	return nil
}

func (f *fakeStore) GetExplanation(_ context.Context, code string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.explanations[code]
	return msg, ok, nil
}

func (f *fakeStore) LogCommandHistory(_ context.Context, _ int64, _, command, args string, _ time.Duration, output string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, historyRow{command: command, args: args, output: output})
	return nil
}

// fakeTwitch answers identity and live-status lookups from fixed tables.
type fakeTwitch struct {
	users     map[string]int64
	live      map[string]*twitchapi.Stream
	chatters  []string
	followers map[int64]time.Time
}

func (f *fakeTwitch) GetUser(_ context.Context, login string) (twitchapi.User, bool, error) {
	id, ok := f.users[login]
	if !ok {
		return twitchapi.User{}, false, nil
	}
	return twitchapi.User{ID: id, Login: login, CreatedAt: time.Now().Add(-48 * time.Hour)}, true, nil
}

func (f *fakeTwitch) ResolveID(_ context.Context, login string) (int64, bool, error) {
	id, ok := f.users[login]
	return id, ok, nil
}

func (f *fakeTwitch) ResolveName(_ context.Context, id int64) (string, error) {
	for login, uid := range f.users {
		if uid == id {
			return login, nil
		}
	}
	return "", fmt.Errorf("user %d not found", id)
}

func (f *fakeTwitch) StreamInfo(_ context.Context, channel string) (*twitchapi.Stream, error) {
	return f.live[channel], nil
}

func (f *fakeTwitch) Chatters(_ context.Context, _ string) ([]string, error) {
	return f.chatters, nil
}

func (f *fakeTwitch) FollowDate(_ context.Context, _, userID int64) (time.Time, bool, error) {
	t, ok := f.followers[userID]
	return t, ok, nil
}

// fakeExtras returns canned third-party responses.
type fakeExtras struct {
	pastes []string
	trivia state.TriviaQuestion
}

func (f *fakeExtras) Weather(_ context.Context, location string) (string, bool, error) {
	return "Weather in " + location + ": 🌡️ 20°C", true, nil
}

func (f *fakeExtras) Define(_ context.Context, word string) (string, bool, error) {
	return word + " (noun): a thing", true, nil
}

func (f *fakeExtras) Wikipedia(_ context.Context, title string) (string, bool, error) {
	return title + " is a topic.", true, nil
}

func (f *fakeExtras) Urban(_ context.Context, term string) (string, bool, error) {
	return term + ": slang", true, nil
}

func (f *fakeExtras) RedditTop(_ context.Context, subreddit string) (string, bool, error) {
	return "top of r/" + subreddit, true, nil
}

func (f *fakeExtras) Translate(_ context.Context, _, _ string, text string) (string, error) {
	return "übersetzt: " + text, nil
}

func (f *fakeExtras) UploadPaste(_ context.Context, content string) (string, error) {
	f.pastes = append(f.pastes, content)
	return fmt.Sprintf("https://paste.example/%d", len(f.pastes)), nil
}

func (f *fakeExtras) TriviaQuestion(_ context.Context, _, _, _ string) (state.TriviaQuestion, error) {
	return f.trivia, nil
}

// memSuccessors is an in-memory markov source.
type memSuccessors map[string][]string

func (m memSuccessors) Successors(_ context.Context, _ int64, word string) ([]string, error) {
	return m[word], nil
}
