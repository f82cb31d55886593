package bot

import (
	"context"
	"strings"
	"time"

	"github.com/onnwee/stammer/db"
)

// CommandKind is the closed set of custom command renderings.
type CommandKind int

const (
	// KindTemplate substitutes positional {1},{2},... placeholders from args.
	KindTemplate CommandKind = iota
	// KindPaste returns the stored expression verbatim.
	KindPaste
	// KindIncrementing substitutes {} with the post-increment usage counter.
	KindIncrementing
)

func (k CommandKind) String() string {
	switch k {
	case KindPaste:
		return "paste"
	case KindIncrementing:
		return "incr"
	default:
		return "templ"
	}
}

// ParseCommandKind parses the stored/user-facing kind name.
func ParseCommandKind(s string) (CommandKind, bool) {
	switch strings.ToLower(s) {
	case "templ":
		return KindTemplate, true
	case "paste":
		return KindPaste, true
	case "incr":
		return KindIncrementing, true
	}
	return 0, false
}

// Store is the persistence surface the dispatcher and event loop depend on.
// *db.Store implements it; tests substitute an in-memory fake.
type Store interface {
	LogMessage(ctx context.Context, channelID, senderID int64, senderName, badges, message string, ts time.Time) error
	FirstMessage(ctx context.Context, channelID, senderID int64) (string, bool, error)
	WordRatio(ctx context.Context, channelID, userID int64, word string, prefix rune) (float64, error)

	SetAlias(ctx context.Context, ownerID int64, alias, expansion string) error
	GetAlias(ctx context.Context, ownerID int64, alias string) (string, bool, error)
	RemoveAlias(ctx context.Context, ownerID int64, alias string) (int64, error)

	UpsertChannelCommand(ctx context.Context, channelID int64, name, kind, expression string) error
	GetChannelCommand(ctx context.Context, channelID int64, name string) (kind, expression string, usage int64, found bool, err error)
	RemoveChannelCommand(ctx context.Context, channelID int64, name string) (int64, error)

	InsertReminder(ctx context.Context, r *db.Reminder) error
	DueReminders(ctx context.Context, forUserID int64) ([]db.Reminder, error)
	ClearSentReminders(ctx context.Context, fromUserID int64) (int64, error)

	SetLurk(ctx context.Context, userID int64, since time.Time) error
	EndLurk(ctx context.Context, userID int64) (time.Duration, bool, error)

	OfflineTime(ctx context.Context, channelID, offlinerID int64) (time.Duration, error)

	InsertHook(ctx context.Context, channelID int64, h db.HookRow) error
	DeleteHook(ctx context.Context, channelID int64, pattern string) (int64, error)

	SaveSuggestion(ctx context.Context, senderID int64, senderName, text string, ts time.Time) error
	GetExplanation(ctx context.Context, code string) (string, bool, error)
	LogCommandHistory(ctx context.Context, senderID int64, senderName, command, args string, elapsed time.Duration, output string) error
}

var _ Store = (*db.Store)(nil)
