package bot

import (
	"context"
	"time"

	"github.com/onnwee/stammer/state"
	"github.com/onnwee/stammer/twitchapi"
)

// TwitchAPI is the identity/live-status collaborator surface. Each call is a
// stateless request; the dispatcher caches name->id bindings around it.
type TwitchAPI interface {
	GetUser(ctx context.Context, login string) (twitchapi.User, bool, error)
	ResolveID(ctx context.Context, login string) (int64, bool, error)
	ResolveName(ctx context.Context, id int64) (string, error)
	StreamInfo(ctx context.Context, channel string) (*twitchapi.Stream, error)
	Chatters(ctx context.Context, channel string) ([]string, error)
	FollowDate(ctx context.Context, channelID, userID int64) (time.Time, bool, error)
}

var _ TwitchAPI = (*twitchapi.Client)(nil)

// ExtrasAPI bundles the single-purpose third-party lookups.
type ExtrasAPI interface {
	Weather(ctx context.Context, location string) (string, bool, error)
	Define(ctx context.Context, word string) (string, bool, error)
	Wikipedia(ctx context.Context, title string) (string, bool, error)
	Urban(ctx context.Context, term string) (string, bool, error)
	RedditTop(ctx context.Context, subreddit string) (string, bool, error)
	Translate(ctx context.Context, sourceLang, targetLang, text string) (string, error)
	UploadPaste(ctx context.Context, content string) (string, error)
	TriviaQuestion(ctx context.Context, category, difficulty, qtype string) (state.TriviaQuestion, error)
}
