package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/stammer/db"
	"github.com/onnwee/stammer/markov"
	"github.com/onnwee/stammer/state"
	"github.com/onnwee/stammer/telemetry"
)

func builtinTable() map[string]handlerFunc {
	return map[string]handlerFunc{
		"ping":     handlePing,
		"help":     handleHelp,
		"commands": handleCommands,

		"echo": handleEcho,
		"say":  handleEcho,

		"pipe":        runPipe,
		"demultiplex": runDemultiplex,
		"demux":       runDemultiplex,
		"bench":       runBench,

		"decide": handleDecide,
		"rose":   handleRose,
		"markov": handleMarkov,

		"setcmd": handleSetCommand,
		"newcmd": handleSetCommand,
		"delcmd": handleDelCommand,

		"setalias": handleSetAlias,
		"rmalias":  handleRemoveAlias,

		"suggest": handleSuggest,
		"explain": handleExplain,

		"first":     handleFirst,
		"wordratio": handleWordRatio,

		"remindme":       handleRemindMe,
		"remind":         handleRemind,
		"clearreminders": handleClearReminders,
		"rmrm":           handleClearReminders,

		"lurk":        handleLurk,
		"offlinetime": handleOfflineTime,

		"uptime":    handleUptime,
		"accage":    handleAccountAge,
		"followage": handleFollowAge,

		"weather":   handleWeather,
		"wiki":      handleWiki,
		"define":    handleDefine,
		"urban":     handleUrban,
		"translate": handleTranslate,
		"reddit":    handleReddit,

		"trivia": handleTrivia,
		"hint":   handleTriviaHint,
		"giveup": handleTriviaGiveUp,

		"sethook":   handleSetHook,
		"rmhook":    handleRemoveHook,
		"listhooks": handleListHooks,
	}
}

func handlePing(_ context.Context, d *Dispatcher, _ *Invocation) (string, error) {
	return fmt.Sprintf("pong! 🏓 up for %s", fmtDuration(time.Since(d.StartupTime))), nil
}

func handleHelp(_ context.Context, d *Dispatcher, _ *Invocation) (string, error) {
	p := string(d.Prefix)
	return fmt.Sprintf("🛠️ prefix a command name, e.g. %sping. see %scommands for the builtin list, %sexplain <code> for error codes", p, p, p), nil
}

func handleCommands(_ context.Context, d *Dispatcher, _ *Invocation) (string, error) {
	names := make([]string, 0, len(d.builtins))
	for name := range d.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return "🛠️ " + strings.Join(names, ", "), nil
}

func handleEcho(_ context.Context, _ *Dispatcher, inv *Invocation) (string, error) {
	if err := requireElevated(inv.Sender); err != nil {
		return "", err
	}
	if len(inv.Args) == 0 {
		return "❌ nothing to say", nil
	}
	return strings.Join(inv.Args, " "), nil
}

func handleDecide(_ context.Context, _ *Dispatcher, inv *Invocation) (string, error) {
	options := strings.Split(strings.Join(inv.Args, " "), ",")
	picks := options[:0]
	for _, o := range options {
		if o = strings.TrimSpace(o); o != "" {
			picks = append(picks, o)
		}
	}
	if len(picks) == 0 {
		return "❌ give me options separated by commas", nil
	}
	return "🎱 I choose... " + picks[rand.IntN(len(picks))], nil
}

func handleRose(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	chatters, err := d.Twitch.Chatters(ctx, inv.Channel.Name)
	if err != nil {
		return "", fmt.Errorf("list chatters: %w", err)
	}
	candidates := chatters[:0]
	for _, c := range chatters {
		if d.Disregarded != nil && d.Disregarded(c) {
			continue
		}
		if strings.EqualFold(c, inv.Sender.Name) {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return "❌ no users in the chatroom", nil
	}
	return fmt.Sprintf("@%s PeepoGlad 🌹", candidates[rand.IntN(len(candidates))]), nil
}

func handleMarkov(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if len(inv.Args) == 0 {
		return "❌ give me a word to start from", nil
	}
	count := 0
	if len(inv.Args) > 1 {
		n, err := strconv.Atoi(inv.Args[1])
		if err != nil {
			return "❌ round count must be a number", nil
		}
		count = n
	}
	words, err := markov.Sample(ctx, d.Markov, inv.Channel.ID, strings.ToLower(inv.Args[0]), count)
	if errors.Is(err, markov.ErrNotIndexed) {
		return "❌ word not indexed yet | E1", nil
	}
	if err != nil {
		return "", fmt.Errorf("markov sample: %w", err)
	}
	return "🔮 " + strings.Join(words, " "), nil
}

// Custom commands -------------------------------------------------------------

func handleSetCommand(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if err := requireElevated(inv.Sender); err != nil {
		return "", err
	}
	if len(inv.Args) < 3 {
		return "❌ usage: setcmd <name> <templ|paste|incr> <expression>", nil
	}
	name := strings.ToLower(inv.Args[0])
	kind, ok := ParseCommandKind(inv.Args[1])
	if !ok {
		return "❌ kind must be templ, paste or incr", nil
	}
	if _, reserved := d.builtins[name]; reserved {
		return "❌ that name is a builtin", nil
	}
	expr := strings.Join(inv.Args[2:], " ")
	if err := d.Store.UpsertChannelCommand(ctx, inv.Channel.ID, name, kind.String(), expr); err != nil {
		return "", fmt.Errorf("save command: %w", err)
	}
	return "🔧 command created successfully", nil
}

func handleDelCommand(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if err := requireElevated(inv.Sender); err != nil {
		return "", err
	}
	if len(inv.Args) == 0 {
		return "❌ which command?", nil
	}
	n, err := d.Store.RemoveChannelCommand(ctx, inv.Channel.ID, strings.ToLower(inv.Args[0]))
	if err != nil {
		return "", fmt.Errorf("remove command: %w", err)
	}
	if n == 0 {
		return "❌ no such command existed", nil
	}
	return "✅ removed successfully", nil
}

// Aliases ---------------------------------------------------------------------

func handleSetAlias(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if len(inv.Args) < 2 {
		return "❌ usage: setalias <name> <command ...>", nil
	}
	alias := inv.Args[0]
	expansion := strings.Join(inv.Args[1:], " ")
	if err := d.Store.SetAlias(ctx, inv.Sender.ID, alias, expansion); err != nil {
		return "", fmt.Errorf("save alias: %w", err)
	}
	return "✅ alias created", nil
}

func handleRemoveAlias(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if len(inv.Args) == 0 {
		return "❌ which alias?", nil
	}
	n, err := d.Store.RemoveAlias(ctx, inv.Sender.ID, inv.Args[0])
	if err != nil {
		return "", fmt.Errorf("remove alias: %w", err)
	}
	if n == 0 {
		return "❌ no such alias", nil
	}
	return "✅ alias removed", nil
}

// Feedback --------------------------------------------------------------------

func handleSuggest(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if len(inv.Args) == 0 {
		return "❌ nothing to suggest?", nil
	}
	text := strings.Join(inv.Args, " ")
	if err := d.Store.SaveSuggestion(ctx, inv.Sender.ID, inv.Sender.Name, text, inv.Timestamp); err != nil {
		return "", fmt.Errorf("save suggestion: %w", err)
	}
	return "✅ suggestion saved", nil
}

func handleExplain(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if len(inv.Args) == 0 {
		return "❌ which error code?", nil
	}
	code := strings.ToUpper(inv.Args[0])
	msg, found, err := d.Store.GetExplanation(ctx, code)
	if err != nil {
		return "", fmt.Errorf("lookup explanation: %w", err)
	}
	if !found {
		return "❌ no explanation for that code", nil
	}
	return fmt.Sprintf("%s: %s", code, msg), nil
}

// History lookups -------------------------------------------------------------

// resolveTarget maps an optional name argument to a user id through the
// identity cache, defaulting to the sender.
func resolveTarget(ctx context.Context, d *Dispatcher, inv *Invocation, arg int) (string, int64, bool, error) {
	if len(inv.Args) <= arg {
		return inv.Sender.Name, inv.Sender.ID, true, nil
	}
	name := strings.ToLower(strings.TrimPrefix(inv.Args[arg], "@"))
	id, ok, err := d.Identity.Resolve(ctx, name, d.Twitch.ResolveID)
	return name, id, ok, err
}

// resolveChannel maps an optional channel-name argument to a channel id,
// defaulting to the current channel.
func resolveChannel(ctx context.Context, d *Dispatcher, inv *Invocation, arg int) (string, int64, bool, error) {
	if len(inv.Args) <= arg {
		return inv.Channel.Name, inv.Channel.ID, true, nil
	}
	name := strings.ToLower(strings.TrimPrefix(inv.Args[arg], "#"))
	id, ok, err := d.Identity.Resolve(ctx, name, d.Twitch.ResolveID)
	return name, id, ok, err
}

func handleFirst(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	name, userID, ok, err := resolveTarget(ctx, d, inv, 0)
	if err != nil {
		return "", fmt.Errorf("resolve user: %w", err)
	}
	if !ok {
		return "❌ no such user", nil
	}
	_, channelID, ok, err := resolveChannel(ctx, d, inv, 1)
	if err != nil {
		return "", fmt.Errorf("resolve channel: %w", err)
	}
	if !ok {
		return "❌ no such channel", nil
	}
	msg, found, err := d.Store.FirstMessage(ctx, channelID, userID)
	if err != nil {
		return "", fmt.Errorf("first message: %w", err)
	}
	if !found {
		return fmt.Sprintf("❌ no messages logged for %s", name), nil
	}
	return fmt.Sprintf("💬 %s's first message: %s", name, msg), nil
}

func handleWordRatio(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if len(inv.Args) == 0 {
		return "❌ which word?", nil
	}
	word := inv.Args[0]
	name, userID, ok, err := resolveTarget(ctx, d, inv, 1)
	if err != nil {
		return "", fmt.Errorf("resolve user: %w", err)
	}
	if !ok {
		return "❌ no such user", nil
	}
	ratio, err := d.Store.WordRatio(ctx, inv.Channel.ID, userID, word, d.Prefix)
	if err != nil {
		return "", fmt.Errorf("word ratio: %w", err)
	}
	return fmt.Sprintf("📊 %.2f%% of %s's messages contain %q", ratio*100, name, word), nil
}

// Reminders -------------------------------------------------------------------

// parseDelay parses a "(1h,30m)" style delay list. Units: d, h, m, s.
func parseDelay(s string) (time.Duration, bool) {
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	if s == "" {
		return 0, false
	}
	var total time.Duration
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if len(part) < 2 {
			return 0, false
		}
		n, err := strconv.Atoi(part[:len(part)-1])
		if err != nil || n < 0 {
			return 0, false
		}
		switch part[len(part)-1] {
		case 'd':
			total += time.Duration(n) * 24 * time.Hour
		case 'h':
			total += time.Duration(n) * time.Hour
		case 'm':
			total += time.Duration(n) * time.Minute
		case 's':
			total += time.Duration(n) * time.Second
		default:
			return 0, false
		}
	}
	return total, total > 0
}

func insertReminder(ctx context.Context, d *Dispatcher, inv *Invocation, forUserID int64, delayArg int) (string, error) {
	delay, ok := parseDelay(inv.Args[delayArg])
	if !ok {
		return "❌ delay looks like (1h,30m) with units d/h/m/s", nil
	}
	message := strings.Join(inv.Args[delayArg+1:], " ")
	r := &db.Reminder{
		FromUserID: inv.Sender.ID,
		ForUserID:  forUserID,
		RaiseAt:    inv.Timestamp.Add(delay),
		Message:    message,
	}
	if err := d.Store.InsertReminder(ctx, r); err != nil {
		return "", fmt.Errorf("save reminder: %w", err)
	}
	return "✅ set successfully", nil
}

func handleRemindMe(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "❌ usage: remindme (1h,30m) <message>", nil
	}
	return insertReminder(ctx, d, inv, inv.Sender.ID, 0)
}

func handleRemind(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if len(inv.Args) < 2 {
		return "❌ usage: remind <user> (1h,30m) <message>", nil
	}
	_, forID, ok, err := resolveTarget(ctx, d, inv, 0)
	if err != nil {
		return "", fmt.Errorf("resolve user: %w", err)
	}
	if !ok {
		return "❌ no such user", nil
	}
	return insertReminder(ctx, d, inv, forID, 1)
}

func handleClearReminders(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	n, err := d.Store.ClearSentReminders(ctx, inv.Sender.ID)
	if err != nil {
		return "", fmt.Errorf("clear reminders: %w", err)
	}
	return fmt.Sprintf("✅ cleared %d reminder(s)", n), nil
}

// Presence --------------------------------------------------------------------

func handleLurk(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if err := d.Store.SetLurk(ctx, inv.Sender.ID, inv.Timestamp); err != nil {
		return "", fmt.Errorf("set lurk: %w", err)
	}
	return fmt.Sprintf("🌙 %s is now AFK", inv.Sender.Name), nil
}

func handleOfflineTime(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	name, userID, ok, err := resolveTarget(ctx, d, inv, 0)
	if err != nil {
		return "", fmt.Errorf("resolve user: %w", err)
	}
	if !ok {
		return "❌ no such user", nil
	}
	channelName, channelID, ok, err := resolveChannel(ctx, d, inv, 1)
	if err != nil {
		return "", fmt.Errorf("resolve channel: %w", err)
	}
	if !ok {
		return "❌ no such channel", nil
	}
	t, err := d.Store.OfflineTime(ctx, channelID, userID)
	if err != nil {
		return "", fmt.Errorf("offline time: %w", err)
	}
	return fmt.Sprintf("⏳ %s has spent %s in %s's offline chat", name, fmtDuration(t), channelName), nil
}

// Twitch lookups --------------------------------------------------------------

func handleUptime(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	channel := inv.Channel.Name
	if len(inv.Args) > 0 {
		channel = strings.ToLower(strings.TrimPrefix(inv.Args[0], "#"))
	}
	stream, err := d.Twitch.StreamInfo(ctx, channel)
	if err != nil {
		return "", fmt.Errorf("stream info: %w", err)
	}
	if stream == nil {
		return "❌ streamer is not live", nil
	}
	return fmt.Sprintf("⏱️ %s has been live for %s", channel, fmtDuration(time.Since(stream.StartedAt))), nil
}

func handleAccountAge(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	name := inv.Sender.Name
	if len(inv.Args) > 0 {
		name = strings.ToLower(strings.TrimPrefix(inv.Args[0], "@"))
	}
	user, found, err := d.Twitch.GetUser(ctx, name)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	if !found {
		return "❌ no such user", nil
	}
	return fmt.Sprintf("📅 %s's account is %s old", name, fmtDuration(time.Since(user.CreatedAt))), nil
}

func handleFollowAge(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	name, userID, ok, err := resolveTarget(ctx, d, inv, 0)
	if err != nil {
		return "", fmt.Errorf("resolve user: %w", err)
	}
	if !ok {
		return "❌ no such user", nil
	}
	channelName, channelID, ok, err := resolveChannel(ctx, d, inv, 1)
	if err != nil {
		return "", fmt.Errorf("resolve channel: %w", err)
	}
	if !ok {
		return "❌ no such channel", nil
	}
	since, following, err := d.Twitch.FollowDate(ctx, channelID, userID)
	if err != nil {
		return "", fmt.Errorf("follow date: %w", err)
	}
	if !following {
		return fmt.Sprintf("❌ %s does not follow %s", name, channelName), nil
	}
	return fmt.Sprintf("📅 %s has been following %s for %s", name, channelName, fmtDuration(time.Since(since))), nil
}

// Third-party lookups ---------------------------------------------------------

func handleWeather(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if len(inv.Args) == 0 {
		return "❌ weather where?", nil
	}
	out, found, err := d.Extras.Weather(ctx, strings.Join(inv.Args, " "))
	if err != nil {
		return "", fmt.Errorf("weather: %w", err)
	}
	if !found {
		return "❌ couldn't find that place", nil
	}
	return out, nil
}

func handleWiki(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if len(inv.Args) == 0 {
		return "❌ look up what?", nil
	}
	out, found, err := d.Extras.Wikipedia(ctx, strings.Join(inv.Args, " "))
	if err != nil {
		return "", fmt.Errorf("wikipedia: %w", err)
	}
	if !found {
		return "❌ no article found", nil
	}
	return "📖 " + out, nil
}

func handleDefine(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if len(inv.Args) == 0 {
		return "❌ define what?", nil
	}
	out, found, err := d.Extras.Define(ctx, inv.Args[0])
	if err != nil {
		return "", fmt.Errorf("define: %w", err)
	}
	if !found {
		return "❌ no definition found", nil
	}
	return "📖 " + out, nil
}

func handleUrban(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if len(inv.Args) == 0 {
		return "❌ define what?", nil
	}
	out, found, err := d.Extras.Urban(ctx, strings.Join(inv.Args, " "))
	if err != nil {
		return "", fmt.Errorf("urban: %w", err)
	}
	if !found {
		return "❌ no definition found", nil
	}
	return "📙 " + out, nil
}

// handleTranslate expects a "(src,dst)" language pair followed by the text.
func handleTranslate(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if len(inv.Args) < 2 {
		return "❌ usage: translate (en,de) <text>", nil
	}
	pair := strings.TrimSuffix(strings.TrimPrefix(inv.Args[0], "("), ")")
	langs := strings.Split(pair, ",")
	if len(langs) != 2 {
		return "❌ language pair looks like (en,de)", nil
	}
	out, err := d.Extras.Translate(ctx, strings.TrimSpace(langs[0]), strings.TrimSpace(langs[1]), strings.Join(inv.Args[1:], " "))
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	return "🌐 " + out, nil
}

func handleReddit(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if len(inv.Args) == 0 {
		return "❌ which subreddit?", nil
	}
	sub := strings.TrimPrefix(strings.ToLower(inv.Args[0]), "r/")
	out, found, err := d.Extras.RedditTop(ctx, sub)
	if err != nil {
		return "", fmt.Errorf("reddit: %w", err)
	}
	if !found {
		return "❌ nothing found there today", nil
	}
	return out, nil
}

// Trivia ----------------------------------------------------------------------

func handleTrivia(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	var category, difficulty, qtype string
	if len(inv.Args) > 0 {
		category = inv.Args[0]
	}
	if len(inv.Args) > 1 {
		difficulty = strings.ToLower(inv.Args[1])
	}
	if len(inv.Args) > 2 {
		qtype = strings.ToLower(inv.Args[2])
	}
	q, err := d.Channels.StartTrivia(ctx, inv.Channel.ID, func(ctx context.Context) (state.TriviaQuestion, error) {
		return d.Extras.TriviaQuestion(ctx, category, difficulty, qtype)
	})
	if errors.Is(err, state.ErrGameInProgress) {
		return "❌ a trivia game is already in progress", nil
	}
	if err != nil {
		return "", fmt.Errorf("start trivia: %w", err)
	}
	telemetry.TriviaStarted.Inc()
	return "❓ " + q.Question, nil
}

func handleTriviaHint(_ context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	answers, active := d.Channels.TriviaHint(inv.Channel.ID)
	if !active {
		return "❌ no trivia game in progress", nil
	}
	return "💡 one of: " + strings.Join(answers, " | "), nil
}

func handleTriviaGiveUp(_ context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	answer, active := d.Channels.GiveUpTrivia(inv.Channel.ID)
	if !active {
		return "❌ no trivia game in progress", nil
	}
	return "🏳️ the correct answer was: " + answer, nil
}

// Hooks -----------------------------------------------------------------------

// handleSetHook expects "sethook <exact|substring> <pattern> ; <response>".
func handleSetHook(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if err := requireElevated(inv.Sender); err != nil {
		return "", err
	}
	if len(inv.Args) < 2 {
		return "❌ usage: sethook <exact|substring> <pattern> ; <response>", nil
	}
	kind, ok := state.ParseMatchKind(inv.Args[0])
	if !ok {
		return "❌ match kind must be exact or substring", nil
	}
	rest := strings.Join(inv.Args[1:], " ")
	pattern, response, found := strings.Cut(rest, ";")
	pattern = strings.TrimSpace(pattern)
	response = strings.TrimSpace(response)
	if !found || pattern == "" || response == "" {
		return "❌ separate pattern and response with ;", nil
	}
	if err := d.Store.InsertHook(ctx, inv.Channel.ID, db.HookRow{Pattern: pattern, MatchKind: kind.String(), Response: response}); err != nil {
		return "", fmt.Errorf("save hook: %w", err)
	}
	d.Channels.AddHook(inv.Channel.ID, state.Hook{Pattern: pattern, Kind: kind, Response: response})
	return "🪝 hook registered", nil
}

func handleRemoveHook(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if err := requireElevated(inv.Sender); err != nil {
		return "", err
	}
	if len(inv.Args) == 0 {
		return "❌ which hook?", nil
	}
	pattern := strings.Join(inv.Args, " ")
	if _, err := d.Store.DeleteHook(ctx, inv.Channel.ID, pattern); err != nil {
		return "", fmt.Errorf("delete hook: %w", err)
	}
	if !d.Channels.RemoveHook(inv.Channel.ID, pattern) {
		return "❌ no such hook", nil
	}
	return "✅ hook removed", nil
}

func handleListHooks(_ context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	hooks := d.Channels.Hooks(inv.Channel.ID)
	if len(hooks) == 0 {
		return "❌ no hooks registered", nil
	}
	parts := make([]string, 0, len(hooks))
	for _, h := range hooks {
		parts = append(parts, fmt.Sprintf("%s (%s)", h.Pattern, h.Kind))
	}
	return "🪝 " + strings.Join(parts, " | "), nil
}
