package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/stammer/cache"
	"github.com/onnwee/stammer/markov"
	"github.com/onnwee/stammer/state"
	"github.com/onnwee/stammer/telemetry"
)

const (
	// maxRecursionDepth bounds pipe/demultiplex/bench/alias re-entry.
	maxRecursionDepth = 10

	// maxDemuxCount bounds how many times demultiplex repeats a command.
	maxDemuxCount = 50

	// maxMessageLen is the Twitch chat message limit in characters.
	maxMessageLen = 500

	apology = "error while processing, sorry PoroSad"
)

// SayFunc sends a line of chat to a channel.
type SayFunc func(channel, text string)

// Dispatcher routes parsed invocations to builtin handlers, user aliases and
// per-channel custom commands, and implements the composition operators
// (pipe, demultiplex, bench) by recursive re-entry.
type Dispatcher struct {
	Store    Store
	Markov   markov.SuccessorSource
	Identity *cache.IdentityCache
	Emotes   *cache.EmoteCache
	Channels *state.Store
	Twitch   TwitchAPI
	Extras   ExtrasAPI

	Prefix      rune
	Say         SayFunc
	StartupTime time.Time

	// Disregarded filters known bot accounts out of user-facing pickers.
	Disregarded func(login string) bool

	builtins map[string]handlerFunc
}

type handlerFunc func(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error)

// NewDispatcher wires the handler table. Every collaborator field must be set
// by the caller before Dispatch is used.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		Prefix:      '$',
		StartupTime: time.Now(),
	}
	d.builtins = builtinTable()
	return d
}

// Dispatch runs one invocation to completion and returns its textual result
// (possibly empty). For outermost invocations the result is also spoken to
// chat, truncated to the Twitch limit, and a command history row is written;
// recursive (IsPipe) invocations only return the string. Handler failures
// never propagate past the outermost boundary: they are logged and replaced
// with an apology.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) string {
	if inv.Depth > maxRecursionDepth {
		return "❌ nesting level too deep"
	}

	// Any command use pins the sender's identity binding for later lookups.
	d.Identity.Put(inv.Sender.Name, inv.Sender.ID)

	log := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "dispatcher"),
		slog.String("command", inv.Command),
		slog.String("channel", inv.Channel.Name),
	)

	spanCtx, span := telemetry.StartSpan(ctx, "bot", "dispatch",
		attribute.String("command", inv.Command),
		attribute.Bool("pipe", inv.IsPipe))
	start := time.Now()
	out, err := d.resolve(spanCtx, inv)
	elapsed := time.Since(start)
	switch {
	case err == nil:
		telemetry.SetSpanSuccess(span)
	default:
		if reply, ok := replyFor(err); ok {
			telemetry.SetSpanSuccess(span)
			out = reply
			break
		}
		telemetry.CommandsFailed.Inc()
		telemetry.RecordError(span, err)
		log.Error("command failed", slog.Any("err", err))
		out = apology
	}
	span.End()

	if inv.IsPipe {
		return out
	}

	telemetry.CommandsDispatched.Inc()
	telemetry.DispatchDuration.Observe(elapsed.Seconds())

	argsJSON, _ := json.Marshal(inv.Args)
	if err := d.Store.LogCommandHistory(ctx, inv.Sender.ID, inv.Sender.Name, inv.Command, string(argsJSON), elapsed, out); err != nil {
		log.Warn("log command history", slog.Any("err", err))
	}

	if out != "" && d.Say != nil {
		d.Say(inv.Channel.Name, truncateMessage(out))
	}
	return out
}

func (d *Dispatcher) resolve(ctx context.Context, inv Invocation) (string, error) {
	if h, ok := d.builtins[inv.Command]; ok {
		return h(ctx, d, &inv)
	}
	if inv.Command == "" {
		return d.runAlias(ctx, inv)
	}
	return d.runChannelCommand(ctx, inv)
}

// subInvocation builds a recursive invocation from raw tokens whose first
// token still carries the command prefix. A bare prefix token yields the
// empty command name, which routes to alias expansion.
func (inv *Invocation) subInvocation(tokens []string) (Invocation, bool) {
	if len(tokens) == 0 {
		return Invocation{}, false
	}
	head := []rune(strings.ToLower(tokens[0]))
	if len(head) < 1 {
		return Invocation{}, false
	}
	return Invocation{
		Command:   string(head[1:]),
		Args:      tokens[1:],
		Sender:    inv.Sender,
		Channel:   inv.Channel,
		Timestamp: inv.Timestamp,
		IsPipe:    true,
		Depth:     inv.Depth + 1,
	}, true
}

// runPipe evaluates "|"-separated stages left to right against an accumulator.
// Command stages run as recursive dispatches that do not see the accumulator;
// a stage's non-empty output replaces it. Transform verbs operate on the
// accumulator directly and may appear anywhere in the chain.
func runPipe(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	raw := strings.Join(inv.Args, " ")
	stages := strings.Split(raw, "|")
	if strings.TrimSpace(raw) == "" || len(stages) < 2 {
		return "❌ no command to pipe", nil
	}

	acc := ""
	for _, stage := range stages {
		stage = strings.TrimSpace(stage)
		switch strings.ToLower(stage) {
		case "pastebin":
			url, err := d.Extras.UploadPaste(ctx, acc)
			if err != nil {
				return "", fmt.Errorf("pastebin stage: %w", err)
			}
			acc = url
		case "lower":
			acc = strings.ToLower(acc)
		case "upper":
			acc = strings.ToUpper(acc)
		case "stdout":
			// identity
		case "devnull", "/dev/null":
			acc = ""
		default:
			sub, ok := inv.subInvocation(strings.Fields(stage))
			if !ok {
				return "❌ malformed pipe stage", nil
			}
			if out := d.Dispatch(ctx, sub); out != "" {
				acc = out
			}
		}
	}
	return acc, nil
}

// runDemultiplex repeats one command N times and joins the non-empty results
// with spaces. Elevated senders only; N is clamped to [1,maxDemuxCount].
func runDemultiplex(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	if err := requireElevated(inv.Sender); err != nil {
		return "", err
	}
	if len(inv.Args) < 2 {
		return "❌ usage: demultiplex <count> <command ...>", nil
	}
	n, err := strconv.Atoi(inv.Args[0])
	if err != nil {
		return "❌ count must be a number", nil
	}
	if n < 1 {
		n = 1
	}
	if n > maxDemuxCount {
		n = maxDemuxCount
	}

	sub, ok := inv.subInvocation(inv.Args[1:])
	if !ok {
		return "❌ malformed command", nil
	}

	var outs []string
	for i := 0; i < n; i++ {
		// Each repetition gets a fresh copy so handlers can't bleed state
		// through the shared args slice.
		rep := sub
		rep.Args = append([]string(nil), sub.Args...)
		if out := d.Dispatch(ctx, rep); out != "" {
			outs = append(outs, out)
		}
	}
	return strings.Join(outs, " "), nil
}

// runBench times one recursive dispatch, discarding its output.
func runBench(ctx context.Context, d *Dispatcher, inv *Invocation) (string, error) {
	sub, ok := inv.subInvocation(inv.Args)
	if !ok {
		return "❌ no command to benchmark", nil
	}
	start := time.Now()
	d.Dispatch(ctx, sub)
	return fmt.Sprintf("📡 %d ms", time.Since(start).Milliseconds()), nil
}

// runAlias expands a bare-prefix invocation through the sender's alias table
// and re-dispatches. The expansion inherits the caller's pipe flag: inside a
// pipe the expanded output flows back to the chain, while an outermost alias
// lets the inner dispatch speak and logs an empty row for itself.
func (d *Dispatcher) runAlias(ctx context.Context, inv Invocation) (string, error) {
	if len(inv.Args) == 0 {
		return "❌ no alias given", nil
	}
	expansion, found, err := d.Store.GetAlias(ctx, inv.Sender.ID, inv.Args[0])
	if err != nil {
		return "", fmt.Errorf("alias lookup: %w", err)
	}
	if !found {
		return "❌ alias not recognized", nil
	}

	tokens := strings.Fields(expansion)
	sub, ok := inv.subInvocation(tokens)
	if !ok {
		return "❌ malformed alias expansion", nil
	}
	sub.IsPipe = inv.IsPipe
	out := d.Dispatch(ctx, sub)
	if inv.IsPipe {
		return out, nil
	}
	return "", nil
}

// runChannelCommand renders a per-channel custom command. The usage counter
// increment happens on lookup, so incrementing commands observe the
// post-increment value.
func (d *Dispatcher) runChannelCommand(ctx context.Context, inv Invocation) (string, error) {
	kindStr, expr, usage, found, err := d.Store.GetChannelCommand(ctx, inv.Channel.ID, inv.Command)
	if err != nil {
		return "", fmt.Errorf("channel command lookup: %w", err)
	}
	if !found {
		return "❌ command not recognized", nil
	}
	kind, ok := ParseCommandKind(kindStr)
	if !ok {
		return "", fmt.Errorf("channel command %q: unknown kind %q", inv.Command, kindStr)
	}

	switch kind {
	case KindPaste:
		return expr, nil
	case KindIncrementing:
		return strings.ReplaceAll(expr, "{}", strconv.FormatInt(usage, 10)), nil
	default:
		out := expr
		for i, a := range inv.Args {
			out = strings.ReplaceAll(out, fmt.Sprintf("{%d}", i+1), a)
		}
		return out, nil
	}
}

// NewCorrelatedContext attaches a fresh correlation id for one top-level
// dispatch.
func NewCorrelatedContext(ctx context.Context) context.Context {
	return telemetry.WithCorrelation(ctx, uuid.NewString())
}

func truncateMessage(s string) string {
	r := []rune(s)
	if len(r) <= maxMessageLen {
		return s
	}
	return string(r[:maxMessageLen])
}
