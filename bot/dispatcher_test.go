package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/stammer/cache"
	"github.com/onnwee/stammer/state"
	"github.com/onnwee/stammer/telemetry"
)

var (
	pleb        = Sender{ID: 101, Name: "pleb", Badges: map[string]int{}}
	mod         = Sender{ID: 102, Name: "modlady", Badges: map[string]int{"moderator": 1}}
	testChannel = Channel{ID: 5, Name: "somechannel"}
)

func inv(s Sender, cmd string, args ...string) Invocation {
	return Invocation{Command: cmd, Args: args, Sender: s, Channel: testChannel, Timestamp: time.Now()}
}

func newTestDispatcher() (*Dispatcher, *fakeStore, *[]string) {
	telemetry.Init()
	fs := newFakeStore()
	says := &[]string{}
	d := NewDispatcher()
	d.Store = fs
	d.Markov = memSuccessors{}
	d.Identity = cache.NewIdentityCache()
	d.Emotes = cache.NewEmoteCache()
	d.Channels = state.NewStore()
	d.Twitch = &fakeTwitch{users: map[string]int64{}}
	d.Extras = &fakeExtras{}
	d.Say = func(_, text string) { *says = append(*says, text) }
	return d, fs, says
}

func TestPipeTransformsAccumulator(t *testing.T) {
	d, _, _ := newTestDispatcher()
	out := d.Dispatch(context.Background(), inv(mod, "pipe", "$echo", "hello", "|", "upper"))
	if out != "HELLO" {
		t.Fatalf("got %q, want %q", out, "HELLO")
	}
}

func TestPipeLastCommandOutputWins(t *testing.T) {
	d, _, _ := newTestDispatcher()
	out := d.Dispatch(context.Background(), inv(mod, "pipe", "$echo", "hello", "|", "$echo", "world", "|", "upper"))
	if out != "WORLD" {
		t.Fatalf("got %q, want %q", out, "WORLD")
	}
}

func TestPipeMidStreamTransform(t *testing.T) {
	d, _, _ := newTestDispatcher()
	out := d.Dispatch(context.Background(), inv(mod, "pipe", "$echo", "Hello", "|", "lower", "|", "$echo", "Again", "|", "upper"))
	if out != "AGAIN" {
		t.Fatalf("got %q, want %q", out, "AGAIN")
	}
}

func TestPipeDevNullSwallowsOutput(t *testing.T) {
	d, _, says := newTestDispatcher()
	out := d.Dispatch(context.Background(), inv(mod, "pipe", "$echo", "hello", "|", "devnull"))
	if out != "" {
		t.Fatalf("got %q, want empty", out)
	}
	if len(*says) != 0 {
		t.Fatalf("empty result should not be spoken, got %v", *says)
	}
}

func TestPipePastebinUploadsAccumulator(t *testing.T) {
	d, _, _ := newTestDispatcher()
	extras := d.Extras.(*fakeExtras)
	out := d.Dispatch(context.Background(), inv(mod, "pipe", "$echo", "hello", "|", "pastebin"))
	if !strings.HasPrefix(out, "https://paste.example/") {
		t.Fatalf("got %q, want paste url", out)
	}
	if len(extras.pastes) != 1 || extras.pastes[0] != "hello" {
		t.Fatalf("uploaded %v, want [hello]", extras.pastes)
	}
}

func TestPipeRequiresTwoStages(t *testing.T) {
	d, _, _ := newTestDispatcher()
	out := d.Dispatch(context.Background(), inv(mod, "pipe", "$echo", "hello"))
	if out != "❌ no command to pipe" {
		t.Fatalf("got %q", out)
	}
}

func TestDemultiplexClampsCount(t *testing.T) {
	d, _, _ := newTestDispatcher()
	out := d.Dispatch(context.Background(), inv(mod, "demultiplex", "1000", "$decide", "x"))
	if n := strings.Count(out, "🎱"); n != 50 {
		t.Fatalf("got %d executions, want 50", n)
	}
}

func TestDemultiplexRequiresElevation(t *testing.T) {
	d, _, _ := newTestDispatcher()
	out := d.Dispatch(context.Background(), inv(pleb, "demultiplex", "3", "$decide", "x"))
	if out != "❌ not high enough status" {
		t.Fatalf("got %q", out)
	}
}

func TestBenchReportsMilliseconds(t *testing.T) {
	d, _, _ := newTestDispatcher()
	out := d.Dispatch(context.Background(), inv(mod, "bench", "$decide", "x"))
	if !strings.HasPrefix(out, "📡 ") || !strings.HasSuffix(out, " ms") {
		t.Fatalf("got %q", out)
	}
}

func TestAliasRoundTrip(t *testing.T) {
	d, _, says := newTestDispatcher()
	ctx := context.Background()
	if out := d.Dispatch(ctx, inv(pleb, "setalias", "greetz", "$decide", "waffles")); out != "✅ alias created" {
		t.Fatalf("setalias: got %q", out)
	}
	*says = (*says)[:0]

	// Outermost alias invocation: the expanded dispatch speaks, the wrapper
	// stays silent.
	if out := d.Dispatch(ctx, inv(pleb, "", "greetz")); out != "" {
		t.Fatalf("alias wrapper spoke %q", out)
	}
	if len(*says) != 1 || (*says)[0] != "🎱 I choose... waffles" {
		t.Fatalf("said %v", *says)
	}

	if out := d.Dispatch(ctx, inv(pleb, "rmalias", "greetz")); out != "✅ alias removed" {
		t.Fatalf("rmalias: got %q", out)
	}
	if out := d.Dispatch(ctx, inv(pleb, "", "greetz")); out != "" {
		t.Fatalf("wrapper output %q", out)
	}
	if last := (*says)[len(*says)-1]; last != "❌ alias not recognized" {
		t.Fatalf("said %q", last)
	}
}

func TestAliasInsidePipeFeedsAccumulator(t *testing.T) {
	d, _, _ := newTestDispatcher()
	ctx := context.Background()
	d.Dispatch(ctx, inv(pleb, "setalias", "greetz", "$decide", "waffles"))
	out := d.Dispatch(ctx, inv(pleb, "pipe", "$", "greetz", "|", "upper"))
	if out != "🎱 I CHOOSE... WAFFLES" {
		t.Fatalf("got %q", out)
	}
}

func TestAliasIsPerUser(t *testing.T) {
	d, _, says := newTestDispatcher()
	ctx := context.Background()
	d.Dispatch(ctx, inv(pleb, "setalias", "greetz", "$decide", "waffles"))
	*says = (*says)[:0]
	d.Dispatch(ctx, inv(mod, "", "greetz"))
	if len(*says) != 1 || (*says)[0] != "❌ alias not recognized" {
		t.Fatalf("said %v", *says)
	}
}

func TestRecursionDepthClamped(t *testing.T) {
	d, _, _ := newTestDispatcher()
	deep := inv(mod, "decide", "x")
	deep.Depth = maxRecursionDepth + 1
	if out := d.Dispatch(context.Background(), deep); out != "❌ nesting level too deep" {
		t.Fatalf("got %q", out)
	}
}

func TestIncrementingCommandCountsUp(t *testing.T) {
	d, _, _ := newTestDispatcher()
	ctx := context.Background()
	if out := d.Dispatch(ctx, inv(mod, "setcmd", "visits", "incr", "count is {}")); out != "🔧 command created successfully" {
		t.Fatalf("setcmd: got %q", out)
	}
	if out := d.Dispatch(ctx, inv(pleb, "visits")); out != "count is 1" {
		t.Fatalf("first: got %q", out)
	}
	if out := d.Dispatch(ctx, inv(pleb, "visits")); out != "count is 2" {
		t.Fatalf("second: got %q", out)
	}
	// Replacing the command resets the counter.
	d.Dispatch(ctx, inv(mod, "setcmd", "visits", "incr", "now {}"))
	if out := d.Dispatch(ctx, inv(pleb, "visits")); out != "now 1" {
		t.Fatalf("after replace: got %q", out)
	}
}

func TestTemplateCommandSubstitutesArgs(t *testing.T) {
	d, _, _ := newTestDispatcher()
	ctx := context.Background()
	d.Dispatch(ctx, inv(mod, "setcmd", "greet", "templ", "hi {1}, from {2}"))
	if out := d.Dispatch(ctx, inv(pleb, "greet", "bob", "alice")); out != "hi bob, from alice" {
		t.Fatalf("got %q", out)
	}
	// Unmatched placeholders stay verbatim.
	if out := d.Dispatch(ctx, inv(pleb, "greet", "bob")); out != "hi bob, from {2}" {
		t.Fatalf("got %q", out)
	}
}

func TestPasteCommandIsVerbatim(t *testing.T) {
	d, _, _ := newTestDispatcher()
	ctx := context.Background()
	d.Dispatch(ctx, inv(mod, "setcmd", "rules", "paste", "no {1} spoilers"))
	if out := d.Dispatch(ctx, inv(pleb, "rules", "anyarg")); out != "no {1} spoilers" {
		t.Fatalf("got %q", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	d, _, _ := newTestDispatcher()
	if out := d.Dispatch(context.Background(), inv(pleb, "nosuchthing")); out != "❌ command not recognized" {
		t.Fatalf("got %q", out)
	}
}

func TestSetCommandRejectsBuiltinName(t *testing.T) {
	d, _, _ := newTestDispatcher()
	if out := d.Dispatch(context.Background(), inv(mod, "setcmd", "ping", "paste", "x")); out != "❌ that name is a builtin" {
		t.Fatalf("got %q", out)
	}
}

func TestEchoRequiresElevation(t *testing.T) {
	d, _, _ := newTestDispatcher()
	if out := d.Dispatch(context.Background(), inv(pleb, "echo", "hi")); out != "❌ not high enough status" {
		t.Fatalf("got %q", out)
	}
}

func TestSpokenOutputTruncated(t *testing.T) {
	d, _, says := newTestDispatcher()
	long := strings.Repeat("a", 600)
	out := d.Dispatch(context.Background(), inv(mod, "echo", long))
	if len([]rune(out)) != 600 {
		t.Fatalf("returned %d runes, want untruncated 600", len([]rune(out)))
	}
	if len(*says) != 1 || len([]rune((*says)[0])) != maxMessageLen {
		t.Fatalf("spoke %d runes, want %d", len([]rune((*says)[0])), maxMessageLen)
	}
}

func TestHistoryLoggedOnlyForOutermost(t *testing.T) {
	d, fs, _ := newTestDispatcher()
	d.Dispatch(context.Background(), inv(mod, "pipe", "$echo", "hello", "|", "upper"))
	if len(fs.history) != 1 {
		t.Fatalf("got %d history rows, want 1", len(fs.history))
	}
	if fs.history[0].command != "pipe" {
		t.Fatalf("logged command %q, want pipe", fs.history[0].command)
	}
}
