package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/stammer/api"
	"github.com/onnwee/stammer/background"
	"github.com/onnwee/stammer/bot"
	"github.com/onnwee/stammer/cache"
	"github.com/onnwee/stammer/config"
	"github.com/onnwee/stammer/db"
	"github.com/onnwee/stammer/markov"
	"github.com/onnwee/stammer/server"
	"github.com/onnwee/stammer/state"
	"github.com/onnwee/stammer/telemetry"
	"github.com/onnwee/stammer/twitchapi"
)

func setupLogging() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	_ = godotenv.Load()
	setupLogging()
	telemetry.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing("stammer", "1.0.0")
	if err != nil {
		slog.Warn("tracing init failed", slog.Any("err", err))
	} else {
		defer shutdownTracing()
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Error("config incomplete", slog.Any("err", err))
		os.Exit(1)
	}

	database, err := db.Connect()
	if err != nil {
		slog.Error("db connect failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() { _ = database.Close() }()
	if err := db.Migrate(ctx, database); err != nil {
		slog.Error("db migrate failed", slog.Any("err", err))
		os.Exit(1)
	}

	store := db.NewStore(database)
	twitch := twitchapi.NewClient(ctx, cfg.TwitchClientID, cfg.TwitchClientSecret)
	channelState := state.NewStore()
	identity := cache.NewIdentityCache()
	emotes := cache.NewEmoteCache()

	// Resolve configured channels to their numeric ids, create their tables
	// and load persisted hooks. A channel that cannot be resolved is fatal:
	// every storage access is keyed by the id.
	channels := make([]background.Channel, 0, len(cfg.Channels))
	for _, name := range cfg.Channels {
		id, ok, err := twitch.ResolveID(ctx, name)
		if err != nil || !ok {
			slog.Error("resolve channel failed", slog.String("channel", name), slog.Any("err", err))
			os.Exit(1)
		}
		if err := db.EnsureChannelTables(ctx, database, id); err != nil {
			slog.Error("ensure channel tables failed", slog.String("channel", name), slog.Any("err", err))
			os.Exit(1)
		}
		rows, err := store.GetChannelHooks(ctx, id)
		if err != nil {
			slog.Error("load hooks failed", slog.String("channel", name), slog.Any("err", err))
			os.Exit(1)
		}
		hooks := make([]state.Hook, 0, len(rows))
		for _, r := range rows {
			kind, ok := state.ParseMatchKind(r.MatchKind)
			if !ok {
				slog.Warn("skipping hook with unknown match kind", slog.String("pattern", r.Pattern), slog.String("kind", r.MatchKind))
				continue
			}
			hooks = append(hooks, state.Hook{Pattern: r.Pattern, Kind: kind, Response: r.Response})
		}
		channelState.InitChannel(id, hooks)
		channels = append(channels, background.Channel{ID: id, Name: name})
	}

	markovStore := markov.NewStore(database)

	dispatcher := bot.NewDispatcher()
	dispatcher.Store = store
	dispatcher.Markov = markovStore
	dispatcher.Identity = identity
	dispatcher.Emotes = emotes
	dispatcher.Channels = channelState
	dispatcher.Twitch = twitch
	dispatcher.Extras = api.NewClient()
	dispatcher.Prefix = cfg.Prefix
	dispatcher.Disregarded = cfg.IsDisregarded

	b := bot.New(cfg, dispatcher, markovStore, channelState)

	go background.StartEmoteRefreshJob(ctx, emotes, twitch, channels)
	go background.StartCacheEvictionJob(ctx, identity)
	if cfg.TrackOffliners {
		go background.StartOfflineAccrualJob(ctx, store, cfg, twitch, identity, channels)
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	go func() {
		if err := server.Start(ctx, database, addr, cfg.Channels); err != nil {
			slog.Error("ops server failed", slog.Any("err", err))
		}
	}()

	slog.Info("starting chat loop", slog.Any("channels", cfg.Channels))
	if err := b.Run(ctx); err != nil {
		slog.Error("chat loop failed", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("shut down cleanly")
}
