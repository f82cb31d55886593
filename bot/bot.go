package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/stammer/config"
	"github.com/onnwee/stammer/markov"
	"github.com/onnwee/stammer/state"
	"github.com/onnwee/stammer/telemetry"
)

// Ingester indexes non-command chat into the markov tables.
type Ingester interface {
	Ingest(ctx context.Context, channelID int64, channelName, text string, emotes markov.EmoteChecker, messageEmotes []string) error
}

// Bot owns the IRC connection and the chat event loop. Messages are handled
// synchronously in arrival order; anything slow inside a handler delays the
// queue behind it, so handlers only do bounded request work.
type Bot struct {
	Cfg        *config.Config
	Client     *twitch.Client
	Dispatcher *Dispatcher
	Markov     Ingester
	Channels   *state.Store

	log *slog.Logger
}

// New connects the event loop to a gempir IRC client. The dispatcher's Say
// function is pointed at the client.
func New(cfg *config.Config, dispatcher *Dispatcher, ingester Ingester, channels *state.Store) *Bot {
	client := twitch.NewClient(cfg.BotUsername, cfg.OAuthToken)
	b := &Bot{
		Cfg:        cfg,
		Client:     client,
		Dispatcher: dispatcher,
		Markov:     ingester,
		Channels:   channels,
		log:        slog.With(slog.String("component", "bot")),
	}
	dispatcher.Say = client.Say
	client.OnPrivateMessage(b.handleMessage)
	client.OnConnect(func() {
		b.log.Info("connected to chat", slog.Any("channels", cfg.Channels))
	})
	return b
}

// Run joins the configured channels and blocks on the IRC connection until
// ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	for _, ch := range b.Cfg.Channels {
		b.Client.Join(ch)
	}
	go func() {
		<-ctx.Done()
		if err := b.Client.Disconnect(); err != nil {
			b.log.Warn("disconnect", slog.Any("err", err))
		}
	}()
	if err := b.Client.Connect(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("irc connect: %w", err)
	}
	return nil
}

func (b *Bot) handleMessage(msg twitch.PrivateMessage) {
	if b.Cfg.IsDisregarded(msg.User.Name) {
		return
	}
	ctx := NewCorrelatedContext(context.Background())
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "bot"), slog.String("channel", msg.Channel))

	senderID, err := strconv.ParseInt(msg.User.ID, 10, 64)
	if err != nil {
		log.Warn("unparseable sender id", slog.String("id", msg.User.ID))
		return
	}
	channelID, err := strconv.ParseInt(msg.RoomID, 10, 64)
	if err != nil {
		log.Warn("unparseable room id", slog.String("id", msg.RoomID))
		return
	}

	if err := b.Dispatcher.Store.LogMessage(ctx, channelID, senderID, msg.User.Name, formatBadges(msg.User.Badges), msg.Message, msg.Time); err != nil {
		log.Warn("log message", slog.Any("err", err))
	} else {
		telemetry.MessagesLogged.Inc()
	}

	// Any activity ends a lurk.
	if lurked, was, err := b.Dispatcher.Store.EndLurk(ctx, senderID); err != nil {
		log.Warn("end lurk", slog.Any("err", err))
	} else if was {
		b.Client.Say(msg.Channel, fmt.Sprintf("🌙 %s is no longer AFK (%s)", msg.User.Name, fmtDuration(lurked)))
	}

	b.deliverReminders(ctx, msg.Channel, msg.User.Name, senderID, log)

	if isCommand(msg.Message, b.Dispatcher.Prefix) {
		inv, err := ParseInvocation(msg)
		if err != nil {
			log.Warn("parse invocation", slog.Any("err", err))
			return
		}
		b.Dispatcher.Dispatch(ctx, inv)
		return
	}

	// Plain chat: feed the index, then the session features.
	if b.Cfg.IndexMarkov && b.Markov != nil {
		if err := b.Markov.Ingest(ctx, channelID, msg.Channel, msg.Message, b.Dispatcher.Emotes, messageEmoteNames(msg)); err != nil {
			log.Warn("markov ingest", slog.Any("err", err))
		}
	}
	if b.Channels.EvaluateTrivia(channelID, msg.Message) {
		b.Client.Say(msg.Channel, fmt.Sprintf("@%s Correct! 🎉", msg.User.Name))
	}
	if response, ok := b.Channels.MatchHooks(channelID, msg.Message); ok {
		telemetry.HooksMatched.Inc()
		b.Client.Say(msg.Channel, response)
	}
}

func (b *Bot) deliverReminders(ctx context.Context, channel, name string, senderID int64, log *slog.Logger) {
	due, err := b.Dispatcher.Store.DueReminders(ctx, senderID)
	if err != nil {
		log.Warn("fetch reminders", slog.Any("err", err))
		return
	}
	for _, r := range due {
		from := "yourself"
		if r.FromUserID != r.ForUserID {
			if n, err := b.Dispatcher.Twitch.ResolveName(ctx, r.FromUserID); err == nil {
				from = n
			} else {
				log.Warn("resolve reminder sender", slog.Any("err", err))
				from = "someone"
			}
		}
		b.Client.Say(channel, truncateMessage(fmt.Sprintf("@%s 🔔 from %s: %s", name, from, r.Message)))
	}
}

func isCommand(message string, prefix rune) bool {
	r := []rune(message)
	return len(r) > 1 && r[0] == prefix
}

// formatBadges renders a badge map as a stable "name:version" list.
func formatBadges(badges map[string]int) string {
	if len(badges) == 0 {
		return ""
	}
	parts := make([]string, 0, len(badges))
	for name, ver := range badges {
		parts = append(parts, fmt.Sprintf("%s:%d", name, ver))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// messageEmoteNames extracts the emote codes Twitch tagged on the message.
func messageEmoteNames(msg twitch.PrivateMessage) []string {
	if len(msg.Emotes) == 0 {
		return nil
	}
	out := make([]string, 0, len(msg.Emotes))
	for _, e := range msg.Emotes {
		out = append(out, e.Name)
	}
	return out
}
