// Package background runs the periodic jobs that keep shared state fresh:
// offline-presence accrual, identity cache eviction and emote directory
// refresh. Every job is a ticker loop that exits on context cancellation and
// treats per-iteration failures as log-and-continue.
package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/onnwee/stammer/cache"
	"github.com/onnwee/stammer/config"
	"github.com/onnwee/stammer/db"
	"github.com/onnwee/stammer/telemetry"
)

const (
	offlineAccrualInterval = time.Minute
	cacheEvictionInterval  = 15 * time.Minute
	emoteRefreshInterval   = time.Hour
)

// Channel pairs a channel's login name with its numeric id.
type Channel struct {
	ID   int64
	Name string
}

// PresenceAPI is the Twitch surface the accrual job needs.
type PresenceAPI interface {
	IsLive(ctx context.Context, channel string) (bool, error)
	Chatters(ctx context.Context, channel string) ([]string, error)
	ResolveID(ctx context.Context, login string) (int64, bool, error)
}

// EmoteAPI is the directory surface the refresh job needs.
type EmoteAPI interface {
	ChannelEmotes(ctx context.Context, channelID int64) ([]string, error)
	GlobalEmotes7TV(ctx context.Context) ([]string, error)
	GlobalEmotesBTTV(ctx context.Context) ([]string, error)
}

// StartOfflineAccrualJob credits one minute of offline presence to every
// chatter of every non-live channel, once per minute. Blocks until ctx is
// cancelled.
func StartOfflineAccrualJob(ctx context.Context, store *db.Store, cfg *config.Config, tw PresenceAPI, identity *cache.IdentityCache, channels []Channel) {
	log := slog.With(slog.String("component", "offline_accrual"))
	ticker := time.NewTicker(offlineAccrualInterval)
	defer ticker.Stop()
	log.Info("started", slog.Int("channels", len(channels)))
	for {
		select {
		case <-ctx.Done():
			log.Info("stopped")
			return
		case <-ticker.C:
			for _, ch := range channels {
				accrueChannel(ctx, store, cfg, tw, identity, ch, log)
			}
		}
	}
}

func accrueChannel(ctx context.Context, store *db.Store, cfg *config.Config, tw PresenceAPI, identity *cache.IdentityCache, ch Channel, log *slog.Logger) {
	live, err := tw.IsLive(ctx, ch.Name)
	if err != nil {
		log.Warn("live check", slog.String("channel", ch.Name), slog.Any("err", err))
		return
	}
	if live {
		return
	}
	chatters, err := tw.Chatters(ctx, ch.Name)
	if err != nil {
		log.Warn("list chatters", slog.String("channel", ch.Name), slog.Any("err", err))
		return
	}
	for _, login := range chatters {
		if cfg.IsDisregarded(login) {
			continue
		}
		id, ok, err := identity.Resolve(ctx, login, tw.ResolveID)
		if err != nil {
			log.Warn("resolve chatter", slog.String("login", login), slog.Any("err", err))
			continue
		}
		if !ok {
			continue
		}
		if err := store.AddOfflinerMinute(ctx, ch.ID, id); err != nil {
			log.Warn("accrue minute", slog.String("login", login), slog.Any("err", err))
		}
	}
}

// StartCacheEvictionJob clears the identity cache wholesale on a fixed
// interval. Bindings are immutable, so this is a growth bound rather than an
// invalidation mechanism. Blocks until ctx is cancelled.
func StartCacheEvictionJob(ctx context.Context, identity *cache.IdentityCache) {
	log := slog.With(slog.String("component", "cache_eviction"))
	ticker := time.NewTicker(cacheEvictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("stopped")
			return
		case <-ticker.C:
			n := identity.Clear()
			telemetry.CacheEvictions.Inc()
			telemetry.SetIdentityCacheSize(0)
			log.Info("evicted identity cache", slog.Int("entries", n))
		}
	}
}

// StartEmoteRefreshJob rebuilds the emote directory immediately and then once
// per hour. Blocks until ctx is cancelled.
func StartEmoteRefreshJob(ctx context.Context, emotes *cache.EmoteCache, api EmoteAPI, channels []Channel) {
	log := slog.With(slog.String("component", "emote_refresh"))
	refreshEmotes(ctx, emotes, api, channels, log)
	ticker := time.NewTicker(emoteRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("stopped")
			return
		case <-ticker.C:
			refreshEmotes(ctx, emotes, api, channels, log)
		}
	}
}

func refreshEmotes(ctx context.Context, emotes *cache.EmoteCache, api EmoteAPI, channels []Channel, log *slog.Logger) {
	perChannel := make(map[string][]string, len(channels))
	for _, ch := range channels {
		codes, err := api.ChannelEmotes(ctx, ch.ID)
		if err != nil {
			log.Warn("channel emotes", slog.String("channel", ch.Name), slog.Any("err", err))
			continue
		}
		perChannel[ch.Name] = codes
	}
	var global []string
	if codes, err := api.GlobalEmotes7TV(ctx); err != nil {
		log.Warn("7tv global emotes", slog.Any("err", err))
	} else {
		global = append(global, codes...)
	}
	if codes, err := api.GlobalEmotesBTTV(ctx); err != nil {
		log.Warn("bttv global emotes", slog.Any("err", err))
	} else {
		global = append(global, codes...)
	}
	emotes.Replace(perChannel, global)
	log.Info("emote directory rebuilt", slog.Int("channels", len(perChannel)), slog.Int("global", len(global)))
}
