package cache

import "sync"

// EmoteCache holds per-channel and global sets of known emote codes. It is
// rebuilt wholesale by the refresh worker and read-only in between; its only
// consumer is markov ingestion, which uses it to decide case-folding.
type EmoteCache struct {
	mu      sync.RWMutex
	channel map[string]map[string]struct{}
	global  map[string]struct{}
}

func NewEmoteCache() *EmoteCache {
	return &EmoteCache{
		channel: make(map[string]map[string]struct{}),
		global:  make(map[string]struct{}),
	}
}

// Replace swaps in a freshly fetched emote directory.
func (c *EmoteCache) Replace(perChannel map[string][]string, global []string) {
	ch := make(map[string]map[string]struct{}, len(perChannel))
	for name, codes := range perChannel {
		set := make(map[string]struct{}, len(codes))
		for _, code := range codes {
			set[code] = struct{}{}
		}
		ch[name] = set
	}
	g := make(map[string]struct{}, len(global))
	for _, code := range global {
		g[code] = struct{}{}
	}
	c.mu.Lock()
	c.channel = ch
	c.global = g
	c.mu.Unlock()
}

// Has reports whether token is a known emote for the channel: in the
// channel's set, the global set, or the literal emote span list carried by
// the message itself.
func (c *EmoteCache) Has(channel, token string, messageEmotes []string) bool {
	for _, e := range messageEmotes {
		if e == token {
			return true
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if set, ok := c.channel[channel]; ok {
		if _, ok := set[token]; ok {
			return true
		}
	}
	_, ok := c.global[token]
	return ok
}
