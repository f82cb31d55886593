package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Emote directory endpoints, overridable for tests.
var (
	aggregateEmoteBase = "https://emotes.adamcy.pl/v1"
	sevenTVBase        = "https://api.7tv.app/v2"
	bttvBase           = "https://api.betterttv.net/3"
)

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ChannelEmotes fetches a channel's emote codes across all providers
// (twitch/7tv/bttv/ffz) from the aggregate directory.
func (c *Client) ChannelEmotes(ctx context.Context, channelID int64) ([]string, error) {
	var parsed []struct {
		Code string `json:"code"`
	}
	url := fmt.Sprintf("%s/channel/%d/emotes/all", aggregateEmoteBase, channelID)
	if err := c.getJSON(ctx, url, &parsed); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(parsed))
	for _, e := range parsed {
		out = append(out, e.Code)
	}
	return out, nil
}

// GlobalEmotes7TV fetches the 7tv global emote set.
func (c *Client) GlobalEmotes7TV(ctx context.Context) ([]string, error) {
	var parsed []struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, sevenTVBase+"/emotes/global", &parsed); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(parsed))
	for _, e := range parsed {
		out = append(out, e.Name)
	}
	return out, nil
}

// GlobalEmotesBTTV fetches the bttv global emote set.
func (c *Client) GlobalEmotesBTTV(ctx context.Context) ([]string, error) {
	var parsed []struct {
		Code string `json:"code"`
	}
	if err := c.getJSON(ctx, bttvBase+"/cached/emotes/global", &parsed); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(parsed))
	for _, e := range parsed {
		out = append(out, e.Code)
	}
	return out, nil
}
