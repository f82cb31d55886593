// Package twitchapi contains minimal helpers to interact with Twitch Helix
// APIs (user id/name resolution, live status, follow dates), the TMI chatter
// list, and the third-party emote directories, using an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Client provides the external identity/live-status collaborators the bot
// caches around. Each call is an independent, stateless request.
type Client struct {
	ClientID   string
	HTTPClient *http.Client

	// HelixBase / TMIBase are overridable for tests.
	HelixBase string
	TMIBase   string

	tokens oauth2.TokenSource
}

// NewClient builds a client with an app access (client credentials) token
// source. The token cannot be used for IRC chat; chat uses the bot's user
// OAuth token.
func NewClient(ctx context.Context, clientID, clientSecret string) *Client {
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     "https://id.twitch.tv/oauth2/token",
	}
	return &Client{
		ClientID:  clientID,
		HelixBase: "https://api.twitch.tv/helix",
		TMIBase:   "https://tmi.twitch.tv",
		tokens:    cc.TokenSource(ctx),
	}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) helixGet(ctx context.Context, path string, query map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.HelixBase+path, nil)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", c.ClientID)
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("app token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
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
		return fmt.Errorf("helix %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// User is the subset of Helix user data the bot consumes.
type User struct {
	ID        int64
	Login     string
	Name      string
	CreatedAt time.Time
}

// GetUser fetches a user by login name; ok=false when the account does not exist.
func (c *Client) GetUser(ctx context.Context, login string) (User, bool, error) {
	var body struct {
		Data []struct {
			ID          string    `json:"id"`
			Login       string    `json:"login"`
			DisplayName string    `json:"display_name"`
			CreatedAt   time.Time `json:"created_at"`
		} `json:"data"`
	}
	if err := c.helixGet(ctx, "/users", map[string]string{"login": login}, &body); err != nil {
		return User{}, false, err
	}
	if len(body.Data) == 0 {
		return User{}, false, nil
	}
	d := body.Data[0]
	id, err := strconv.ParseInt(d.ID, 10, 64)
	if err != nil {
		return User{}, false, fmt.Errorf("parse user id %q: %w", d.ID, err)
	}
	return User{ID: id, Login: d.Login, Name: d.DisplayName, CreatedAt: d.CreatedAt}, true, nil
}

// ResolveID resolves a login name to its numeric user id.
func (c *Client) ResolveID(ctx context.Context, login string) (int64, bool, error) {
	u, ok, err := c.GetUser(ctx, login)
	return u.ID, ok, err
}

// ResolveName resolves a numeric user id to its login name.
func (c *Client) ResolveName(ctx context.Context, id int64) (string, error) {
	var body struct {
		Data []struct {
			Login string `json:"login"`
		} `json:"data"`
	}
	if err := c.helixGet(ctx, "/users", map[string]string{"id": strconv.FormatInt(id, 10)}, &body); err != nil {
		return "", err
	}
	if len(body.Data) == 0 {
		return "", fmt.Errorf("user %d not found", id)
	}
	return body.Data[0].Login, nil
}

// Stream is the live-status info for a channel.
type Stream struct {
	Title     string
	StartedAt time.Time
}

// StreamInfo returns the current stream of a channel, or nil when offline.
func (c *Client) StreamInfo(ctx context.Context, channel string) (*Stream, error) {
	var body struct {
		Data []struct {
			Title     string    `json:"title"`
			StartedAt time.Time `json:"started_at"`
		} `json:"data"`
	}
	if err := c.helixGet(ctx, "/streams", map[string]string{"user_login": channel}, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, nil
	}
	return &Stream{Title: body.Data[0].Title, StartedAt: body.Data[0].StartedAt}, nil
}

// IsLive reports whether a channel is currently streaming.
func (c *Client) IsLive(ctx context.Context, channel string) (bool, error) {
	s, err := c.StreamInfo(ctx, channel)
	return s != nil, err
}

// FollowDate returns when a user followed a channel; ok=false when they don't.
func (c *Client) FollowDate(ctx context.Context, channelID, userID int64) (time.Time, bool, error) {
	var body struct {
		Data []struct {
			FollowedAt time.Time `json:"followed_at"`
		} `json:"data"`
	}
	err := c.helixGet(ctx, "/channels/followers", map[string]string{
		"broadcaster_id": strconv.FormatInt(channelID, 10),
		"user_id":        strconv.FormatInt(userID, 10),
	}, &body)
	if err != nil {
		return time.Time{}, false, err
	}
	if len(body.Data) == 0 {
		return time.Time{}, false, nil
	}
	return body.Data[0].FollowedAt, true, nil
}

// Chatters lists everyone present in a channel's chat via the unauthenticated
// TMI endpoint; nil when the room is empty.
func (c *Client) Chatters(ctx context.Context, channel string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/group/user/%s/chatters", c.TMIBase, channel), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tmi chatters: %s", resp.Status)
	}
	var body struct {
		Chatters struct {
			Broadcaster []string `json:"broadcaster"`
			VIPs        []string `json:"vips"`
			Moderators  []string `json:"moderators"`
			Staff       []string `json:"staff"`
			Admins      []string `json:"admins"`
			GlobalMods  []string `json:"global_mods"`
			Viewers     []string `json:"viewers"`
		} `json:"chatters"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	var out []string
	out = append(out, body.Chatters.Broadcaster...)
	out = append(out, body.Chatters.VIPs...)
	out = append(out, body.Chatters.Moderators...)
	out = append(out, body.Chatters.Staff...)
	out = append(out, body.Chatters.Admins...)
	out = append(out, body.Chatters.GlobalMods...)
	out = append(out, body.Chatters.Viewers...)
	return out, nil
}
