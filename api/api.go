// Package api holds the stateless third-party collaborators: one
// request/parse/return function per service, no caching of their own. The
// core caches around these where it matters.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// Client carries the shared HTTP client and the service base URLs
// (overridable for tests).
type Client struct {
	HTTPClient *http.Client

	WttrBase    string
	DictBase    string
	WikiBase    string
	UrbanBase   string
	RedditBase  string
	DeepLBase   string
	TriviaBase  string
	HastebinURL string
}

func NewClient() *Client {
	return &Client{
		WttrBase:    "https://wttr.in",
		DictBase:    "https://api.dictionaryapi.dev/api/v2",
		WikiBase:    "https://en.wikipedia.org/w/api.php",
		UrbanBase:   "https://api.urbandictionary.com/v0",
		RedditBase:  "https://www.reddit.com",
		DeepLBase:   "https://api-free.deepl.com/v2",
		TriviaBase:  "https://opentdb.com",
		HastebinURL: "https://hastebin.com",
	}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	// reddit rejects the default Go user agent
	req.Header.Set("User-Agent", "stammer-bot/1.0")
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
		return fmt.Errorf("GET %s: %s", rawURL, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Weather builds a one-line weather report for a location from wttr.in;
// ok=false when the location is not identified.
func (c *Client) Weather(ctx context.Context, location string) (string, bool, error) {
	var w struct {
		CurrentCondition []struct {
			TempC          string `json:"temp_C"`
			Humidity       string `json:"humidity"`
			Pressure       string `json:"pressure"`
			PrecipMM       string `json:"precipMM"`
			WindspeedKmph  string `json:"windspeedKmph"`
			Winddir16Point string `json:"winddir16Point"`
		} `json:"current_condition"`
		NearestArea []struct {
			AreaName []struct {
				Value string `json:"value"`
			} `json:"areaName"`
			Country []struct {
				Value string `json:"value"`
			} `json:"country"`
		} `json:"nearest_area"`
	}
	u := fmt.Sprintf("%s/%s?format=j1", c.WttrBase, url.PathEscape(location))
	if err := c.getJSON(ctx, u, &w); err != nil {
		return "", false, err
	}
	if len(w.CurrentCondition) == 0 || len(w.NearestArea) == 0 ||
		len(w.NearestArea[0].AreaName) == 0 || len(w.NearestArea[0].Country) == 0 {
		return "", false, nil
	}
	cc := w.CurrentCondition[0]
	area := w.NearestArea[0].AreaName[0].Value
	country := w.NearestArea[0].Country[0].Value
	report := fmt.Sprintf("Weather in %s, %s: 🌡️ %s°C, 🌫️ %s%%, 🔽 %shPa, 💧 %smm, 💨 %skm/h %s",
		area, country, cc.TempC, cc.Humidity, cc.Pressure, cc.PrecipMM, cc.WindspeedKmph, cc.Winddir16Point)
	return report, true, nil
}

// Define returns the first dictionary definition of an English word.
func (c *Client) Define(ctx context.Context, word string) (string, bool, error) {
	var entries []struct {
		Meanings []struct {
			PartOfSpeech string `json:"partOfSpeech"`
			Definitions  []struct {
				Definition string `json:"definition"`
			} `json:"definitions"`
		} `json:"meanings"`
	}
	u := fmt.Sprintf("%s/entries/en/%s", c.DictBase, url.PathEscape(word))
	if err := c.getJSON(ctx, u, &entries); err != nil {
		// dictionaryapi answers 404 for unknown words
		if strings.Contains(err.Error(), "404") {
			return "", false, nil
		}
		return "", false, err
	}
	if len(entries) == 0 || len(entries[0].Meanings) == 0 || len(entries[0].Meanings[0].Definitions) == 0 {
		return "", false, nil
	}
	m := entries[0].Meanings[0]
	return fmt.Sprintf("%s (%s): %s", word, m.PartOfSpeech, m.Definitions[0].Definition), true, nil
}

// Wikipedia returns the first sentence of an article's extract.
func (c *Client) Wikipedia(ctx context.Context, title string) (string, bool, error) {
	var body struct {
		Query struct {
			Pages map[string]struct {
				Extract string `json:"extract"`
			} `json:"pages"`
		} `json:"query"`
	}
	q := url.Values{}
	q.Set("format", "json")
	q.Set("action", "query")
	q.Set("prop", "extracts")
	q.Set("exintro", "")
	q.Set("explaintext", "")
	q.Set("redirects", "1")
	q.Set("titles", title)
	if err := c.getJSON(ctx, c.WikiBase+"?"+q.Encode(), &body); err != nil {
		return "", false, err
	}
	for id, page := range body.Query.Pages {
		if id == "-1" || page.Extract == "" {
			continue
		}
		abs, _, _ := strings.Cut(page.Extract, ".")
		return abs + ".", true, nil
	}
	return "", false, nil
}

// Urban returns the top urbandictionary definition of a term.
func (c *Client) Urban(ctx context.Context, term string) (string, bool, error) {
	var body struct {
		List []struct {
			Definition string `json:"definition"`
		} `json:"list"`
	}
	u := fmt.Sprintf("%s/define?term=%s", c.UrbanBase, url.QueryEscape(term))
	if err := c.getJSON(ctx, u, &body); err != nil {
		return "", false, err
	}
	if len(body.List) == 0 {
		return "", false, nil
	}
	def := strings.NewReplacer("[", "", "]", "").Replace(body.List[0].Definition)
	return def, true, nil
}

// RedditTop returns the title and permalink of a subreddit's current top post.
func (c *Client) RedditTop(ctx context.Context, subreddit string) (string, bool, error) {
	var body struct {
		Data struct {
			Children []struct {
				Data struct {
					Title     string `json:"title"`
					Permalink string `json:"permalink"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	u := fmt.Sprintf("%s/r/%s/top.json?limit=1&t=day", c.RedditBase, url.PathEscape(subreddit))
	if err := c.getJSON(ctx, u, &body); err != nil {
		return "", false, err
	}
	if len(body.Data.Children) == 0 {
		return "", false, nil
	}
	p := body.Data.Children[0].Data
	return fmt.Sprintf("%s — https://reddit.com%s", p.Title, p.Permalink), true, nil
}

// Translate translates text via DeepL; requires DEEPL_AUTH_KEY.
func (c *Client) Translate(ctx context.Context, sourceLang, targetLang, text string) (string, error) {
	key := os.Getenv("DEEPL_AUTH_KEY")
	if key == "" {
		return "", fmt.Errorf("DEEPL_AUTH_KEY not set")
	}
	form := url.Values{}
	form.Set("auth_key", key)
	form.Set("text", text)
	form.Set("target_lang", strings.ToUpper(targetLang))
	if sourceLang != "" {
		form.Set("source_lang", strings.ToUpper(sourceLang))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.DeepLBase+"/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http().Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepl translate: %s", resp.Status)
	}
	var body struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if len(body.Translations) == 0 {
		return "", fmt.Errorf("empty translation response")
	}
	return body.Translations[0].Text, nil
}

// UploadPaste uploads content to hastebin and returns the paste URL.
func (c *Client) UploadPaste(ctx context.Context, content string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.HastebinURL+"/documents", strings.NewReader(content))
	if err != nil {
		return "", err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paste upload: %s", resp.Status)
	}
	var body struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return c.HastebinURL + "/" + body.Key, nil
}
