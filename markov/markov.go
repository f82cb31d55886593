// Package markov maintains the per-channel word adjacency tables learned from
// chat and samples chains from them. Rows are deliberately not aggregated:
// repeated (word, succ) pairs produce repeated rows, so row multiplicity is
// the frequency weight that sampling relies on.
package markov

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/onnwee/stammer/telemetry"
)

// brailleBlank is the invisible character chatters use to defeat Twitch's
// duplicate-message suppression. Tokens carrying it are noise, not language.
const brailleBlank = "⠀"

const (
	invalidFrontChars = `"'«「“‘([{,.; ` + brailleBlank
	invalidBackChars  = `"'»」”’)]},.; ` + brailleBlank + `!?`
)

// EmoteChecker decides whether a token is a known emote, in which case its
// casing is preserved during ingestion.
type EmoteChecker interface {
	Has(channel, token string, messageEmotes []string) bool
}

// Store reads and writes the per-channel adjacency tables, keyed by the
// channel's numeric id (stable across renames).
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{DB: db} }

// Ingest tokenizes a chat message and appends one adjacency row per surviving
// adjacent token pair. Pairing is positional over the raw token list: a
// discarded token suppresses the pairs it belongs to but does not shift its
// neighbours together.
func (s *Store) Ingest(ctx context.Context, channelID int64, channelName, text string, emotes EmoteChecker, messageEmotes []string) error {
	words := tokenize(channelName, text, emotes, messageEmotes)
	q := fmt.Sprintf(`INSERT INTO channel_%d_markov(word, succ) VALUES($1,$2)`, channelID)
	for i := 0; i+1 < len(words); i++ {
		if words[i] == "" || words[i+1] == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, q, words[i], words[i+1]); err != nil {
			return fmt.Errorf("insert markov pair: %w", err)
		}
		if telemetry.MarkovRowsIngested != nil {
			telemetry.MarkovRowsIngested.Inc()
		}
	}
	return nil
}

// Successors returns every recorded successor of word, case-insensitively,
// one element per stored row.
func (s *Store) Successors(ctx context.Context, channelID int64, word string) ([]string, error) {
	q := fmt.Sprintf(`SELECT succ FROM channel_%d_markov WHERE LOWER(word)=LOWER($1)`, channelID)
	rows, err := s.DB.QueryContext(ctx, q, word)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var succ string
		if err := rows.Scan(&succ); err != nil {
			return nil, err
		}
		out = append(out, succ)
	}
	return out, rows.Err()
}

// tokenize splits on spaces and normalizes each token; discarded tokens stay
// in place as "" so pairing remains positional.
func tokenize(channelName, text string, emotes EmoteChecker, messageEmotes []string) []string {
	raw := strings.Split(text, " ")
	out := make([]string, len(raw))
	for i, w := range raw {
		out[i] = normalizeToken(channelName, w, emotes, messageEmotes)
	}
	return out
}

// normalizeToken strips the unwanted leading/trailing characters and returns
// "" for tokens that should not be indexed: empty after stripping, still
// carrying the braille blank, or URL-shaped. Everything else is folded to
// lowercase unless the exact-case token is a known emote.
func normalizeToken(channelName, token string, emotes EmoteChecker, messageEmotes []string) string {
	out := strings.TrimLeft(token, invalidFrontChars)
	out = strings.TrimRight(out, invalidBackChars)

	if out == "" || strings.Contains(out, brailleBlank) ||
		strings.Contains(out, "//") || strings.Contains(out, "www.") {
		return ""
	}
	if emotes != nil && emotes.Has(channelName, out, messageEmotes) {
		return out
	}
	return strings.ToLower(out)
}
