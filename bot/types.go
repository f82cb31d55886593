// Package bot implements the command dispatch and stateful session engine:
// invocation parsing, the recursive dispatcher with its composition
// operators, the builtin command handlers, and the chat event loop that
// feeds them.
package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

// Sender identifies who issued a chat message, with the badge set used for
// privilege checks.
type Sender struct {
	ID     int64
	Name   string
	Badges map[string]int
}

// IsElevated reports whether the sender carries any of the mod/vip/broadcaster
// badges.
func (s Sender) IsElevated() bool {
	for _, b := range []string{"moderator", "vip", "broadcaster"} {
		if _, ok := s.Badges[b]; ok {
			return true
		}
	}
	return false
}

// Channel identifies where a message was sent. The numeric id is stable
// across renames and is the sharding key for storage.
type Channel struct {
	ID   int64
	Name string
}

// Invocation is one parsed command request. It lives for the duration of a
// dispatch (a summary row is logged afterwards); recursive re-entries build
// fresh invocations with IsPipe set and Depth bumped.
type Invocation struct {
	Command   string
	Args      []string
	Sender    Sender
	Channel   Channel
	Timestamp time.Time

	// IsPipe suppresses the speak/log side effect so only the outermost
	// dispatch produces visible output.
	IsPipe bool

	// Depth counts recursive re-entries (pipe stages, demultiplex, bench,
	// alias expansion) and is clamped by the dispatcher.
	Depth int
}

// ParseInvocation builds an Invocation from an inbound chat message whose
// first character is the command prefix. The command name is lowercased; the
// arguments keep their casing.
func ParseInvocation(msg twitch.PrivateMessage) (Invocation, error) {
	fields := strings.Split(msg.Message, " ")
	if len(fields) == 0 || len(fields[0]) < 1 {
		return Invocation{}, fmt.Errorf("empty message")
	}
	senderID, err := strconv.ParseInt(msg.User.ID, 10, 64)
	if err != nil {
		return Invocation{}, fmt.Errorf("parse sender id %q: %w", msg.User.ID, err)
	}
	channelID, err := strconv.ParseInt(msg.RoomID, 10, 64)
	if err != nil {
		return Invocation{}, fmt.Errorf("parse room id %q: %w", msg.RoomID, err)
	}
	cmd := strings.ToLower(fields[0])
	_, prefixLen := utf8.DecodeRuneInString(cmd)
	cmd = cmd[prefixLen:]
	return Invocation{
		Command: cmd,
		Args:    fields[1:],
		Sender: Sender{
			ID:     senderID,
			Name:   msg.User.Name,
			Badges: msg.User.Badges,
		},
		Channel:   Channel{ID: channelID, Name: msg.Channel},
		Timestamp: msg.Time,
	}, nil
}

// fmtDuration renders a duration as the largest two non-zero units,
// e.g. "3d 7h" or "12m 4s".
func fmtDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60

	parts := []struct {
		n    int
		unit string
	}{{days, "d"}, {hours, "h"}, {mins, "m"}, {secs, "s"}}

	out := make([]string, 0, 2)
	for _, p := range parts {
		if p.n > 0 {
			out = append(out, fmt.Sprintf("%d%s", p.n, p.unit))
		}
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "0s"
	}
	return strings.Join(out, " ")
}
