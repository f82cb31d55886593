package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store is the data access layer shared by the dispatcher, the event loop and
// the background workers. All per-channel accessors key tables by the
// channel's numeric id.
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{DB: db} }

// Reminder is a pending one-shot message for a user, delivered on their next
// chat message after the raise time.
type Reminder struct {
	ID         int64
	FromUserID int64
	ForUserID  int64
	RaiseAt    time.Time
	Message    string
}

// HookRow mirrors a channel_hooks row.
type HookRow struct {
	Pattern   string
	MatchKind string
	Response  string
}

// LogMessage appends a chat message to the channel's raw log.
func (s *Store) LogMessage(ctx context.Context, channelID, senderID int64, senderName, badges, message string, ts time.Time) error {
	q := fmt.Sprintf(`INSERT INTO channel_%d (sender_id, sender_name, badges, message, created_at) VALUES ($1,$2,$3,$4,$5)`, channelID)
	_, err := s.DB.ExecContext(ctx, q, senderID, senderName, badges, message, ts)
	return err
}

// FirstMessage returns the earliest logged message of a user in a channel.
func (s *Store) FirstMessage(ctx context.Context, channelID, senderID int64) (string, bool, error) {
	q := fmt.Sprintf(`SELECT message FROM channel_%d WHERE sender_id=$1 ORDER BY id ASC LIMIT 1`, channelID)
	var msg string
	err := s.DB.QueryRowContext(ctx, q, senderID).Scan(&msg)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return msg, true, nil
}

// WordRatio returns the fraction of a user's logged non-command messages in a
// channel that contain the given word.
func (s *Store) WordRatio(ctx context.Context, channelID, userID int64, word string, prefix rune) (float64, error) {
	var withWord, total int64
	q := fmt.Sprintf(`SELECT COUNT(*) FROM channel_%d WHERE sender_id=$1 AND message LIKE '%%' || $2 || '%%' AND message NOT LIKE $3 || '%%'`, channelID)
	if err := s.DB.QueryRowContext(ctx, q, userID, word, string(prefix)).Scan(&withWord); err != nil {
		return 0, err
	}
	q = fmt.Sprintf(`SELECT COUNT(*) FROM channel_%d WHERE sender_id=$1 AND message NOT LIKE $2 || '%%'`, channelID)
	if err := s.DB.QueryRowContext(ctx, q, userID, string(prefix)).Scan(&total); err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return float64(withWord) / float64(total), nil
}

// Aliases -------------------------------------------------------------------

// SetAlias creates or replaces an alias owned by a user.
func (s *Store) SetAlias(ctx context.Context, ownerID int64, alias, expansion string) error {
	q := `INSERT INTO user_aliases(owner_id, alias, expansion) VALUES($1,$2,$3)
		  ON CONFLICT(owner_id, alias) DO UPDATE SET expansion=EXCLUDED.expansion`
	_, err := s.DB.ExecContext(ctx, q, ownerID, alias, expansion)
	return err
}

// GetAlias looks up an alias expansion for a user.
func (s *Store) GetAlias(ctx context.Context, ownerID int64, alias string) (string, bool, error) {
	var expansion string
	err := s.DB.QueryRowContext(ctx, `SELECT expansion FROM user_aliases WHERE owner_id=$1 AND alias=$2`, ownerID, alias).Scan(&expansion)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return expansion, true, nil
}

// RemoveAlias deletes an alias; returns the number of rows removed.
func (s *Store) RemoveAlias(ctx context.Context, ownerID int64, alias string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM user_aliases WHERE owner_id=$1 AND alias=$2`, ownerID, alias)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Channel commands -----------------------------------------------------------

// UpsertChannelCommand creates or replaces a custom command for a channel.
func (s *Store) UpsertChannelCommand(ctx context.Context, channelID int64, name, kind, expression string) error {
	q := fmt.Sprintf(`INSERT INTO channel_%d_commands(name, kind, expression, usage_count) VALUES($1,$2,$3,0)
		ON CONFLICT(name) DO UPDATE SET kind=EXCLUDED.kind, expression=EXCLUDED.expression, usage_count=0`, channelID)
	_, err := s.DB.ExecContext(ctx, q, name, kind, expression)
	return err
}

// GetChannelCommand increments a command's usage counter and returns its kind,
// expression and the post-increment counter. The increment and the read are
// two independent round trips; concurrent invocations of the same command may
// interleave, which is acceptable for a usage counter.
func (s *Store) GetChannelCommand(ctx context.Context, channelID int64, name string) (kind, expression string, usage int64, found bool, err error) {
	q := fmt.Sprintf(`UPDATE channel_%d_commands SET usage_count = usage_count + 1 WHERE name=$1`, channelID)
	if _, err = s.DB.ExecContext(ctx, q, name); err != nil {
		return "", "", 0, false, err
	}
	q = fmt.Sprintf(`SELECT kind, expression, usage_count FROM channel_%d_commands WHERE name=$1`, channelID)
	err = s.DB.QueryRowContext(ctx, q, name).Scan(&kind, &expression, &usage)
	if err == sql.ErrNoRows {
		return "", "", 0, false, nil
	}
	if err != nil {
		return "", "", 0, false, err
	}
	return kind, expression, usage, true, nil
}

// RemoveChannelCommand deletes a custom command; returns the rows removed.
func (s *Store) RemoveChannelCommand(ctx context.Context, channelID int64, name string) (int64, error) {
	q := fmt.Sprintf(`DELETE FROM channel_%d_commands WHERE name=$1`, channelID)
	res, err := s.DB.ExecContext(ctx, q, name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Reminders ------------------------------------------------------------------

// InsertReminder stores a reminder to be delivered at its raise time.
func (s *Store) InsertReminder(ctx context.Context, r *Reminder) error {
	q := `INSERT INTO user_reminders(from_user_id, for_user_id, raise_at, message) VALUES($1,$2,$3,$4)`
	_, err := s.DB.ExecContext(ctx, q, r.FromUserID, r.ForUserID, r.RaiseAt, r.Message)
	return err
}

// DueReminders returns all reminders due for a user and deletes them.
func (s *Store) DueReminders(ctx context.Context, forUserID int64) ([]Reminder, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, from_user_id, for_user_id, raise_at, message FROM user_reminders WHERE for_user_id=$1 AND raise_at <= NOW()`, forUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Reminder
	for rows.Next() {
		var r Reminder
		if err := rows.Scan(&r.ID, &r.FromUserID, &r.ForUserID, &r.RaiseAt, &r.Message); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, r := range out {
		if _, err := s.DB.ExecContext(ctx, `DELETE FROM user_reminders WHERE id=$1`, r.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ClearSentReminders deletes every undelivered reminder a user has created;
// returns the number removed.
func (s *Store) ClearSentReminders(ctx context.Context, fromUserID int64) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM user_reminders WHERE from_user_id=$1`, fromUserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Lurk status ----------------------------------------------------------------

// SetLurk marks a user AFK from the given time.
func (s *Store) SetLurk(ctx context.Context, userID int64, since time.Time) error {
	q := `INSERT INTO lurkers(lurker_id, since) VALUES($1,$2) ON CONFLICT(lurker_id) DO UPDATE SET since=EXCLUDED.since`
	_, err := s.DB.ExecContext(ctx, q, userID, since)
	return err
}

// EndLurk clears a user's AFK status and returns how long it lasted.
func (s *Store) EndLurk(ctx context.Context, userID int64) (time.Duration, bool, error) {
	var since time.Time
	err := s.DB.QueryRowContext(ctx, `SELECT since FROM lurkers WHERE lurker_id=$1`, userID).Scan(&since)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM lurkers WHERE lurker_id=$1`, userID); err != nil {
		return 0, false, err
	}
	return time.Since(since), true, nil
}

// Offline-time accrual --------------------------------------------------------

// AddOfflinerMinute upserts +60s of offline chat presence for a user.
func (s *Store) AddOfflinerMinute(ctx context.Context, channelID, offlinerID int64) error {
	q := fmt.Sprintf(`INSERT INTO channel_%d_offliners(offliner_id, time_s) VALUES($1, 60)
		ON CONFLICT(offliner_id) DO UPDATE SET time_s = channel_%d_offliners.time_s + 60`, channelID, channelID)
	_, err := s.DB.ExecContext(ctx, q, offlinerID)
	return err
}

// OfflineTime returns the accrued offline chat time of a user in a channel.
func (s *Store) OfflineTime(ctx context.Context, channelID, offlinerID int64) (time.Duration, error) {
	q := fmt.Sprintf(`SELECT time_s FROM channel_%d_offliners WHERE offliner_id=$1`, channelID)
	var secs int64
	err := s.DB.QueryRowContext(ctx, q, offlinerID).Scan(&secs)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// Hooks ----------------------------------------------------------------------

// GetChannelHooks loads all hooks configured for a channel.
func (s *Store) GetChannelHooks(ctx context.Context, channelID int64) ([]HookRow, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT pattern, match_kind, response FROM channel_hooks WHERE channel_id=$1`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HookRow
	for rows.Next() {
		var h HookRow
		if err := rows.Scan(&h.Pattern, &h.MatchKind, &h.Response); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// InsertHook creates or replaces a hook for a channel.
func (s *Store) InsertHook(ctx context.Context, channelID int64, h HookRow) error {
	q := `INSERT INTO channel_hooks(channel_id, pattern, match_kind, response) VALUES($1,$2,$3,$4)
		  ON CONFLICT(channel_id, pattern) DO UPDATE SET match_kind=EXCLUDED.match_kind, response=EXCLUDED.response`
	_, err := s.DB.ExecContext(ctx, q, channelID, h.Pattern, h.MatchKind, h.Response)
	return err
}

// DeleteHook removes a hook; returns the rows removed.
func (s *Store) DeleteHook(ctx context.Context, channelID int64, pattern string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM channel_hooks WHERE channel_id=$1 AND pattern=$2`, channelID, pattern)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Misc -----------------------------------------------------------------------

// SaveSuggestion stores a user suggestion.
func (s *Store) SaveSuggestion(ctx context.Context, senderID int64, senderName, text string, ts time.Time) error {
	q := `INSERT INTO user_feedback(sender_id, sender_name, message, created_at) VALUES($1,$2,$3,$4)`
	_, err := s.DB.ExecContext(ctx, q, senderID, senderName, text, ts)
	return err
}

// GetExplanation looks up the long-form explanation of an error code.
func (s *Store) GetExplanation(ctx context.Context, code string) (string, bool, error) {
	var msg string
	err := s.DB.QueryRowContext(ctx, `SELECT message FROM explanations WHERE code=$1`, code).Scan(&msg)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return msg, true, nil
}

// LogCommandHistory appends one row per top-level command dispatch.
func (s *Store) LogCommandHistory(ctx context.Context, senderID int64, senderName, command, args string, elapsed time.Duration, output string) error {
	q := `INSERT INTO command_history(sender_id, sender_name, command, args, execution_time_s, output, created_at) VALUES($1,$2,$3,$4,$5,$6,NOW())`
	_, err := s.DB.ExecContext(ctx, q, senderID, senderName, command, args, elapsed.Seconds(), output)
	return err
}
