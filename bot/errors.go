package bot

import "errors"

// Failure taxonomy for handler results. Most malformed input is handled
// locally with an explanatory "❌ ..." reply instead of an error; these
// sentinels cover the cases that propagate to the dispatcher boundary, where
// any failure becomes a best-effort user-facing string.
var (
	ErrNotFound              = errors.New("item not found")
	ErrMissingArgument       = errors.New("missing argument")
	ErrInsufficientPrivilege = errors.New("insufficient privilege")
)

// requireElevated gates a handler on the mod/vip/broadcaster badges.
func requireElevated(s Sender) error {
	if s.IsElevated() {
		return nil
	}
	return ErrInsufficientPrivilege
}

// replyFor maps sentinel failures to their chat replies. Anything else is
// internal and gets the generic apology.
func replyFor(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrInsufficientPrivilege):
		return "❌ not high enough status", true
	case errors.Is(err, ErrMissingArgument):
		return "❌ missing argument", true
	case errors.Is(err, ErrNotFound):
		return "❌ item not found", true
	}
	return "", false
}
