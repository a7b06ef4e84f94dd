// Package friends keeps the ordered list of tracked LeetCode usernames.
//
// Two backends implement Store: RedisStore, shared by every proxy
// instance, and SQLiteStore, a single embedded file for local use. Both
// keep first-insertion order and treat Add of a known name as a no-op.
package friends

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidUsername is returned for names LeetCode could never accept.
var ErrInvalidUsername = errors.New("invalid username")

// MaxUsernameLength bounds a username.
const MaxUsernameLength = 64

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Store is an ordered set of usernames.
type Store interface {
	// List returns usernames in first-insertion order.
	List(ctx context.Context) ([]string, error)
	// Add appends username unless present; it reports whether it was added.
	Add(ctx context.Context, username string) (bool, error)
	// Remove deletes username; it reports whether it was present.
	Remove(ctx context.Context, username string) (bool, error)
	// Close releases resources.
	Close() error
}

// NormalizeUsername trims s and validates it.
func NormalizeUsername(s string) (string, error) {
	name := strings.TrimSpace(s)
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if len(name) > MaxUsernameLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidUsername, MaxUsernameLength)
	}
	if !usernamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUsername, name)
	}
	return name, nil
}
