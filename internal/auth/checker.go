package auth

import (
	"context"
	"errors"
)

var ErrNotLoggedIn = errors.New("not logged in")

var _ Checker = (*LoginChecker)(nil)
var _ Checker = (*LoginTestChecker)(nil)

// Checker resolves a session token to the logged in user.
type Checker interface {
	// LoggedUserID returns the user behind the token, or ErrNotLoggedIn
	// when the token is unknown or the session expired.
	LoggedUserID(ctx context.Context, token string) (int, error)
}
