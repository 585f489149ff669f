package auth

import "errors"

var (
	// ErrInvalidCredentials covers both unknown email and password
	// mismatch so login failures are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrSessionInvalid     = errors.New("invalid or expired session")
	ErrUserInactive       = errors.New("user not found or inactive")
	ErrApiKeyInvalid      = errors.New("invalid api key")
	ErrUserExists         = errors.New("user with this username or email already exists")
)
