// Package errs defines the error taxonomy shared by all layers.
// Every failure in the engine maps to exactly one of these sentinels;
// callers branch with errors.Is.
package errs

import "errors"

var (
	ErrMalformed          = errors.New("credential malformed")
	ErrSignatureInvalid   = errors.New("credential signature invalid")
	ErrExpired            = errors.New("credential expired")
	ErrScopeInsufficient  = errors.New("scope insufficient")
	ErrTokenSuperseded    = errors.New("card token superseded")
	ErrCardNotActive      = errors.New("card is not active")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrConflict           = errors.New("concurrent modification conflict")
)
