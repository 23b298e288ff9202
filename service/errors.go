package service

import "errors"

// Service error taxonomy. Handlers map these onto HTTP responses; anything
// unrecognized is treated as ErrInternal so store and crypto details never
// reach a client.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionExpired covers every broken multi-step flow artifact:
	// expired or mismatched tokens, missing staging entries, wrong OTPs.
	// Clients always see the same generic message so probing one failure
	// mode tells an attacker nothing about the others.
	ErrSessionExpired   = errors.New("session expired")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("already exists")
	ErrInternal         = errors.New("internal error")
)

// SessionOutMessage is the client-facing text for ErrSessionExpired.
const SessionOutMessage = "Session out! Try again."
