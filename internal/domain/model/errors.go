package model

import "errors"

var (
	// ErrNotFound is returned by store lookups that match no record.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidCredentials is a login with an unknown id or wrong secret.
	ErrInvalidCredentials = errors.New("invalid id or password")
	// ErrAlreadyLoggedIn is a login while the persisted state is online.
	ErrAlreadyLoggedIn = errors.New("account is already logged in")
	// ErrRegistrationFailed is a store insert failure during registration.
	ErrRegistrationFailed = errors.New("registration failed")
)

// Wire errno codes carried in ack envelopes.
const (
	ErrnoOK                 = 0
	ErrnoInvalidCredentials = 1
	ErrnoAlreadyLoggedIn    = 2
	ErrnoRegistrationFailed = 1
)
