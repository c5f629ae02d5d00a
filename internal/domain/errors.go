package domain

import "errors"

var (
	// ErrProviderUnavailable is returned when no question could be fetched or built.
	ErrProviderUnavailable = errors.New("question provider unavailable")
	// ErrAlreadyAnswered is returned when a user answers the same question twice.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrNoQuestion indicates no question is installed yet, usually because the
	// provider has not answered since start-up.
	ErrNoQuestion = errors.New("no question installed")
	// ErrEntryNotFound indicates an unknown ledger entry ID.
	ErrEntryNotFound = errors.New("ledger entry not found")
	// ErrUnknownWindow indicates an unrecognised leaderboard window name.
	ErrUnknownWindow = errors.New("unknown leaderboard window")
	// ErrUnauthenticated is returned when a request carries no usable identity.
	ErrUnauthenticated = errors.New("unauthenticated")
)
