package contracts

import "errors"

// Sentinel errors shared across stages. Compare with errors.Is.
var (
	// ErrNoSnapshot is returned when a source has nothing for the season
	ErrNoSnapshot = errors.New("no snapshot available")

	// ErrUnknownCurve is returned for a factor whose curve type is not supported
	ErrUnknownCurve = errors.New("unknown curve type")

	// ErrMissingRank marks a team the playoff engine was asked to score without an authoritative rank
	ErrMissingRank = errors.New("missing authoritative rank")

	// ErrDuplicateRank fails a whole playoff pass: ranks must be unique
	ErrDuplicateRank = errors.New("duplicate authoritative rank")

	// ErrUnresolvedClassification marks a team absent from the reference list
	ErrUnresolvedClassification = errors.New("unresolved classification")

	// ErrInvalidPosition is returned when a position code cannot be parsed
	ErrInvalidPosition = errors.New("invalid position")

	// ErrNotFound is returned by readers when a record does not exist
	ErrNotFound = errors.New("not found")
)
