package contact

import "errors"

var (
	// ErrSubmissionFailed is the single user-facing failure kind. Missing
	// relay configuration and provider errors both wrap it.
	ErrSubmissionFailed = errors.New("submission failed")

	// ErrMissingConfig means a relay identifier was empty, so no call was made.
	ErrMissingConfig = errors.New("missing email relay configuration")

	// ErrInFlight rejects a submit while the previous one is still sending.
	ErrInFlight = errors.New("submission already in progress")

	ErrUnknownField       = errors.New("unknown field")
	ErrUnknownServiceType = errors.New("unknown service type")
)
