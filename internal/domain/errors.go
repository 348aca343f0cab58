package domain

import "errors"

var (
	// ErrSourceUnavailable covers network failures, timeouts, and non-200
	// responses from the upstream newsletter page.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNoContent means the page was retrieved but yielded no usable
	// sections; callers treat it the same as a fetch failure.
	ErrNoContent = errors.New("no content for date")

	// ErrNoDigestAvailable is returned when neither a fresh build nor a
	// fallback to an earlier digest is possible.
	ErrNoDigestAvailable = errors.New("no digest available")

	// ErrConflict signals that another builder persisted the digest first.
	ErrConflict = errors.New("digest already exists")

	// ErrInvalidDate rejects malformed calendar dates at the boundary.
	ErrInvalidDate = errors.New("invalid date")
)
