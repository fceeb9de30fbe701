package domain

import "errors"

// ErrNotFound indicates a requested record does not exist.
var ErrNotFound = errors.New("domain: not found")

// ErrRateLimited indicates the recommendation rate limit blocked a
// generation. It is a distinct "not allowed yet" outcome, not a fault.
var ErrRateLimited = errors.New("domain: generation rate limit reached")
