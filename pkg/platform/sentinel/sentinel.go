package sentinel

import "errors"

// Sentinel errors for infrastructure facts. KV backends and HTTP clients return
// these (optionally wrapped) so services can decide whether to degrade or fail:
// - ErrNotFound: key does not exist in the store
// - ErrConflict: optimistic update lost a race too many times
// - ErrUnavailable: backend or remote endpoint temporarily unavailable
//
// For user-input failures use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
