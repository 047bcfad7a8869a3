package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// - ErrNotFound: row does not exist in the store
// - ErrConflict: the store refused the write because a concurrent
//   transaction touched the same rows (serialization failure, deadlock)
// - ErrUnavailable: store temporarily unreachable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
