package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about stored records, not validation
// failures:
//   - ErrNotFound: record does not exist in the caller's tenant
//   - ErrDuplicateKey: natural key (MRN, license number) already taken in tenant
//   - ErrConflict: optimistic version check failed, a concurrent write won
//   - ErrFinalized: record is in a terminal state the store refuses to update
//   - ErrUnavailable: backing storage temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrConflict     = errors.New("conflict")
	ErrFinalized    = errors.New("finalized")
	ErrUnavailable  = errors.New("unavailable")
)
