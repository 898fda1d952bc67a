package errors

import "fmt"

// Core taxonomy. Every service operation resolves its failure to one of
// these sentinels (possibly wrapped with context via %w) so that the
// transport layer can map them without inspecting error strings.
var (
	// ErrNotFound covers both missing and soft-deleted entities.
	ErrNotFound = fmt.Errorf("not found")
	// ErrForbidden means the actor is not sender/participant/creator.
	ErrForbidden = fmt.Errorf("forbidden")
	// ErrConflict signals a lost write race (direct conversation dedup).
	// Callers resolve it by retrying as a lookup, it never reaches clients.
	ErrConflict = fmt.Errorf("conflict")
	// ErrUnauthenticated is surfaced at the connection/request boundary only.
	ErrUnauthenticated = fmt.Errorf("unauthenticated")
	// ErrStorage wraps any persistence-level failure.
	ErrStorage = fmt.Errorf("storage failure")
)

// Account errors used by the auth service.
var (
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

var ErrWorkerPanic = fmt.Errorf("worker panic")
