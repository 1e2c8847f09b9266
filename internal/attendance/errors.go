package attendance

import "errors"

// Collaborator error kinds. Store adapters wrap their causes with these so
// callers can branch with errors.Is while the original error stays attached.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNetwork          = errors.New("network error")
	ErrNotFound         = errors.New("not found")
	ErrInvalid          = errors.New("invalid input")
)
