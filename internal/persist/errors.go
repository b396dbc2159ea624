package persist

import "errors"

// Failure reasons surfaced by the file-backed persistor. Callers classify
// with errors.Is; the underlying cause is wrapped alongside.
var (
	ErrFileOpen      = errors.New("failed to open state file")
	ErrFileUnlink    = errors.New("failed to remove state file")
	ErrReadDir       = errors.New("failed to read state directory")
	ErrPointerCreate = errors.New("failed to create state pointer")
	ErrPointerUnlink = errors.New("failed to remove state pointer")
	ErrSerialize     = errors.New("failed to encode state")
	ErrDeserialize   = errors.New("failed to decode state")
)
