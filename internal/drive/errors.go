package drive

import "errors"

// Error kinds returned by the service. Callers match them with errors.Is;
// the wrapped message carries the detail.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidPath  = errors.New("invalid path")
	ErrInvalidState = errors.New("invalid state")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrIOFailure    = errors.New("io failure")
	// ErrInconsistentState means bytes were moved or removed but the metadata
	// commit failed afterwards. It is never retried automatically.
	ErrInconsistentState = errors.New("inconsistent state")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrInconsistentState, "inconsistent_state"},
	{ErrNotFound, "not_found"},
	{ErrInvalidPath, "invalid_path"},
	{ErrInvalidState, "invalid_state"},
	{ErrForbidden, "forbidden"},
	{ErrConflict, "conflict"},
	{ErrIOFailure, "io_failure"},
}

// ErrorKind returns a stable label for err: "ok" for nil, "internal" for
// errors outside the known kinds.
func ErrorKind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
