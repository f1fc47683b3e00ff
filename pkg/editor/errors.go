package editor

import "errors"

var (
	// ErrNotReady is returned for edits and saves before a flow is loaded.
	ErrNotReady = errors.New("flow is not ready")

	// ErrSaveInProgress is returned when Save is called while a save is in flight.
	ErrSaveInProgress = errors.New("save already in progress")

	// ErrClosed is returned once the editor has been closed. Results of calls
	// that were in flight at Close are discarded.
	ErrClosed = errors.New("editor closed")

	// ErrAlreadyLoaded is returned by Load on an editor that holds a different flow.
	ErrAlreadyLoaded = errors.New("editor already holds a flow")

	// ErrNoFailedLoad is returned by Retry when the last load did not fail.
	ErrNoFailedLoad = errors.New("no failed load to retry")

	// ErrNotMessageNode is returned when a template is applied to a non-message node.
	ErrNotMessageNode = errors.New("node is not a message node")
)

// IsNotReady checks if an error indicates the editor has no loaded flow.
func IsNotReady(err error) bool {
	return errors.Is(err, ErrNotReady)
}
