package vault

import "errors"

var (
	// ErrClosed is returned by every operation after [Engine.Close].
	//
	// Recovery: none. Open a new engine.
	ErrClosed = errors.New("vault: engine closed")

	// ErrNotFound is returned by [Engine.Delete] when the key holds no
	// document. Loading a missing key is not an error; it yields the
	// type default instead.
	//
	// Recovery: treat as success if the goal was absence.
	ErrNotFound = errors.New("vault: document not found")

	// ErrWrite is returned when the medium rejects a mutation. The
	// previous contents of the key are intact: writes either replace
	// the document completely or leave it untouched.
	//
	// Recovery: retryable once the underlying medium recovers.
	ErrWrite = errors.New("vault: write failed")
)
