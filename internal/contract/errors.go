package contract

import "errors"

var (
	// ErrInvalidRepository marks a directory that is not a valid checkout of the analyzer's kind.
	ErrInvalidRepository = errors.New("invalid repository")

	// ErrMalformedManifest marks a manifest file that could not be parsed.
	ErrMalformedManifest = errors.New("malformed manifest")

	// ErrWorkspace marks an unreadable workspace root. It aborts the run.
	ErrWorkspace = errors.New("unreadable workspace")
)
