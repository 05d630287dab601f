package coordinator

import "errors"

var (
	// ErrReauthRequired is returned by Poll when the cloud rejected the API
	// key. The caller must obtain a new key; retrying will not help.
	ErrReauthRequired = errors.New("coordinator: re-authentication required")

	// ErrUpdateFailed is returned by Poll for every other failure. The
	// previous device table is kept and marked stale.
	ErrUpdateFailed = errors.New("coordinator: update failed")

	// ErrAlreadyRunning is returned by Start when called twice.
	ErrAlreadyRunning = errors.New("coordinator: already running")
)
