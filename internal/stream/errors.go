package stream

import "errors"

var (
	// ErrAuthentication is recorded when the stream endpoint rejects the
	// API key. The client stops reconnecting.
	ErrAuthentication = errors.New("stream: authentication failed")

	// ErrUnexpectedStatus is recorded for any other non-200 response.
	ErrUnexpectedStatus = errors.New("stream: unexpected status")

	// ErrStreamEnded is recorded when the server closes the stream.
	ErrStreamEnded = errors.New("stream: ended by server")

	// ErrMaxAttempts is recorded when the reconnect budget is exhausted.
	ErrMaxAttempts = errors.New("stream: maximum reconnection attempts reached")
)
