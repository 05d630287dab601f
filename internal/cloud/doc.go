// Package cloud is the client for the remote device API.
//
// Every request carries the account API key in the x-sinric-api-key
// header. Transient failures are retried up to a configured number of
// times with linear backoff (unit × attempt), after which a typed error is
// returned:
//
//	HTTP 401/403     → *AuthenticationError  (terminal)
//	HTTP 404         → *DeviceNotFoundError
//	HTTP 429         → *RateLimitError       (RetryAfter from the header)
//	HTTP 408/504     → *TimeoutError         (after retries)
//	HTTP 500/502/503 → *APIError             (after retries)
//	other 4xx/5xx    → *APIError
//	network failure  → *ConnectionError or *TimeoutError (after retries)
//
// Each typed error also matches a package sentinel, so callers may use
// errors.Is(err, cloud.ErrTimeout) or errors.As with the concrete type.
//
// Device actions are fire-and-forget: a nil error means the cloud accepted
// the request. Whether the device applied it is learned from the push
// stream.
package cloud
