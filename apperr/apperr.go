// Package apperr defines the error classes shared by the store, credential
// and publishing layers. Producers wrap one of the sentinels with context,
// consumers classify with errors.Is.
package apperr

import "errors"

var (
	// ErrConfiguration marks a missing or invalid setting. It is always raised
	// before any network I/O and is never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuthorization marks an OAuth state mismatch, a failed code exchange
	// or a platform account that was never connected.
	ErrAuthorization = errors.New("authorization error")

	// ErrAuthentication marks a failed token refresh or an unreadable stored
	// credential. The user has to run the authorization flow again.
	ErrAuthentication = errors.New("authentication error")

	// ErrPublish marks a rejected publish call. The wrapped message carries
	// the platform's error text verbatim.
	ErrPublish = errors.New("publish failed")

	// ErrPersistence marks a storage failure. It is fatal to the enclosing operation.
	ErrPersistence = errors.New("persistence error")
)

// Kind returns a short class name for err, suitable for structured logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrPublish):
		return "publish"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "internal"
	}
}
