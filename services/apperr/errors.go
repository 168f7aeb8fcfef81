// Package apperr defines the error taxonomy shared by the services and the
// REST boundary. Component operations wrap these sentinels with %w; the
// controllers map them to status codes, and the scheduler swallows them at
// the per-item level.
package apperr

import (
	"errors"
	"net/http"

	"gorm.io/gorm"
)

var (
	// ErrMissingCredential means a required API key is absent or could not
	// be decrypted. Fatal to the single operation, not the process.
	ErrMissingCredential = errors.New("required credential is not configured")

	// ErrUnsupportedProvider means the configured provider name is unknown.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrNotConfigured means a component dependency (bot token, chat id)
	// is missing from settings.
	ErrNotConfigured = errors.New("service is not configured")

	// ErrUpstream means a third-party API rejected or errored. Retried only
	// on the next scheduled cycle, never immediately.
	ErrUpstream = errors.New("upstream service error")

	// ErrPersistence means a storage write failed; the operation aborted
	// with no partial commit.
	ErrPersistence = errors.New("persistence failure")

	// ErrDelivery means the message transport failed; the notification
	// stays pending with no auto-retry within the same pass.
	ErrDelivery = errors.New("delivery failure")

	// ErrNoData means an operation needs historical rows that do not exist.
	ErrNoData = errors.New("no data available")

	// ErrAlreadySent means a notification was asked to deliver twice; sent
	// rows are never mutated again.
	ErrAlreadySent = errors.New("notification already sent")
)

// IsConfiguration reports whether err belongs to the configuration family.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrUnsupportedProvider) ||
		errors.Is(err, ErrNotConfigured)
}

// HTTPStatus maps a service error onto the REST boundary's status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, ErrNoData):
		return http.StatusNotFound
	case IsConfiguration(err), errors.Is(err, ErrAlreadySent):
		return http.StatusBadRequest
	case errors.Is(err, ErrUpstream), errors.Is(err, ErrDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
