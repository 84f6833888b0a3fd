package application

import "github.com/pericarp/es/pkg/domain"

// This package raises every error as a *domain.Error so bus callers only
// ever pattern-match on one type; these are thin, application-layer-named
// constructors over the shared constructors and codes.

// NewValidationError builds the InvalidValue error ValidationMiddleware
// returns when Validate() fails.
func NewValidationError(field, message string) *domain.Error {
	return domain.NewInvalidValue(field, message)
}

// NewHandlerNotFoundError builds the error returned when a command or
// query has no registered handler.
func NewHandlerNotFoundError(typeName string) *domain.Error {
	return domain.NewHandlerNotFound(typeName)
}

// NewConcurrencyError builds the error surfaced when a command's aggregate
// append loses an optimistic concurrency race.
func NewConcurrencyError(aggregateID string, expected, actual int) *domain.Error {
	return domain.NewVersionConflict(aggregateID, expected, actual)
}
