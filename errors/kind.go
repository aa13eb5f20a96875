package errors

import (
	"context"
	"net/http"
)

type Kind string

const (
	KindOutOfBounds     Kind = "out_of_bounds"
	KindNotFound        Kind = "not_found"
	KindNothingToCommit Kind = "nothing_to_commit"
	KindRepositoryState Kind = "repository_state"
	KindTypeConflict    Kind = "type_conflict"
	KindLockTimeout     Kind = "lock_timeout"
	KindInvalidParams   Kind = "invalid_params"
	KindInvalidConfig   Kind = "invalid_config"
	KindUnavailable     Kind = "unavailable"
	KindCanceled        Kind = "canceled"
	KindInternal        Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrOutOfBounds, KindOutOfBounds},
	{ErrNotFound, KindNotFound},
	{ErrNothingToCommit, KindNothingToCommit},
	{ErrRepositoryState, KindRepositoryState},
	{ErrTypeConflict, KindTypeConflict},
	{ErrLockTimeout, KindLockTimeout},
	{ErrInvalidParams, KindInvalidParams},
	{ErrInvalidConfig, KindInvalidConfig},
	{ErrScraperDisabled, KindUnavailable},
	{ErrUpstream, KindUnavailable},
	{context.DeadlineExceeded, KindCanceled},
	{context.Canceled, KindCanceled},
}

// KindOf returns the stable kind of err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

func (k Kind) HTTPStatus() int {
	switch k {
	case "", KindNothingToCommit:
		return http.StatusOK
	case KindOutOfBounds:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTypeConflict:
		return http.StatusConflict
	case KindLockTimeout, KindUnavailable:
		return http.StatusServiceUnavailable
	case KindInvalidParams:
		return http.StatusBadRequest
	case KindCanceled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may retry the failed operation unchanged.
func (k Kind) Retryable() bool {
	return k == KindLockTimeout
}
