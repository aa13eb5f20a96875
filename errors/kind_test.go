package errors_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/habiliai/docstore/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		kind   errors.Kind
		status int
	}{
		{"nil", nil, "", http.StatusOK},
		{"out of bounds", errors.Wrapf(errors.ErrOutOfBounds, "path %s", "../x"), errors.KindOutOfBounds, http.StatusForbidden},
		{"not found", errors.Wrapf(errors.ErrNotFound, "document %s", "a.md"), errors.KindNotFound, http.StatusNotFound},
		{"nothing to commit", errors.ErrNothingToCommit, errors.KindNothingToCommit, http.StatusOK},
		{"type conflict", errors.Wrapf(errors.ErrTypeConflict, "attribute color"), errors.KindTypeConflict, http.StatusConflict},
		{"lock timeout", errors.ErrLockTimeout, errors.KindLockTimeout, http.StatusServiceUnavailable},
		{"deadline", errors.Wrapf(context.DeadlineExceeded, "commit"), errors.KindCanceled, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), errors.KindInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind := errors.KindOf(tc.err)
			assert.Equal(t, tc.kind, kind)
			assert.Equal(t, tc.status, kind.HTTPStatus())
		})
	}

	assert.True(t, errors.KindLockTimeout.Retryable())
	assert.False(t, errors.KindOutOfBounds.Retryable())
}
