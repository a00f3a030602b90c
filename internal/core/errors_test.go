package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindMapping(t *testing.T) {
	cases := []struct {
		err    error
		kind   ErrorKind
		status int
	}{
		{ValidationError("bad input"), KindValidation, http.StatusBadRequest},
		{NotFoundError("missing"), KindNotFound, http.StatusNotFound},
		{ConfigurationError("no url"), KindConfiguration, http.StatusInternalServerError},
		{UpstreamError(nil, "down"), KindUpstream, http.StatusBadGateway},
		{TimeoutError(nil, "slow"), KindTimeout, http.StatusRequestTimeout},
		{StorageError(nil, "db gone"), KindStorage, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, KindOf(tc.err))
		assert.Equal(t, tc.status, HTTPStatus(tc.err))
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := UpstreamError(cause, "engine call failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "engine call failed")
	assert.Contains(t, err.Error(), "connection refused")

	// Kind survives further wrapping.
	wrapped := fmt.Errorf("relay: %w", err)
	assert.Equal(t, KindUpstream, KindOf(wrapped))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(wrapped))
}

func TestUnclassifiedErrorDefaultsToStorage(t *testing.T) {
	assert.Equal(t, KindStorage, KindOf(errors.New("plain")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(errors.New("plain")))
}
