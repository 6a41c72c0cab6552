package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorKeepsDomainErrors(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewConflict("already escalated", nil))

	de := ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, CodeConflict, de.Code)
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)
}

func TestToDomainErrorWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("connection reset")

	de := ToDomainError(cause)
	require.NotNil(t, de)
	assert.Equal(t, CodeInternal, de.Code)
	assert.ErrorIs(t, de, cause)
	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}

func TestExternalServiceFailureHidesVendorMessage(t *testing.T) {
	cause := errors.New(`{"errorMessages":["project PROJ does not exist"]}`)

	err := NewExternalServiceFailure("issue tracker", cause)
	de := ToDomainError(err)

	assert.Equal(t, CodeExternalService, de.Code)
	assert.Equal(t, http.StatusBadGateway, de.HTTPStatus)
	assert.NotContains(t, de.Message, "PROJ")
	assert.ErrorIs(t, err, cause)
}

func TestHasCode(t *testing.T) {
	assert.True(t, HasCode(NewForbidden("nope"), CodeForbidden))
	assert.False(t, HasCode(NewForbidden("nope"), CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeForbidden))
}

func TestNotFoundMessage(t *testing.T) {
	err := NewNotFound("issue", map[string]any{"issue_id": "abc"})
	de := ToDomainError(err)

	assert.Equal(t, "issue not found", de.Message)
	assert.Equal(t, "abc", de.Details["issue_id"])
}
