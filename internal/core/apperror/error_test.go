package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ChainHelpers(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("write book: %w", NewBackend("xlsx", cause))

	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeBackend, appErr.Code)
	assert.Equal(t, http.StatusBadGateway, GetHTTPStatus(err))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, HasCode(err, CodeBackend))
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "caused by: disk full")
}

func TestAppError_Details(t *testing.T) {
	err := NewReservedSyntax("column uses reserved syntax").
		WithDetail("sheet", "Orders").
		WithDetail("columns", []string{"a(b)"})

	assert.Equal(t, "Orders", err.Details["sheet"])
	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
	assert.Equal(t, "RESERVED_SYNTAX: column uses reserved syntax", err.Error())
}

func TestGetHTTPStatus_PlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
	assert.False(t, IsAppError(errors.New("boom")))
}
