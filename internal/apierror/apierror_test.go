/*
Copyright 2024 FraudLens Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package apierror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/fraudlens/caseflow/internal/apierror"
	"github.com/stretchr/testify/assert"
)

func TestNewAPIError(t *testing.T) {
	details := "Some internal error details"
	apiErr := apierror.NewAPIError(apierror.ErrInternalServer, "Something went wrong", details)

	assert.Equal(t, apierror.ErrInternalServer, apiErr.Code)
	assert.Equal(t, "Something went wrong", apiErr.Message)
	assert.Equal(t, details, apiErr.Details)
	assert.Equal(t, "INTERNAL_SERVER_ERROR: Something went wrong", apiErr.Error())
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "NotFound Error",
			err:      apierror.NewAPIError(apierror.ErrNotFound, "Resource not found", nil),
			expected: http.StatusNotFound,
		},
		{
			name:     "Conflict Error",
			err:      apierror.NewAPIError(apierror.ErrConflict, "Conflict occurred", nil),
			expected: http.StatusConflict,
		},
		{
			name:     "InvalidInput Error",
			err:      apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid input", nil),
			expected: http.StatusBadRequest,
		},
		{
			name:     "InvalidTransition Error",
			err:      apierror.NewAPIError(apierror.ErrInvalidTransition, "Case already moved on", nil),
			expected: http.StatusUnprocessableEntity,
		},
		{
			name:     "Unauthorized Error",
			err:      apierror.NewAPIError(apierror.ErrUnauthorized, "Not permitted", nil),
			expected: http.StatusForbidden,
		},
		{
			name:     "SideEffectFailure Error",
			err:      apierror.NewAPIError(apierror.ErrSideEffectFailure, "Mail relay down", nil),
			expected: http.StatusBadGateway,
		},
		{
			name:     "DuplicateTimelineEntry Error",
			err:      apierror.NewAPIError(apierror.ErrDuplicateTimelineEntry, "Stage already recorded", nil),
			expected: http.StatusConflict,
		},
		{
			name:     "Wrapped Error",
			err:      fmt.Errorf("advance: %w", apierror.NewAPIError(apierror.ErrNotFound, "Case not found", nil)),
			expected: http.StatusNotFound,
		},
		{
			name:     "InternalServerError",
			err:      apierror.NewAPIError(apierror.ErrInternalServer, "Internal server error", nil),
			expected: http.StatusInternalServerError,
		},
		{
			name:     "Unknown Error",
			err:      errors.New("Unknown error"),
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statusCode := apierror.MapErrorToHTTPStatus(tt.err)
			assert.Equal(t, tt.expected, statusCode)
		})
	}
}

func TestUnwrapCause(t *testing.T) {
	cause := errors.New("smtp relay refused connection")
	apiErr := apierror.NewAPIError(apierror.ErrSideEffectFailure, "Notifier failed", cause)

	assert.ErrorIs(t, apiErr, cause)
	assert.True(t, apierror.Is(apiErr, apierror.ErrSideEffectFailure))
	assert.False(t, apierror.Is(cause, apierror.ErrSideEffectFailure))
	assert.Equal(t, apierror.ErrorCode(""), apierror.CodeOf(cause))
}
