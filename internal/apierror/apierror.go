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

package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound               ErrorCode = "NOT_FOUND"
	ErrConflict               ErrorCode = "CONFLICT"
	ErrBadRequest             ErrorCode = "BAD_REQUEST"
	ErrInvalidInput           ErrorCode = "INVALID_INPUT"
	ErrInternalServer         ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrInvalidTransition      ErrorCode = "INVALID_TRANSITION"
	ErrUnauthorized           ErrorCode = "UNAUTHORIZED"
	ErrSideEffectFailure      ErrorCode = "SIDE_EFFECT_FAILURE"
	ErrDuplicateTimelineEntry ErrorCode = "DUPLICATE_TIMELINE_ENTRY"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause when Details holds an error.
func (e APIError) Unwrap() error {
	if err, ok := e.Details.(error); ok {
		return err
	}
	return nil
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	if details != nil {
		logrus.Error(details)
	}
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CodeOf returns the code of the first APIError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func MapErrorToHTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict, ErrDuplicateTimelineEntry:
		return http.StatusConflict
	case ErrInvalidInput, ErrBadRequest:
		return http.StatusBadRequest
	case ErrInvalidTransition:
		return http.StatusUnprocessableEntity
	case ErrUnauthorized:
		return http.StatusForbidden
	case ErrSideEffectFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
