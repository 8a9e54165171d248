// Copyright 2025 Analyst Assist Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package resilience

import (
	"errors"
	"net/http"
)

// ErrorCode identifies the failure class for a request
type ErrorCode string

const (
	// ErrorCodeValidation indicates a request missing required fields
	ErrorCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrorCodeEmptyInput indicates an uploaded file yielded no usable rows
	ErrorCodeEmptyInput ErrorCode = "EMPTY_INPUT"
	// ErrorCodeUpstream indicates the Sonar API call exhausted its retry budget
	ErrorCodeUpstream ErrorCode = "UPSTREAM_ERROR"
	// ErrorCodeInternal indicates an unclassified server-side failure
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ServiceError carries a user-facing message, an error code, and the HTTP
// status the handler layer should respond with.
type ServiceError struct {
	Message    string
	Code       ErrorCode
	StatusCode int
	Internal   error
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Internal
}

// NewValidationError reports missing required request fields (HTTP 400).
func NewValidationError(message string) *ServiceError {
	return &ServiceError{
		Message:    message,
		Code:       ErrorCodeValidation,
		StatusCode: http.StatusBadRequest,
	}
}

// NewEmptyInputError reports a CSV upload that parsed to zero usable rows.
// Responds 500 to match the contract the browser client expects, though a 400
// would arguably fit better.
func NewEmptyInputError(message string, internal error) *ServiceError {
	return &ServiceError{
		Message:    message,
		Code:       ErrorCodeEmptyInput,
		StatusCode: http.StatusInternalServerError,
		Internal:   internal,
	}
}

// NewUpstreamError reports a Sonar API call that failed after the full retry
// budget (HTTP 500).
func NewUpstreamError(message string, internal error) *ServiceError {
	return &ServiceError{
		Message:    message,
		Code:       ErrorCodeUpstream,
		StatusCode: http.StatusInternalServerError,
		Internal:   internal,
	}
}

// NewInternalError reports an unclassified server-side failure (HTTP 500).
func NewInternalError(message string, internal error) *ServiceError {
	return &ServiceError{
		Message:    message,
		Code:       ErrorCodeInternal,
		StatusCode: http.StatusInternalServerError,
		Internal:   internal,
	}
}

// StatusFor returns the HTTP status for err: the embedded status when err is a
// ServiceError, 500 otherwise.
func StatusFor(err error) int {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.StatusCode
	}
	return http.StatusInternalServerError
}
