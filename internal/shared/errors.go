package shared

import "errors"

// RequestError is used when we want a specific error message and StatusCode.
// Sane defaults are listed below. Routes that need custom error messages
// build a request error inline and the handler returns the exact message
// inside it.
//
// Error codes should be bubbled where the RequestError msg is expected to be
// returned to the user. If the user should see a generic message but the
// error chain should carry more detail for logging, wrap a generic error
// that provides context.
var (
	ErrMissingSession = &RequestError{Err: errors.New("missing session"), StatusCode: 401}
	ErrInvalidSession = &RequestError{Err: errors.New("invalid or expired session"), StatusCode: 401}
	ErrUnauthorized   = &RequestError{Err: errors.New("unauthorized"), StatusCode: 401}

	ErrInvalidRequest = &RequestError{Err: errors.New("invalid request body"), StatusCode: 400}

	ErrHomeWorkspaceNotFound = &RequestError{Err: errors.New("home workspace not found"), StatusCode: 500}

	ErrInternalServerError = &RequestError{Err: errors.New("internal server error"), StatusCode: 500}
	ErrNotFound            = &RequestError{Err: errors.New("not found"), StatusCode: 404}
)
