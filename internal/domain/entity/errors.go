package entity

import (
	"context"
	"errors"
)

// Failure classes of a generation run. Errors returned by the pipeline wrap
// exactly one of them, so callers can branch with errors.Is.
var (
	ErrTransport        = errors.New("upstream transport error")
	ErrUpstreamProtocol = errors.New("upstream protocol error")
	ErrParseFailure     = errors.New("parse failure: no recognized sections")
	ErrFilesystem       = errors.New("filesystem error")
	ErrNotFound         = errors.New("not found")
	ErrInvalidSchema    = errors.New("invalid schema")
	ErrInvalidInput     = errors.New("invalid input")
)

// IsUpstreamFailure reports whether err came from the generation endpoint or
// its response, as opposed to local packaging. Upstream failures are worth
// retrying; local ones are defects to report.
func IsUpstreamFailure(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrUpstreamProtocol) ||
		errors.Is(err, ErrParseFailure)
}

// ErrorKind is a short label for logs, metrics and API responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrInvalidSchema):
		return "invalid_schema"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrUpstreamProtocol):
		return "upstream_protocol"
	case errors.Is(err, ErrParseFailure):
		return "parse"
	case errors.Is(err, ErrFilesystem):
		return "filesystem"
	default:
		return "internal"
	}
}
