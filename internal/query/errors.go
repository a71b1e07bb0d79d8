package query

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrInvalidArgument  = &Error{Code: codes.InvalidArgument}
	ErrNotFound         = &Error{Code: codes.NotFound}
	ErrStoreUnavailable = &Error{Code: codes.Unavailable}
)

// Error is a classified query failure. Code uses the gRPC code space so the
// error can cross any gRPC boundary unchanged.
type Error struct {
	Code codes.Code
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(CodeName(e.Code))
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// GRPCStatus lets status.Code and status.Convert see the classification.
func (e *Error) GRPCStatus() *grpcstatus.Status {
	return grpcstatus.New(e.Code, e.Error())
}

// CodeName returns the snake_case name used when reporting errors to callers.
func CodeName(c codes.Code) string {
	switch c {
	case codes.InvalidArgument:
		return "invalid_argument"
	case codes.NotFound:
		return "not_found"
	case codes.Unavailable:
		return "unavailable"
	default:
		return strings.ToLower(c.String())
	}
}

func invalidf(op, format string, args ...any) error {
	return &Error{Code: codes.InvalidArgument, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func notFoundf(op, format string, args ...any) error {
	return &Error{Code: codes.NotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// unavailable wraps a store failure. Errors that are already classified pass
// through untouched.
func unavailable(op string, err error) error {
	var qe *Error
	if errors.As(err, &qe) {
		return err
	}
	return &Error{Code: codes.Unavailable, Op: op, Err: err}
}
