package errs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Stable failure codes. The numeric value mirrors the HTTP status a REST
// collaborator would use for the same failure.
const (
	ValidationError      = 400
	UnauthorizedError    = 401
	ForbiddenError       = 403
	NotFoundError        = 404
	TooManyRequestsError = 429
	ServerInternalError  = 500
)

var (
	ErrValidation      = NewCodeError(ValidationError, "validation failed")
	ErrUnauthorized    = NewCodeError(UnauthorizedError, "Unauthorized")
	ErrForbidden       = NewCodeError(ForbiddenError, "forbidden")
	ErrNotFound        = NewCodeError(NotFoundError, "not found")
	ErrTooManyRequests = NewCodeError(TooManyRequestsError, "too many requests")
	ErrInternal        = NewCodeError(ServerInternalError, "internal error")
)

var codeNames = map[int]string{
	ValidationError:      "VALIDATION",
	UnauthorizedError:    "UNAUTHORIZED",
	ForbiddenError:       "FORBIDDEN",
	NotFoundError:        "NOT_FOUND",
	TooManyRequestsError: "RATE_LIMITED",
	ServerInternalError:  "INTERNAL",
}

func NewCodeError(code int, msg string) CodeError {
	return CodeError{
		Code: code,
		Msg:  msg,
	}
}

// CodeError carries a stable code, a generic message for the code and an
// optional caller-facing detail.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e *CodeError) clone() *CodeError {
	return &CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: e.Detail,
	}
}

// WithDetail returns a copy of e whose detail is the given caller-facing text.
func (e *CodeError) WithDetail(detail string) error {
	ret := e.clone()
	ret.Detail = detail
	return pkgerrors.WithStack(ret)
}

// WrapMsg returns a copy of e with msg and key/value pairs appended to the detail.
func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	retErr := e.clone()
	if msg != "" || len(kv) > 0 {
		detail := toString(msg, kv)
		if retErr.Detail == "" {
			retErr.Detail = detail
		} else {
			retErr.Detail += ", " + detail
		}
	}
	return pkgerrors.WithStack(retErr)
}

// Is matches any error in a chain carrying the same code.
func (e *CodeError) Is(target error) bool {
	t, ok := target.(*CodeError)
	if !ok || t == nil || e == nil {
		return false
	}
	return e.Code == t.Code
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// Code returns the code carried by err, ServerInternalError for foreign errors.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ServerInternalError
}

// Name is the stable wire name of code.
func Name(code int) string {
	if n, ok := codeNames[code]; ok {
		return n
	}
	return codeNames[ServerInternalError]
}

// Message is the caller-facing text for err. Internal failures never leak
// the underlying error text.
func Message(err error) string {
	var ce *CodeError
	if !errors.As(err, &ce) || ce.Code == ServerInternalError {
		return ErrInternal.Msg
	}
	if ce.Detail != "" {
		return ce.Detail
	}
	return ce.Msg
}

func New(msg string, kv ...any) error {
	return pkgerrors.New(toString(msg, kv))
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(err)
}

func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, toString(msg, kv))
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprint(kv[i]))
		b.WriteString("=")
		if i+1 < len(kv) {
			b.WriteString(fmt.Sprint(kv[i+1]))
		} else {
			b.WriteString("MISSING")
		}
	}
	return b.String()
}
