package errs

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrPanic converts a recovered value into an internal CodeError.
func ErrPanic(r any) error {
	return ErrPanicMsg(r, ServerInternalError, "panic error")
}

func ErrPanicMsg(r any, code int, msg string) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return pkgerrors.WithStack(&CodeError{Code: code, Msg: msg, Detail: err.Error()})
	}
	return pkgerrors.WithStack(&CodeError{
		Code:   code,
		Msg:    msg,
		Detail: fmt.Sprint(r),
	})
}
