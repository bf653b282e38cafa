package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapMsgKeepsCode(t *testing.T) {
	err := ErrNotFound.WrapMsg("Conversation not found")
	assert.Equal(t, NotFoundError, Code(err))
	assert.Equal(t, "NOT_FOUND", Name(Code(err)))
	assert.Equal(t, "Conversation not found", Message(err))
	assert.True(t, errors.Is(err, &ErrNotFound))
	assert.False(t, errors.Is(err, &ErrForbidden))

	// the shared value is never mutated
	assert.Empty(t, ErrNotFound.Detail)
}

func TestWrapMsgAppendsKeyValues(t *testing.T) {
	err := ErrValidation.WrapMsg("invalid payload", "field", "limit", "dangling")
	assert.Equal(t, "invalid payload, field=limit, dangling=MISSING", Message(err))
}

func TestMessageHidesInternalErrors(t *testing.T) {
	assert.Equal(t, "internal error", Message(errors.New("pq: connection refused")))
	assert.Equal(t, "internal error", Message(ErrInternal.WrapMsg("db down")))
	assert.Equal(t, ServerInternalError, Code(errors.New("boom")))
	assert.Equal(t, 0, Code(nil))
	assert.Equal(t, "INTERNAL", Name(999))
}

func TestWithDetailAndMessageFallback(t *testing.T) {
	assert.Equal(t, "You can only delete your own messages",
		Message(ErrForbidden.WithDetail("You can only delete your own messages")))
	assert.Equal(t, "Unauthorized", Message(ErrUnauthorized.WrapMsg("")))
}

func TestWrapHelpersAreNilSafe(t *testing.T) {
	assert.NoError(t, Wrap(nil))
	assert.NoError(t, WrapMsg(nil, "ctx"))

	base := errors.New("io")
	wrapped := WrapMsg(base, "read frame", "conn", 7)
	assert.ErrorIs(t, wrapped, base)
	assert.Contains(t, wrapped.Error(), "read frame, conn=7")
}

func TestErrPanic(t *testing.T) {
	assert.NoError(t, ErrPanic(nil))

	err := ErrPanic("nil map write")
	assert.Equal(t, ServerInternalError, Code(err))
	assert.Contains(t, err.Error(), "nil map write")

	err = ErrPanic(errors.New("index out of range"))
	assert.Contains(t, err.Error(), "index out of range")
	assert.Equal(t, "internal error", Message(err))
}

func TestRateLimitedName(t *testing.T) {
	err := ErrTooManyRequests.WrapMsg("slow down")
	assert.Equal(t, TooManyRequestsError, Code(err))
	assert.Equal(t, "RATE_LIMITED", Name(Code(err)))
	assert.Equal(t, "slow down", Message(err))
}
