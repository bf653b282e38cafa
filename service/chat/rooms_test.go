package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomsJoinLeave(t *testing.T) {
	r := NewRooms()
	r.Join("conversation:1", "a")
	r.Join("conversation:1", "b")
	r.Join("conversation:2", "a")
	r.Join("conversation:2", "a")

	assert.ElementsMatch(t, []string{"a", "b"}, r.Members("conversation:1"))
	assert.Equal(t, []string{"a"}, r.Members("conversation:2"))
	assert.True(t, r.IsMember("conversation:2", "a"))
	assert.False(t, r.IsMember("conversation:2", "b"))

	r.LeaveAll("b")
	assert.Equal(t, []string{"a"}, r.Members("conversation:1"))
	assert.False(t, r.IsMember("conversation:1", "b"))

	r.LeaveAll("a")
	assert.Empty(t, r.Members("conversation:1"))
	assert.Empty(t, r.Members("conversation:2"))
	assert.Empty(t, r.byConn)
	assert.Empty(t, r.byRoom)
}

func TestFrameParsing(t *testing.T) {
	f, err := ParseFrameJSON([]byte(`{"event":"message:send","id":"7","data":{"content":"hi"}}`))
	assert.NoError(t, err)
	assert.Equal(t, "message:send", f.Event)
	assert.Equal(t, "7", f.ID)
	assert.JSONEq(t, `{"content":"hi"}`, string(f.Data))

	_, err = ParseFrameJSON([]byte(`not json`))
	assert.Error(t, err)
	_, err = ParseFrameJSON([]byte(`{"id":"1"}`))
	assert.Error(t, err)
}

func TestAckFailHidesInternalErrors(t *testing.T) {
	ack := Fail(assert.AnError)
	assert.False(t, ack.Success)
	assert.Equal(t, "INTERNAL", ack.Code)
	assert.Equal(t, "internal error", ack.Error)
}
