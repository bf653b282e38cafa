package decode

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialchat/tools/errs"
)

type page struct {
	ConversationID string         `json:"conversationId"`
	Limit          *int           `json:"limit,omitempty"`
	Offset         int            `json:"offset"`
	Tags           []string       `json:"tags"`
	Meta           map[string]any `json:"meta"`
}

func TestPayloadFromRawJSON(t *testing.T) {
	p, err := Payload[page](json.RawMessage(`{"conversationId":"c","limit":20,"offset":"5","tags":["a",1]}`))
	require.NoError(t, err)
	assert.Equal(t, "c", p.ConversationID)
	require.NotNil(t, p.Limit)
	assert.Equal(t, 20, *p.Limit)
	assert.Equal(t, 5, p.Offset)
	assert.Equal(t, []string{"a", "1"}, p.Tags)
}

func TestPayloadMissingIsZero(t *testing.T) {
	for _, raw := range []any{nil, json.RawMessage(nil), []byte{}} {
		p, err := Payload[page](raw)
		require.NoError(t, err)
		assert.Nil(t, p.Limit)
		assert.Empty(t, p.ConversationID)
	}
}

func TestPayloadFromValue(t *testing.T) {
	p, err := Payload[page](map[string]any{"conversationId": "c", "meta": `{"k":"v"}`})
	require.NoError(t, err)
	assert.Equal(t, "v", p.Meta["k"])
}

func TestPayloadErrorsAreValidation(t *testing.T) {
	_, err := Payload[page](json.RawMessage(`{broken`))
	assert.Equal(t, errs.ValidationError, errs.Code(err))

	_, err = Payload[page](json.RawMessage(`{"limit":"many"}`))
	assert.Equal(t, errs.ValidationError, errs.Code(err))

	_, err = Payload[page](json.RawMessage(`{"offset":"1"}`), WithWeaklyTypedInput(false))
	assert.Equal(t, errs.ValidationError, errs.Code(err))
}
