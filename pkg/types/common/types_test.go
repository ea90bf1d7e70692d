package common

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_JSONOmitsEmptyKeyAndHeaders(t *testing.T) {
	data, err := json.Marshal(Message{Topic: "profile.requested", Value: []byte(`{}`)})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"key"`)
	assert.NotContains(t, string(data), `"headers"`)
}

func TestMessageHandler_ReceivesMessage(t *testing.T) {
	var got *Message
	var h MessageHandler = func(_ context.Context, msg *Message) error {
		got = msg
		return errors.New("retry")
	}
	msg := &Message{Topic: "t", Offset: 3}
	assert.EqualError(t, h(context.Background(), msg), "retry")
	assert.Same(t, msg, got)
}
