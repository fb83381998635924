package session

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedClient() *Client {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return NewClient(newTestHub(""), nil, logger)
}

func TestSendRawQueues(t *testing.T) {
	c := newBufferedClient()

	require.NoError(t, c.SendRaw([]byte(`{"type":"pong"}`)))

	select {
	case data := <-c.send:
		assert.JSONEq(t, `{"type":"pong"}`, string(data))
	default:
		t.Fatal("frame was not queued")
	}
}

func TestSendRawAfterClose(t *testing.T) {
	c := newBufferedClient()
	c.Close()

	err := c.SendRaw([]byte("x"))
	assert.ErrorIs(t, err, ErrClientClosed)

	// Close is idempotent.
	c.Close()
}

func TestSendRawBufferFull(t *testing.T) {
	c := newBufferedClient()

	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, c.SendRaw([]byte("x")))
	}

	err := c.SendRaw([]byte("overflow"))
	assert.ErrorIs(t, err, ErrSendBufferFull)

	// Draining one slot makes sends succeed again.
	<-c.send
	assert.NoError(t, c.SendRaw([]byte("x")))
}

func TestSendMessage(t *testing.T) {
	c := newBufferedClient()

	msg, err := NewMessage(TypePong, "movies", "c1", PongPayload{ClientTS: 7})
	require.NoError(t, err)
	require.NoError(t, c.SendMessage(msg))

	data := <-c.send
	assert.Contains(t, string(data), `"type":"pong"`)
	assert.Contains(t, string(data), `"client_ts":7`)
}
