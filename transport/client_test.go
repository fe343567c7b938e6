package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhubert/agentflow/agent"
)

var upgrader = websocket.Upgrader{}

// echoServer upgrades one connection, waits for the first input frame,
// then replays the given frames. Waiting for input serializes the test:
// the client only sends after its subscriptions are in place.
func echoServer(t *testing.T, frames []frame, gotInput chan<- frame) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var in frame
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		gotInput <- in

		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
		// hold the connection open until the client disconnects
		conn.ReadMessage()
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientDemultiplexesFrames(t *testing.T) {
	frames := []frame{
		{Channel: "process-output-p1", Payload: json.RawMessage(`{"content":"building","output_type":"stdout"}`)},
		{Channel: "process-status-p1", Payload: json.RawMessage(`{"status":"running"}`)},
		{Channel: "unknown-channel", Payload: json.RawMessage(`{}`)},
		{Channel: "process-output-p1", Payload: json.RawMessage(`"not json"`)},
		{Channel: "process-output-p1", Payload: json.RawMessage(`{"content":"after noise","output_type":"stderr"}`)},
	}
	gotInput := make(chan frame, 1)
	srv := echoServer(t, frames, gotInput)
	defer srv.Close()

	ctx := context.Background()
	c, err := Dial(ctx, wsURL(srv))
	require.NoError(t, err)
	defer c.Close()

	out, err := c.SubscribeOutput(ctx, "p1")
	require.NoError(t, err)
	st, err := c.SubscribeStatus(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, c.SendInput(ctx, "p1", "y\n"))

	in := recvOrFail(t, gotInput)
	assert.Equal(t, "process-input-p1", in.Channel)
	var data string
	require.NoError(t, json.Unmarshal(in.Payload, &data))
	assert.Equal(t, "y\n", data)

	assert.Equal(t, "building", recvOrFail(t, out).Content)
	assert.Equal(t, "running", recvOrFail(t, st).Status)

	// bad payload and unknown channel are skipped, stream continues
	after := recvOrFail(t, out)
	assert.Equal(t, "after noise", after.Content)
	assert.Equal(t, agent.OutputStderr, after.Kind)
}

func TestClientTypedEventsUnsupported(t *testing.T) {
	// the websocket protocol carries no event channel, so observers
	// must be told to classify raw lines instead
	gotInput := make(chan frame, 1)
	srv := echoServer(t, nil, gotInput)
	defer srv.Close()

	ctx := context.Background()
	c, err := Dial(ctx, wsURL(srv))
	require.NoError(t, err)
	defer c.Close()

	ch, err := c.SubscribeEvents(ctx, "p1")
	assert.ErrorIs(t, err, ErrEventsUnsupported)
	assert.Nil(t, ch)
}

func TestClientCloseDetachesSubscribers(t *testing.T) {
	gotInput := make(chan frame, 1)
	srv := echoServer(t, nil, gotInput)
	defer srv.Close()

	ctx := context.Background()
	c, err := Dial(ctx, wsURL(srv))
	require.NoError(t, err)

	out, err := c.SubscribeOutput(ctx, "p1")
	require.NoError(t, err)

	c.Close()
	c.Close() // idempotent

	select {
	case _, ok := <-out:
		assert.False(t, ok, "subscriber channel must close on client close")
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel never closed")
	}

	assert.ErrorIs(t, c.SendInput(ctx, "p1", "n\n"), ErrClosed)
}

func TestDialFailure(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/ws")
	assert.Error(t, err)
}
