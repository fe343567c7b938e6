package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/zhubert/agentflow/agent"
	"github.com/zhubert/agentflow/logger"
)

// frame is the wire envelope for socket-based deployments. The channel
// name carries both the concern and the process id, the payload is the
// concern-specific message.
type frame struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// Client is a websocket Transport. It consumes frames from a
// broadcaster, demultiplexes them by channel name into a local broker,
// and writes input frames back upstream. The connection is not
// reconnected on failure; subscribers see their channels close and the
// owner decides whether to dial again.
type Client struct {
	conn   *websocket.Conn
	broker *Broker
	log    *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to a websocket broadcaster and starts the read loop.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	c := &Client{
		conn:   conn,
		broker: NewBroker(),
		log:    logger.WithComponent("transport-client"),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// SubscribeOutput implements Transport.
func (c *Client) SubscribeOutput(ctx context.Context, processID string) (<-chan OutputMessage, error) {
	return c.broker.SubscribeOutput(ctx, processID)
}

// SubscribeStatus implements Transport.
func (c *Client) SubscribeStatus(ctx context.Context, processID string) (<-chan StatusMessage, error) {
	return c.broker.SubscribeStatus(ctx, processID)
}

// SubscribeEvents implements Transport. The websocket protocol only
// carries output, status and input channels, so typed events are never
// available here; observers classify raw lines instead.
func (c *Client) SubscribeEvents(context.Context, string) (<-chan agent.Event, error) {
	return nil, ErrEventsUnsupported
}

// SendInput implements Transport. The payload is the raw string to
// write to the subprocess stdin.
func (c *Client) SendInput(_ context.Context, processID string, data string) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	f := frame{Channel: InputChannel(processID), Payload: payload}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("failed to send input for %s: %w", processID, err)
	}
	return nil
}

// Close tears the connection down and closes all subscriber channels.
// Safe to call multiple times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
		c.broker.Close()
	})
}

// readLoop consumes frames until the connection fails or Close is
// called, dispatching each into the local broker.
func (c *Client) readLoop() {
	defer c.Close()

	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			select {
			case <-c.done:
			default:
				c.log.Warn("connection read failed", "error", err)
			}
			return
		}
		c.dispatch(f)
	}
}

// dispatch routes one frame by channel name. Unknown channels and
// undecodable payloads are logged and skipped, never fatal.
func (c *Client) dispatch(f frame) {
	switch {
	case strings.HasPrefix(f.Channel, outputPrefix):
		processID := strings.TrimPrefix(f.Channel, outputPrefix)
		var msg OutputMessage
		if err := json.Unmarshal(f.Payload, &msg); err != nil {
			c.log.Warn("bad output payload", "channel", f.Channel, "error", err)
			return
		}
		c.broker.PublishOutput(processID, msg)

	case strings.HasPrefix(f.Channel, statusPrefix):
		processID := strings.TrimPrefix(f.Channel, statusPrefix)
		var msg StatusMessage
		if err := json.Unmarshal(f.Payload, &msg); err != nil {
			c.log.Warn("bad status payload", "channel", f.Channel, "error", err)
			return
		}
		c.broker.PublishStatus(processID, msg)

	default:
		c.log.Debug("ignoring frame for unknown channel", "channel", f.Channel)
	}
}
