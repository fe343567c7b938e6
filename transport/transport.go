// Package transport delivers subprocess output, status changes and
// typed events to observers, addressed by process id.
//
// Two implementations exist: Broker, an in-process pub/sub hub for
// same-process deployments and tests, and Client, a websocket consumer
// for socket-based deployments. Both satisfy Transport.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/zhubert/agentflow/agent"
)

// Channel name prefixes. One channel per concern per process id.
const (
	outputPrefix = "process-output-"
	statusPrefix = "process-status-"
	eventPrefix  = "process-event-"
	inputPrefix  = "process-input-"
)

// OutputChannel names the raw output channel for a process.
func OutputChannel(processID string) string { return outputPrefix + processID }

// StatusChannel names the status channel for a process.
func StatusChannel(processID string) string { return statusPrefix + processID }

// EventChannel names the pre-parsed event channel for a process.
func EventChannel(processID string) string { return eventPrefix + processID }

// InputChannel names the stdin channel for a process.
func InputChannel(processID string) string { return inputPrefix + processID }

var (
	// ErrClosed is returned by operations on a closed transport.
	ErrClosed = errors.New("transport is closed")

	// ErrEventsUnsupported is returned by SubscribeEvents when the
	// transport cannot deliver pre-parsed events. Callers fall back to
	// classifying raw output lines.
	ErrEventsUnsupported = errors.New("typed event channel not supported")
)

// OutputMessage is one line of subprocess output on the wire.
type OutputMessage struct {
	Content   string           `json:"content"`
	Kind      agent.OutputKind `json:"output_type"`
	Timestamp time.Time        `json:"timestamp"`
}

// StatusMessage is one lifecycle notification on the wire.
type StatusMessage struct {
	Status   string `json:"status"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// Transport delivers per-process notifications to observers.
// Subscriptions are detached by cancelling the supplied context; the
// returned channel is closed on detach and on transport shutdown.
// Ordering is strict within one channel for one process id; nothing is
// implied across channels.
type Transport interface {
	// SubscribeOutput yields raw output lines for a process.
	SubscribeOutput(ctx context.Context, processID string) (<-chan OutputMessage, error)

	// SubscribeStatus yields lifecycle notifications for a process.
	SubscribeStatus(ctx context.Context, processID string) (<-chan StatusMessage, error)

	// SubscribeEvents yields pre-parsed events for a process, bypassing
	// line classification. Returns ErrEventsUnsupported when the
	// transport only carries raw lines.
	SubscribeEvents(ctx context.Context, processID string) (<-chan agent.Event, error)

	// SendInput writes data to the subprocess stdin.
	SendInput(ctx context.Context, processID string, data string) error
}
