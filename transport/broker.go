package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zhubert/agentflow/agent"
	"github.com/zhubert/agentflow/logger"
)

// subscriberBuffer is the per-subscription channel depth. A subscriber
// that falls this far behind starts losing its oldest buffered
// messages rather than blocking the publisher.
const subscriberBuffer = 256

// topic is a keyed fan-out of one message type. Publish never blocks;
// a slow subscriber drops from the head of its buffer.
type topic[T any] struct {
	mu   sync.Mutex
	subs map[string]map[int]chan T
	next int
}

func newTopic[T any]() *topic[T] {
	return &topic[T]{subs: make(map[string]map[int]chan T)}
}

func (t *topic[T]) subscribe(ctx context.Context, key string) <-chan T {
	t.mu.Lock()
	id := t.next
	t.next++
	ch := make(chan T, subscriberBuffer)
	if t.subs[key] == nil {
		t.subs[key] = make(map[int]chan T)
	}
	t.subs[key][id] = ch
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.remove(key, id)
	}()

	return ch
}

func (t *topic[T]) remove(key string, id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ch, ok := t.subs[key][id]; ok {
		delete(t.subs[key], id)
		close(ch)
	}
}

func (t *topic[T]) publish(key string, v T) (dropped int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs[key] {
		select {
		case ch <- v:
			continue
		default:
		}
		// full buffer: evict the oldest entry so the newest message is
		// the one retained. A terminal status is always the newest, so
		// backpressure can never swallow it.
		select {
		case <-ch:
			dropped++
		default:
		}
		select {
		case ch <- v:
		default:
			dropped++
		}
	}
	return dropped
}

func (t *topic[T]) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, subs := range t.subs {
		for id, ch := range subs {
			delete(subs, id)
			close(ch)
		}
		delete(t.subs, key)
	}
}

// Broker is an in-process Transport. Producers publish per-process
// notifications; any number of observers subscribe. Input written via
// SendInput is surfaced on SubscribeInput for the process harness to
// forward to the subprocess stdin.
type Broker struct {
	mu     sync.RWMutex
	closed bool

	output *topic[OutputMessage]
	status *topic[StatusMessage]
	events *topic[agent.Event]
	input  *topic[string]

	log *slog.Logger
}

// NewBroker returns an empty broker ready for subscriptions.
func NewBroker() *Broker {
	return &Broker{
		output: newTopic[OutputMessage](),
		status: newTopic[StatusMessage](),
		events: newTopic[agent.Event](),
		input:  newTopic[string](),
		log:    logger.WithComponent("broker"),
	}
}

// SubscribeOutput implements Transport.
func (b *Broker) SubscribeOutput(ctx context.Context, processID string) (<-chan OutputMessage, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return b.output.subscribe(ctx, OutputChannel(processID)), nil
}

// SubscribeStatus implements Transport.
func (b *Broker) SubscribeStatus(ctx context.Context, processID string) (<-chan StatusMessage, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return b.status.subscribe(ctx, StatusChannel(processID)), nil
}

// SubscribeEvents implements Transport.
func (b *Broker) SubscribeEvents(ctx context.Context, processID string) (<-chan agent.Event, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return b.events.subscribe(ctx, EventChannel(processID)), nil
}

// SubscribeInput yields stdin writes for a process. Consumed by the
// harness that owns the subprocess.
func (b *Broker) SubscribeInput(ctx context.Context, processID string) (<-chan string, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return b.input.subscribe(ctx, InputChannel(processID)), nil
}

// SendInput implements Transport.
func (b *Broker) SendInput(_ context.Context, processID string, data string) error {
	if err := b.check(); err != nil {
		return err
	}
	b.input.publish(InputChannel(processID), data)
	return nil
}

// PublishOutput delivers one output line to subscribers.
func (b *Broker) PublishOutput(processID string, msg OutputMessage) {
	if b.check() != nil {
		return
	}
	if n := b.output.publish(OutputChannel(processID), msg); n > 0 {
		b.log.Warn("dropped output for slow subscribers", "processID", processID, "count", n)
	}
}

// PublishStatus delivers one status notification to subscribers.
func (b *Broker) PublishStatus(processID string, msg StatusMessage) {
	if b.check() != nil {
		return
	}
	if n := b.status.publish(StatusChannel(processID), msg); n > 0 {
		b.log.Warn("dropped status for slow subscribers", "processID", processID, "count", n)
	}
}

// PublishEvent delivers one pre-parsed event to subscribers.
func (b *Broker) PublishEvent(processID string, ev agent.Event) {
	if b.check() != nil {
		return
	}
	if n := b.events.publish(EventChannel(processID), ev); n > 0 {
		b.log.Warn("dropped events for slow subscribers", "processID", processID, "count", n)
	}
}

// Close shuts the broker down and closes every subscriber channel.
// Safe to call multiple times.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.output.closeAll()
	b.status.closeAll()
	b.events.closeAll()
	b.input.closeAll()
}

func (b *Broker) check() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}
