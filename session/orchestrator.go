// Package session owns the mutable per-process accumulators and wires
// transport delivery, classification, persistence and callbacks
// together for each observed agent process.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/zhubert/agentflow/agent"
	"github.com/zhubert/agentflow/logger"
	"github.com/zhubert/agentflow/store"
	"github.com/zhubert/agentflow/transport"
)

// DefaultMaxRawLines bounds the per-process raw output buffer when no
// cap is configured.
const DefaultMaxRawLines = 1000

// Persister is the narrow slice of the message store the orchestrator
// needs. *store.Store satisfies it.
type Persister interface {
	AssistantTurnCount(ctx context.Context, chatID string) (int, error)
	SaveAssistantTurn(ctx context.Context, chatID string, turn agent.TurnContent) (store.Message, error)
	SetSessionID(ctx context.Context, chatID, sessionID string) error
}

// Callbacks notify the caller of per-process activity. All fields are
// optional. A panicking callback is recovered and logged; it never
// interrupts event processing.
type Callbacks struct {
	OnEvent        func(agent.Event)
	OnRawLine      func(agent.OutputLine)
	OnPermission   func(*agent.PermissionRequest)
	OnStatusChange func(agent.ProcessStatus)
	OnTurnSaved    func(store.Message)
}

// Options tunes orchestrator behavior.
type Options struct {
	// MaxRawLines caps each watch's raw output buffer, oldest dropped
	// first. Zero means DefaultMaxRawLines.
	MaxRawLines int
}

// Orchestrator maintains one Watch per observed process id. Watches
// are fully independent: clearing or stopping one never affects
// another's state.
type Orchestrator struct {
	transport transport.Transport
	persister Persister
	opts      Options
	log       *slog.Logger

	mu      sync.Mutex
	watches map[string]*Watch
}

// New returns an orchestrator over the given transport and store.
func New(t transport.Transport, p Persister, opts Options) *Orchestrator {
	if opts.MaxRawLines <= 0 {
		opts.MaxRawLines = DefaultMaxRawLines
	}
	return &Orchestrator{
		transport: t,
		persister: p,
		opts:      opts,
		log:       logger.WithComponent("orchestrator"),
		watches:   make(map[string]*Watch),
	}
}

// Observe begins accumulating state for a process. chatID names the
// conversation that completed turns and the captured session id are
// persisted under; empty disables persistence for this watch.
//
// Observing a process id that is already watched detaches the prior
// watch first, so the returned watch always starts from a clean
// accumulator. Subscription failures are logged, not returned: the
// watch is still usable, stays at starting, and the caller may retry
// by re-observing.
func (o *Orchestrator) Observe(ctx context.Context, processID, chatID string, cb Callbacks) *Watch {
	o.mu.Lock()
	if prev, ok := o.watches[processID]; ok {
		prev.detach()
	}

	subCtx, cancel := context.WithCancel(ctx)
	w := &Watch{
		ProcessID: processID,
		ChatID:    chatID,
		orch:      o,
		cb:        cb,
		cancel:    cancel,
		log:       logger.WithProcess(processID),
		maxRaw:    o.opts.MaxRawLines,
		alive:     true,
		lifecycle: agent.NewLifecycle(),
	}
	o.watches[processID] = w
	o.mu.Unlock()

	if chatID != "" {
		n, err := o.persister.AssistantTurnCount(ctx, chatID)
		if err != nil {
			w.log.Warn("failed to load persisted turn count", "chatID", chatID, "error", err)
		} else {
			w.persistedTurns = n
		}
	}

	w.subscribe(subCtx)
	return w
}

// Watch returns the active watch for a process id, or nil.
func (o *Orchestrator) Watch(processID string) *Watch {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.watches[processID]
}

// StopAll detaches every active watch.
func (o *Orchestrator) StopAll() {
	o.mu.Lock()
	watches := make([]*Watch, 0, len(o.watches))
	for _, w := range o.watches {
		watches = append(watches, w)
	}
	o.mu.Unlock()

	for _, w := range watches {
		w.Stop()
	}
}

// remove drops a watch from the registry if it is still the current
// entry for its process id.
func (o *Orchestrator) remove(w *Watch) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.watches[w.ProcessID] == w {
		delete(o.watches, w.ProcessID)
	}
}

// subscribe attaches the transport channels and starts one consumer
// goroutine per channel. The typed event channel is preferred when the
// transport provides it; raw output is consumed either way because
// permission prompts and diagnostic noise only travel as raw lines.
func (w *Watch) subscribe(ctx context.Context) {
	status, err := w.orch.transport.SubscribeStatus(ctx, w.ProcessID)
	if err != nil {
		w.log.Error("failed to subscribe to status channel", "error", err)
	} else {
		go w.consumeStatus(status)
	}

	events, err := w.orch.transport.SubscribeEvents(ctx, w.ProcessID)
	switch {
	case err == nil:
		go w.consumeEvents(events)
	case errors.Is(err, transport.ErrEventsUnsupported):
		w.log.Debug("typed event channel unavailable, classifying raw lines")
	default:
		w.log.Error("failed to subscribe to event channel", "error", err)
	}

	output, err := w.orch.transport.SubscribeOutput(ctx, w.ProcessID)
	if err != nil {
		w.log.Error("failed to subscribe to output channel", "error", err)
		return
	}
	go w.consumeOutput(output)
}

func (w *Watch) consumeStatus(ch <-chan transport.StatusMessage) {
	for msg := range ch {
		w.ingestStatus(msg)
	}
}

func (w *Watch) consumeEvents(ch <-chan agent.Event) {
	for ev := range ch {
		w.ingestTypedEvent(ev)
	}
}

func (w *Watch) consumeOutput(ch <-chan transport.OutputMessage) {
	for msg := range ch {
		w.ingestOutput(msg)
	}
}
