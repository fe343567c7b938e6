package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zhubert/agentflow/agent"
	"github.com/zhubert/agentflow/transport"
)

// Watch is the accumulator for one observed process: its ordered event
// history, bounded raw output, lifecycle and outstanding permission
// request. The orchestrator's consumer goroutines feed it; callers
// read snapshots and issue control actions. All access is serialized
// on an internal mutex, so snapshots may be taken concurrently with
// ingestion.
type Watch struct {
	ProcessID string
	ChatID    string

	orch   *Orchestrator
	cb     Callbacks
	cancel context.CancelFunc
	log    *slog.Logger
	maxRaw int

	persistedTurns int

	mu         sync.Mutex
	alive      bool
	typedSeen  bool
	events     []agent.Event
	raw        []agent.OutputLine
	lifecycle  agent.Lifecycle
	permission *agent.PermissionRequest
	turnSaved  bool
}

// ingestOutput classifies one raw line and routes the result. Once a
// typed event has actually been delivered, lines that decode as events
// are dropped here: the typed channel has proven itself the
// authoritative event path and keeping both would duplicate history.
// A transport that advertises the typed channel but never delivers on
// it costs nothing; the raw path keeps working.
func (w *Watch) ingestOutput(msg transport.OutputMessage) {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	c := agent.Classify(w.ProcessID, msg.Content, msg.Kind, ts)

	switch {
	case c.Empty():
		return
	case c.Event != nil:
		if w.typedEventsSeen() {
			return
		}
		w.ingestEvent(c.Event)
	case c.Permission != nil:
		w.setPermission(c.Permission)
	case c.Raw != nil:
		w.appendRaw(*c.Raw)
	}
}

// ingestEvent appends one event to history and captures the session id
// from system init messages.
func (w *Watch) ingestEvent(ev agent.Event) {
	w.mu.Lock()
	if !w.alive {
		w.mu.Unlock()
		return
	}
	w.events = append(w.events, ev)
	captured := w.lifecycle.ObserveEvent(ev)
	sessionID := w.lifecycle.SessionID
	w.mu.Unlock()

	if captured && w.ChatID != "" {
		if err := w.orch.persister.SetSessionID(context.Background(), w.ChatID, sessionID); err != nil {
			w.log.Warn("failed to persist session id", "chatID", w.ChatID, "error", err)
		} else {
			w.log.Info("captured session id", "sessionID", sessionID)
		}
	}

	w.invoke(func() {
		if w.cb.OnEvent != nil {
			w.cb.OnEvent(ev)
		}
	})
}

// ingestStatus applies one lifecycle notification. Completion triggers
// turn persistence exactly once.
func (w *Watch) ingestStatus(msg transport.StatusMessage) {
	status, err := agent.ParseStatus(msg.Status)
	if err != nil {
		w.log.Warn("ignoring unknown status", "status", msg.Status)
		return
	}

	w.mu.Lock()
	if !w.alive {
		w.mu.Unlock()
		return
	}
	applied := w.lifecycle.ApplyStatus(status, msg.ExitCode)
	w.mu.Unlock()

	if !applied {
		w.log.Warn("ignoring status after terminal state", "status", status)
		return
	}

	w.invoke(func() {
		if w.cb.OnStatusChange != nil {
			w.cb.OnStatusChange(status)
		}
	})

	if status.Terminal() {
		w.completeTurn(status)
	}
}

// completeTurn extracts and persists the unsaved turn. Guarded so that
// duplicate or re-entrant completion notifications save at most once
// per watch; failed and killed processes arm the guard without
// persisting partial turns.
func (w *Watch) completeTurn(status agent.ProcessStatus) {
	w.mu.Lock()
	if w.turnSaved || !w.alive {
		w.mu.Unlock()
		return
	}
	w.turnSaved = true
	turn := agent.CurrentTurn(w.events, w.persistedTurns)
	w.mu.Unlock()

	if status != agent.StatusCompleted {
		w.log.Info("skipping turn persistence for unclean exit", "status", status)
		return
	}
	if w.ChatID == "" {
		return
	}

	content := agent.ExtractTurn(turn)
	if content.Empty() {
		w.log.Info("completed turn produced no persistable content")
		return
	}

	msg, err := w.orch.persister.SaveAssistantTurn(context.Background(), w.ChatID, content)
	if err != nil {
		w.log.Error("failed to persist turn", "chatID", w.ChatID, "error", err)
		return
	}
	w.log.Info("persisted assistant turn", "chatID", w.ChatID, "messageID", msg.ID)

	w.invoke(func() {
		if w.cb.OnTurnSaved != nil {
			w.cb.OnTurnSaved(msg)
		}
	})
}

func (w *Watch) setPermission(req *agent.PermissionRequest) {
	w.mu.Lock()
	if !w.alive {
		w.mu.Unlock()
		return
	}
	w.permission = req
	w.mu.Unlock()

	w.invoke(func() {
		if w.cb.OnPermission != nil {
			w.cb.OnPermission(req)
		}
	})
}

func (w *Watch) appendRaw(line agent.OutputLine) {
	w.mu.Lock()
	if !w.alive {
		w.mu.Unlock()
		return
	}
	w.raw = append(w.raw, line)
	if len(w.raw) > w.maxRaw {
		w.raw = w.raw[len(w.raw)-w.maxRaw:]
	}
	w.mu.Unlock()

	w.invoke(func() {
		if w.cb.OnRawLine != nil {
			w.cb.OnRawLine(line)
		}
	})
}

// invoke runs a callback, recovering and logging a panic so a broken
// caller never stalls ingestion.
func (w *Watch) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("callback panicked", "panic", r)
		}
	}()
	fn()
}

// ingestTypedEvent records one pre-parsed event from the typed
// channel and marks the typed path as live.
func (w *Watch) ingestTypedEvent(ev agent.Event) {
	w.mu.Lock()
	w.typedSeen = true
	w.mu.Unlock()
	w.ingestEvent(ev)
}

func (w *Watch) typedEventsSeen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.typedSeen
}

// Events returns a snapshot of the accumulated event history.
func (w *Watch) Events() []agent.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]agent.Event, len(w.events))
	copy(out, w.events)
	return out
}

// RawOutput returns a snapshot of the retained raw output lines.
func (w *Watch) RawOutput() []agent.OutputLine {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]agent.OutputLine, len(w.raw))
	copy(out, w.raw)
	return out
}

// Lifecycle returns the current lifecycle state.
func (w *Watch) Lifecycle() agent.Lifecycle {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lifecycle
}

// Permission returns the outstanding permission request, or nil.
func (w *Watch) Permission() *agent.PermissionRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.permission
}

// Display projects the event history into renderable items.
func (w *Watch) Display() []agent.DisplayItem {
	return agent.ProjectDisplay(w.Events())
}

// CurrentTurn returns the events of the turn not yet persisted.
func (w *Watch) CurrentTurn() []agent.Event {
	w.mu.Lock()
	events := w.events
	persisted := w.persistedTurns
	w.mu.Unlock()
	return agent.CurrentTurn(events, persisted)
}

// ClearHistory empties the accumulated events and raw output without
// touching lifecycle, session id or the outstanding permission.
func (w *Watch) ClearHistory() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = nil
	w.raw = nil
}

// ClearPermission nulls the outstanding permission request.
func (w *Watch) ClearPermission() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.permission = nil
}

// Approve answers the outstanding permission prompt with yes and
// clears it.
func (w *Watch) Approve(ctx context.Context) error {
	return w.answer(ctx, "y\n")
}

// Deny answers the outstanding permission prompt with no and clears it.
func (w *Watch) Deny(ctx context.Context) error {
	return w.answer(ctx, "n\n")
}

func (w *Watch) answer(ctx context.Context, response string) error {
	if err := w.orch.transport.SendInput(ctx, w.ProcessID, response); err != nil {
		return err
	}
	w.ClearPermission()
	return nil
}

// Stop detaches the watch: the transport subscriptions are cancelled
// and any in-flight delivery is discarded before mutating state. Safe
// to call multiple times.
func (w *Watch) Stop() {
	w.detach()
	w.orch.remove(w)
}

// detach kills the watch without touching the registry. Used when a
// replacement watch is taking over the process id.
func (w *Watch) detach() {
	w.mu.Lock()
	wasAlive := w.alive
	w.alive = false
	w.mu.Unlock()

	if wasAlive {
		w.cancel()
		w.log.Debug("watch detached")
	}
}
