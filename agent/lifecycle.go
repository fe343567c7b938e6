package agent

import "fmt"

// ProcessStatus is the lifecycle state of an observed agent process.
type ProcessStatus string

const (
	StatusStarting  ProcessStatus = "starting"
	StatusRunning   ProcessStatus = "running"
	StatusCompleted ProcessStatus = "completed"
	StatusFailed    ProcessStatus = "failed"
	StatusKilled    ProcessStatus = "killed"
)

// Terminal reports whether the status is an end state. Terminal
// statuses absorb all further transitions.
func (s ProcessStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusKilled:
		return true
	}
	return false
}

// ParseStatus converts a wire status string to a ProcessStatus.
func ParseStatus(s string) (ProcessStatus, error) {
	switch ProcessStatus(s) {
	case StatusStarting, StatusRunning, StatusCompleted, StatusFailed, StatusKilled:
		return ProcessStatus(s), nil
	}
	return "", fmt.Errorf("unknown process status %q", s)
}

// Lifecycle tracks the status and resumable session identity of one
// observed process. Methods are not goroutine-safe; the owner
// serializes access.
type Lifecycle struct {
	Status    ProcessStatus
	ExitCode  *int
	SessionID string
}

// NewLifecycle returns a lifecycle in the initial starting state.
func NewLifecycle() Lifecycle {
	return Lifecycle{Status: StatusStarting}
}

// ApplyStatus transitions to next, carrying the exit code when one is
// reported. Returns false when the transition was ignored because the
// lifecycle already reached a terminal state.
func (l *Lifecycle) ApplyStatus(next ProcessStatus, exitCode *int) bool {
	if l.Status.Terminal() {
		return false
	}
	l.Status = next
	if exitCode != nil {
		l.ExitCode = exitCode
	}
	return true
}

// ObserveSessionID records the resumable session identifier. The first
// non-empty value wins; later values are ignored so a replayed init
// event cannot clobber the id captured live. Returns true when the id
// was recorded.
func (l *Lifecycle) ObserveSessionID(id string) bool {
	if id == "" || l.SessionID != "" {
		return false
	}
	l.SessionID = id
	return true
}

// ObserveEvent captures lifecycle-relevant information from a decoded
// event, currently the session id carried by system init messages.
// Returns true when the event changed lifecycle state.
func (l *Lifecycle) ObserveEvent(ev Event) bool {
	sys, ok := ev.(SystemEvent)
	if !ok || sys.Subtype != "init" {
		return false
	}
	return l.ObserveSessionID(sys.SessionID)
}
