package agent

// CurrentTurn returns the suffix of events that belongs to the turn
// not yet persisted. When a process is re-observed the agent replays
// its whole event history, so the accumulated slice mixes already
// persisted turns with the live one; persistedTurns says how many
// complete assistant turns the caller has stored.
//
// A turn starts at an AssistantEvent that is either the first event or
// preceded by a ResultEvent. The function counts turn starts and
// returns everything from the (persistedTurns+1)th start onward. When
// no such start exists yet, it falls back to everything after the last
// ResultEvent, or nil when nothing new has arrived.
func CurrentTurn(events []Event, persistedTurns int) []Event {
	if persistedTurns <= 0 {
		return events
	}

	turnStarts := 0
	atBoundary := true
	for i, ev := range events {
		switch ev.(type) {
		case AssistantEvent:
			if atBoundary {
				turnStarts++
				atBoundary = false
				if turnStarts > persistedTurns {
					return events[i:]
				}
			}
		case ResultEvent:
			atBoundary = true
		}
	}

	lastResult := -1
	for i, ev := range events {
		if _, ok := ev.(ResultEvent); ok {
			lastResult = i
		}
	}
	if lastResult >= 0 && lastResult < len(events)-1 {
		return events[lastResult+1:]
	}
	return nil
}
