package testutil

import (
	"sync"

	"drive-go/internal/drive"
)

// RecordingNotifier keeps every event it receives.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []drive.Event
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) Notify(ev drive.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

// Events returns a copy of the events received so far.
func (n *RecordingNotifier) Events() []drive.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]drive.Event(nil), n.events...)
}

// Actions returns the action of each event in order.
func (n *RecordingNotifier) Actions() []string {
	var out []string
	for _, ev := range n.Events() {
		out = append(out, ev.Action)
	}
	return out
}
