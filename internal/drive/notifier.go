package drive

import "time"

// Actions carried by events.
const (
	ActionUpload       = "upload"
	ActionDelete       = "delete"
	ActionRestore      = "restore"
	ActionPurge        = "purge"
	ActionCreateFolder = "create-folder"
	ActionUnshare      = "unshare"
	ActionShare        = "share"
	ActionDownload     = "download"
)

// Event describes a completed mutation, addressed to UserID.
type Event struct {
	UserID string
	FileID string
	Action string
	Name   string
	At     time.Time
}

// Notifier receives events after an operation has committed. Implementations
// must not block and must never report failure back to the operation.
type Notifier interface {
	Notify(Event)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}

// Metrics observes operation outcomes.
type Metrics interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
}

// NopMetrics discards observations.
type NopMetrics struct{}

func (NopMetrics) ObserveOperation(string, error, time.Duration) {}
