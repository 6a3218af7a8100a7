package app

import (
	"fmt"

	"drive-go/internal/drive"
	"drive-go/internal/notify"
)

// activityStore persists activity entries.
type activityStore interface {
	CreateActivity(e *drive.ActivityEntry) error
}

// ActivitySink records every delivered event in the activity log, where
// `drive history` reads it back.
type ActivitySink struct {
	store activityStore
}

// NewActivitySink creates a sink writing to store.
func NewActivitySink(store activityStore) *ActivitySink {
	return &ActivitySink{store: store}
}

func (s *ActivitySink) Deliver(ev drive.Event) error {
	entry := &drive.ActivityEntry{
		UserID:      ev.UserID,
		FileID:      ev.FileID,
		Action:      ev.Action,
		Description: describe(ev),
		CreatedAt:   ev.At,
	}
	if err := s.store.CreateActivity(entry); err != nil {
		return fmt.Errorf("recording %s activity: %w", ev.Action, err)
	}
	return nil
}

var _ notify.Sink = (*ActivitySink)(nil)

func describe(ev drive.Event) string {
	switch ev.Action {
	case drive.ActionUpload:
		return fmt.Sprintf("Uploaded %s", ev.Name)
	case drive.ActionDelete:
		return fmt.Sprintf("Moved %s to the trash", ev.Name)
	case drive.ActionRestore:
		return fmt.Sprintf("Restored %s", ev.Name)
	case drive.ActionPurge:
		return fmt.Sprintf("Permanently deleted %s", ev.Name)
	case drive.ActionCreateFolder:
		return fmt.Sprintf("Created folder %s", ev.Name)
	case drive.ActionUnshare:
		return fmt.Sprintf("Stopped sharing %s", ev.Name)
	case drive.ActionShare:
		return fmt.Sprintf("%s was shared with you", ev.Name)
	case drive.ActionDownload:
		return fmt.Sprintf("Downloaded %s", ev.Name)
	default:
		return fmt.Sprintf("%s %s", ev.Action, ev.Name)
	}
}
