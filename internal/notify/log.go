package notify

import "drive-go/internal/drive"

// LogSink writes each event to a logger at info level.
type LogSink struct {
	logger drive.Logger
}

func NewLogSink(logger drive.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(ev drive.Event) error {
	s.logger.Info("file event",
		"user_id", ev.UserID,
		"action", ev.Action,
		"file_id", ev.FileID,
		"name", ev.Name,
		"at", ev.At.UTC().Format("2006-01-02T15:04:05Z"),
	)
	return nil
}
