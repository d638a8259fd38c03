package participant

import (
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// logTimeFormat matches spec §6.5 exactly: "[YYYY-MM-DD HH:MM:SS] From
// <sender_id>: <message>".
const logTimeFormat = "2006-01-02 15:04:05"

// LogSink appends received multicasts to a local, rotated log file (spec
// §4.5, §6.5), echoing each line to an additional writer (normally the CLI's
// stdout). Concurrent deliveries are serialized so lines never interleave
// (spec §4.5 "concurrent deliveries must be serialized").
type LogSink struct {
	mu   sync.Mutex
	file *lumberjack.Logger
	echo io.Writer
}

// NewLogSink opens (creating if necessary) the log file at path, rotated via
// lumberjack the way the rest of the pack rotates local logs (SPEC_FULL
// §11.5). echo receives a copy of every formatted line; pass io.Discard to
// disable echoing.
func NewLogSink(path string, echo io.Writer) *LogSink {
	return &LogSink{
		file: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   false,
		},
		echo: echo,
	}
}

// Append formats and writes one received-multicast line (spec §6.5). The
// timestamp is rendered in the receiver's local timezone per spec §9
// "Timestamp source".
func (s *LogSink) Append(senderID, body string, acceptedAt time.Time) error {
	line := fmt.Sprintf("[%s] From %s: %s\n", acceptedAt.Local().Format(logTimeFormat), senderID, body)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write([]byte(line)); err != nil {
		return fmt.Errorf("logsink: write: %w", err)
	}
	if s.echo != nil {
		_, _ = io.WriteString(s.echo, line)
	}
	return nil
}

// Close flushes and releases the underlying log file.
func (s *LogSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
