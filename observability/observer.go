// Package observability carries lifecycle events out of the monitor
// pipeline: ledger resumes and backups, event-file splits, write failures.
// Level values follow OpenTelemetry SeverityNumber ranges so events can be
// forwarded to an OTel collector without translation.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level is event severity in OTel SeverityNumber terms.
type Level int

const (
	LevelVerbose Level = 5  // DEBUG range
	LevelInfo    Level = 9  // INFO range
	LevelWarning Level = 13 // WARN range
	LevelError   Level = 17 // ERROR range
)

// severities lists the upper bound of each OTel severity range with its
// text and the slog level events in that range are logged at.
var severities = []struct {
	upper Level
	text  string
	slog  slog.Level
}{
	{4, "TRACE", slog.LevelDebug},
	{8, "DEBUG", slog.LevelDebug},
	{12, "INFO", slog.LevelInfo},
	{16, "WARN", slog.LevelWarn},
	{20, "ERROR", slog.LevelError},
}

func (l Level) String() string {
	for _, s := range severities {
		if l <= s.upper {
			return s.text
		}
	}
	return "FATAL"
}

// SlogLevel maps l onto the nearest slog level.
func (l Level) SlogLevel() slog.Level {
	for _, s := range severities {
		if l <= s.upper {
			return s.slog
		}
	}
	return slog.LevelError
}

// EventType names an event, e.g. "ledger.resume".
type EventType string

// Event is emitted by monitors at lifecycle boundaries. Step is the global
// training step at emission time.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Step      int
	Data      map[string]any
}

// Observer receives lifecycle events.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}
