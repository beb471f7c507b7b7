package monitor

import "github.com/tailored-agentic-units/trainmon/observability"

// Event types emitted by monitors.
const (
	EventSetup        observability.EventType = "monitors.setup"
	EventAfterTrain   observability.EventType = "monitors.after_train"
	EventLedgerResume observability.EventType = "ledger.resume"
	EventLedgerBackup observability.EventType = "ledger.backup"
	EventLedgerFailed observability.EventType = "ledger.write_failed"
	EventFileSplit    observability.EventType = "event_writer.split"
	EventSinkIgnored  observability.EventType = "monitor.ignored"
)
