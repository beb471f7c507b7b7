package monitor

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/tailored-agentic-units/trainmon/ledger"
	"github.com/tailored-agentic-units/trainmon/observability"
	"github.com/tailored-agentic-units/trainmon/train"
)

// backupLayout names ledger backups, e.g. stats.json.0314-092611.
const backupLayout = "0102-150405"

// JSONWriter keeps a ledger of scalars, one record per trigger, in
// stats.json. A run whose starting epoch follows the last ledger epoch
// appends to it; any other run moves the old ledger aside and starts a new
// one.
//
// Records are written on every step except an epoch's last and at every
// epoch end, each time only if a scalar arrived since the previous write.
// Write failures are logged and never stop training.
type JSONWriter struct {
	Base

	store   ledger.Store
	opts    options
	stats   []ledger.Record
	pending map[string]float64
}

// NewJSONWriter returns a JSONWriter over cfg.LogDir/stats.json, or a
// NoneMonitor with a warning when cfg.LogDir is empty.
func NewJSONWriter(cfg JSONWriterConfig, opts ...Option) Monitor {
	if cfg.LogDir == "" {
		return ignored(newOptions(opts), "JSONWriter")
	}
	return NewJSONWriterWithStore(ledger.NewFileStore(cfg.LogDir), opts...)
}

// NewJSONWriterWithStore returns a JSONWriter persisting through store.
func NewJSONWriterWithStore(store ledger.Store, opts ...Option) *JSONWriter {
	return &JSONWriter{
		store:   store,
		opts:    newOptions(opts),
		pending: make(map[string]float64),
	}
}

func (w *JSONWriter) Name() string {
	return "JSONWriter"
}

// Records returns a copy of the in-memory ledger.
func (w *JSONWriter) Records() []ledger.Record {
	out := make([]ledger.Record, len(w.stats))
	for i, r := range w.stats {
		out[i] = r.Clone()
	}
	return out
}

// Setup resets the ledger so scalars put by other callbacks' BeforeTrain
// hooks are kept.
func (w *JSONWriter) Setup(ctx context.Context, p train.Progress) error {
	if err := w.Base.Setup(ctx, p); err != nil {
		return err
	}
	w.stats = nil
	w.pending = make(map[string]float64)
	return nil
}

func (w *JSONWriter) BeforeTrain(ctx context.Context) error {
	records, err := w.store.Load(ctx)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
	case errors.Is(err, ledger.ErrMalformed):
		w.opts.logger.WarnContext(ctx, "existing ledger is unreadable", "path", w.store.Path(), "error", err)
		if err := w.backup(ctx); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if err := w.resume(ctx, records); err != nil {
			return err
		}
	}

	w.trigger(ctx)
	return nil
}

// resume appends to records when they end just before the starting epoch.
// Otherwise the old ledger is moved aside; if that fails it is left intact
// and the error returned, so it is never overwritten.
func (w *JSONWriter) resume(ctx context.Context, records []ledger.Record) error {
	starting := 0
	if p := w.Progress(); p != nil {
		starting = p.StartingEpoch()
	}

	if len(records) == 0 || records[len(records)-1].EpochNum+1 == starting {
		w.opts.logger.InfoContext(ctx, "found existing ledger, appending to it", "path", w.store.Path())
		w.stats = records
		w.emit(ctx, EventLedgerResume, observability.LevelInfo, map[string]any{
			"path":    w.store.Path(),
			"records": len(records),
		})
		return nil
	}

	last := records[len(records)-1].EpochNum
	w.opts.logger.WarnContext(ctx, "ledger epoch is not the predecessor of the starting epoch",
		"ledger_epoch", last, "starting_epoch", starting)
	w.opts.logger.WarnContext(ctx, "to resume a run, set the starting epoch to follow the ledger")
	return w.backup(ctx)
}

func (w *JSONWriter) backup(ctx context.Context) error {
	path, err := w.store.Backup(ctx, w.opts.now().Format(backupLayout))
	if err != nil {
		return fmt.Errorf("back up ledger: %w", err)
	}
	w.opts.logger.WarnContext(ctx, "moved old ledger aside", "backup", path)
	w.emit(ctx, EventLedgerBackup, observability.LevelWarning, map[string]any{"backup": path})
	return nil
}

func (w *JSONWriter) TriggerStep(ctx context.Context) error {
	if !w.LastStepOfEpoch() {
		w.trigger(ctx)
	}
	return nil
}

func (w *JSONWriter) TriggerEpoch(ctx context.Context) error {
	w.trigger(ctx)
	return nil
}

func (w *JSONWriter) ProcessScalar(name string, val float64) error {
	w.pending[name] = val
	return nil
}

// trigger appends a record if anything is pending and rewrites the ledger.
// Calling it again with nothing pending does nothing.
func (w *JSONWriter) trigger(ctx context.Context) {
	if len(w.pending) == 0 {
		return
	}

	rec := ledger.Record{
		GlobalStep: w.GlobalStep(),
		Values:     maps.Clone(w.pending),
	}
	if p := w.Progress(); p != nil {
		rec.EpochNum = p.EpochNum()
	}
	w.stats = append(w.stats, rec)
	clear(w.pending)

	if err := w.store.Save(ctx, w.stats); err != nil {
		w.opts.logger.ErrorContext(ctx, "ledger write failed", "path", w.store.Path(), "error", err)
		w.emit(ctx, EventLedgerFailed, observability.LevelError, map[string]any{"error": err.Error()})
	}
}

func (w *JSONWriter) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	w.opts.observer.OnEvent(ctx, observability.Event{
		Type:      typ,
		Level:     level,
		Timestamp: w.opts.now(),
		Source:    "monitor.JSONWriter",
		Step:      w.GlobalStep(),
		Data:      data,
	})
}

// LoadExistingJSON reads the ledger in dir. Returns ledger.ErrNotFound if
// there is none.
func LoadExistingJSON(ctx context.Context, dir string) ([]ledger.Record, error) {
	return ledger.NewFileStore(dir).Load(ctx)
}

// LoadExistingEpochNumber returns the last epoch recorded in dir's ledger.
// ok is false when there is no readable, non-empty ledger.
func LoadExistingEpochNumber(ctx context.Context, dir string) (epoch int, ok bool) {
	records, err := LoadExistingJSON(ctx, dir)
	if err != nil || len(records) == 0 {
		return 0, false
	}
	return records[len(records)-1].EpochNum, true
}
