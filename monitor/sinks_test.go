package monitor_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tailored-agentic-units/trainmon/ledger"
	"github.com/tailored-agentic-units/trainmon/monitor"
	"github.com/tailored-agentic-units/trainmon/observability"
	"github.com/tailored-agentic-units/trainmon/tensor"
	"github.com/tailored-agentic-units/trainmon/tfevent"
	"github.com/tailored-agentic-units/trainmon/train"
)

func quiet() monitor.Option {
	return monitor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func runLoop(t *testing.T, cfg train.Config, hub *monitor.Monitors, step train.StepFunc) {
	t.Helper()
	loop, err := train.NewLoop(cfg)
	if err != nil {
		t.Fatalf("NewLoop() failed: %v", err)
	}
	if err := loop.Run(context.Background(), hub, step); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
}

func putLoss(hub *monitor.Monitors) train.StepFunc {
	return func(_ context.Context, p train.Progress) error {
		return hub.PutScalar("loss", 1/float64(p.GlobalStep()+1))
	}
}

// EventWriter

func TestNewEventWriter_LogDir(t *testing.T) {
	m, err := monitor.NewEventWriter(monitor.EventWriterConfig{}, quiet())
	if err != nil {
		t.Fatalf("NewEventWriter(empty) failed: %v", err)
	}
	if _, ok := m.(*monitor.NoneMonitor); !ok {
		t.Errorf("NewEventWriter(empty) = %T, want *monitor.NoneMonitor", m)
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{file, filepath.Join(t.TempDir(), "missing")} {
		if _, err := monitor.NewEventWriter(monitor.EventWriterConfig{LogDir: dir}); !errors.Is(err, monitor.ErrInvalidLogDir) {
			t.Errorf("NewEventWriter(%s) error = %v, want %v", dir, err, monitor.ErrInvalidLogDir)
		}
	}
}

func TestEventWriter_WritesScalarsAtGlobalStep(t *testing.T) {
	dir := t.TempDir()
	m, err := monitor.NewEventWriter(monitor.EventWriterConfig{LogDir: dir}, quiet())
	if err != nil {
		t.Fatalf("NewEventWriter() failed: %v", err)
	}
	w := m.(*monitor.EventWriter)
	hub := monitor.New([]monitor.Monitor{w}, quiet())

	var path string
	runLoop(t, train.Config{StepsPerEpoch: 2, StartingEpoch: 1, MaxEpoch: 2}, hub,
		func(ctx context.Context, p train.Progress) error {
			path = w.Path()
			return putLoss(hub)(ctx, p)
		})

	events, err := tfevent.ReadEvents(path)
	if err != nil {
		t.Fatalf("ReadEvents() failed: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("events = %d, want file version + 4 scalars", len(events))
	}
	if events[0].FileVersion != tfevent.FileVersion {
		t.Errorf("first event version = %q, want %q", events[0].FileVersion, tfevent.FileVersion)
	}
	for i, e := range events[1:] {
		if e.Step != int64(i) {
			t.Errorf("event %d step = %d, want %d", i+1, e.Step, i)
		}
		v := e.Summary.Values[0]
		if v.Tag != "loss" || v.Kind() != tfevent.KindSimple {
			t.Errorf("event %d value = %s %v, want a loss scalar", i+1, v.Tag, v.Kind())
		}
	}
}

func TestEventWriter_States(t *testing.T) {
	m, err := monitor.NewEventWriter(monitor.EventWriterConfig{LogDir: t.TempDir()}, quiet())
	if err != nil {
		t.Fatalf("NewEventWriter() failed: %v", err)
	}
	w := m.(*monitor.EventWriter)

	if err := w.ProcessScalar("x", 1); !errors.Is(err, monitor.ErrNotOpen) {
		t.Errorf("ProcessScalar() before Setup error = %v, want %v", err, monitor.ErrNotOpen)
	}

	ctx := context.Background()
	if err := w.Setup(ctx, &progress{}); err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}
	if err := w.ProcessScalar("x", 1); err != nil {
		t.Errorf("ProcessScalar() while open failed: %v", err)
	}
	if err := w.AfterTrain(ctx); err != nil {
		t.Fatalf("AfterTrain() failed: %v", err)
	}
	if err := w.ProcessEvent(&tfevent.Event{}); !errors.Is(err, monitor.ErrNotOpen) {
		t.Errorf("ProcessEvent() after close error = %v, want %v", err, monitor.ErrNotOpen)
	}
	if err := w.AfterTrain(ctx); err != nil {
		t.Errorf("second AfterTrain() failed: %v", err)
	}
}

func TestEventWriter_SplitFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &observability.Recorder{}
	m, err := monitor.NewEventWriter(monitor.EventWriterConfig{LogDir: dir, SplitFiles: true},
		quiet(), monitor.WithObserver(rec))
	if err != nil {
		t.Fatalf("NewEventWriter() failed: %v", err)
	}
	hub := monitor.New([]monitor.Monitor{m}, quiet(), monitor.WithObserver(observability.NoOpObserver{}))

	runLoop(t, train.Config{StepsPerEpoch: 1, StartingEpoch: 1, MaxEpoch: 3}, hub, putLoss(hub))

	files, err := filepath.Glob(filepath.Join(dir, "events.out.tfevents.*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 4 {
		t.Errorf("event files = %d, want one per epoch plus the final empty one", len(files))
	}
	if n := len(rec.Events()); n != 3 {
		t.Errorf("split events = %d, want 3", n)
	}
}

func TestEventWriter_Images(t *testing.T) {
	dir := t.TempDir()
	m, err := monitor.NewEventWriter(monitor.EventWriterConfig{LogDir: dir}, quiet())
	if err != nil {
		t.Fatalf("NewEventWriter() failed: %v", err)
	}
	w := m.(*monitor.EventWriter)
	hub := monitor.New([]monitor.Monitor{w}, quiet())
	ctx := context.Background()
	if err := hub.Setup(ctx, &progress{global: 9}); err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}
	path := w.Path()

	if err := hub.PutImage("sample", tensor.Zeros(2, 5, 5)); err != nil {
		t.Fatalf("PutImage() failed: %v", err)
	}
	if err := hub.AfterTrain(ctx); err != nil {
		t.Fatalf("AfterTrain() failed: %v", err)
	}

	events, err := tfevent.ReadEvents(path)
	if err != nil {
		t.Fatalf("ReadEvents() failed: %v", err)
	}
	vals := events[len(events)-1].Summary.Values
	if len(vals) != 2 {
		t.Fatalf("image values = %d, want 2", len(vals))
	}
	for i, want := range []string{"sample/image/0", "sample/image/1"} {
		img := vals[i].Image
		if vals[i].Tag != want || img == nil || img.Height != 5 || img.Colorspace != 1 {
			t.Errorf("value %d = %s %+v, want %s 5x5 gray", i, vals[i].Tag, img, want)
		}
	}
}

// JSONWriter

func TestNewJSONWriter_NoLogDir(t *testing.T) {
	rec := &observability.Recorder{}
	m := monitor.NewJSONWriter(monitor.JSONWriterConfig{}, quiet(), monitor.WithObserver(rec))
	if m.Name() != "NoneMonitor(JSONWriter)" {
		t.Errorf("Name() = %q, want NoneMonitor(JSONWriter)", m.Name())
	}

	events := rec.Events()
	if len(events) != 1 || events[0].Type != monitor.EventSinkIgnored {
		t.Fatalf("events = %v, want one %s", rec.Types(), monitor.EventSinkIgnored)
	}
	if events[0].Level != observability.LevelWarning {
		t.Errorf("Level = %v, want %v", events[0].Level, observability.LevelWarning)
	}
}

func TestJSONWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := monitor.NewJSONWriter(monitor.JSONWriterConfig{LogDir: dir}, quiet()).(*monitor.JSONWriter)
	hub := monitor.New([]monitor.Monitor{w}, quiet())

	runLoop(t, train.Config{StepsPerEpoch: 3, StartingEpoch: 1, MaxEpoch: 2}, hub, putLoss(hub))

	records := w.Records()
	if len(records) != 6 {
		t.Fatalf("records = %d, want one per step", len(records))
	}
	last := records[len(records)-1]
	if last.EpochNum != 2 || last.GlobalStep != 6 {
		t.Errorf("last record epoch/step = %d/%d, want 2/6", last.EpochNum, last.GlobalStep)
	}

	loaded, err := monitor.LoadExistingJSON(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadExistingJSON() failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, records) {
		t.Errorf("reloaded ledger differs:\n%+v\n%+v", loaded, records)
	}

	epoch, ok := monitor.LoadExistingEpochNumber(context.Background(), dir)
	if !ok || epoch != 2 {
		t.Errorf("LoadExistingEpochNumber() = %d, %v; want 2, true", epoch, ok)
	}
}

func TestJSONWriter_TriggerIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := monitor.NewJSONWriter(monitor.JSONWriterConfig{LogDir: dir}, quiet()).(*monitor.JSONWriter)
	ctx := context.Background()
	p := &progress{global: 5, local: 0, steps: 10, epoch: 1, starting: 1}

	if err := w.Setup(ctx, p); err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}
	if err := w.BeforeTrain(ctx); err != nil {
		t.Fatalf("BeforeTrain() failed: %v", err)
	}
	w.ProcessScalar("loss", 0.5)
	w.ProcessScalar("loss", 0.25)

	for range 3 {
		if err := w.TriggerEpoch(ctx); err != nil {
			t.Fatalf("TriggerEpoch() failed: %v", err)
		}
	}

	want := []ledger.Record{{EpochNum: 1, GlobalStep: 5, Values: map[string]float64{"loss": 0.25}}}
	if got := w.Records(); !reflect.DeepEqual(got, want) {
		t.Errorf("Records() = %+v, want %+v", got, want)
	}
}

func TestJSONWriter_SkipsLastStepOfEpoch(t *testing.T) {
	w := monitor.NewJSONWriterWithStore(ledger.NewFileStore(t.TempDir()), quiet())
	ctx := context.Background()
	p := &progress{steps: 2, epoch: 1, starting: 1}
	if err := w.Setup(ctx, p); err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}

	w.ProcessScalar("loss", 1)
	p.local = 1
	w.TriggerStep(ctx)
	if n := len(w.Records()); n != 0 {
		t.Fatalf("records after last step = %d, want 0", n)
	}

	w.TriggerEpoch(ctx)
	if n := len(w.Records()); n != 1 {
		t.Errorf("records after epoch = %d, want 1", n)
	}
}

func seedLedger(t *testing.T, dir string, lastEpoch int) []byte {
	t.Helper()
	var records []ledger.Record
	for e := 1; e <= lastEpoch; e++ {
		records = append(records, ledger.Record{EpochNum: e, GlobalStep: e * 10, Values: map[string]float64{"loss": 1}})
	}
	if err := ledger.NewFileStore(dir).Save(context.Background(), records); err != nil {
		t.Fatalf("seed Save() failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, ledger.FileName))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestJSONWriter_Resume(t *testing.T) {
	dir := t.TempDir()
	seedLedger(t, dir, 2)
	rec := &observability.Recorder{}
	w := monitor.NewJSONWriter(monitor.JSONWriterConfig{LogDir: dir}, quiet(), monitor.WithObserver(rec)).(*monitor.JSONWriter)
	hub := monitor.New([]monitor.Monitor{w}, quiet(), monitor.WithObserver(observability.NoOpObserver{}))

	runLoop(t, train.Config{StepsPerEpoch: 1, StartingEpoch: 3, MaxEpoch: 3}, hub, putLoss(hub))

	records := w.Records()
	if len(records) != 3 {
		t.Fatalf("records = %d, want 2 resumed + 1 new", len(records))
	}
	if records[2].EpochNum != 3 || records[2].GlobalStep != 3 {
		t.Errorf("new record epoch/step = %d/%d, want 3/3", records[2].EpochNum, records[2].GlobalStep)
	}
	if types := rec.Types(); len(types) != 1 || types[0] != monitor.EventLedgerResume {
		t.Errorf("events = %v, want [%s]", types, monitor.EventLedgerResume)
	}

	backups, _ := filepath.Glob(filepath.Join(dir, ledger.FileName+".*"))
	if len(backups) != 0 {
		t.Errorf("backups = %v, want none on resume", backups)
	}
}

func TestJSONWriter_MismatchBacksUp(t *testing.T) {
	dir := t.TempDir()
	old := seedLedger(t, dir, 5)
	now := time.Date(2026, 3, 14, 9, 26, 11, 0, time.Local)
	w := monitor.NewJSONWriter(monitor.JSONWriterConfig{LogDir: dir},
		quiet(),
		monitor.WithClock(func() time.Time { return now }),
		monitor.WithObserver(observability.NoOpObserver{}),
	).(*monitor.JSONWriter)
	hub := monitor.New([]monitor.Monitor{w}, quiet())

	runLoop(t, train.Config{StepsPerEpoch: 1, StartingEpoch: 1, MaxEpoch: 1}, hub, putLoss(hub))

	backup := filepath.Join(dir, ledger.FileName+".0314-092611")
	data, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("backup not written: %v", err)
	}
	if !bytes.Equal(data, old) {
		t.Error("backup differs from the old ledger")
	}

	records := w.Records()
	if len(records) != 1 || records[0].EpochNum != 1 {
		t.Errorf("records = %+v, want a fresh ledger with epoch 1", records)
	}
}

// lockedStore cannot move the existing ledger aside.
type lockedStore struct {
	ledger.Store
}

func (lockedStore) Backup(context.Context, string) (string, error) {
	return "", errors.New("permission denied")
}

func TestJSONWriter_MismatchBackupFailureKeepsLedger(t *testing.T) {
	dir := t.TempDir()
	old := seedLedger(t, dir, 7)
	w := monitor.NewJSONWriterWithStore(lockedStore{ledger.NewFileStore(dir)}, quiet(), monitor.WithObserver(observability.NoOpObserver{}))
	ctx := context.Background()

	if err := w.Setup(ctx, &progress{global: 5, epoch: 1, starting: 1, steps: 5}); err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}
	w.ProcessScalar("loss", 0.5)
	if err := w.BeforeTrain(ctx); err == nil {
		t.Fatal("BeforeTrain() succeeded, want the backup error")
	}

	data, err := os.ReadFile(filepath.Join(dir, ledger.FileName))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, old) {
		t.Errorf("ledger overwritten after a failed backup: %s", data)
	}
}

func TestJSONWriter_NonFiniteScalarKeepsLedgerWritable(t *testing.T) {
	dir := t.TempDir()
	w := monitor.NewJSONWriter(monitor.JSONWriterConfig{LogDir: dir}, quiet(), monitor.WithObserver(observability.NoOpObserver{})).(*monitor.JSONWriter)
	hub := monitor.New([]monitor.Monitor{w}, quiet(), monitor.WithObserver(observability.NoOpObserver{}))

	runLoop(t, train.Config{StepsPerEpoch: 1, StartingEpoch: 1, MaxEpoch: 4}, hub, func(_ context.Context, p train.Progress) error {
		if p.EpochNum() == 1 {
			return hub.PutScalar("loss", math.NaN())
		}
		return hub.PutScalar("loss", 1/float64(p.EpochNum()))
	})

	records, err := monitor.LoadExistingJSON(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadExistingJSON() failed: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records on disk = %d, want 4", len(records))
	}
	if !math.IsNaN(records[0].Values["loss"]) {
		t.Errorf("first loss = %v, want NaN", records[0].Values["loss"])
	}
	if got := records[3].Values["loss"]; got != 0.25 {
		t.Errorf("last loss = %v, want 0.25", got)
	}
}

// failingStore fails every Save, as a crash before the rename would.
type failingStore struct {
	ledger.Store
}

func (failingStore) Save(context.Context, []ledger.Record) error {
	return ledger.ErrSaveFailed
}

func TestJSONWriter_WriteFailureIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	before := seedLedger(t, dir, 1)
	rec := &observability.Recorder{}
	w := monitor.NewJSONWriterWithStore(failingStore{ledger.NewFileStore(dir)}, quiet(), monitor.WithObserver(rec))
	ctx := context.Background()

	if err := w.Setup(ctx, &progress{epoch: 2, starting: 2, steps: 5}); err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}
	if err := w.BeforeTrain(ctx); err != nil {
		t.Fatalf("BeforeTrain() failed: %v", err)
	}
	w.ProcessScalar("loss", 0.1)
	if err := w.TriggerEpoch(ctx); err != nil {
		t.Errorf("TriggerEpoch() error = %v, want write failures swallowed", err)
	}

	after, err := os.ReadFile(filepath.Join(dir, ledger.FileName))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("ledger changed after a failed write")
	}
	want := []observability.EventType{monitor.EventLedgerResume, monitor.EventLedgerFailed}
	if got := rec.Types(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

// ScalarPrinter

func printerHub(t *testing.T, cfg monitor.ScalarPrinterConfig) (*monitor.Monitors, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))

	p, err := monitor.NewScalarPrinter(cfg, monitor.WithLogger(logger))
	if err != nil {
		t.Fatalf("NewScalarPrinter() failed: %v", err)
	}
	return monitor.New([]monitor.Monitor{p}, quiet()), &buf
}

func TestScalarPrinter_Cadence(t *testing.T) {
	tests := []struct {
		name        string
		enableStep  bool
		enableEpoch bool
		wantPrints  int
	}{
		{name: "step and epoch", enableStep: true, enableEpoch: true, wantPrints: 6},
		{name: "epoch only", enableEpoch: true, wantPrints: 2},
		{name: "step only", enableStep: true, wantPrints: 6},
		{name: "neither", wantPrints: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub, buf := printerHub(t, monitor.ScalarPrinterConfig{
				EnableStep:  tt.enableStep,
				EnableEpoch: tt.enableEpoch,
			})

			runLoop(t, train.Config{StepsPerEpoch: 3, StartingEpoch: 1, MaxEpoch: 2}, hub, putLoss(hub))

			if got := strings.Count(buf.String(), `msg="loss: `); got != tt.wantPrints {
				t.Errorf("printed loss %d times, want %d:\n%s", got, tt.wantPrints, buf.String())
			}
		})
	}
}

func TestScalarPrinter_OncePerEpochWithBothEnabled(t *testing.T) {
	hub, buf := printerHub(t, monitor.ScalarPrinterConfig{EnableStep: true, EnableEpoch: true})

	// acc arrives only on the last step of each epoch, which both triggers
	// could print.
	runLoop(t, train.Config{StepsPerEpoch: 3, StartingEpoch: 1, MaxEpoch: 2}, hub,
		func(_ context.Context, p train.Progress) error {
			if p.LocalStep() == p.StepsPerEpoch()-1 {
				return hub.PutScalar("acc", 0.9)
			}
			return nil
		})

	if got := strings.Count(buf.String(), `msg="acc: 0.9"`); got != 2 {
		t.Errorf("printed acc %d times, want once per epoch:\n%s", got, buf.String())
	}
}

func TestScalarPrinter_FiltersAndFormat(t *testing.T) {
	hub, buf := printerHub(t, monitor.ScalarPrinterConfig{
		EnableEpoch: true,
		Whitelist:   []string{`^train/`, `^val/`},
		Blacklist:   []string{`debug`},
	})
	ctx := context.Background()
	if err := hub.Setup(ctx, &progress{steps: 1}); err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}

	for name, v := range map[string]float64{
		"val/acc":     0.123456,
		"train/loss":  12345678,
		"train/debug": 1,
		"lr":          0.1,
		"train/tiny":  0.00001234,
	} {
		if err := hub.PutScalar(name, v); err != nil {
			t.Fatalf("PutScalar(%s) failed: %v", name, err)
		}
	}
	if err := hub.TriggerEpoch(ctx); err != nil {
		t.Fatalf("TriggerEpoch() failed: %v", err)
	}

	want := "msg=\"train/loss: 1.2346e+07\"\n" +
		"msg=\"train/tiny: 1.234e-05\"\n" +
		"msg=\"val/acc: 0.12346\"\n"
	if got := buf.String(); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}

	buf.Reset()
	if err := hub.TriggerEpoch(ctx); err != nil {
		t.Fatalf("TriggerEpoch() failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("second trigger printed %q, want nothing after the buffer was cleared", buf.String())
	}
}

func TestNewScalarPrinter_BadPattern(t *testing.T) {
	_, err := monitor.NewScalarPrinter(monitor.ScalarPrinterConfig{Blacklist: []string{"("}})
	if err == nil {
		t.Error("NewScalarPrinter() succeeded with an invalid blacklist")
	}
}
