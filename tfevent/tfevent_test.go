package tfevent_test

import (
	"bytes"
	"errors"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tailored-agentic-units/trainmon/tfevent"
)

func TestEvent_RoundTrip(t *testing.T) {
	e := &tfevent.Event{
		WallTime: 1700000000.25,
		Step:     42,
		Summary: &tfevent.Summary{Values: []*tfevent.Value{
			tfevent.NewSimpleValue("loss", 0.5),
			tfevent.NewSimpleValue("zero", 0),
		}},
	}

	got, err := tfevent.UnmarshalEvent(e.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalEvent() error = %v", err)
	}

	if got.WallTime != e.WallTime {
		t.Errorf("WallTime = %v, want %v", got.WallTime, e.WallTime)
	}
	if got.Step != 42 {
		t.Errorf("Step = %d, want 42", got.Step)
	}
	if got.Summary == nil || len(got.Summary.Values) != 2 {
		t.Fatalf("Summary = %+v, want 2 values", got.Summary)
	}

	zero := got.Summary.Values[1]
	if zero.Kind() != tfevent.KindSimple {
		t.Errorf("zero-valued scalar kind = %v, want simple_value", zero.Kind())
	}
	if got.Summary.Values[0].Tag != "loss" || got.Summary.Values[0].SimpleValue != 0.5 {
		t.Errorf("Values[0] = %+v, want loss=0.5", got.Summary.Values[0])
	}
}

func TestEvent_FileVersionAndLogMessage(t *testing.T) {
	tests := []struct {
		name  string
		event *tfevent.Event
		check func(t *testing.T, e *tfevent.Event)
	}{
		{
			name:  "file version",
			event: &tfevent.Event{WallTime: 1, FileVersion: tfevent.FileVersion},
			check: func(t *testing.T, e *tfevent.Event) {
				if e.FileVersion != tfevent.FileVersion {
					t.Errorf("FileVersion = %q, want %q", e.FileVersion, tfevent.FileVersion)
				}
			},
		},
		{
			name:  "log message",
			event: &tfevent.Event{Step: 3, LogMessage: &tfevent.LogMessage{Level: tfevent.LogWarn, Message: "hot"}},
			check: func(t *testing.T, e *tfevent.Event) {
				if e.LogMessage == nil || e.LogMessage.Level != tfevent.LogWarn || e.LogMessage.Message != "hot" {
					t.Errorf("LogMessage = %+v, want WARN hot", e.LogMessage)
				}
			},
		},
		{
			name:  "session log",
			event: &tfevent.Event{SessionLog: &tfevent.SessionLog{Status: tfevent.StatusCheckpoint, CheckpointPath: "/ckpt"}},
			check: func(t *testing.T, e *tfevent.Event) {
				if e.SessionLog == nil || e.SessionLog.Status != tfevent.StatusCheckpoint || e.SessionLog.CheckpointPath != "/ckpt" {
					t.Errorf("SessionLog = %+v, want checkpoint /ckpt", e.SessionLog)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tfevent.UnmarshalEvent(tt.event.Marshal())
			if err != nil {
				t.Fatalf("UnmarshalEvent() error = %v", err)
			}
			tt.check(t, got)
		})
	}
}

func TestSummary_PreservesUnknownValueFields(t *testing.T) {
	// A value carrying a histogram (field 5), which is not modeled.
	var value []byte
	value = protowire.AppendTag(value, 1, protowire.BytesType)
	value = protowire.AppendString(value, "weights")
	value = protowire.AppendTag(value, 5, protowire.BytesType)
	value = protowire.AppendBytes(value, []byte{0x09, 1, 2, 3, 4, 5, 6, 7, 8})

	var raw []byte
	raw = protowire.AppendTag(raw, 1, protowire.BytesType)
	raw = protowire.AppendBytes(raw, value)

	s, err := tfevent.UnmarshalSummary(raw)
	if err != nil {
		t.Fatalf("UnmarshalSummary() error = %v", err)
	}
	if len(s.Values) != 1 || s.Values[0].Kind() != tfevent.KindOther {
		t.Fatalf("Values = %+v, want one value of kind other", s.Values)
	}
	if !bytes.Equal(s.Marshal(), raw) {
		t.Errorf("Marshal() = %x, want %x", s.Marshal(), raw)
	}
}

func TestUnmarshalSummary_Malformed(t *testing.T) {
	if _, err := tfevent.UnmarshalSummary([]byte{0x0a, 0x05, 0x01}); !errors.Is(err, tfevent.ErrMalformed) {
		t.Errorf("UnmarshalSummary() error = %v, want ErrMalformed", err)
	}
}

func TestRecord_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := tfevent.NewRecordWriter(&buf)
	for _, p := range []string{"first", "", "third"} {
		if err := w.Write([]byte(p)); err != nil {
			t.Fatalf("Write(%q) error = %v", p, err)
		}
	}

	r := tfevent.NewRecordReader(&buf)
	for _, want := range []string{"first", "", "third"} {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if string(got) != want {
			t.Errorf("Next() = %q, want %q", got, want)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() at end error = %v, want io.EOF", err)
	}
}

func TestRecord_DetectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	if err := tfevent.NewRecordWriter(&buf).Write([]byte("payload")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data := buf.Bytes()
	data[14] ^= 0xff

	if _, err := tfevent.NewRecordReader(bytes.NewReader(data)).Next(); !errors.Is(err, tfevent.ErrCorrupt) {
		t.Errorf("Next() error = %v, want ErrCorrupt", err)
	}
}

func TestRecord_Truncated(t *testing.T) {
	var buf bytes.Buffer
	if err := tfevent.NewRecordWriter(&buf).Write([]byte("payload")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data := buf.Bytes()[:buf.Len()-2]

	if _, err := tfevent.NewRecordReader(bytes.NewReader(data)).Next(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Next() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestFileWriter_WritesVersionThenEvents(t *testing.T) {
	dir := t.TempDir()
	w, err := tfevent.NewFileWriter(dir, tfevent.FileWriterOptions{})
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}

	if err := w.AddScalar("loss", 1.5, 7); err != nil {
		t.Fatalf("AddScalar() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	events, err := tfevent.ReadEvents(w.Path())
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].FileVersion != tfevent.FileVersion {
		t.Errorf("first event FileVersion = %q, want %q", events[0].FileVersion, tfevent.FileVersion)
	}
	if events[1].Step != 7 || events[1].Summary.Values[0].SimpleValue != 1.5 {
		t.Errorf("second event = %+v, want loss=1.5 at step 7", events[1])
	}
}

func TestFileWriter_FlushesOnQueueSize(t *testing.T) {
	dir := t.TempDir()
	w, err := tfevent.NewFileWriter(dir, tfevent.FileWriterOptions{MaxQueue: 2})
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	defer w.Close()

	// The version event is pending; one more reaches the queue limit.
	if err := w.AddScalar("a", 1, 1); err != nil {
		t.Fatalf("AddScalar() error = %v", err)
	}

	events, err := tfevent.ReadEvents(w.Path())
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events on disk, want 2 after reaching MaxQueue", len(events))
	}
}

func TestFileWriter_FlushesOnInterval(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(1000, 0)
	w, err := tfevent.NewFileWriter(dir, tfevent.FileWriterOptions{
		MaxQueue:  100,
		FlushSecs: 5,
		Now:       func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	defer w.Close()

	if err := w.AddScalar("a", 1, 1); err != nil {
		t.Fatalf("AddScalar() error = %v", err)
	}
	if info, _ := os.Stat(w.Path()); info.Size() != 0 {
		t.Fatalf("file size = %d before interval, want 0", info.Size())
	}

	now = now.Add(6 * time.Second)
	if err := w.AddScalar("a", 2, 2); err != nil {
		t.Fatalf("AddScalar() error = %v", err)
	}
	if info, _ := os.Stat(w.Path()); info.Size() == 0 {
		t.Error("file is empty after flush interval elapsed")
	}
}

func TestFileWriter_ReopenStartsNewFile(t *testing.T) {
	dir := t.TempDir()
	w, err := tfevent.NewFileWriter(dir, tfevent.FileWriterOptions{})
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	first := w.Path()

	if err := w.Reopen(); err != nil {
		t.Fatalf("Reopen() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if w.Path() == first {
		t.Error("Reopen() kept the same file")
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "events.out.tfevents.*"))
	if len(matches) != 2 {
		t.Errorf("found %d event files, want 2", len(matches))
	}
}

func TestFileWriter_ClosedRejectsWrites(t *testing.T) {
	w, err := tfevent.NewFileWriter(t.TempDir(), tfevent.FileWriterOptions{})
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.AddScalar("a", 1, 1); !errors.Is(err, tfevent.ErrWriterClose) {
		t.Errorf("AddScalar() after Close error = %v, want ErrWriterClose", err)
	}
}

func TestNewFileWriter_MissingDir(t *testing.T) {
	if _, err := tfevent.NewFileWriter(filepath.Join(t.TempDir(), "missing"), tfevent.FileWriterOptions{}); err == nil {
		t.Error("NewFileWriter() on missing directory succeeded, want error")
	}
}

func TestNewImage(t *testing.T) {
	pixels := []float64{0, 128, 300, -5, 255, 10}
	img, err := tfevent.NewImage(2, 1, 3, pixels)
	if err != nil {
		t.Fatalf("NewImage() error = %v", err)
	}
	if img.Height != 2 || img.Width != 1 || img.Colorspace != 3 {
		t.Errorf("image = %dx%d cs=%d, want 2x1 cs=3", img.Height, img.Width, img.Colorspace)
	}

	decoded, err := png.Decode(bytes.NewReader(img.Encoded))
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	r, g, b, _ := decoded.At(0, 0).RGBA()
	if r>>8 != 0 || g>>8 != 128 || b>>8 != 255 {
		t.Errorf("pixel (0,0) = (%d,%d,%d), want (0,128,255)", r>>8, g>>8, b>>8)
	}
}

func TestNewImage_BadChannels(t *testing.T) {
	if _, err := tfevent.NewImage(1, 1, 2, []float64{0, 0}); !errors.Is(err, tfevent.ErrChannels) {
		t.Errorf("NewImage() error = %v, want ErrChannels", err)
	}
}
