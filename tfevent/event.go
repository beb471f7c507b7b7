// Package tfevent reads and writes training event logs in the record format
// consumed by TensorBoard: protobuf-encoded Event messages framed as
// TFRecords. Only the subset of the Event and Summary schema used by the
// monitors is modeled; unmodeled fields survive a decode/encode round trip.
package tfevent

// FileVersion is written as the first event of every log file.
const FileVersion = "brain.Event:2"

// Event is a single entry in an event log. At most one of FileVersion,
// Summary, LogMessage and SessionLog is set.
type Event struct {
	WallTime    float64
	Step        int64
	FileVersion string
	Summary     *Summary
	LogMessage  *LogMessage
	SessionLog  *SessionLog

	unknown []byte
}

// Summary is a set of tagged values recorded at one step.
type Summary struct {
	Values []*Value
}

// ValueKind identifies which value field of a Summary Value is populated.
type ValueKind int

const (
	KindOther ValueKind = iota
	KindSimple
	KindImage
)

func (k ValueKind) String() string {
	switch k {
	case KindSimple:
		return "simple_value"
	case KindImage:
		return "image"
	default:
		return "other"
	}
}

// Value is one tagged entry of a Summary. Histogram, audio and tensor
// payloads are carried opaquely and reported as KindOther.
type Value struct {
	Tag         string
	NodeName    string
	SimpleValue float32
	Image       *Image

	kind    ValueKind
	unknown []byte
}

// NewSimpleValue creates a scalar summary value.
func NewSimpleValue(tag string, v float32) *Value {
	return &Value{Tag: tag, SimpleValue: v, kind: KindSimple}
}

// NewImageValue creates an image summary value.
func NewImageValue(tag string, img *Image) *Value {
	return &Value{Tag: tag, Image: img, kind: KindImage}
}

func (v *Value) Kind() ValueKind {
	return v.kind
}

// Image is an encoded image summary. Colorspace follows the channel count:
// 1 grayscale, 3 RGB, 4 RGBA.
type Image struct {
	Height     int32
	Width      int32
	Colorspace int32
	Encoded    []byte
}

// LogLevel mirrors the severity levels of LogMessage.
type LogLevel int32

const (
	LogUnknown LogLevel = 0
	LogDebug   LogLevel = 10
	LogInfo    LogLevel = 20
	LogWarn    LogLevel = 30
	LogError   LogLevel = 40
	LogFatal   LogLevel = 50
)

// LogMessage is a free-form log line stored in the event stream.
type LogMessage struct {
	Level   LogLevel
	Message string
}

// SessionStatus marks session boundaries in the event stream.
type SessionStatus int32

const (
	StatusUnspecified SessionStatus = iota
	StatusStart
	StatusStop
	StatusCheckpoint
)

// SessionLog records a session start, stop or checkpoint.
type SessionLog struct {
	Status         SessionStatus
	CheckpointPath string
	Msg            string
}
