package tfevent

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	eventWallTime    protowire.Number = 1
	eventStep        protowire.Number = 2
	eventFileVersion protowire.Number = 3
	eventSummary     protowire.Number = 5
	eventLogMessage  protowire.Number = 6
	eventSessionLog  protowire.Number = 7

	summaryValue protowire.Number = 1

	valueTag      protowire.Number = 1
	valueSimple   protowire.Number = 2
	valueImage    protowire.Number = 4
	valueNodeName protowire.Number = 7

	imageHeight     protowire.Number = 1
	imageWidth      protowire.Number = 2
	imageColorspace protowire.Number = 3
	imageEncoded    protowire.Number = 4

	logLevel   protowire.Number = 1
	logMessage protowire.Number = 2

	sessionStatus     protowire.Number = 1
	sessionCheckpoint protowire.Number = 2
	sessionMsg        protowire.Number = 3
)

// Marshal encodes the event in protobuf wire format.
func (e *Event) Marshal() []byte {
	var b []byte
	if e.WallTime != 0 {
		b = protowire.AppendTag(b, eventWallTime, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(e.WallTime))
	}
	if e.Step != 0 {
		b = protowire.AppendTag(b, eventStep, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.Step))
	}
	switch {
	case e.FileVersion != "":
		b = protowire.AppendTag(b, eventFileVersion, protowire.BytesType)
		b = protowire.AppendString(b, e.FileVersion)
	case e.Summary != nil:
		b = protowire.AppendTag(b, eventSummary, protowire.BytesType)
		b = protowire.AppendBytes(b, e.Summary.Marshal())
	case e.LogMessage != nil:
		b = protowire.AppendTag(b, eventLogMessage, protowire.BytesType)
		b = protowire.AppendBytes(b, e.LogMessage.marshal())
	case e.SessionLog != nil:
		b = protowire.AppendTag(b, eventSessionLog, protowire.BytesType)
		b = protowire.AppendBytes(b, e.SessionLog.marshal())
	}
	return append(b, e.unknown...)
}

// Marshal encodes the summary in protobuf wire format.
func (s *Summary) Marshal() []byte {
	var b []byte
	for _, v := range s.Values {
		b = protowire.AppendTag(b, summaryValue, protowire.BytesType)
		b = protowire.AppendBytes(b, v.marshal())
	}
	return b
}

func (v *Value) marshal() []byte {
	var b []byte
	if v.Tag != "" {
		b = protowire.AppendTag(b, valueTag, protowire.BytesType)
		b = protowire.AppendString(b, v.Tag)
	}
	switch v.kind {
	case KindSimple:
		b = protowire.AppendTag(b, valueSimple, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(v.SimpleValue))
	case KindImage:
		if v.Image != nil {
			b = protowire.AppendTag(b, valueImage, protowire.BytesType)
			b = protowire.AppendBytes(b, v.Image.marshal())
		}
	}
	if v.NodeName != "" {
		b = protowire.AppendTag(b, valueNodeName, protowire.BytesType)
		b = protowire.AppendString(b, v.NodeName)
	}
	return append(b, v.unknown...)
}

func (img *Image) marshal() []byte {
	var b []byte
	b = appendInt32(b, imageHeight, img.Height)
	b = appendInt32(b, imageWidth, img.Width)
	b = appendInt32(b, imageColorspace, img.Colorspace)
	if len(img.Encoded) > 0 {
		b = protowire.AppendTag(b, imageEncoded, protowire.BytesType)
		b = protowire.AppendBytes(b, img.Encoded)
	}
	return b
}

func (m *LogMessage) marshal() []byte {
	b := appendInt32(nil, logLevel, int32(m.Level))
	if m.Message != "" {
		b = protowire.AppendTag(b, logMessage, protowire.BytesType)
		b = protowire.AppendString(b, m.Message)
	}
	return b
}

func (l *SessionLog) marshal() []byte {
	b := appendInt32(nil, sessionStatus, int32(l.Status))
	if l.CheckpointPath != "" {
		b = protowire.AppendTag(b, sessionCheckpoint, protowire.BytesType)
		b = protowire.AppendString(b, l.CheckpointPath)
	}
	if l.Msg != "" {
		b = protowire.AppendTag(b, sessionMsg, protowire.BytesType)
		b = protowire.AppendString(b, l.Msg)
	}
	return b
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

// UnmarshalEvent decodes an Event from protobuf wire format.
func UnmarshalEvent(data []byte) (*Event, error) {
	e := &Event{}
	err := walk(data, &e.unknown, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == eventWallTime && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			e.WallTime = math.Float64frombits(v)
			return n, nil
		case num == eventStep && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			e.Step = int64(v)
			return n, nil
		case num == eventFileVersion && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			e.FileVersion = v
			return n, nil
		case num == eventSummary && typ == protowire.BytesType:
			return consumeMessage(b, func(v []byte) (err error) {
				e.Summary, err = UnmarshalSummary(v)
				return err
			})
		case num == eventLogMessage && typ == protowire.BytesType:
			return consumeMessage(b, func(v []byte) (err error) {
				e.LogMessage, err = unmarshalLogMessage(v)
				return err
			})
		case num == eventSessionLog && typ == protowire.BytesType:
			return consumeMessage(b, func(v []byte) (err error) {
				e.SessionLog, err = unmarshalSessionLog(v)
				return err
			})
		}
		return 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("event: %w", err)
	}
	return e, nil
}

// UnmarshalSummary decodes a Summary from protobuf wire format.
func UnmarshalSummary(data []byte) (*Summary, error) {
	s := &Summary{}
	err := walk(data, nil, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != summaryValue || typ != protowire.BytesType {
			return 0, nil
		}
		return consumeMessage(b, func(v []byte) error {
			val, err := unmarshalValue(v)
			if err != nil {
				return err
			}
			s.Values = append(s.Values, val)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	return s, nil
}

func unmarshalValue(data []byte) (*Value, error) {
	v := &Value{}
	err := walk(data, &v.unknown, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == valueTag && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			v.Tag = s
			return n, nil
		case num == valueNodeName && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			v.NodeName = s
			return n, nil
		case num == valueSimple && typ == protowire.Fixed32Type:
			x, n := protowire.ConsumeFixed32(b)
			v.SimpleValue = math.Float32frombits(x)
			v.kind = KindSimple
			return n, nil
		case num == valueImage && typ == protowire.BytesType:
			return consumeMessage(b, func(m []byte) (err error) {
				v.Image, err = unmarshalImage(m)
				v.kind = KindImage
				return err
			})
		}
		return 0, nil
	})
	return v, err
}

func unmarshalImage(data []byte) (*Image, error) {
	img := &Image{}
	err := walk(data, nil, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == imageHeight && typ == protowire.VarintType:
			return consumeInt32(b, &img.Height)
		case num == imageWidth && typ == protowire.VarintType:
			return consumeInt32(b, &img.Width)
		case num == imageColorspace && typ == protowire.VarintType:
			return consumeInt32(b, &img.Colorspace)
		case num == imageEncoded && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			img.Encoded = append([]byte(nil), v...)
			return n, nil
		}
		return 0, nil
	})
	return img, err
}

func unmarshalLogMessage(data []byte) (*LogMessage, error) {
	m := &LogMessage{}
	err := walk(data, nil, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == logLevel && typ == protowire.VarintType:
			var lvl int32
			n, err := consumeInt32(b, &lvl)
			m.Level = LogLevel(lvl)
			return n, err
		case num == logMessage && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			m.Message = s
			return n, nil
		}
		return 0, nil
	})
	return m, err
}

func unmarshalSessionLog(data []byte) (*SessionLog, error) {
	l := &SessionLog{}
	err := walk(data, nil, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == sessionStatus && typ == protowire.VarintType:
			var status int32
			n, err := consumeInt32(b, &status)
			l.Status = SessionStatus(status)
			return n, err
		case num == sessionCheckpoint && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			l.CheckpointPath = s
			return n, nil
		case num == sessionMsg && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			l.Msg = s
			return n, nil
		}
		return 0, nil
	})
	return l, err
}

// walk iterates the fields of an encoded message. fn receives the bytes
// following each tag and returns how many it consumed; returning 0 leaves
// the field unrecognized, in which case it is skipped and, when unknown is
// non-nil, copied there verbatim.
func walk(data []byte, unknown *[]byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return malformed(n)
		}
		m, err := fn(num, typ, data[n:])
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, data[n:])
			if m >= 0 && unknown != nil {
				*unknown = append(*unknown, data[:n+m]...)
			}
		}
		if m < 0 {
			return malformed(m)
		}
		data = data[n+m:]
	}
	return nil
}

func consumeMessage(b []byte, decode func([]byte) error) (int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	return n, decode(v)
}

func consumeInt32(b []byte, dst *int32) (int, error) {
	v, n := protowire.ConsumeVarint(b)
	*dst = int32(v)
	return n, nil
}

func malformed(n int) error {
	return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
}
