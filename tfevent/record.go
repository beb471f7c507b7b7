package tfevent

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// maskedCRC is the CRC32C checksum rotated and offset, as TFRecord stores it.
func maskedCRC(b []byte) uint32 {
	c := crc32.Checksum(b, castagnoli)
	return ((c >> 15) | (c << 17)) + 0xa282ead8
}

// RecordWriter frames payloads as TFRecords:
//
//	uint64 length | uint32 masked crc(length) | payload | uint32 masked crc(payload)
type RecordWriter struct {
	w io.Writer
}

func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{w: w}
}

// Write emits one framed record.
func (rw *RecordWriter) Write(payload []byte) error {
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(payload)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))

	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(payload))

	for _, part := range [][]byte{header[:], payload, footer[:]} {
		if _, err := rw.w.Write(part); err != nil {
			return err
		}
	}
	return nil
}

// RecordReader reads TFRecords and verifies both checksums.
type RecordReader struct {
	r io.Reader
}

func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{r: r}
}

// Next returns the next payload. It returns io.EOF at a clean end of stream,
// io.ErrUnexpectedEOF for a truncated record, and ErrCorrupt on a checksum
// mismatch.
func (rr *RecordReader) Next() ([]byte, error) {
	var header [12]byte
	if _, err := io.ReadFull(rr.r, header[:]); err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(header[8:]) != maskedCRC(header[:8]) {
		return nil, fmt.Errorf("%w: length checksum mismatch", ErrCorrupt)
	}

	length := binary.LittleEndian.Uint64(header[:8])
	buf := make([]byte, length+4)
	if _, err := io.ReadFull(rr.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := buf[:length]
	if binary.LittleEndian.Uint32(buf[length:]) != maskedCRC(payload) {
		return nil, fmt.Errorf("%w: payload checksum mismatch", ErrCorrupt)
	}
	return payload, nil
}

// ReadEvents decodes every event stored in an event log file.
func ReadEvents(path string) ([]*Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []*Event
	rr := NewRecordReader(f)
	for {
		payload, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, fmt.Errorf("%s: %w", path, err)
		}

		e, err := UnmarshalEvent(payload)
		if err != nil {
			return events, fmt.Errorf("%s: %w", path, err)
		}
		events = append(events, e)
	}
}
