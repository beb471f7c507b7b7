package ledger

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
)

const (
	keyEpochNum   = "epoch_num"
	keyGlobalStep = "global_step"
)

// Record is one ledger entry: the last value seen for each metric during
// a trigger interval, tagged with the epoch and global step at write time.
// On disk it is a flat JSON object. JSON has no literal for non-finite
// numbers, so NaN and infinities are written as the strings "NaN",
// "Infinity" and "-Infinity" and read back as floats. Other non-numeric
// fields found in an existing ledger are kept in Extra so they survive a
// rewrite.
type Record struct {
	EpochNum   int
	GlobalStep int
	Values     map[string]float64
	Extra      map[string]any
}

func (r Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Values)+len(r.Extra)+2)
	for k, v := range r.Extra {
		flat[k] = v
	}
	for k, v := range r.Values {
		flat[k] = encodeFloat(v)
	}
	flat[keyEpochNum] = r.EpochNum
	flat[keyGlobalStep] = r.GlobalStep
	return json.Marshal(flat)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if flat == nil {
		return fmt.Errorf("%w: record is not an object", ErrMalformed)
	}

	*r = Record{}
	for k, v := range flat {
		switch k {
		case keyEpochNum:
			n, ok := v.(float64)
			if !ok {
				return fmt.Errorf("%w: %s is %T", ErrMalformed, k, v)
			}
			r.EpochNum = int(n)
		case keyGlobalStep:
			n, ok := v.(float64)
			if !ok {
				return fmt.Errorf("%w: %s is %T", ErrMalformed, k, v)
			}
			r.GlobalStep = int(n)
		default:
			if n, ok := decodeFloat(v); ok {
				if r.Values == nil {
					r.Values = make(map[string]float64)
				}
				r.Values[k] = n
				continue
			}
			if r.Extra == nil {
				r.Extra = make(map[string]any)
			}
			r.Extra[k] = v
		}
	}
	return nil
}

func encodeFloat(v float64) any {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	return v
}

func decodeFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		switch x {
		case "NaN":
			return math.NaN(), true
		case "Infinity":
			return math.Inf(1), true
		case "-Infinity":
			return math.Inf(-1), true
		}
	}
	return 0, false
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	return Record{
		EpochNum:   r.EpochNum,
		GlobalStep: r.GlobalStep,
		Values:     maps.Clone(r.Values),
		Extra:      maps.Clone(r.Extra),
	}
}
