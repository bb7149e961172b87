package vector

import (
	"encoding/json"
	"math"

	"github.com/teranos/embcluster/errors"
)

// Kind identifies the physical encoding of a stored vector.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindText
	KindPacked
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPacked:
		return "packed"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Raw is a stored vector value tagged with its encoding.
// Exactly one payload field is meaningful, selected by Kind.
type Raw struct {
	Kind     Kind
	Text     string
	Packed   []byte
	Sequence []float64
}

// Text wraps a textual JSON array.
func Text(s string) Raw { return Raw{Kind: KindText, Text: s} }

// Packed wraps little-endian float32 bytes.
func Packed(b []byte) Raw { return Raw{Kind: KindPacked, Packed: b} }

// Sequence wraps already-numeric values.
func Sequence(values []float64) Raw { return Raw{Kind: KindSequence, Sequence: values} }

// Classify resolves a value scanned from database/sql into a Raw.
//
// bytesAreText decides how []byte is read: drivers that return textual column
// values as bytes (lib/pq for pgvector and float[] columns) pass true, drivers
// that return BLOBs as bytes (SQLite) pass false.
func Classify(src any, bytesAreText bool) (Raw, error) {
	switch v := src.(type) {
	case Raw:
		return v, nil
	case string:
		return Text(v), nil
	case []byte:
		if bytesAreText {
			return Text(string(v)), nil
		}
		// Copy: database/sql may reuse the scan buffer
		buf := make([]byte, len(v))
		copy(buf, v)
		return Packed(buf), nil
	case []float32:
		seq := make([]float64, len(v))
		for i, f := range v {
			seq[i] = float64(f)
		}
		return Sequence(seq), nil
	case []float64:
		seq := make([]float64, len(v))
		copy(seq, v)
		return Sequence(seq), nil
	case []int:
		seq := make([]float64, len(v))
		for i, n := range v {
			seq[i] = float64(n)
		}
		return Sequence(seq), nil
	case []int64:
		seq := make([]float64, len(v))
		for i, n := range v {
			seq[i] = float64(n)
		}
		return Sequence(seq), nil
	case []any:
		seq := make([]float64, len(v))
		for i, elem := range v {
			f, err := toFloat(elem)
			if err != nil {
				return Raw{}, errors.WrapDecode(err, "sequence element %d", i)
			}
			seq[i] = f
		}
		return Sequence(seq), nil
	case nil:
		return Raw{}, errors.NewDecodeError("stored vector is NULL")
	default:
		return Raw{}, errors.NewDecodeError("unsupported stored vector type %T", src)
	}
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, errors.NewDecodeError("non-numeric value %q", n.String())
		}
		f = parsed
	default:
		return 0, errors.NewDecodeError("non-numeric value of type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.NewDecodeError("non-finite value %v", f)
	}
	return f, nil
}
