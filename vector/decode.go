package vector

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"strings"

	"github.com/teranos/embcluster/errors"
)

// Decode converts raw into exactly dim float32 values.
//
// id identifies the row in errors. A length other than dim returns a
// *errors.DimensionMismatchError; an unparseable payload returns an error
// matching errors.ErrDecode.
func Decode(id any, raw Raw, dim int) ([]float32, error) {
	var (
		vec []float32
		err error
	)

	switch raw.Kind {
	case KindText:
		vec, err = decodeText(raw.Text)
	case KindPacked:
		vec, err = decodePacked(raw.Packed)
	case KindSequence:
		vec, err = decodeSequence(raw.Sequence)
	default:
		err = errors.NewDecodeError("unknown vector encoding %s", raw.Kind)
	}
	if err != nil {
		return nil, errors.WrapDecode(err, "decode %s vector for id=%v", raw.Kind, id)
	}

	if len(vec) != dim {
		return nil, errors.NewDimensionMismatch(id, dim, len(vec))
	}
	return vec, nil
}

// decodeText parses a JSON array. Postgres array literals ("{1,2}") are
// accepted by swapping the outer braces.
func decodeText(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		s = "[" + s[1:len(s)-1] + "]"
	}

	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var values []json.Number
	if err := dec.Decode(&values); err != nil {
		return nil, errors.NewDecodeError("invalid JSON numeric array: %v", err)
	}
	if dec.More() {
		return nil, errors.NewDecodeError("trailing data after JSON array")
	}

	vec := make([]float32, len(values))
	for i, n := range values {
		f, err := toFloat(n)
		if err != nil {
			return nil, errors.WrapDecode(err, "element %d", i)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

func decodePacked(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, errors.NewDecodeError("invalid packed vector length %d (not multiple of 4)", len(b))
	}

	vec := make([]float32, len(b)/4)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, vec); err != nil {
		return nil, errors.WrapDecode(err, "read packed float32 values")
	}
	for i, f := range vec {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, errors.NewDecodeError("non-finite value at element %d", i)
		}
	}
	return vec, nil
}

func decodeSequence(seq []float64) ([]float32, error) {
	vec := make([]float32, len(seq))
	for i, f := range seq {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.NewDecodeError("non-finite value at element %d", i)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}
