package telemetry

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Value is a decoded variable: a type tag plus the slice of elements that
// matches it. Exactly one element slice is populated, holding Count
// elements in declared order.
type Value struct {
	Type VarType

	Chars     []byte
	Bools     []bool
	Ints      []int32
	Bitfields []uint32
	Floats    []float32
	Doubles   []float64
}

// Decode reads the value of d out of a snapshot's bytes. Values are
// little-endian regardless of the host.
func Decode(data []byte, d *VarDesc) (Value, error) {
	if d.Err != nil {
		return Value{}, d.Err
	}
	if !d.Type.Valid() {
		return Value{}, &VarError{Name: d.Name, Err: fmt.Errorf("%w %d", ErrUnknownType, int32(d.Type))}
	}
	size := d.Size()
	if d.Count < 1 || d.Offset < 0 || d.Offset > len(data) || size > len(data)-d.Offset {
		return Value{}, &VarError{Name: d.Name, Err: fmt.Errorf("%w: [%d, +%d) of %d-byte buffer",
			ErrOutOfBounds, d.Offset, size, len(data))}
	}

	b := data[d.Offset : d.Offset+size]
	le := binary.LittleEndian
	v := Value{Type: d.Type}
	switch d.Type {
	case TypeChar:
		v.Chars = bytes.Clone(b)
	case TypeBool:
		v.Bools = make([]bool, d.Count)
		for i := range v.Bools {
			v.Bools[i] = b[i] != 0
		}
	case TypeInt:
		v.Ints = make([]int32, d.Count)
		for i := range v.Ints {
			v.Ints[i] = int32(le.Uint32(b[i*4:]))
		}
	case TypeBitfield:
		v.Bitfields = make([]uint32, d.Count)
		for i := range v.Bitfields {
			v.Bitfields[i] = le.Uint32(b[i*4:])
		}
	case TypeFloat:
		v.Floats = make([]float32, d.Count)
		for i := range v.Floats {
			v.Floats[i] = math.Float32frombits(le.Uint32(b[i*4:]))
		}
	case TypeDouble:
		v.Doubles = make([]float64, d.Count)
		for i := range v.Doubles {
			v.Doubles[i] = math.Float64frombits(le.Uint64(b[i*8:]))
		}
	}
	return v, nil
}

// Len returns the number of decoded elements.
func (v Value) Len() int {
	switch v.Type {
	case TypeChar:
		return len(v.Chars)
	case TypeBool:
		return len(v.Bools)
	case TypeInt:
		return len(v.Ints)
	case TypeBitfield:
		return len(v.Bitfields)
	case TypeFloat:
		return len(v.Floats)
	case TypeDouble:
		return len(v.Doubles)
	}
	return 0
}

func (v Value) mismatch(want string) error {
	return fmt.Errorf("%w: %s value read as %s", ErrTypeMismatch, v.Type, want)
}

// Float32 returns the first element of a float value.
func (v Value) Float32() (float32, error) {
	if v.Type != TypeFloat || len(v.Floats) == 0 {
		return 0, v.mismatch("float")
	}
	return v.Floats[0], nil
}

// Float64 returns the first element of a double or float value.
func (v Value) Float64() (float64, error) {
	switch {
	case v.Type == TypeDouble && len(v.Doubles) > 0:
		return v.Doubles[0], nil
	case v.Type == TypeFloat && len(v.Floats) > 0:
		return float64(v.Floats[0]), nil
	}
	return 0, v.mismatch("double")
}

// Int returns the first element of an int value.
func (v Value) Int() (int32, error) {
	if v.Type != TypeInt || len(v.Ints) == 0 {
		return 0, v.mismatch("int")
	}
	return v.Ints[0], nil
}

// Bool returns the first element of a bool value.
func (v Value) Bool() (bool, error) {
	if v.Type != TypeBool || len(v.Bools) == 0 {
		return false, v.mismatch("bool")
	}
	return v.Bools[0], nil
}

// Bits returns the first element of a bitfield value.
func (v Value) Bits() (uint32, error) {
	if v.Type != TypeBitfield || len(v.Bitfields) == 0 {
		return 0, v.mismatch("bitfield")
	}
	return v.Bitfields[0], nil
}

// Text returns a char value as a string, cut at the first NUL.
func (v Value) Text() (string, error) {
	if v.Type != TypeChar {
		return "", v.mismatch("char")
	}
	return fixedText(v.Chars), nil
}

// Interface returns the value as a plain Go value: the scalar itself for
// single-element values, the element slice otherwise. Char values become
// strings.
func (v Value) Interface() any {
	switch v.Type {
	case TypeChar:
		return fixedText(v.Chars)
	case TypeBool:
		return scalarOrSlice(v.Bools)
	case TypeInt:
		return scalarOrSlice(v.Ints)
	case TypeBitfield:
		return scalarOrSlice(v.Bitfields)
	case TypeFloat:
		return scalarOrSlice(v.Floats)
	case TypeDouble:
		return scalarOrSlice(v.Doubles)
	}
	return nil
}

func scalarOrSlice[T any](s []T) any {
	if len(s) == 1 {
		return s[0]
	}
	return s
}
