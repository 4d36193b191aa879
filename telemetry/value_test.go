package telemetry_test

import (
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/AlephTX/simtelem/telemetry"
)

func TestDecodeFloatAtOffset(t *testing.T) {
	data := make([]byte, 0x200)
	binary.LittleEndian.PutUint32(data[0x100:], math.Float32bits(12.5))

	v, err := telemetry.Decode(data, &telemetry.VarDesc{Name: "X", Type: telemetry.TypeFloat, Offset: 0x100, Count: 1})
	if err != nil {
		t.Fatal(err)
	}
	got, err := v.Float32()
	if err != nil {
		t.Fatal(err)
	}
	if got != 12.5 || v.Len() != 1 {
		t.Fatalf("got %v (len %d), want 12.5", got, v.Len())
	}
}

func TestDecodeArrayInOrder(t *testing.T) {
	want := []float32{1.5, -2, 3.25, 0, 1e6, -0.125}
	data := make([]byte, 64)
	for i, f := range want {
		binary.LittleEndian.PutUint32(data[8+i*4:], math.Float32bits(f))
	}

	v, err := telemetry.Decode(data, &telemetry.VarDesc{Name: "Arr", Type: telemetry.TypeFloat, Offset: 8, Count: 6})
	if err != nil {
		t.Fatal(err)
	}
	if v.Len() != 6 || !reflect.DeepEqual(v.Floats, want) {
		t.Fatalf("Floats = %v, want %v", v.Floats, want)
	}
}

func TestDecodeBitfieldArray(t *testing.T) {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint32(data[4:], 0x04)
	binary.LittleEndian.PutUint32(data[8:], 0x10000000)

	v, err := telemetry.Decode(data, &telemetry.VarDesc{Name: "Flags", Type: telemetry.TypeBitfield, Offset: 4, Count: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v.Bitfields, []uint32{0x04, 0x10000000}) || v.Len() != 2 {
		t.Fatalf("Bitfields = %#x", v.Bitfields)
	}
	if got, err := v.Bits(); err != nil || got != 0x04 {
		t.Fatalf("Bits() = %#x, %v", got, err)
	}
	if _, err := v.Int(); !errors.Is(err, telemetry.ErrTypeMismatch) {
		t.Fatalf("Int on bitfield: %v", err)
	}
}

func TestDecodeTypes(t *testing.T) {
	data := make([]byte, 32)
	data[0] = 'a'
	data[1] = 'b'
	data[4] = 0
	data[5] = 7 // any non-zero byte is true
	binary.LittleEndian.PutUint32(data[8:], uint32(0xFFFFFFFC)) // -4
	binary.LittleEndian.PutUint32(data[12:], 0x80000001)
	binary.LittleEndian.PutUint64(data[16:], math.Float64bits(-1234.5678))

	tests := []struct {
		name string
		desc telemetry.VarDesc
		want any
	}{
		{"char", telemetry.VarDesc{Type: telemetry.TypeChar, Offset: 0, Count: 4}, "ab"},
		{"bool false", telemetry.VarDesc{Type: telemetry.TypeBool, Offset: 4, Count: 1}, false},
		{"bool non-zero", telemetry.VarDesc{Type: telemetry.TypeBool, Offset: 5, Count: 1}, true},
		{"bool array", telemetry.VarDesc{Type: telemetry.TypeBool, Offset: 4, Count: 2}, []bool{false, true}},
		{"int", telemetry.VarDesc{Type: telemetry.TypeInt, Offset: 8, Count: 1}, int32(-4)},
		{"bitfield", telemetry.VarDesc{Type: telemetry.TypeBitfield, Offset: 12, Count: 1}, uint32(0x80000001)},
		{"double", telemetry.VarDesc{Type: telemetry.TypeDouble, Offset: 16, Count: 1}, -1234.5678},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.desc.Name = tt.name
			v, err := telemetry.Decode(data, &tt.desc)
			if err != nil {
				t.Fatal(err)
			}
			if got := v.Interface(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Interface() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeOutOfBounds(t *testing.T) {
	data := make([]byte, 16)
	tests := []telemetry.VarDesc{
		{Name: "past end", Type: telemetry.TypeFloat, Offset: 16, Count: 1},
		{Name: "straddles end", Type: telemetry.TypeDouble, Offset: 12, Count: 1},
		{Name: "array too long", Type: telemetry.TypeInt, Offset: 0, Count: 5},
		{Name: "negative", Type: telemetry.TypeInt, Offset: -4, Count: 1},
	}
	for _, d := range tests {
		_, err := telemetry.Decode(data, &d)
		if !errors.Is(err, telemetry.ErrOutOfBounds) {
			t.Errorf("%s: err = %v, want ErrOutOfBounds", d.Name, err)
		}
		var ve *telemetry.VarError
		if !errors.As(err, &ve) || ve.Name != d.Name {
			t.Errorf("%s: err %v does not name the variable", d.Name, err)
		}
	}

	// Exactly fitting is fine.
	if _, err := telemetry.Decode(data, &telemetry.VarDesc{Type: telemetry.TypeInt, Offset: 0, Count: 4}); err != nil {
		t.Fatalf("exact fit: %v", err)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := telemetry.Decode(make([]byte, 8), &telemetry.VarDesc{Name: "X", Type: 42, Count: 1})
	if !errors.Is(err, telemetry.ErrUnknownType) {
		t.Fatalf("err = %v, want ErrUnknownType", err)
	}
}

func TestValueTypeMismatch(t *testing.T) {
	v := telemetry.Value{Type: telemetry.TypeInt, Ints: []int32{3}}
	if _, err := v.Float32(); !errors.Is(err, telemetry.ErrTypeMismatch) {
		t.Fatalf("Float32 on int: %v", err)
	}
	if _, err := v.Bool(); !errors.Is(err, telemetry.ErrTypeMismatch) {
		t.Fatalf("Bool on int: %v", err)
	}
	if _, err := v.Text(); !errors.Is(err, telemetry.ErrTypeMismatch) {
		t.Fatalf("Text on int: %v", err)
	}
	if got, err := v.Int(); err != nil || got != 3 {
		t.Fatalf("Int = %d, %v", got, err)
	}

	f := telemetry.Value{Type: telemetry.TypeFloat, Floats: []float32{2.5}}
	if got, err := f.Float64(); err != nil || got != 2.5 {
		t.Fatalf("Float64 widening a float = %v, %v", got, err)
	}
	if _, err := (telemetry.Value{Type: telemetry.TypeDouble, Doubles: []float64{1}}).Float32(); !errors.Is(err, telemetry.ErrTypeMismatch) {
		t.Fatalf("Float32 on double: %v", err)
	}
}

func TestVarTypeString(t *testing.T) {
	if telemetry.TypeBitfield.String() != "bitfield" || telemetry.VarType(9).String() != "VarType(9)" {
		t.Fatal("unexpected VarType names")
	}
	if telemetry.TypeDouble.Size() != 8 || telemetry.VarType(9).Size() != 0 {
		t.Fatal("unexpected VarType sizes")
	}
}
