package telemetry

import "fmt"

// VarType is the value type tag of a telemetry variable.
type VarType int32

const (
	TypeChar     VarType = 0 // 1 byte
	TypeBool     VarType = 1 // 1 byte, zero/non-zero
	TypeInt      VarType = 2 // int32
	TypeBitfield VarType = 3 // uint32, bits are the caller's business
	TypeFloat    VarType = 4 // float32
	TypeDouble   VarType = 5 // float64
)

var typeNames = [...]string{"char", "bool", "int", "bitfield", "float", "double"}

var typeSizes = [...]int{1, 1, 4, 4, 4, 8}

// Valid reports whether t is one of the known value types.
func (t VarType) Valid() bool { return t >= TypeChar && t <= TypeDouble }

// Size returns the width of one element in bytes, or 0 for unknown types.
func (t VarType) Size() int {
	if !t.Valid() {
		return 0
	}
	return typeSizes[t]
}

func (t VarType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("VarType(%d)", int32(t))
	}
	return typeNames[t]
}
