// dtype.go - Dtype-Definitionen und Praezisions-Casts
//
// Dieses Modul enthaelt:
// - Dtype: Float32, Float16, BFloat16
// - AsType: Rundung durch die Ziel-Praezision
package tensor

import (
	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// Dtype identifies the logical element precision of an Array.
type Dtype int

const (
	DtypeFloat32 Dtype = iota
	DtypeFloat16
	DtypeBFloat16
)

func (d Dtype) String() string {
	switch d {
	case DtypeFloat32:
		return "float32"
	case DtypeFloat16:
		return "float16"
	case DtypeBFloat16:
		return "bfloat16"
	}
	return "unknown"
}

// ItemSize returns the storage size in bytes of one element at this precision.
func (d Dtype) ItemSize() int64 {
	if d == DtypeFloat32 {
		return 4
	}
	return 2
}

// AsType returns a copy of the array rounded through the target precision.
// Casting to float16 or bfloat16 loses mantissa bits exactly as the target
// format would; casting back to float32 is then value-preserving.
func AsType(a *Array, dtype Dtype) *Array {
	out := a.Clone()
	out.dtype = dtype
	switch dtype {
	case DtypeFloat32:
		// storage is already float32
	case DtypeFloat16:
		for i, v := range out.data {
			out.data[i] = float16.Fromfloat32(v).Float32()
		}
	case DtypeBFloat16:
		rounded := bfloat16.DecodeFloat32(bfloat16.EncodeFloat32(out.data))
		copy(out.data, rounded)
	}
	return out
}

// ToBFloat16 casts to bfloat16 precision.
func ToBFloat16(a *Array) *Array { return AsType(a, DtypeBFloat16) }

// ToFloat16 casts to float16 precision.
func ToFloat16(a *Array) *Array { return AsType(a, DtypeFloat16) }
