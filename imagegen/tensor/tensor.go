// tensor.go - Array-Typ und Konstruktoren
//
// Dieses Modul enthaelt:
// - Array: dichter float32-Tensor mit Shape und Dtype
// - NewArray, Zeros, Full, Linspace Konstruktoren
// - Shape/Size/Dim/Data Zugriffsfunktionen
package tensor

import (
	"fmt"
	"strings"
)

// Array is a dense tensor backed by float32 storage. The Dtype records the
// logical precision; values are rounded through that precision on AsType so
// that half-precision semantics are observable without half storage.
type Array struct {
	data  []float32
	shape []int32
	dtype Dtype
}

// numel returns the number of elements for a shape.
func numel(shape []int32) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

// rowMajorStrides computes row-major strides for a shape.
func rowMajorStrides(shape []int32) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= int(shape[i])
	}
	return strides
}

// NewArray creates a float32 array from data and shape. The data slice is
// copied. Panics if len(data) does not match the shape.
func NewArray(data []float32, shape []int32) *Array {
	if len(data) != numel(shape) {
		panic(fmt.Sprintf("tensor: data length %d does not match shape %v", len(data), shape))
	}
	buf := make([]float32, len(data))
	copy(buf, data)
	return &Array{data: buf, shape: append([]int32(nil), shape...), dtype: DtypeFloat32}
}

// Zeros creates a zero-filled array. An optional dtype may be given.
func Zeros(shape []int32, dtype ...Dtype) *Array {
	dt := DtypeFloat32
	if len(dtype) > 0 {
		dt = dtype[0]
	}
	return &Array{data: make([]float32, numel(shape)), shape: append([]int32(nil), shape...), dtype: dt}
}

// Full creates an array filled with a constant value.
func Full(value float32, shape ...int32) *Array {
	a := Zeros(shape)
	for i := range a.data {
		a.data[i] = value
	}
	return a
}

// Linspace creates a 1-D array of evenly spaced values from start to stop inclusive.
func Linspace(start, stop float32, steps int32) *Array {
	if steps <= 0 {
		panic("tensor: Linspace needs steps > 0")
	}
	data := make([]float32, steps)
	if steps == 1 {
		data[0] = start
	} else {
		step := (stop - start) / float32(steps-1)
		for i := int32(0); i < steps; i++ {
			data[i] = start + float32(i)*step
		}
	}
	return NewArray(data, []int32{steps})
}

// NewScalarArray creates a 0-d-like array holding one value.
func NewScalarArray(value float32) *Array {
	return NewArray([]float32{value}, []int32{1})
}

// Shape returns a copy of the array's shape.
func (a *Array) Shape() []int32 {
	return append([]int32(nil), a.shape...)
}

// Dim returns the size of the given axis.
func (a *Array) Dim(axis int) int32 {
	return a.shape[axis]
}

// Ndim returns the number of dimensions.
func (a *Array) Ndim() int {
	return len(a.shape)
}

// Size returns the total number of elements.
func (a *Array) Size() int {
	return len(a.data)
}

// Dtype returns the logical precision of the array.
func (a *Array) Dtype() Dtype {
	return a.dtype
}

// Data returns a copy of the underlying float32 values in row-major order.
func (a *Array) Data() []float32 {
	return append([]float32(nil), a.data...)
}

// Item returns the single value of a one-element array.
func (a *Array) Item() float32 {
	if len(a.data) != 1 {
		panic(fmt.Sprintf("tensor: Item on array of size %d", len(a.data)))
	}
	return a.data[0]
}

// At returns the value at the given multi-dimensional index.
func (a *Array) At(index ...int32) float32 {
	if len(index) != len(a.shape) {
		panic(fmt.Sprintf("tensor: At with %d indices on %d-d array", len(index), len(a.shape)))
	}
	strides := rowMajorStrides(a.shape)
	off := 0
	for i, ix := range index {
		if ix < 0 || ix >= a.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for axis %d (size %d)", ix, i, a.shape[i]))
		}
		off += int(ix) * strides[i]
	}
	return a.data[off]
}

// Clone returns a deep copy preserving dtype.
func (a *Array) Clone() *Array {
	out := NewArray(a.data, a.shape)
	out.dtype = a.dtype
	return out
}

// String renders shape and dtype for debugging.
func (a *Array) String() string {
	dims := make([]string, len(a.shape))
	for i, d := range a.shape {
		dims[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("Array[%s] %s", strings.Join(dims, "x"), a.dtype)
}

// sameShape reports whether two shapes are identical.
func sameShape(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
