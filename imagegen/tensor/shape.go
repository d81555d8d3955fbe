// shape.go - Umformungs- und Layout-Operationen
//
// Dieses Modul enthaelt:
// - Reshape/ExpandDims/Squeeze/Flatten
// - Transpose (allgemeine Achsen-Permutation)
// - Concatenate/Slice/Tile
package tensor

import "fmt"

// Reshape returns a view-copy with a new shape of the same total size.
func Reshape(a *Array, shape ...int32) *Array {
	if numel(shape) != len(a.data) {
		panic(fmt.Sprintf("tensor: cannot reshape %v to %v", a.shape, shape))
	}
	out := a.Clone()
	out.shape = append([]int32(nil), shape...)
	return out
}

// Flatten returns a 1-D copy.
func Flatten(a *Array) *Array {
	return Reshape(a, int32(len(a.data)))
}

// ExpandDims inserts a size-1 axis at the given position.
func ExpandDims(a *Array, axis int) *Array {
	if axis < 0 || axis > len(a.shape) {
		panic(fmt.Sprintf("tensor: ExpandDims axis %d out of range for %v", axis, a.shape))
	}
	shape := make([]int32, 0, len(a.shape)+1)
	shape = append(shape, a.shape[:axis]...)
	shape = append(shape, 1)
	shape = append(shape, a.shape[axis:]...)
	return Reshape(a, shape...)
}

// Squeeze removes a size-1 axis.
func Squeeze(a *Array, axis int) *Array {
	if axis < 0 || axis >= len(a.shape) || a.shape[axis] != 1 {
		panic(fmt.Sprintf("tensor: Squeeze axis %d invalid for %v", axis, a.shape))
	}
	shape := make([]int32, 0, len(a.shape)-1)
	shape = append(shape, a.shape[:axis]...)
	shape = append(shape, a.shape[axis+1:]...)
	return Reshape(a, shape...)
}

// Transpose permutes axes. With no axes given the order is reversed.
func Transpose(a *Array, axes ...int) *Array {
	n := len(a.shape)
	if len(axes) == 0 {
		axes = make([]int, n)
		for i := range axes {
			axes[i] = n - 1 - i
		}
	}
	if len(axes) != n {
		panic(fmt.Sprintf("tensor: Transpose needs %d axes, got %d", n, len(axes)))
	}
	outShape := make([]int32, n)
	for i, ax := range axes {
		outShape[i] = a.shape[ax]
	}
	inStrides := rowMajorStrides(a.shape)
	outStrides := rowMajorStrides(outShape)

	out := Zeros(outShape, a.dtype)
	index := make([]int32, n)
	for flat := 0; flat < len(a.data); flat++ {
		// decompose output flat index into multi-index
		rem := flat
		for i := 0; i < n; i++ {
			index[i] = int32(rem / outStrides[i])
			rem %= outStrides[i]
		}
		src := 0
		for i, ax := range axes {
			src += int(index[i]) * inStrides[ax]
		}
		out.data[flat] = a.data[src]
	}
	return out
}

// Concatenate joins arrays along an axis. All other dimensions must match.
func Concatenate(arrs []*Array, axis int) *Array {
	if len(arrs) == 0 {
		panic("tensor: Concatenate of zero arrays")
	}
	first := arrs[0]
	n := len(first.shape)
	if axis < 0 || axis >= n {
		panic(fmt.Sprintf("tensor: Concatenate axis %d out of range for %v", axis, first.shape))
	}
	outShape := first.Shape()
	for _, a := range arrs[1:] {
		if len(a.shape) != n {
			panic("tensor: Concatenate rank mismatch")
		}
		for i := range a.shape {
			if i != axis && a.shape[i] != first.shape[i] {
				panic(fmt.Sprintf("tensor: Concatenate shape mismatch %v vs %v on axis %d", a.shape, first.shape, i))
			}
		}
		outShape[axis] += a.shape[axis]
	}

	out := Zeros(outShape, first.dtype)
	// outer = product of dims before axis, inner = product after
	outer := 1
	for i := 0; i < axis; i++ {
		outer *= int(first.shape[i])
	}
	inner := 1
	for i := axis + 1; i < n; i++ {
		inner *= int(first.shape[i])
	}
	dstOff := 0
	for o := 0; o < outer; o++ {
		for _, a := range arrs {
			chunk := int(a.shape[axis]) * inner
			srcOff := o * chunk
			copy(out.data[dstOff:dstOff+chunk], a.data[srcOff:srcOff+chunk])
			dstOff += chunk
		}
	}
	return out
}

// Concat joins two arrays along an axis.
func Concat(a, b *Array, axis int) *Array { return Concatenate([]*Array{a, b}, axis) }

// Slice extracts the half-open region [start, stop) on every axis,
// returning a contiguous copy.
func Slice(a *Array, start, stop []int32) *Array {
	n := len(a.shape)
	if len(start) != n || len(stop) != n {
		panic(fmt.Sprintf("tensor: Slice needs %d bounds, got %d/%d", n, len(start), len(stop)))
	}
	outShape := make([]int32, n)
	for i := range outShape {
		if start[i] < 0 || stop[i] > a.shape[i] || start[i] >= stop[i] {
			panic(fmt.Sprintf("tensor: Slice bounds [%d,%d) invalid for axis %d (size %d)", start[i], stop[i], i, a.shape[i]))
		}
		outShape[i] = stop[i] - start[i]
	}
	out := Zeros(outShape, a.dtype)
	inStrides := rowMajorStrides(a.shape)
	outStrides := rowMajorStrides(outShape)
	index := make([]int32, n)
	for flat := 0; flat < len(out.data); flat++ {
		rem := flat
		for i := 0; i < n; i++ {
			index[i] = int32(rem/outStrides[i]) + start[i]
			rem %= outStrides[i]
		}
		src := 0
		for i := 0; i < n; i++ {
			src += int(index[i]) * inStrides[i]
		}
		out.data[flat] = a.data[src]
	}
	return out
}

// SliceAxis extracts [start, stop) along one axis, keeping all others whole.
func SliceAxis(a *Array, axis int, start, stop int32) *Array {
	lo := make([]int32, len(a.shape))
	hi := a.Shape()
	lo[axis] = start
	hi[axis] = stop
	return Slice(a, lo, hi)
}

// Tile repeats the array reps[i] times along each axis.
func Tile(a *Array, reps []int32) *Array {
	if len(reps) != len(a.shape) {
		panic(fmt.Sprintf("tensor: Tile needs %d reps, got %d", len(a.shape), len(reps)))
	}
	out := a
	for axis, r := range reps {
		if r == 1 {
			continue
		}
		copies := make([]*Array, r)
		for i := range copies {
			copies[i] = out
		}
		out = Concatenate(copies, axis)
	}
	if out == a {
		out = a.Clone()
	}
	return out
}
