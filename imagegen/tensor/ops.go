// ops.go - Elementweise Operationen
//
// Dieses Modul enthaelt:
// - Add/Sub/Mul/Div fuer gleichgeformte Arrays
// - Skalar-Varianten und unaere Operationen
// - Clip und NaNToNum fuer Wertebereichs-Sanitisierung
package tensor

import (
	"fmt"
	"math"
)

// binary applies op elementwise. Shapes must match exactly; broadcasting is
// handled by the caller via Tile.
func binary(a, b *Array, name string, op func(x, y float32) float32) *Array {
	if !sameShape(a.shape, b.shape) {
		panic(fmt.Sprintf("tensor: %s shape mismatch %v vs %v", name, a.shape, b.shape))
	}
	out := a.Clone()
	for i := range out.data {
		out.data[i] = op(out.data[i], b.data[i])
	}
	return out
}

// Add returns a + b.
func Add(a, b *Array) *Array {
	return binary(a, b, "Add", func(x, y float32) float32 { return x + y })
}

// Sub returns a - b.
func Sub(a, b *Array) *Array {
	return binary(a, b, "Sub", func(x, y float32) float32 { return x - y })
}

// Mul returns a * b elementwise.
func Mul(a, b *Array) *Array {
	return binary(a, b, "Mul", func(x, y float32) float32 { return x * y })
}

// Div returns a / b elementwise.
func Div(a, b *Array) *Array {
	return binary(a, b, "Div", func(x, y float32) float32 { return x / y })
}

// unary applies op to each element.
func unary(a *Array, op func(x float32) float32) *Array {
	out := a.Clone()
	for i := range out.data {
		out.data[i] = op(out.data[i])
	}
	return out
}

// AddScalar returns a + s.
func AddScalar(a *Array, s float32) *Array {
	return unary(a, func(x float32) float32 { return x + s })
}

// MulScalar returns a * s.
func MulScalar(a *Array, s float32) *Array {
	return unary(a, func(x float32) float32 { return x * s })
}

// DivScalar returns a / s.
func DivScalar(a *Array, s float32) *Array {
	return unary(a, func(x float32) float32 { return x / s })
}

// Neg returns -a.
func Neg(a *Array) *Array {
	return unary(a, func(x float32) float32 { return -x })
}

// Abs returns |a|.
func Abs(a *Array) *Array {
	return unary(a, func(x float32) float32 { return float32(math.Abs(float64(x))) })
}

// Sqrt returns elementwise square root.
func Sqrt(a *Array) *Array {
	return unary(a, func(x float32) float32 { return float32(math.Sqrt(float64(x))) })
}

// Exp returns elementwise e^x.
func Exp(a *Array) *Array {
	return unary(a, func(x float32) float32 { return float32(math.Exp(float64(x))) })
}

// ClipScalar clamps all values into [minVal, maxVal].
func ClipScalar(a *Array, minVal, maxVal float32) *Array {
	return unary(a, func(x float32) float32 {
		if x < minVal {
			return minVal
		}
		if x > maxVal {
			return maxVal
		}
		return x
	})
}

// NaNToNum replaces NaN and +/-Inf values with zero, matching
// torch.nan_to_num semantics used after VAE decoding.
func NaNToNum(a *Array) *Array {
	return unary(a, func(x float32) float32 {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return x
	})
}

// MeanAll returns the mean of all elements.
func MeanAll(a *Array) float32 {
	var sum float64
	for _, v := range a.data {
		sum += float64(v)
	}
	return float32(sum / float64(len(a.data)))
}

// MaxAll returns the maximum element.
func MaxAll(a *Array) float32 {
	m := float32(math.Inf(-1))
	for _, v := range a.data {
		if v > m {
			m = v
		}
	}
	return m
}

// MinAll returns the minimum element.
func MinAll(a *Array) float32 {
	m := float32(math.Inf(1))
	for _, v := range a.data {
		if v < m {
			m = v
		}
	}
	return m
}
