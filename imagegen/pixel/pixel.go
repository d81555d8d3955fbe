// pixel.go - Konvertierung zwischen Bildern und Tensoren
//
// Dieses Modul enthaelt:
// - ImageToTensor / TensorToImages fuer die Pixel-Grenze
// - ToCHW / ToHWC Layout-Permutationen
//
// An der Paketgrenze sind Bilder immer Batch-Tensoren im Layout
// [B, H, W, C] mit float32-Werten in [0, 1]. Jede Konvertierung in
// 8-Bit- oder channel-first-Layouts passiert ausschliesslich hier.
package pixel

import (
	"fmt"
	"image"
	"image/color"

	"diffused/imagegen/tensor"
)

// ImageToTensor converts an image to a [1, H, W, 3] tensor with values in [0, 1].
func ImageToTensor(img image.Image) *tensor.Array {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	data := make([]float32, h*w*3)
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			// RGBA liefert 16-Bit-Werte
			data[i+0] = float32(r>>8) / 255.0
			data[i+1] = float32(g>>8) / 255.0
			data[i+2] = float32(b>>8) / 255.0
			i += 3
		}
	}
	return tensor.NewArray(data, []int32{1, int32(h), int32(w), 3})
}

// ImagesToTensor converts a batch of equally sized images to [B, H, W, 3].
func ImagesToTensor(imgs []image.Image) (*tensor.Array, error) {
	if len(imgs) == 0 {
		return nil, fmt.Errorf("pixel: empty image batch")
	}
	arrs := make([]*tensor.Array, len(imgs))
	first := imgs[0].Bounds()
	for i, img := range imgs {
		if img.Bounds().Dx() != first.Dx() || img.Bounds().Dy() != first.Dy() {
			return nil, fmt.Errorf("pixel: image %d is %dx%d, batch expects %dx%d",
				i, img.Bounds().Dx(), img.Bounds().Dy(), first.Dx(), first.Dy())
		}
		arrs[i] = ImageToTensor(img)
	}
	if len(arrs) == 1 {
		return arrs[0], nil
	}
	return tensor.Concatenate(arrs, 0), nil
}

// TensorToImages converts a [B, H, W, 3] tensor in [0, 1] back to 8-bit images.
func TensorToImages(t *tensor.Array) ([]image.Image, error) {
	shape := t.Shape()
	if len(shape) != 4 || shape[3] != 3 {
		return nil, fmt.Errorf("pixel: expected [B, H, W, 3] tensor, got %v", shape)
	}
	b, h, w := int(shape[0]), int(shape[1]), int(shape[2])
	data := t.Data()

	imgs := make([]image.Image, b)
	for n := 0; n < b; n++ {
		rgba := image.NewRGBA(image.Rect(0, 0, w, h))
		base := n * h * w * 3
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				off := base + (y*w+x)*3
				rgba.SetRGBA(x, y, color.RGBA{
					R: clamp8(data[off+0]),
					G: clamp8(data[off+1]),
					B: clamp8(data[off+2]),
					A: 255,
				})
			}
		}
		imgs[n] = rgba
	}
	return imgs, nil
}

// clamp8 maps a [0,1] float to a clamped 8-bit value.
func clamp8(v float32) uint8 {
	s := v * 255.0
	if s < 0 {
		return 0
	}
	if s > 255 {
		return 255
	}
	return uint8(s + 0.5)
}

// ToCHW permutes [B, H, W, C] to [B, C, H, W].
func ToCHW(t *tensor.Array) *tensor.Array {
	return tensor.Transpose(t, 0, 3, 1, 2)
}

// ToHWC permutes [B, C, H, W] to [B, H, W, C].
func ToHWC(t *tensor.Array) *tensor.Array {
	return tensor.Transpose(t, 0, 2, 3, 1)
}
