// resize.go - Letterbox-Resize fuer Conditioning-Bilder
//
// Dieses Modul enthaelt:
// - ResizeWithLetterbox: seitenverhaeltnis-erhaltende Skalierung
//   mit Zentrierung auf transparentem Canvas
package pixel

import (
	"image"

	"golang.org/x/image/draw"
)

// ResizeWithLetterbox scales img by the largest ratio that fits both target
// dimensions without cropping, resamples with CatmullRom and centers the
// result on a transparent canvas of exactly targetW x targetH.
//
// When the image already has the target size it is returned unchanged.
func ResizeWithLetterbox(img image.Image, targetW, targetH int) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == targetW && srcH == targetH {
		return img
	}

	ratioW := float64(targetW) / float64(srcW)
	ratioH := float64(targetH) / float64(srcH)
	ratio := ratioW
	if ratioH < ratio {
		ratio = ratioH
	}

	newW := int(float64(srcW) * ratio)
	newH := int(float64(srcH) * ratio)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	// High-quality resample, matches the diffusers LANCZOS default closely
	resized := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	canvas := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	offX := (targetW - newW) / 2
	offY := (targetH - newH) / 2
	draw.Draw(canvas, image.Rect(offX, offY, offX+newW, offY+newH), resized, image.Point{}, draw.Over)

	return canvas
}
