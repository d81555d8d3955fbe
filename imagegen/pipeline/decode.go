// decode.go - Decoder-Adapter
//
// Dieses Modul enthaelt:
// - DecodeToImage: Latent -> [B, H, W, 3] in [0, 1]
// - DecodeToMask: Latent -> [B, H, W, C] ohne Denormalisierung
//
// Beide sind reine Funktionen von Latent und Decoder-Handle; es gibt
// keinen geteilten Zustand zwischen Aufrufen.
package pipeline

import (
	"fmt"

	"diffused/imagegen/pixel"
	"diffused/imagegen/tensor"
)

// DecodeToImage rescales the latent by the decoder's scaling factor, casts
// to the decoder's precision, decodes, denormalizes every sample from
// [-1, 1] to [0, 1], replaces NaN/Inf with zero and returns the result
// channel-last.
func DecodeToImage(dec Decoder, latent *tensor.Array) (*tensor.Array, error) {
	decoded, err := decodeScaled(dec, latent)
	if err != nil {
		return nil, err
	}
	// Denormalize: [-1, 1] -> [0, 1]
	img := tensor.AddScalar(tensor.MulScalar(decoded, 0.5), 0.5)
	img = tensor.ClipScalar(img, 0, 1)
	img = tensor.NaNToNum(img)
	return pixel.ToHWC(tensor.AsType(img, tensor.DtypeFloat32)), nil
}

// DecodeToMask decodes like DecodeToImage but through the mask
// post-processor: no denormalization, only clamping and NaN sanitization.
func DecodeToMask(dec Decoder, latent *tensor.Array) (*tensor.Array, error) {
	decoded, err := decodeScaled(dec, latent)
	if err != nil {
		return nil, err
	}
	mask := tensor.ClipScalar(decoded, 0, 1)
	mask = tensor.NaNToNum(mask)
	return pixel.ToHWC(tensor.AsType(mask, tensor.DtypeFloat32)), nil
}

// decodeScaled performs the shared rescale, precision cast and decode call.
func decodeScaled(dec Decoder, latent *tensor.Array) (*tensor.Array, error) {
	scaled := tensor.DivScalar(latent, dec.ScalingFactor())
	scaled = tensor.AsType(scaled, dec.Dtype())
	decoded, err := dec.Decode(scaled)
	if err != nil {
		return nil, fmt.Errorf("vae decode: %w", err)
	}
	return decoded, nil
}
