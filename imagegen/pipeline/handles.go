// handles.go - Externe Kollaborateure der Pipeline
//
// Dieses Modul enthaelt:
// - Denoiser / Decoder / TextEncoder / Controlnet Interfaces
// - Conditioning: alles, worauf eine Vorhersage konditioniert wird
//
// Die Pipeline orchestriert nur; Netzwerk, VAE und Tokenizer sind
// vortrainierte, fuer die Dauer eines Aufrufs unveraenderliche Handles.
package pipeline

import (
	"context"

	"diffused/imagegen/tensor"
)

// Denoiser predicts noise (or velocity, depending on the paired scheduler)
// for a latent at a timestep under the given conditioning.
type Denoiser interface {
	Predict(ctx context.Context, latent *tensor.Array, timestep float32, cond Conditioning) (*tensor.Array, error)
}

// Decoder is the VAE handle: encode/decode operators plus the latent-space
// scaling constant and the precision the decode operator expects.
type Decoder interface {
	// Encode maps a [B, H, W, 3] pixel tensor in [0, 1] to a latent
	// [B, C, H/8, W/8] already multiplied by the scaling factor.
	Encode(pixels *tensor.Array) (*tensor.Array, error)

	// Decode maps a latent (already divided by the scaling factor) to a
	// [B, 3, H, W] pixel tensor in [-1, 1].
	Decode(latent *tensor.Array) (*tensor.Array, error)

	// ScalingFactor is the latent normalization constant (0.18215 for the
	// SD 1.x VAE family).
	ScalingFactor() float32

	// LatentChannels is the channel count of the latent space.
	LatentChannels() int32

	// Dtype is the precision the decode operator expects its input in.
	Dtype() tensor.Dtype
}

// TextEncoder encodes one prompt to a [1, L, D] embedding. Implementations
// support per-token weighting syntax and custom-token substitution for
// textual-inversion embeddings; both are opaque to the pipeline.
type TextEncoder interface {
	Encode(text string) (*tensor.Array, error)
}

// Controlnet is a loaded spatial-control network handle.
type Controlnet interface {
	Name() string
}

// ControlSignal is one active spatial-control input for a single prediction.
type ControlSignal struct {
	Controlnet Controlnet
	Image      *tensor.Array // canvas-sized [1, H, W, 3] conditioning image
	Scale      float32
}

// ReferenceConditioning carries the reference-only style sharing input for
// one prediction. How attention or normalization statistics are shared is an
// opaque capability of the denoiser.
type ReferenceConditioning struct {
	// Latent is the reference image's latent noised to the current step's
	// level, i.e. the matching point of the reference's own forward pass.
	Latent *tensor.Array

	Attn          bool
	AdaIN         bool
	StyleFidelity float32
}

// Conditioning is everything a single denoiser evaluation may be
// conditioned on. The unconditional branch carries only the negative
// embedding.
type Conditioning struct {
	Embedding *tensor.Array // [B, L, D]
	Controls  []ControlSignal
	Reference *ReferenceConditioning
	Mask      *tensor.Array // optional inpainting mask, [B, H, W, 1]
}
