// types.go - Request-Typen und Validierung
//
// Dieses Modul enthaelt:
// - GenerateConfig: expliziter Options-Struct (kein Parameter-Bag)
// - ControlUnit / ReferenceStyleUnit
// - State: Zustandsmaschine des Laufs
// - Validierung aller Skalar-Parameter (fail fast, vor dem Loop)
package pipeline

import (
	"fmt"
	"image"

	"diffused/imagegen/tensor"
)

// LatentScaleFactor is the spatial downscale of the latent space: pixel
// width and height must be multiples of this.
const LatentScaleFactor = 8

// ControlUnit is one spatial-control input: a loaded control network, its
// conditioning image, an influence scale and the activation window expressed
// as fractions of the active step count.
type ControlUnit struct {
	Controlnet Controlnet
	Image      image.Image
	Scale      float32 // influence scale in [0, 1]
	Start      float32 // window start fraction in [0, 1]
	End        float32 // window end fraction in [0, 1]

	// canvas holds the unit's image tensor after ResizeToCanvas.
	canvas *tensor.Array
}

// activeAt reports whether the unit contributes at active-loop step i of
// total activeSteps: start <= i/activeSteps <= end. Outside the window the
// unit's control pass is skipped entirely.
func (u *ControlUnit) activeAt(i, activeSteps int) bool {
	frac := float32(i) / float32(activeSteps)
	return u.Start <= frac && frac <= u.End
}

// ReferenceStyleUnit is the optional reference-only styling input: at most
// one per call.
type ReferenceStyleUnit struct {
	Image         image.Image
	Attn          bool    // share attention with the reference pass
	AdaIN         bool    // share normalization statistics
	StyleFidelity float32 // in [0, 1]
}

// GenerateConfig is the immutable aggregate of one generation request.
// All reference-typed fields are optional; zero scalar values select the
// documented defaults.
type GenerateConfig struct {
	// Prompt and NegativePrompt are encoded through the text encoder
	// unless pre-built embeddings are supplied.
	Prompt         string
	NegativePrompt string

	// PositiveEmbedding/NegativeEmbedding bypass prompt encoding when set.
	// Both must be [1, L, D]; they are padded to equal length and
	// replicated to the batch size.
	PositiveEmbedding *tensor.Array
	NegativeEmbedding *tensor.Array

	Steps         int     // denoising steps (default 30)
	GuidanceScale float32 // classifier-free guidance scale (default 7.0)
	Strength      float32 // fraction of the schedule traversed (default 1.0)
	Width         int32   // canvas width (default 512; overridden by Image)
	Height        int32   // canvas height (default 512; overridden by Image)
	BatchSize     int32   // samples per call (default 1; overridden by Image)
	Seed          int64   // generator seed

	// Scheduler selects the step policy by name; empty means the
	// pipeline default.
	Scheduler string

	// Image is an optional [B, H, W, 3] input tensor in [0, 1] for
	// image-to-image continuation. Its shape is authoritative for the
	// canvas size and batch.
	Image *tensor.Array

	// Mask is an optional [B, H, W, 1] inpainting mask.
	Mask *tensor.Array

	// Latents is an optional pre-formed, scheduler-compatible latent.
	// It is only precision-cast, never rescaled.
	Latents *tensor.Array

	// Generators optionally supplies per-sample noise generators; its
	// length must equal the batch size. Empty means one generator seeded
	// with Seed.
	Generators []*tensor.Generator

	// ControlUnits is the frozen, ordered conditioning stack (1..3 units).
	ControlUnits []*ControlUnit

	// Reference is the optional reference-only styling unit.
	Reference *ReferenceStyleUnit

	// OnStep is invoked exactly once per completed step. Returning false
	// cancels the run before the next step; a long-running single step is
	// never interrupted mid-step.
	OnStep func(step, total int) bool

	// Progress is an optional external sink; the expected total is
	// announced before the loop starts.
	Progress ProgressSink
}

// applyDefaults fills unset scalar fields with their documented defaults.
func (cfg *GenerateConfig) applyDefaults() {
	if cfg.Steps <= 0 {
		cfg.Steps = 30
	}
	if cfg.GuidanceScale == 0 {
		cfg.GuidanceScale = 7.0
	}
	if cfg.Strength == 0 {
		cfg.Strength = 1.0
	}
	if cfg.Width <= 0 {
		cfg.Width = 512
	}
	if cfg.Height <= 0 {
		cfg.Height = 512
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
}

// validate checks every scalar parameter before any progress is reported or
// network evaluation attempted.
func (cfg *GenerateConfig) validate() error {
	if cfg.Strength < 0 || cfg.Strength > 1 {
		return fmt.Errorf("%w: strength %.3f outside [0, 1]", ErrInvalidParameter, cfg.Strength)
	}
	if cfg.GuidanceScale < 0 {
		return fmt.Errorf("%w: guidance scale %.3f below 0", ErrInvalidParameter, cfg.GuidanceScale)
	}
	if cfg.Width%LatentScaleFactor != 0 || cfg.Height%LatentScaleFactor != 0 {
		return fmt.Errorf("%w: width/height %dx%d not multiples of %d",
			ErrInvalidParameter, cfg.Width, cfg.Height, LatentScaleFactor)
	}
	if len(cfg.ControlUnits) > maxControlUnits {
		return fmt.Errorf("%w: %d control units, at most %d supported",
			ErrInvalidParameter, len(cfg.ControlUnits), maxControlUnits)
	}
	for i, u := range cfg.ControlUnits {
		if u.Scale < 0 || u.Scale > 1 {
			return fmt.Errorf("%w: control unit %d scale %.3f outside [0, 1]", ErrInvalidParameter, i, u.Scale)
		}
		if u.Start < 0 || u.End > 1 || u.Start > u.End {
			return fmt.Errorf("%w: control unit %d window [%.3f, %.3f] invalid", ErrInvalidParameter, i, u.Start, u.End)
		}
		if u.Image == nil {
			return fmt.Errorf("%w: control unit %d has no conditioning image", ErrInvalidParameter, i)
		}
	}
	if ref := cfg.Reference; ref != nil {
		if ref.StyleFidelity < 0 || ref.StyleFidelity > 1 {
			return fmt.Errorf("%w: style fidelity %.3f outside [0, 1]", ErrInvalidParameter, ref.StyleFidelity)
		}
		if ref.Image == nil {
			return fmt.Errorf("%w: reference style unit has no image", ErrInvalidParameter)
		}
	}
	if n := len(cfg.Generators); n > 1 && int32(n) != cfg.BatchSize {
		return fmt.Errorf("%w: %d generators for batch size %d", ErrShapeMismatch, n, cfg.BatchSize)
	}
	return nil
}

// State is the lifecycle of one generation run.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Result is the outcome of a completed generation run.
type Result struct {
	// Images is the decoded output, [B, H, W, 3] in [0, 1].
	Images *tensor.Array

	// Latents is the final denoised latent before decoding.
	Latents *tensor.Array

	Seed  int64 // seed actually used
	Steps int   // denoising steps actually run
	State State // always StateCompleted on a non-nil Result
}
