// types.go - Request- und Response-Typen der Generate-API
//
// Dieses Modul enthaelt:
// - GenerateRequest / GenerateResponse inkl. Streaming-Fortschritt
// - ControlUnit / Reference Spezifikationen auf Wire-Ebene
// - StatusError fuer HTTP-Fehler
package api

import (
	"fmt"
	"time"
)

// GenerateRequest describes a request sent by [Client.Generate]. Only Prompt
// is required; all other fields have reasonable defaults.
type GenerateRequest struct {
	// Prompt is the textual prompt describing the desired image.
	Prompt string `json:"prompt"`

	// NegativePrompt describes content to steer away from.
	NegativePrompt string `json:"negative_prompt,omitempty"`

	// Width and Height set the canvas in pixels; both must be multiples
	// of 8. An input image overrides them.
	Width  int32 `json:"width,omitempty"`
	Height int32 `json:"height,omitempty"`

	// Steps is the number of denoising steps.
	Steps int `json:"steps,omitempty"`

	// GuidanceScale is the classifier-free guidance strength.
	GuidanceScale float32 `json:"guidance_scale,omitempty"`

	// Strength is the fraction of the schedule traversed, in (0, 1].
	Strength float32 `json:"strength,omitempty"`

	// Seed makes the run reproducible.
	Seed int64 `json:"seed,omitempty"`

	// Scheduler selects the step policy by name; empty means the server
	// default.
	Scheduler string `json:"scheduler,omitempty"`

	// BatchSize is the number of images generated in one call.
	BatchSize int32 `json:"batch_size,omitempty"`

	// Image is an optional PNG- or JPEG-encoded init image for
	// image-to-image generation.
	Image ImageData `json:"image,omitempty"`

	// ControlUnits is the ordered conditioning stack, at most three.
	ControlUnits []ControlUnit `json:"control_units,omitempty"`

	// Reference is the optional reference-only styling input.
	Reference *Reference `json:"reference,omitempty"`

	// Stream specifies whether the response is streaming; it is true by
	// default.
	Stream *bool `json:"stream,omitempty"`
}

// ControlUnit is one wire-level spatial-control input.
type ControlUnit struct {
	// Name selects the control network loaded on the server.
	Name string `json:"name"`

	// Image is the encoded conditioning image.
	Image ImageData `json:"image"`

	// Scale is the influence scale in [0, 1].
	Scale float32 `json:"scale"`

	// Start and End bound the activation window as fractions of the
	// active step count.
	Start float32 `json:"start"`
	End   float32 `json:"end"`
}

// Reference is the wire-level reference-only styling input.
type Reference struct {
	Image         ImageData `json:"image"`
	Attn          bool      `json:"attn"`
	AdaIN         bool      `json:"adain"`
	StyleFidelity float32   `json:"style_fidelity"`
}

// ImageData carries raw encoded image bytes; it marshals as base64.
type ImageData []byte

// GenerateResponse is the response passed into [GenerateResponseFunc]. While
// the run is in flight only Completed/Total are set; the final response
// carries the encoded image.
type GenerateResponse struct {
	CreatedAt  time.Time `json:"created_at"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason,omitempty"`

	// Completed and Total report denoising progress.
	Completed int64 `json:"completed,omitempty"`
	Total     int64 `json:"total,omitempty"`

	// Images holds the PNG-encoded results, one per batch sample. Only
	// set on the final response.
	Images []ImageData `json:"images,omitempty"`

	// Seed is the seed actually used, echoed back for reproducibility.
	Seed int64 `json:"seed,omitempty"`

	Metrics
}

// Metrics are the timings of one generation run.
type Metrics struct {
	TotalDuration    time.Duration `json:"total_duration,omitempty"`
	LoadDuration     time.Duration `json:"load_duration,omitempty"`
	GenerateDuration time.Duration `json:"generate_duration,omitempty"`
}

// SchedulerResponse lists the step policies the server supports.
type SchedulerResponse struct {
	Schedulers []string `json:"schedulers"`
	Default    string   `json:"default"`
}

// VersionResponse reports the server build version.
type VersionResponse struct {
	Version string `json:"version"`
}

// StatusError is an error with an HTTP status code and message.
type StatusError struct {
	StatusCode   int    `json:"-"`
	Status       string `json:"-"`
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		return "something went wrong, please see the diffused server logs for details"
	}
}
