// backend.go - Backend-Interface und Registrierung fuer Diffusionsmodelle
//
// Dieses Modul enthaelt:
// - Backend: Buendel der Modell-Handles eines geladenen Checkpoints
// - Register/Open: Factory-Registrierung nach Name
//
// Backends liefern die drei Handles, die die Pipeline koordiniert. Die
// Registrierung passiert in init() der jeweiligen Backend-Pakete; welche
// Backends verfuegbar sind, entscheidet der Build.
package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"diffused/imagegen/pipeline"
)

// Backend is one loaded diffusion checkpoint: the denoising network, the
// latent codec and the prompt encoder, plus lifecycle control.
type Backend interface {
	// Denoiser returns the noise prediction network.
	Denoiser() pipeline.Denoiser

	// Decoder returns the latent encoder/decoder.
	Decoder() pipeline.Decoder

	// TextEncoder returns the prompt embedding encoder.
	TextEncoder() pipeline.TextEncoder

	// Controlnet returns the control network registered under name.
	Controlnet(name string) (pipeline.Controlnet, error)

	// Close frees all memory associated with this backend.
	Close()
}

// Factory loads a backend from a model directory. The progress callback
// receives load progress in [0, 1].
type Factory func(ctx context.Context, modelDir string, progress func(float32)) (Backend, error)

var (
	mu        sync.Mutex
	factories = make(map[string]Factory)
)

// Register registers a backend factory function.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, ok := factories[name]; ok {
		panic("backend: backend already registered: " + name)
	}

	factories[name] = f
}

// Open loads a backend by name for the given model directory.
func Open(ctx context.Context, name, modelDir string, progress func(float32)) (Backend, error) {
	mu.Lock()
	f, ok := factories[name]
	mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("unsupported backend %q (compiled in: %v)", name, Names())
	}

	return f(ctx, modelDir, progress)
}

// Names lists the registered backends, sorted.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
