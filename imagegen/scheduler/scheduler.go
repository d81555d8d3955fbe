// scheduler.go - Scheduler-Interface und Policy-Auswahl
//
// Dieses Modul enthaelt:
// - Scheduler: austauschbares Step-Policy-Interface
// - New: Konstruktion einer Policy per Name
//
// Der Denoising-Treiber kennt nur InitNoiseSigma und den Step-Kontrakt.
// Die konkrete Integrations-Mathematik lebt in den Policies; es gibt
// keine global veraenderbare Registry, nur eine feste Namenstabelle.
package scheduler

import (
	"fmt"
	"sort"

	"diffused/imagegen/tensor"
)

// Scheduler maps a noise estimate and the current step to an updated latent,
// implementing one numerical integration of the reverse diffusion process.
type Scheduler interface {
	// InitNoiseSigma is the magnitude fresh noise must be scaled by before
	// the first step. Schedulers define noise scale differently; skipping
	// this multiplication silently desynchronizes generation.
	InitNoiseSigma() float32

	// SetTimesteps discretizes the schedule for the given step count.
	// Must be called before Step.
	SetTimesteps(steps int)

	// Timesteps returns the discretized timestep values, highest noise first.
	Timesteps() []float32

	// Step advances the latent at step index i using the guided estimate.
	Step(estimate, latent *tensor.Array, i int) (*tensor.Array, error)

	// AddNoise noises a clean sample to the noise level of step index i,
	// used for image-to-image continuation.
	AddNoise(sample, noise *tensor.Array, i int) (*tensor.Array, error)
}

// DefaultName is used when a request names no scheduler.
const DefaultName = "euler"

// constructors is the fixed name -> policy table.
var constructors = map[string]func() Scheduler{
	"euler":           func() Scheduler { return NewEulerDiscrete(DefaultEulerConfig()) },
	"ddim":            func() Scheduler { return NewDDIM(DefaultDDIMConfig()) },
	"flowmatch_euler": func() Scheduler { return NewFlowMatchEuler(DefaultFlowMatchConfig()) },
}

// New constructs the named scheduler policy. An empty name selects the
// pipeline default.
func New(name string) (Scheduler, error) {
	if name == "" {
		name = DefaultName
	}
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("scheduler: unknown policy %q (supported: %v)", name, Names())
	}
	return ctor(), nil
}

// Names lists the supported policy names, sorted.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
