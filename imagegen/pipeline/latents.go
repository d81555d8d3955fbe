// latents.go - Latent-Initialisierung
//
// Dieses Modul enthaelt:
// - PrepareLatents: frisches Rauschen oder Pass-Through
//
// Frisches Rauschen wird zwingend mit InitNoiseSigma skaliert; Scheduler
// definieren die Rauschstaerke unterschiedlich, und ohne die Skalierung
// laeuft die Generierung stumm aus der Signal-Rausch-Trajektorie.
// Vom Aufrufer gelieferte Latents werden nie reskaliert, nur gecastet.
package pipeline

import (
	"fmt"

	"diffused/imagegen/scheduler"
	"diffused/imagegen/tensor"
)

// PrepareLatents produces the initial latent for a run.
//
// With latents == nil a (batch, channels, height/8, width/8) tensor is drawn
// from the generator(s) and multiplied by the scheduler's init noise sigma.
// A supplied latent is only cast to the target dtype; the caller is assumed
// to pass an already scheduler-compatible latent.
func PrepareLatents(sched scheduler.Scheduler, batch, channels, height, width int32,
	dtype tensor.Dtype, gens []*tensor.Generator, latents *tensor.Array) (*tensor.Array, error) {

	if latents != nil {
		return tensor.AsType(latents, dtype), nil
	}

	if len(gens) == 0 {
		return nil, fmt.Errorf("%w: no generator supplied for fresh noise", ErrInvalidParameter)
	}
	if len(gens) > 1 && int32(len(gens)) != batch {
		return nil, fmt.Errorf("%w: %d generators for batch size %d", ErrShapeMismatch, len(gens), batch)
	}

	shape := []int32{batch, channels, height / LatentScaleFactor, width / LatentScaleFactor}

	var noise *tensor.Array
	if len(gens) == 1 {
		noise = gens[0].Normal(shape, dtype)
	} else {
		perSample := make([]*tensor.Array, batch)
		sampleShape := []int32{1, channels, height / LatentScaleFactor, width / LatentScaleFactor}
		for i := range perSample {
			perSample[i] = gens[i].Normal(sampleShape, dtype)
		}
		noise = tensor.Concatenate(perSample, 0)
	}

	return tensor.MulScalar(noise, sched.InitNoiseSigma()), nil
}
