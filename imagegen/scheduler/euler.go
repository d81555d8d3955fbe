// euler.go - Euler Discrete Policy (epsilon-Vorhersage)
//
// Dieses Modul enthaelt:
// - EulerDiscrete: klassischer Euler-Integrator auf der Sigma-Leiter
//   eines scaled-linear Beta-Schedules
package scheduler

import (
	"fmt"
	"math"

	"diffused/imagegen/tensor"
)

// EulerConfig holds Euler discrete scheduler configuration.
type EulerConfig struct {
	NumTrainTimesteps int32   `json:"num_train_timesteps"`
	BetaStart         float32 `json:"beta_start"`
	BetaEnd           float32 `json:"beta_end"`
}

// DefaultEulerConfig returns the scaled-linear defaults used by the SD family.
func DefaultEulerConfig() *EulerConfig {
	return &EulerConfig{
		NumTrainTimesteps: 1000,
		BetaStart:         0.00085,
		BetaEnd:           0.012,
	}
}

// EulerDiscrete integrates epsilon predictions along a discretized sigma
// ladder. Latents live in "scaled" sigma space, so fresh noise must be
// multiplied by InitNoiseSigma before the first step.
type EulerDiscrete struct {
	cfg         *EulerConfig
	trainSigmas []float32 // per training timestep, index = timestep
	sigmas      []float32 // inference ladder, highest first, terminal zero
	timesteps   []float32
}

// NewEulerDiscrete creates the policy and precomputes the training sigmas.
func NewEulerDiscrete(cfg *EulerConfig) *EulerDiscrete {
	n := int(cfg.NumTrainTimesteps)
	// scaled_linear: betas = linspace(sqrt(start), sqrt(end), n)^2
	betas := make([]float64, n)
	lo := math.Sqrt(float64(cfg.BetaStart))
	hi := math.Sqrt(float64(cfg.BetaEnd))
	for i := 0; i < n; i++ {
		b := lo + (hi-lo)*float64(i)/float64(n-1)
		betas[i] = b * b
	}
	sigmas := make([]float32, n)
	cumprod := 1.0
	for i := 0; i < n; i++ {
		cumprod *= 1.0 - betas[i]
		sigmas[i] = float32(math.Sqrt((1.0 - cumprod) / cumprod))
	}
	return &EulerDiscrete{cfg: cfg, trainSigmas: sigmas}
}

// InitNoiseSigma follows diffusers: sqrt(sigma_max^2 + 1).
func (s *EulerDiscrete) InitNoiseSigma() float32 {
	sigmaMax := s.trainSigmas[len(s.trainSigmas)-1]
	return float32(math.Sqrt(float64(sigmaMax*sigmaMax + 1)))
}

// SetTimesteps spaces timesteps as linspace(n-1, 0, steps) and looks up the
// matching training sigmas, appending a terminal zero.
func (s *EulerDiscrete) SetTimesteps(steps int) {
	n := int(s.cfg.NumTrainTimesteps)
	s.timesteps = make([]float32, steps)
	s.sigmas = make([]float32, steps+1)
	for i := 0; i < steps; i++ {
		var t float64
		if steps == 1 {
			t = float64(n - 1)
		} else {
			t = float64(n-1) * (1.0 - float64(i)/float64(steps-1))
		}
		s.timesteps[i] = float32(t)
		s.sigmas[i] = s.trainSigmas[int(math.Round(t))]
	}
	s.sigmas[steps] = 0
}

// Timesteps returns the discretized timesteps, highest noise first.
func (s *EulerDiscrete) Timesteps() []float32 {
	return append([]float32(nil), s.timesteps...)
}

// Step performs one Euler update. The estimate is an epsilon prediction:
// denoised = x - sigma * eps, derivative = (x - denoised) / sigma = eps,
// x_next = x + (sigma_next - sigma) * eps.
func (s *EulerDiscrete) Step(estimate, latent *tensor.Array, i int) (*tensor.Array, error) {
	if i < 0 || i >= len(s.timesteps) {
		return nil, fmt.Errorf("euler: step index %d out of range (steps=%d)", i, len(s.timesteps))
	}
	dt := s.sigmas[i+1] - s.sigmas[i]
	return tensor.Add(latent, tensor.MulScalar(estimate, dt)), nil
}

// AddNoise noises a clean sample to sigma_i: x = sample + sigma * noise.
func (s *EulerDiscrete) AddNoise(sample, noise *tensor.Array, i int) (*tensor.Array, error) {
	if i < 0 || i >= len(s.timesteps) {
		return nil, fmt.Errorf("euler: noise index %d out of range (steps=%d)", i, len(s.timesteps))
	}
	return tensor.Add(sample, tensor.MulScalar(noise, s.sigmas[i])), nil
}
