// ddim.go - DDIM Policy (deterministisches Sampling, eta = 0)
package scheduler

import (
	"fmt"
	"math"

	"diffused/imagegen/tensor"
)

// DDIMConfig holds DDIM scheduler configuration.
type DDIMConfig struct {
	NumTrainTimesteps int32   `json:"num_train_timesteps"`
	BetaStart         float32 `json:"beta_start"`
	BetaEnd           float32 `json:"beta_end"`
}

// DefaultDDIMConfig returns the scaled-linear defaults used by the SD family.
func DefaultDDIMConfig() *DDIMConfig {
	return &DDIMConfig{
		NumTrainTimesteps: 1000,
		BetaStart:         0.00085,
		BetaEnd:           0.012,
	}
}

// DDIM implements the deterministic DDIM update rule for epsilon predictions.
type DDIM struct {
	cfg           *DDIMConfig
	alphasCumprod []float64 // per training timestep
	timesteps     []float32
	indices       []int // training timestep per inference step
}

// NewDDIM creates the policy and precomputes the alpha products.
func NewDDIM(cfg *DDIMConfig) *DDIM {
	n := int(cfg.NumTrainTimesteps)
	lo := math.Sqrt(float64(cfg.BetaStart))
	hi := math.Sqrt(float64(cfg.BetaEnd))
	alphas := make([]float64, n)
	cumprod := 1.0
	for i := 0; i < n; i++ {
		b := lo + (hi-lo)*float64(i)/float64(n-1)
		cumprod *= 1.0 - b*b
		alphas[i] = cumprod
	}
	return &DDIM{cfg: cfg, alphasCumprod: alphas}
}

// InitNoiseSigma is 1.0: DDIM latents start as plain standard noise.
func (s *DDIM) InitNoiseSigma() float32 { return 1.0 }

// SetTimesteps spaces timesteps as linspace(n-1, 0, steps).
func (s *DDIM) SetTimesteps(steps int) {
	n := int(s.cfg.NumTrainTimesteps)
	s.timesteps = make([]float32, steps)
	s.indices = make([]int, steps)
	for i := 0; i < steps; i++ {
		var t float64
		if steps == 1 {
			t = float64(n - 1)
		} else {
			t = float64(n-1) * (1.0 - float64(i)/float64(steps-1))
		}
		s.timesteps[i] = float32(t)
		s.indices[i] = int(math.Round(t))
	}
}

// Timesteps returns the discretized timesteps, highest noise first.
func (s *DDIM) Timesteps() []float32 {
	return append([]float32(nil), s.timesteps...)
}

// Step applies the eta=0 DDIM update:
// x0 = (x - sqrt(1-a_t) * eps) / sqrt(a_t)
// x_next = sqrt(a_prev) * x0 + sqrt(1-a_prev) * eps.
func (s *DDIM) Step(estimate, latent *tensor.Array, i int) (*tensor.Array, error) {
	if i < 0 || i >= len(s.timesteps) {
		return nil, fmt.Errorf("ddim: step index %d out of range (steps=%d)", i, len(s.timesteps))
	}
	aT := s.alphasCumprod[s.indices[i]]
	aPrev := 1.0
	if i+1 < len(s.indices) {
		aPrev = s.alphasCumprod[s.indices[i+1]]
	}

	sqrtAT := float32(math.Sqrt(aT))
	sqrtOneMinusAT := float32(math.Sqrt(1 - aT))
	sqrtAPrev := float32(math.Sqrt(aPrev))
	sqrtOneMinusAPrev := float32(math.Sqrt(1 - aPrev))

	x0 := tensor.DivScalar(tensor.Sub(latent, tensor.MulScalar(estimate, sqrtOneMinusAT)), sqrtAT)
	return tensor.Add(
		tensor.MulScalar(x0, sqrtAPrev),
		tensor.MulScalar(estimate, sqrtOneMinusAPrev),
	), nil
}

// AddNoise noises a clean sample to the level of step index i:
// x = sqrt(a_t) * sample + sqrt(1-a_t) * noise.
func (s *DDIM) AddNoise(sample, noise *tensor.Array, i int) (*tensor.Array, error) {
	if i < 0 || i >= len(s.timesteps) {
		return nil, fmt.Errorf("ddim: noise index %d out of range (steps=%d)", i, len(s.timesteps))
	}
	aT := s.alphasCumprod[s.indices[i]]
	return tensor.Add(
		tensor.MulScalar(sample, float32(math.Sqrt(aT))),
		tensor.MulScalar(noise, float32(math.Sqrt(1-aT))),
	), nil
}
