// flowmatch.go - Flow-Match Euler Policy
//
// Dieses Modul enthaelt:
// - FlowMatchEuler: diskreter Flow-Match Euler-Integrator
// - Zeit-Shift (linear/exponentiell) wie in diffusers set_timesteps
package scheduler

import (
	"fmt"
	"math"

	"diffused/imagegen/tensor"
)

// FlowMatchConfig holds flow-match scheduler configuration.
type FlowMatchConfig struct {
	NumTrainTimesteps int32   `json:"num_train_timesteps"`
	Shift             float32 `json:"shift"`
	TimeShiftType     string  `json:"time_shift_type"` // "exponential" or "linear"
}

// DefaultFlowMatchConfig returns the diffusers defaults.
func DefaultFlowMatchConfig() *FlowMatchConfig {
	return &FlowMatchConfig{
		NumTrainTimesteps: 1000,
		Shift:             3.0,
		TimeShiftType:     "exponential",
	}
}

// FlowMatchEuler implements the flow-match Euler discrete policy. The model
// output is interpreted as a velocity; one step is a plain Euler update
// along the sigma ladder.
type FlowMatchEuler struct {
	cfg       *FlowMatchConfig
	sigmas    []float32
	timesteps []float32
}

// NewFlowMatchEuler creates the policy with the given config.
func NewFlowMatchEuler(cfg *FlowMatchConfig) *FlowMatchEuler {
	return &FlowMatchEuler{cfg: cfg}
}

// InitNoiseSigma is 1.0: flow-match latents start as plain standard noise.
func (s *FlowMatchEuler) InitNoiseSigma() float32 { return 1.0 }

// SetTimesteps builds sigmas = linspace(1, 1/steps, steps) with shift applied
// and a terminal zero, matching diffusers set_timesteps.
func (s *FlowMatchEuler) SetTimesteps(steps int) {
	s.SetTimestepsWithMu(steps, 0)
}

// SetTimestepsWithMu discretizes the schedule using a dynamic mu shift
// instead of the fixed config shift, for resolution-dependent scheduling.
func (s *FlowMatchEuler) SetTimestepsWithMu(steps int, mu float32) {
	s.sigmas = make([]float32, steps+1)
	for i := 0; i < steps; i++ {
		var sigma float32
		if steps == 1 {
			sigma = 1.0
		} else {
			sigma = 1.0 - float32(i)/float32(steps-1)*(1.0-1.0/float32(steps))
		}
		if mu != 0 {
			sigma = s.timeShift(mu, sigma)
		} else {
			shift := s.cfg.Shift
			sigma = shift * sigma / (1 + (shift-1)*sigma)
		}
		s.sigmas[i] = sigma
	}
	s.sigmas[steps] = 0

	s.timesteps = make([]float32, steps)
	for i := 0; i < steps; i++ {
		s.timesteps[i] = s.sigmas[i] * float32(s.cfg.NumTrainTimesteps)
	}
}

// Timesteps returns the discretized timesteps, highest noise first.
func (s *FlowMatchEuler) Timesteps() []float32 {
	return append([]float32(nil), s.timesteps...)
}

// Step performs x_{i+1} = x_i + (sigma_{i+1} - sigma_i) * v_i.
func (s *FlowMatchEuler) Step(estimate, latent *tensor.Array, i int) (*tensor.Array, error) {
	if i < 0 || i >= len(s.timesteps) {
		return nil, fmt.Errorf("flowmatch_euler: step index %d out of range (steps=%d)", i, len(s.timesteps))
	}
	dt := s.sigmas[i+1] - s.sigmas[i]
	return tensor.Add(latent, tensor.MulScalar(estimate, dt)), nil
}

// AddNoise interpolates sample and noise at sigma_i:
// x = (1 - sigma) * sample + sigma * noise.
func (s *FlowMatchEuler) AddNoise(sample, noise *tensor.Array, i int) (*tensor.Array, error) {
	if i < 0 || i >= len(s.timesteps) {
		return nil, fmt.Errorf("flowmatch_euler: noise index %d out of range (steps=%d)", i, len(s.timesteps))
	}
	sigma := s.sigmas[i]
	return tensor.Add(
		tensor.MulScalar(sample, 1-sigma),
		tensor.MulScalar(noise, sigma),
	), nil
}

// timeShift applies the dynamic time shift used with mu-based scheduling.
func (s *FlowMatchEuler) timeShift(mu, t float32) float32 {
	if t <= 0 {
		return 0
	}
	if s.cfg.TimeShiftType == "linear" {
		return mu / (mu + (1.0/t - 1.0))
	}
	expMu := float32(math.Exp(float64(mu)))
	return expMu / (expMu + (1.0/t - 1.0))
}
