// scheduler_test.go - Tests fuer die Step-Policies
package scheduler

import (
	"math"
	"testing"

	"diffused/imagegen/tensor"
)

func TestNewByName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"euler", false},
		{"ddim", false},
		{"flowmatch_euler", false},
		{"", false}, // leerer Name = Default
		{"unbekannt", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Fatal("erwarteter Fehler blieb aus")
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%q): %v", tt.name, err)
			}
			if s == nil {
				t.Fatal("Scheduler ist nil")
			}
		})
	}
}

func TestTimestepsMonotonicallyDecrease(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			s, err := New(name)
			if err != nil {
				t.Fatal(err)
			}
			s.SetTimesteps(20)
			ts := s.Timesteps()
			if len(ts) != 20 {
				t.Fatalf("len(Timesteps) = %d, erwartet 20", len(ts))
			}
			for i := 1; i < len(ts); i++ {
				if ts[i] >= ts[i-1] {
					t.Fatalf("Timesteps nicht fallend: t[%d]=%f >= t[%d]=%f", i, ts[i], i-1, ts[i-1])
				}
			}
		})
	}
}

func TestInitNoiseSigma(t *testing.T) {
	fm, _ := New("flowmatch_euler")
	if fm.InitNoiseSigma() != 1.0 {
		t.Errorf("flowmatch InitNoiseSigma = %f, erwartet 1.0", fm.InitNoiseSigma())
	}
	ddim, _ := New("ddim")
	if ddim.InitNoiseSigma() != 1.0 {
		t.Errorf("ddim InitNoiseSigma = %f, erwartet 1.0", ddim.InitNoiseSigma())
	}
	euler, _ := New("euler")
	// Euler skaliert: sqrt(sigma_max^2 + 1) > 1
	if euler.InitNoiseSigma() <= 1.0 {
		t.Errorf("euler InitNoiseSigma = %f, erwartet > 1.0", euler.InitNoiseSigma())
	}
}

func TestStepDenoisesToSampleFlowMatch(t *testing.T) {
	// Mit der wahren Velocity v = noise - sample muss Flow-Match nach allen
	// Schritten exakt beim Sample landen.
	s := NewFlowMatchEuler(DefaultFlowMatchConfig())
	steps := 8
	s.SetTimesteps(steps)

	sample := tensor.Full(0.5, 1, 4, 2, 2)
	noise := tensor.RandomNormal([]int32{1, 4, 2, 2}, 11)

	latent, err := s.AddNoise(sample, noise, 0)
	if err != nil {
		t.Fatal(err)
	}
	velocity := tensor.Sub(noise, sample)
	for i := 0; i < steps; i++ {
		latent, err = s.Step(velocity, latent, i)
		if err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
	for _, v := range latent.Data() {
		if math.Abs(float64(v)-0.5) > 1e-4 {
			t.Fatalf("Endwert %f, erwartet 0.5", v)
		}
	}
}

func TestEulerStepReducesSigma(t *testing.T) {
	s := NewEulerDiscrete(DefaultEulerConfig())
	s.SetTimesteps(10)

	// Mit der wahren epsilon-Vorhersage schrumpft sigma*noise pro Schritt.
	noise := tensor.RandomNormal([]int32{1, 4, 4, 4}, 3)
	latent := tensor.MulScalar(noise, s.InitNoiseSigma())

	before := tensor.MaxAll(tensor.Abs(latent))
	var err error
	for i := 0; i < 10; i++ {
		latent, err = s.Step(noise, latent, i)
		if err != nil {
			t.Fatal(err)
		}
	}
	after := tensor.MaxAll(tensor.Abs(latent))
	if after >= before {
		t.Errorf("Betrag nach Denoising %f >= davor %f", after, before)
	}
}

func TestStepIndexOutOfRange(t *testing.T) {
	for _, name := range Names() {
		s, _ := New(name)
		s.SetTimesteps(4)
		est := tensor.Zeros([]int32{1, 1})
		if _, err := s.Step(est, est, 4); err == nil {
			t.Errorf("%s: Step(4) bei 4 Schritten muss fehlschlagen", name)
		}
	}
}

func TestDDIMAddNoiseAtTerminalStepKeepsSample(t *testing.T) {
	s := NewDDIM(DefaultDDIMConfig())
	s.SetTimesteps(10)

	sample := tensor.Full(1.0, 2, 2)
	noise := tensor.Zeros([]int32{2, 2})
	// Am letzten Index (t nahe 0) ist a_t nahe 1: Sample bleibt fast erhalten.
	got, err := s.AddNoise(sample, noise, 9)
	if err != nil {
		t.Fatal(err)
	}
	if v := got.Data()[0]; math.Abs(float64(v)-1.0) > 0.01 {
		t.Errorf("AddNoise am Terminalschritt = %f, erwartet ~1.0", v)
	}
}
