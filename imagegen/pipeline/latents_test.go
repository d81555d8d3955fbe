// latents_test.go - Tests fuer die Latent-Initialisierung
package pipeline

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"diffused/imagegen/scheduler"
	"diffused/imagegen/tensor"
)

func testScheduler(t *testing.T, name string, steps int) scheduler.Scheduler {
	t.Helper()
	sched, err := scheduler.New(name)
	if err != nil {
		t.Fatal(err)
	}
	sched.SetTimesteps(steps)
	return sched
}

func TestPrepareLatentsFreshNoiseScaled(t *testing.T) {
	sched := testScheduler(t, "euler", 10)
	gen := tensor.NewGenerator(7)

	got, err := PrepareLatents(sched, 1, 4, 64, 64, tensor.DtypeFloat32,
		[]*tensor.Generator{gen}, nil)
	if err != nil {
		t.Fatalf("PrepareLatents: %v", err)
	}
	if !cmp.Equal(got.Shape(), []int32{1, 4, 8, 8}) {
		t.Fatalf("Shape = %v, erwartet [1 4 8 8]", got.Shape())
	}

	// Gleicher Seed, von Hand skaliert, muss identisch sein
	want := tensor.MulScalar(tensor.NewGenerator(7).Normal([]int32{1, 4, 8, 8}, tensor.DtypeFloat32),
		sched.InitNoiseSigma())
	if diff := cmp.Diff(want.Data(), got.Data()); diff != "" {
		t.Errorf("Rauschen nicht mit InitNoiseSigma skaliert:\n%s", diff)
	}
}

func TestPrepareLatentsPassThroughNeverRescaled(t *testing.T) {
	sched := testScheduler(t, "euler", 10)

	supplied := tensor.Full(3.5, 1, 4, 8, 8)
	got, err := PrepareLatents(sched, 1, 4, 64, 64, tensor.DtypeFloat32, nil, supplied)
	if err != nil {
		t.Fatalf("PrepareLatents: %v", err)
	}
	// Nur Cast, keine Skalierung
	if diff := cmp.Diff(supplied.Data(), got.Data()); diff != "" {
		t.Errorf("gelieferte Latents wurden veraendert:\n%s", diff)
	}
}

func TestPrepareLatentsPerSampleGenerators(t *testing.T) {
	sched := testScheduler(t, "flowmatch_euler", 10)
	gens := []*tensor.Generator{tensor.NewGenerator(1), tensor.NewGenerator(2)}

	got, err := PrepareLatents(sched, 2, 4, 64, 64, tensor.DtypeFloat32, gens, nil)
	if err != nil {
		t.Fatalf("PrepareLatents: %v", err)
	}
	if !cmp.Equal(got.Shape(), []int32{2, 4, 8, 8}) {
		t.Fatalf("Shape = %v, erwartet [2 4 8 8]", got.Shape())
	}

	// Sample 0 stammt aus Generator 1, unabhaengig von Sample 1
	want := tensor.NewGenerator(1).Normal([]int32{1, 4, 8, 8}, tensor.DtypeFloat32)
	sample0 := tensor.Slice(got, []int32{0, 0, 0, 0}, []int32{1, 4, 8, 8})
	if diff := cmp.Diff(want.Data(), sample0.Data()); diff != "" {
		t.Errorf("Sample 0 nicht aus dem ersten Generator:\n%s", diff)
	}
}

func TestPrepareLatentsGeneratorCountMismatch(t *testing.T) {
	sched := testScheduler(t, "euler", 10)
	gens := []*tensor.Generator{tensor.NewGenerator(1), tensor.NewGenerator(2)}

	_, err := PrepareLatents(sched, 4, 4, 64, 64, tensor.DtypeFloat32, gens, nil)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v, erwartet ErrShapeMismatch", err)
	}
}

func TestPrepareLatentsNoGenerator(t *testing.T) {
	sched := testScheduler(t, "euler", 10)

	_, err := PrepareLatents(sched, 1, 4, 64, 64, tensor.DtypeFloat32, nil, nil)
	if !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("err = %v, erwartet ErrInvalidParameter", err)
	}
}
