// prompt_test.go - Tests fuer die Embedding-Aufbereitung
package pipeline

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"diffused/imagegen/tensor"
)

func TestEncodePromptsEqualLength(t *testing.T) {
	enc := &fakeTextEncoder{hidden: 4}

	// Positiv hat mehr Woerter als negativ
	pos, neg, err := EncodePrompts(enc, "ein rotes Fahrrad im Regen", "unscharf")
	if err != nil {
		t.Fatalf("EncodePrompts: %v", err)
	}
	if !cmp.Equal(pos.Shape(), neg.Shape()) {
		t.Fatalf("Laengen ungleich: %v vs %v", pos.Shape(), neg.Shape())
	}
	// 5 Woerter + 2 Specials, nie gekuerzt
	if pos.Dim(1) != 7 {
		t.Errorf("Sequenzlaenge = %d, erwartet 7", pos.Dim(1))
	}
}

func TestPadToSameLengthRepeatsTrailingToken(t *testing.T) {
	// [1, 2, 3]: Token A, Token B
	short := tensor.NewArray([]float32{1, 1, 1, 2, 2, 2}, []int32{1, 2, 3})
	long := tensor.Zeros([]int32{1, 4, 3})

	gotShort, gotLong, err := PadToSameLength(short, long)
	if err != nil {
		t.Fatalf("PadToSameLength: %v", err)
	}
	if gotLong.Dim(1) != 4 || gotShort.Dim(1) != 4 {
		t.Fatalf("Laengen = %d/%d, erwartet 4/4", gotShort.Dim(1), gotLong.Dim(1))
	}
	// Padding wiederholt Token B
	want := []float32{1, 1, 1, 2, 2, 2, 2, 2, 2, 2, 2, 2}
	if diff := cmp.Diff(want, gotShort.Data()); diff != "" {
		t.Errorf("Padding (-want +got):\n%s", diff)
	}
}

func TestPadToSameLengthNoOpWhenEqual(t *testing.T) {
	a := tensor.Zeros([]int32{1, 3, 8})
	b := tensor.Zeros([]int32{1, 3, 8})

	gotA, gotB, err := PadToSameLength(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if gotA.Dim(1) != 3 || gotB.Dim(1) != 3 {
		t.Errorf("gleiche Laengen wurden veraendert: %d/%d", gotA.Dim(1), gotB.Dim(1))
	}
}

func TestPadToSameLengthHiddenSizeMismatch(t *testing.T) {
	a := tensor.Zeros([]int32{1, 2, 8})
	b := tensor.Zeros([]int32{1, 2, 16})

	_, _, err := PadToSameLength(a, b)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v, erwartet ErrShapeMismatch", err)
	}
}

func TestPadToSameLengthRejectsWrongRank(t *testing.T) {
	a := tensor.Zeros([]int32{2, 8})
	b := tensor.Zeros([]int32{1, 2, 8})

	_, _, err := PadToSameLength(a, b)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v, erwartet ErrShapeMismatch", err)
	}
}

func TestReplicateToBatch(t *testing.T) {
	emb := tensor.NewArray([]float32{1, 2, 3, 4}, []int32{1, 2, 2})

	got := replicateToBatch(emb, 3)
	if !cmp.Equal(got.Shape(), []int32{3, 2, 2}) {
		t.Fatalf("Shape = %v, erwartet [3 2 2]", got.Shape())
	}
	want := []float32{1, 2, 3, 4, 1, 2, 3, 4, 1, 2, 3, 4}
	if diff := cmp.Diff(want, got.Data()); diff != "" {
		t.Errorf("Batch-Replikation (-want +got):\n%s", diff)
	}

	// Bereits passende Batch-Groesse bleibt unberuehrt
	if replicateToBatch(got, 3) != got {
		t.Error("passendes Embedding wurde kopiert")
	}
}
