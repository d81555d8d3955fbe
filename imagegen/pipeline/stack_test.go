// stack_test.go - Tests fuer Stack-Aufbau und Aktivierungsfenster
package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildStackSkipsNilSlots(t *testing.T) {
	a := &ControlUnit{Controlnet: &fakeControlnet{name: "canny"}}
	c := &ControlUnit{Controlnet: &fakeControlnet{name: "depth"}}

	tests := []struct {
		name  string
		slots []*ControlUnit
		want  []string
	}{
		{"alle leer", []*ControlUnit{nil, nil, nil}, nil},
		{"nur mitte", []*ControlUnit{nil, a, nil}, []string{"canny"}},
		{"luecke dazwischen", []*ControlUnit{a, nil, c}, []string{"canny", "depth"}},
		{"voll belegt", []*ControlUnit{a, c, a}, []string{"canny", "depth", "canny"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := BuildStack(tt.slots...)
			var got []string
			for _, u := range stack {
				got = append(got, u.Controlnet.Name())
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Stack-Reihenfolge (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResizeToCanvas(t *testing.T) {
	u := &ControlUnit{
		Controlnet: &fakeControlnet{name: "canny"},
		Image:      testImage(100, 40),
	}
	stack := BuildStack(u)
	if err := ResizeToCanvas(stack, 64, 64); err != nil {
		t.Fatalf("ResizeToCanvas: %v", err)
	}

	b := u.Image.Bounds()
	if b.Dx() != 64 || b.Dy() != 64 {
		t.Errorf("Bild = %dx%d, erwartet 64x64", b.Dx(), b.Dy())
	}
	if u.canvas == nil {
		t.Fatal("canvas-Tensor nicht gesetzt")
	}
	if !cmp.Equal(u.canvas.Shape(), []int32{1, 64, 64, 3}) {
		t.Errorf("canvas-Shape = %v, erwartet [1 64 64 3]", u.canvas.Shape())
	}
}

func TestActiveAtWindowBounds(t *testing.T) {
	tests := []struct {
		name        string
		start, end  float32
		activeSteps int
		want        []int // aktive Loop-Indizes
	}{
		{"volles fenster", 0, 1, 4, []int{0, 1, 2, 3}},
		{"mittleres fenster", 0.3, 0.6, 10, []int{3, 4, 5, 6}},
		{"nur start", 0, 0, 5, []int{0}},
		{"spaetes fenster", 0.5, 1, 4, []int{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &ControlUnit{Start: tt.start, End: tt.end}
			var got []int
			for i := 0; i < tt.activeSteps; i++ {
				if u.activeAt(i, tt.activeSteps) {
					got = append(got, i)
				}
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("aktive Schritte (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSignalsAtPreservesOrderAndScale(t *testing.T) {
	early := &ControlUnit{Controlnet: &fakeControlnet{name: "early"}, Scale: 0.25, Start: 0, End: 0.5}
	late := &ControlUnit{Controlnet: &fakeControlnet{name: "late"}, Scale: 0.75, Start: 0.5, End: 1}
	stack := BuildStack(early, late)

	// Bei i=0 nur early, bei i=5 beide (0.5 liegt in beiden Fenstern)
	got := signalsAt(stack, 0, 10)
	if len(got) != 1 || got[0].Controlnet.Name() != "early" || got[0].Scale != 0.25 {
		t.Errorf("signalsAt(0) = %+v, erwartet nur early", got)
	}
	got = signalsAt(stack, 5, 10)
	if len(got) != 2 || got[0].Controlnet.Name() != "early" || got[1].Controlnet.Name() != "late" {
		t.Errorf("signalsAt(5) haelt die Stack-Reihenfolge nicht: %+v", got)
	}
	got = signalsAt(stack, 9, 10)
	if len(got) != 1 || got[0].Controlnet.Name() != "late" {
		t.Errorf("signalsAt(9) = %+v, erwartet nur late", got)
	}
}
