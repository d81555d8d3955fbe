// stack.go - Conditioning-Stack aus ControlNet-Units
//
// Dieses Modul enthaelt:
// - BuildStack: Reihenfolge-erhaltende Konkatenation von 1..3 Slots
// - ResizeToCanvas: Letterbox-Anpassung an die Denoising-Canvas
//
// Die Reihenfolge ist Teil des Kontrakts: ControlNet-Einfluss wird in
// Listen-Reihenfolge summiert, spaetere Units koennen fruehere partiell
// ueberschreiben. Vor dem Loop wird der Stack eingefroren.
package pipeline

import (
	"fmt"

	"diffused/imagegen/pixel"
)

// maxControlUnits bounds the stack like the three input slots of the
// original node graph.
const maxControlUnits = 3

// BuildStack concatenates up to three optional unit slots in argument order,
// skipping nil slots. Order is preserved exactly.
func BuildStack(units ...*ControlUnit) []*ControlUnit {
	stack := make([]*ControlUnit, 0, maxControlUnits)
	for _, u := range units {
		if u == nil {
			continue
		}
		stack = append(stack, u)
	}
	return stack
}

// ResizeToCanvas letterbox-resizes every unit's conditioning image to
// exactly the denoising canvas and stores the resulting pixel tensor on the
// unit. Skipping this before the loop produces a shape mismatch at the
// first guided step.
func ResizeToCanvas(stack []*ControlUnit, width, height int32) error {
	for i, u := range stack {
		if u.Image == nil {
			return fmt.Errorf("%w: control unit %d has no conditioning image", ErrInvalidParameter, i)
		}
		resized := pixel.ResizeWithLetterbox(u.Image, int(width), int(height))
		u.Image = resized
		u.canvas = pixel.ImageToTensor(resized)
	}
	return nil
}

// signalsAt returns the control signals of all units active at active-loop
// step i, in stack order.
func signalsAt(stack []*ControlUnit, i, activeSteps int) []ControlSignal {
	var signals []ControlSignal
	for _, u := range stack {
		if !u.activeAt(i, activeSteps) {
			continue
		}
		signals = append(signals, ControlSignal{
			Controlnet: u.Controlnet,
			Image:      u.canvas,
			Scale:      u.Scale,
		})
	}
	return signals
}
