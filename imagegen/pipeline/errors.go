// errors.go - Fehler-Taxonomie der Pipeline
//
// Dieses Modul enthaelt:
// - ErrShapeMismatch / ErrInvalidParameter: fail-fast vor dem Loop
// - ErrCancelled: regulaerer Abbruchpfad, kein Fehlerzustand
//
// Externe Fehler (Denoiser, Scheduler, Decoder) werden mit %w gewrappt
// und unveraendert propagiert; es gibt keine Retries, da Denoising-Schritte
// nicht blind wiederholbar sind.
package pipeline

import "errors"

var (
	// ErrShapeMismatch reports tensors or generator lists whose dimensions
	// do not line up before the loop starts.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidParameter reports scalar parameters outside their
	// documented ranges.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrCancelled marks user-requested interruption. It is a normal
	// termination path, distinguishable from failure; a cancelled run
	// returns no image.
	ErrCancelled = errors.New("generation cancelled")
)
