// fakes_test.go - Test-Doubles fuer die externen Handles
//
// Deterministische Fakes fuer Denoiser, Decoder und Text-Encoder.
// Der Fake-Denoiser protokolliert pro Schritt das Conditioning, damit
// Fenster- und Referenz-Verhalten pruefbar sind.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"diffused/imagegen/tensor"
)

// stepRecord captures what one denoiser evaluation saw.
type stepRecord struct {
	timestep     float32
	controlCount int
	hasReference bool
	conditional  bool
}

type fakeDenoiser struct {
	mu      sync.Mutex
	records []stepRecord
	failAt  int // fail on the n-th call (1-based), 0 = never
	calls   int
}

func (d *fakeDenoiser) Predict(ctx context.Context, latent *tensor.Array, t float32, cond Conditioning) (*tensor.Array, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failAt > 0 && d.calls >= d.failAt {
		return nil, fmt.Errorf("backend exploded at call %d", d.calls)
	}
	d.records = append(d.records, stepRecord{
		timestep:     t,
		controlCount: len(cond.Controls),
		hasReference: cond.Reference != nil,
		conditional:  len(cond.Controls) > 0 || cond.Reference != nil || !d.isUncond(cond),
	})
	// Behave like a well-trained epsilon predictor: claim the latent is
	// pure noise, so every scheduler contracts it towards zero.
	return latent.Clone(), nil
}

// isUncond marks the unconditional branch via the embedding marker value
// the fake text encoder plants.
func (d *fakeDenoiser) isUncond(cond Conditioning) bool {
	return cond.Embedding != nil && cond.Embedding.Data()[0] < 0
}

// controlCountsPerStep returns the control-signal count every conditional
// evaluation saw, in step order.
func (d *fakeDenoiser) controlCountsPerStep() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	var counts []int
	for _, r := range d.records {
		if r.conditional {
			counts = append(counts, r.controlCount)
		}
	}
	return counts
}

func (d *fakeDenoiser) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type fakeDecoder struct {
	mu          sync.Mutex
	decodeCalls int
	encodeCalls int
}

func (f *fakeDecoder) ScalingFactor() float32 { return 0.18215 }
func (f *fakeDecoder) LatentChannels() int32  { return 4 }
func (f *fakeDecoder) Dtype() tensor.Dtype    { return tensor.DtypeFloat32 }

// Encode maps pixels to a constant latent at 1/8 resolution.
func (f *fakeDecoder) Encode(pixels *tensor.Array) (*tensor.Array, error) {
	f.mu.Lock()
	f.encodeCalls++
	f.mu.Unlock()

	shape := pixels.Shape()
	if len(shape) != 4 || shape[3] != 3 {
		return nil, fmt.Errorf("encode expects [B, H, W, 3], got %v", shape)
	}
	return tensor.Full(0.1, shape[0], 4, shape[1]/8, shape[2]/8), nil
}

// Decode upsamples the latent 8x into three channels in [-1, 1].
func (f *fakeDecoder) Decode(latent *tensor.Array) (*tensor.Array, error) {
	f.mu.Lock()
	f.decodeCalls++
	f.mu.Unlock()

	shape := latent.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("decode expects 4-d latent, got %v", shape)
	}
	b, h, w := shape[0], shape[2]*8, shape[3]*8
	out := tensor.Zeros([]int32{b, 3, h, w})
	data := out.Data()
	src := latent.Data()
	for i := range data {
		// Deterministic pseudo-decode within [-1, 1]
		v := src[i%len(src)]
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		data[i] = v
	}
	return tensor.NewArray(data, []int32{b, 3, h, w}), nil
}

func (f *fakeDecoder) decoded() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decodeCalls
}

// fakeTextEncoder produces one token per word plus two specials; the first
// value marks positive (+1) vs negative/empty (-1) prompts so the fake
// denoiser can tell the branches apart.
type fakeTextEncoder struct {
	hidden int32
}

func (e *fakeTextEncoder) Encode(text string) (*tensor.Array, error) {
	hidden := e.hidden
	if hidden == 0 {
		hidden = 8
	}
	words := int32(0)
	if strings.TrimSpace(text) != "" {
		words = int32(len(strings.Fields(text)))
	}
	seqLen := words + 2
	data := make([]float32, seqLen*hidden)
	marker := float32(1)
	if words == 0 {
		marker = -1
	}
	for i := range data {
		data[i] = marker * float32(i%7) / 7.0
	}
	data[0] = marker
	return tensor.NewArray(data, []int32{1, seqLen, hidden}), nil
}

type fakeControlnet struct{ name string }

func (c *fakeControlnet) Name() string { return c.name }
