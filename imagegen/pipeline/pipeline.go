// pipeline.go - Denoising-Loop-Treiber
//
// Dieses Modul enthaelt:
// - Pipeline: Handle-Buendel aus Denoiser, Decoder und Text-Encoder
// - Generate: der scheduler-getriebene Kern-Loop inkl. CFG,
//   ControlNet-Fenstern, Referenz-Styling, Fortschritt und Abbruch
//
// Der Loop ist strikt sequenziell: kein Schritt laeuft, bevor das Update
// des vorherigen angewandt ist. Die beiden Netzwerk-Auswertungen eines
// Schritts (cond/uncond) duerfen parallel laufen; das ist eine interne
// Optimierung ohne beobachtbare Ordnungsaenderung.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"diffused/imagegen/pixel"
	"diffused/imagegen/scheduler"
	"diffused/imagegen/tensor"
)

// Pipeline bundles the external handles one generation call coordinates.
// All handles are immutable for the duration of a call; nothing is shared
// between concurrently running, independent calls.
type Pipeline struct {
	denoiser Denoiser
	decoder  Decoder
	text     TextEncoder
	defSched string
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDefaultScheduler sets the policy used when a request names none.
func WithDefaultScheduler(name string) Option {
	return func(p *Pipeline) { p.defSched = name }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline around the given handles.
func New(denoiser Denoiser, decoder Decoder, text TextEncoder, opts ...Option) *Pipeline {
	p := &Pipeline{
		denoiser: denoiser,
		decoder:  decoder,
		text:     text,
		defSched: scheduler.DefaultName,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate runs one full generation: embeddings, latent preparation,
// conditioning stack, denoising loop, decode. Cancellation (via ctx or the
// OnStep callback) returns ErrCancelled and no image; external failures
// propagate unchanged.
func (p *Pipeline) Generate(ctx context.Context, cfg *GenerateConfig) (*Result, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// The image that drives latent shape is authoritative for canvas
	// size and batch, overriding the requested width/height.
	if cfg.Image != nil {
		shape := cfg.Image.Shape()
		if len(shape) != 4 || shape[3] != 3 {
			return nil, fmt.Errorf("%w: input image must be [B, H, W, 3], got %v", ErrShapeMismatch, shape)
		}
		cfg.BatchSize = shape[0]
		cfg.Height = shape[1]
		cfg.Width = shape[2]
		if cfg.Width%LatentScaleFactor != 0 || cfg.Height%LatentScaleFactor != 0 {
			return nil, fmt.Errorf("%w: input image %dx%d not multiples of %d",
				ErrShapeMismatch, cfg.Width, cfg.Height, LatentScaleFactor)
		}
	}
	if n := len(cfg.Generators); n > 1 && int32(n) != cfg.BatchSize {
		return nil, fmt.Errorf("%w: %d generators for batch size %d", ErrShapeMismatch, n, cfg.BatchSize)
	}

	name := cfg.Scheduler
	if name == "" {
		name = p.defSched
	}
	sched, err := scheduler.New(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	sched.SetTimesteps(cfg.Steps)

	activeSteps := int(float32(cfg.Steps) * cfg.Strength)
	if activeSteps < 1 {
		return nil, fmt.Errorf("%w: steps %d with strength %.3f leave no active steps",
			ErrInvalidParameter, cfg.Steps, cfg.Strength)
	}
	startIndex := cfg.Steps - activeSteps

	posEmb, negEmb, err := p.prepareEmbeddings(cfg)
	if err != nil {
		return nil, err
	}

	gens := cfg.Generators
	if len(gens) == 0 {
		gens = []*tensor.Generator{tensor.NewGenerator(cfg.Seed)}
	}

	latents, err := p.prepareInitialLatents(cfg, sched, gens, startIndex)
	if err != nil {
		return nil, err
	}

	// Freeze the conditioning stack: resized once to the active canvas,
	// never appended to mid-run.
	activeStack := BuildStack(cfg.ControlUnits...)
	if err := ResizeToCanvas(activeStack, cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	ref, refNoise, err := p.prepareReference(cfg, gens[0])
	if err != nil {
		return nil, err
	}

	// Announce the expected total before the loop so external consumers
	// can show determinate progress.
	if cfg.Progress != nil {
		cfg.Progress.Expect(activeSteps)
	}

	p.logger.Debug("starting denoising loop",
		"scheduler", name,
		"steps", cfg.Steps,
		"active_steps", activeSteps,
		"canvas", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"batch", cfg.BatchSize,
		"seed", cfg.Seed,
		"latent_dtype", latents.Dtype().String(),
		"control_units", len(activeStack))

	state := StateRunning
	timesteps := sched.Timesteps()

	for i := 0; i < activeSteps; i++ {
		select {
		case <-ctx.Done():
			state = StateCancelled
		default:
		}
		if state == StateCancelled {
			// Partial latents from a cancelled run are discarded.
			return nil, fmt.Errorf("%w: %s", ErrCancelled, ctx.Err())
		}

		schedIdx := startIndex + i
		t := timesteps[schedIdx]

		cond := Conditioning{
			Embedding: posEmb,
			Controls:  signalsAt(activeStack, i, activeSteps),
			Mask:      cfg.Mask,
		}
		if ref != nil {
			// Match the reference image's own forward pass at this step.
			refLatent, err := sched.AddNoise(ref.Latent, refNoise, schedIdx)
			if err != nil {
				return nil, err
			}
			cond.Reference = &ReferenceConditioning{
				Latent:        refLatent,
				Attn:          ref.Attn,
				AdaIN:         ref.AdaIN,
				StyleFidelity: ref.StyleFidelity,
			}
		}
		uncond := Conditioning{Embedding: negEmb, Mask: cfg.Mask}

		condPred, uncondPred, err := p.predictBoth(ctx, latents, t, cond, uncond)
		if err != nil {
			return nil, err
		}

		// Classifier-free guidance: uncond + scale * (cond - uncond)
		guided := tensor.Add(uncondPred,
			tensor.MulScalar(tensor.Sub(condPred, uncondPred), cfg.GuidanceScale))

		latents, err = sched.Step(guided, latents, schedIdx)
		if err != nil {
			return nil, fmt.Errorf("scheduler step %d: %w", schedIdx, err)
		}

		if cfg.Progress != nil {
			cfg.Progress.Update(1)
		}
		if cfg.OnStep != nil && !cfg.OnStep(i+1, activeSteps) {
			return nil, ErrCancelled
		}
	}

	images, err := DecodeToImage(p.decoder, latents)
	if err != nil {
		return nil, err
	}

	return &Result{
		Images:  images,
		Latents: latents,
		Seed:    cfg.Seed,
		Steps:   activeSteps,
		State:   StateCompleted,
	}, nil
}

// prepareEmbeddings encodes (or accepts) the prompt embeddings, pads them to
// equal sequence length and replicates them to the batch size.
func (p *Pipeline) prepareEmbeddings(cfg *GenerateConfig) (*tensor.Array, *tensor.Array, error) {
	pos, neg := cfg.PositiveEmbedding, cfg.NegativeEmbedding
	if pos == nil || neg == nil {
		if p.text == nil {
			return nil, nil, fmt.Errorf("%w: no text encoder and no pre-built embeddings", ErrInvalidParameter)
		}
		var err error
		pos, neg, err = EncodePrompts(p.text, cfg.Prompt, cfg.NegativePrompt)
		if err != nil {
			return nil, nil, err
		}
	} else {
		var err error
		pos, neg, err = PadToSameLength(pos, neg)
		if err != nil {
			return nil, nil, err
		}
	}
	return replicateToBatch(pos, cfg.BatchSize), replicateToBatch(neg, cfg.BatchSize), nil
}

// prepareInitialLatents builds the starting latent: pass-through, encoded
// input image noised to the start step, or fresh scaled noise.
func (p *Pipeline) prepareInitialLatents(cfg *GenerateConfig, sched scheduler.Scheduler,
	gens []*tensor.Generator, startIndex int) (*tensor.Array, error) {

	dtype := p.decoder.Dtype()
	channels := p.decoder.LatentChannels()

	if cfg.Latents != nil {
		return PrepareLatents(sched, cfg.BatchSize, channels, cfg.Height, cfg.Width, dtype, gens, cfg.Latents)
	}

	if cfg.Image != nil {
		encoded, err := p.decoder.Encode(cfg.Image)
		if err != nil {
			return nil, fmt.Errorf("vae encode: %w", err)
		}
		noise, err := PrepareLatents(sched, cfg.BatchSize, channels, cfg.Height, cfg.Width, dtype, gens, nil)
		if err != nil {
			return nil, err
		}
		// PrepareLatents scaled by init sigma; AddNoise wants unit noise.
		noise = tensor.DivScalar(noise, sched.InitNoiseSigma())
		latent, err := sched.AddNoise(tensor.AsType(encoded, dtype), noise, startIndex)
		if err != nil {
			return nil, err
		}
		return latent, nil
	}

	return PrepareLatents(sched, cfg.BatchSize, channels, cfg.Height, cfg.Width, dtype, gens, nil)
}

// prepareReference letterboxes and encodes the reference style image once.
// The per-step noise draw is fixed up front so the run stays deterministic.
func (p *Pipeline) prepareReference(cfg *GenerateConfig, gen *tensor.Generator) (*ReferenceConditioning, *tensor.Array, error) {
	if cfg.Reference == nil {
		return nil, nil, nil
	}
	resized := pixel.ResizeWithLetterbox(cfg.Reference.Image, int(cfg.Width), int(cfg.Height))
	encoded, err := p.decoder.Encode(pixel.ImageToTensor(resized))
	if err != nil {
		return nil, nil, fmt.Errorf("vae encode reference: %w", err)
	}
	encoded = tensor.AsType(encoded, p.decoder.Dtype())
	noise := gen.Normal(encoded.Shape(), encoded.Dtype())
	return &ReferenceConditioning{
		Latent:        encoded,
		Attn:          cfg.Reference.Attn,
		AdaIN:         cfg.Reference.AdaIN,
		StyleFidelity: cfg.Reference.StyleFidelity,
	}, noise, nil
}

// predictBoth evaluates the conditional and unconditional branches, in
// parallel when the runtime allows it.
func (p *Pipeline) predictBoth(ctx context.Context, latents *tensor.Array, t float32,
	cond, uncond Conditioning) (*tensor.Array, *tensor.Array, error) {

	var condPred, uncondPred *tensor.Array
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		condPred, err = p.denoiser.Predict(gctx, latents, t, cond)
		return err
	})
	g.Go(func() error {
		var err error
		uncondPred, err = p.denoiser.Predict(gctx, latents, t, uncond)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, nil, fmt.Errorf("%w: %s", ErrCancelled, err)
		}
		return nil, nil, fmt.Errorf("denoiser predict: %w", err)
	}
	return condPred, uncondPred, nil
}
