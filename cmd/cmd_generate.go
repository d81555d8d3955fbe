// cmd_generate.go - Bild-Generierung ueber den laufenden Server
// Hauptfunktionen: generate, newGenerateCmd, newSchedulersCmd
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"diffused/api"
	"diffused/envconfig"
	"diffused/progress"
)

// generateOptions buendelt die Flags des generate Commands.
type generateOptions struct {
	Prompt         string
	NegativePrompt string
	Width          int32
	Height         int32
	Steps          int
	GuidanceScale  float32
	Strength       float32
	Seed           int64
	Scheduler      string
	BatchSize      int32
	ImagePath      string
	OutputDir      string
}

// generate - Streamt eine Generierung vom Server und speichert die PNGs
func generate(cmd *cobra.Command, opts generateOptions) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT)

	go func() {
		<-sigChan
		cancel()
	}()

	request := api.GenerateRequest{
		Prompt:         opts.Prompt,
		NegativePrompt: opts.NegativePrompt,
		Width:          opts.Width,
		Height:         opts.Height,
		Steps:          opts.Steps,
		GuidanceScale:  opts.GuidanceScale,
		Strength:       opts.Strength,
		Seed:           opts.Seed,
		Scheduler:      opts.Scheduler,
		BatchSize:      opts.BatchSize,
	}

	if opts.ImagePath != "" {
		data, err := os.ReadFile(opts.ImagePath)
		if err != nil {
			return err
		}
		request.Image = data
	}

	p := progress.NewProgress(os.Stderr)
	defer p.StopAndClear()

	spinner := progress.NewSpinner("")
	p.Add("", spinner)

	var bar *progress.Bar
	var latest api.GenerateResponse

	fn := func(response api.GenerateResponse) error {
		latest = response

		if response.Total > 0 && bar == nil {
			spinner.Stop()
			bar = progress.NewBar("generating", response.Total, response.Completed)
			p.Add("", bar)
		}
		if bar != nil {
			bar.Set(response.Completed)
		}

		return nil
	}

	if err := client.Generate(ctx, &request, fn); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	p.StopAndClear()

	if !latest.Done {
		return nil
	}

	paths, err := saveImages(opts.OutputDir, latest.Images)
	if err != nil {
		return err
	}
	for _, path := range paths {
		fmt.Println(path)
	}

	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "seed:     %d\n", latest.Seed)
		fmt.Fprintf(os.Stderr, "steps:    %d\n", latest.Total)
		fmt.Fprintf(os.Stderr, "total:    %s\n", latest.TotalDuration.Round(time.Millisecond))
		fmt.Fprintf(os.Stderr, "generate: %s\n", latest.GenerateDuration.Round(time.Millisecond))
	}

	return nil
}

// saveImages schreibt PNG-Daten in das Output-Verzeichnis.
func saveImages(dir string, images []api.ImageData) ([]string, error) {
	if dir == "" {
		dir = envconfig.Outputs()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	stamp := time.Now().Format("20060102-150405")
	paths := make([]string, 0, len(images))
	for i, data := range images {
		name := fmt.Sprintf("diffused-%s-%d.png", stamp, i)
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// newGenerateCmd - Erstellt den generate Command
func newGenerateCmd() *cobra.Command {
	var opts generateOptions

	generateCmd := &cobra.Command{
		Use:   "generate PROMPT",
		Short: "Generate an image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Prompt = strings.Join(args, " ")
			return generate(cmd, opts)
		},
	}

	generateCmd.Flags().StringVarP(&opts.NegativePrompt, "negative", "n", "", "Negative prompt")
	generateCmd.Flags().Int32Var(&opts.Width, "width", 0, "Canvas width in pixels")
	generateCmd.Flags().Int32Var(&opts.Height, "height", 0, "Canvas height in pixels")
	generateCmd.Flags().IntVar(&opts.Steps, "steps", 0, "Denoising steps")
	generateCmd.Flags().Float32Var(&opts.GuidanceScale, "guidance", 0, "Classifier-free guidance scale")
	generateCmd.Flags().Float32Var(&opts.Strength, "strength", 0, "Fraction of the schedule traversed (img2img)")
	generateCmd.Flags().Int64Var(&opts.Seed, "seed", 0, "Noise seed")
	generateCmd.Flags().StringVar(&opts.Scheduler, "scheduler", "", "Step policy")
	generateCmd.Flags().Int32Var(&opts.BatchSize, "batch", 0, "Images per call")
	generateCmd.Flags().StringVarP(&opts.ImagePath, "image", "i", "", "Init image for image-to-image")
	generateCmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "Output directory (default: DIFFUSED_OUTPUTS)")
	generateCmd.Flags().BoolP("verbose", "v", false, "Show timings for the run")

	return generateCmd
}

// newSchedulersCmd - Erstellt den schedulers Command
func newSchedulersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedulers",
		Short: "List the step policies of the running server",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := api.ClientFromEnvironment()
			if err != nil {
				return err
			}

			resp, err := client.Schedulers(cmd.Context())
			if err != nil {
				return err
			}

			for _, name := range resp.Schedulers {
				if name == resp.Default {
					fmt.Printf("%s (default)\n", name)
					continue
				}
				fmt.Println(name)
			}
			return nil
		},
	}
}
