// routes_generate.go - Generate Handler
// Beinhaltet: GenerateHandler fuer Bild-Generierung
// Streamt Fortschritt als x-ndjson und liefert PNG-kodierte Ergebnisse
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"diffused/api"
	"diffused/imagegen/pipeline"
	"diffused/imagegen/pixel"
)

const maxDimension int32 = 4096

// GenerateHandler handles image generation requests. Progress is streamed as
// application/x-ndjson; the final line carries the PNG-encoded images.
func (s *Server) GenerateHandler(c *gin.Context) {
	checkpointStart := time.Now()

	var req api.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}
	if req.Width > maxDimension || req.Height > maxDimension {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("width and height must be <= %d", maxDimension)})
		return
	}

	cfg, err := s.buildConfig(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := uuid.New().String()
	logger := slog.With("request_id", requestID)
	logger.Info("generate request",
		"steps", cfg.Steps,
		"canvas", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"scheduler", cfg.Scheduler,
		"control_units", len(cfg.ControlUnits),
		"seed", cfg.Seed)

	isStreaming := req.Stream == nil || *req.Stream

	contentType := "application/x-ndjson"
	if !isStreaming {
		contentType = "application/json; charset=utf-8"
	}
	c.Header("Content-Type", contentType)

	var streamStarted bool
	writeLine := func(res api.GenerateResponse) {
		streamStarted = true
		data, _ := json.Marshal(res)
		c.Writer.Write(append(data, '\n'))
		c.Writer.Flush()
	}

	if isStreaming {
		cfg.OnStep = func(step, total int) bool {
			writeLine(api.GenerateResponse{
				CreatedAt: time.Now().UTC(),
				Completed: int64(step),
				Total:     int64(total),
			})
			return true
		}
	}

	checkpointLoaded := time.Now()

	result, err := s.pipeline.Generate(c.Request.Context(), cfg)
	if err != nil {
		logger.Error("generate failed", "error", err)
		switch {
		case errors.Is(err, pipeline.ErrCancelled):
			// client went away, nothing left to write
		case streamStarted:
			writeLine(api.GenerateResponse{
				CreatedAt:  time.Now().UTC(),
				Done:       true,
				DoneReason: "error",
			})
		case errors.Is(err, pipeline.ErrInvalidParameter), errors.Is(err, pipeline.ErrShapeMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	images, err := encodeImages(result)
	if err != nil {
		logger.Error("encode failed", "error", err)
		if !streamStarted {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	final := api.GenerateResponse{
		CreatedAt:  time.Now().UTC(),
		Done:       true,
		DoneReason: "stop",
		Completed:  int64(result.Steps),
		Total:      int64(result.Steps),
		Images:     images,
		Seed:       result.Seed,
		Metrics: api.Metrics{
			TotalDuration:    time.Since(checkpointStart),
			LoadDuration:     checkpointLoaded.Sub(checkpointStart),
			GenerateDuration: time.Since(checkpointLoaded),
		},
	}

	if isStreaming {
		writeLine(final)
		return
	}
	c.JSON(http.StatusOK, final)
}

// buildConfig maps the wire request onto a pipeline config, decoding all
// embedded images and resolving control network names via the backend.
func (s *Server) buildConfig(req *api.GenerateRequest) (*pipeline.GenerateConfig, error) {
	cfg := &pipeline.GenerateConfig{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Steps:          req.Steps,
		GuidanceScale:  req.GuidanceScale,
		Strength:       req.Strength,
		Width:          req.Width,
		Height:         req.Height,
		BatchSize:      req.BatchSize,
		Seed:           req.Seed,
		Scheduler:      req.Scheduler,
	}

	if len(req.Image) > 0 {
		img, err := decodeImage(req.Image)
		if err != nil {
			return nil, fmt.Errorf("init image: %w", err)
		}
		if cfg.Width > 0 && cfg.Height > 0 {
			img = pixel.ResizeWithLetterbox(img, int(cfg.Width), int(cfg.Height))
		}
		cfg.Image = pixel.ImageToTensor(img)
	}

	for i, unit := range req.ControlUnits {
		cn, err := s.backend.Controlnet(unit.Name)
		if err != nil {
			return nil, fmt.Errorf("control unit %d: %w", i, err)
		}
		img, err := decodeImage(unit.Image)
		if err != nil {
			return nil, fmt.Errorf("control unit %d image: %w", i, err)
		}
		cfg.ControlUnits = append(cfg.ControlUnits, &pipeline.ControlUnit{
			Controlnet: cn,
			Image:      img,
			Scale:      unit.Scale,
			Start:      unit.Start,
			End:        unit.End,
		})
	}

	if req.Reference != nil {
		img, err := decodeImage(req.Reference.Image)
		if err != nil {
			return nil, fmt.Errorf("reference image: %w", err)
		}
		cfg.Reference = &pipeline.ReferenceStyleUnit{
			Image:         img,
			Attn:          req.Reference.Attn,
			AdaIN:         req.Reference.AdaIN,
			StyleFidelity: req.Reference.StyleFidelity,
		}
	}

	return cfg, nil
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

// encodeImages PNG-encodes every batch sample of a finished run.
func encodeImages(result *pipeline.Result) ([]api.ImageData, error) {
	imgs, err := pixel.TensorToImages(result.Images)
	if err != nil {
		return nil, err
	}

	encoded := make([]api.ImageData, 0, len(imgs))
	for _, img := range imgs {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		encoded = append(encoded, buf.Bytes())
	}
	return encoded, nil
}
