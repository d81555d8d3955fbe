// routes_generate_test.go - Tests fuer den Generate-Handler
//
// Laeuft gegen eine Pipeline mit deterministischem Test-Backend; geprueft
// werden Validierung, ndjson-Streaming und die finale PNG-Antwort.
package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"diffused/api"
	"diffused/imagegen/pipeline"
	"diffused/imagegen/tensor"
)

type testDenoiser struct{}

func (testDenoiser) Predict(ctx context.Context, latent *tensor.Array, t float32, cond pipeline.Conditioning) (*tensor.Array, error) {
	return latent.Clone(), nil
}

type testDecoder struct{}

func (testDecoder) ScalingFactor() float32 { return 0.18215 }
func (testDecoder) LatentChannels() int32  { return 4 }
func (testDecoder) Dtype() tensor.Dtype    { return tensor.DtypeFloat32 }

func (testDecoder) Encode(pixels *tensor.Array) (*tensor.Array, error) {
	shape := pixels.Shape()
	return tensor.Full(0.1, shape[0], 4, shape[1]/8, shape[2]/8), nil
}

func (testDecoder) Decode(latent *tensor.Array) (*tensor.Array, error) {
	shape := latent.Shape()
	return tensor.Zeros([]int32{shape[0], 3, shape[2] * 8, shape[3] * 8}), nil
}

type testEncoder struct{}

func (testEncoder) Encode(text string) (*tensor.Array, error) {
	n := int32(len(strings.Fields(text)) + 2)
	return tensor.Full(0.5, 1, n, 8), nil
}

type testControlnet struct{ name string }

func (c testControlnet) Name() string { return c.name }

type testBackend struct{}

func (testBackend) Denoiser() pipeline.Denoiser       { return testDenoiser{} }
func (testBackend) Decoder() pipeline.Decoder         { return testDecoder{} }
func (testBackend) TextEncoder() pipeline.TextEncoder { return testEncoder{} }
func (testBackend) Close()                            {}

func (testBackend) Controlnet(name string) (pipeline.Controlnet, error) {
	if name != "canny" {
		return nil, fmt.Errorf("unknown control network %q", name)
	}
	return testControlnet{name: name}, nil
}

func testServer() *Server {
	gin.SetMode(gin.TestMode)
	b := testBackend{}
	return &Server{
		backend:  b,
		pipeline: pipeline.New(b.Denoiser(), b.Decoder(), b.TextEncoder()),
	}
}

func postGenerate(t *testing.T, s *Server, req api.GenerateRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	s.GenerateHandler(c)
	return w
}

func TestGenerateHandlerRequiresPrompt(t *testing.T) {
	w := postGenerate(t, testServer(), api.GenerateRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, erwartet 400", w.Code)
	}
}

func TestGenerateHandlerRejectsOversizedCanvas(t *testing.T) {
	w := postGenerate(t, testServer(), api.GenerateRequest{Prompt: "x", Width: 8192, Height: 8192})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, erwartet 400", w.Code)
	}
}

func TestGenerateHandlerRejectsInvalidParameters(t *testing.T) {
	// Strength ausserhalb [0, 1] faellt erst in der Pipeline auf und muss
	// trotzdem als 400 zurueckkommen
	stream := false
	w := postGenerate(t, testServer(), api.GenerateRequest{
		Prompt:   "x",
		Strength: 2.0,
		Stream:   &stream,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, erwartet 400", w.Code)
	}
}

func TestGenerateHandlerUnknownControlnet(t *testing.T) {
	w := postGenerate(t, testServer(), api.GenerateRequest{
		Prompt: "x",
		ControlUnits: []api.ControlUnit{
			{Name: "gibtsnicht", Image: encodeTestPNG(t, 8, 8), Scale: 1},
		},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, erwartet 400", w.Code)
	}
}

func TestGenerateHandlerStreamsProgress(t *testing.T) {
	w := postGenerate(t, testServer(), api.GenerateRequest{
		Prompt: "ein rotes Fahrrad",
		Width:  64,
		Height: 64,
		Steps:  4,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, Body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Content-Type = %q, erwartet x-ndjson", ct)
	}

	var responses []api.GenerateResponse
	scanner := bufio.NewScanner(w.Body)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)
	for scanner.Scan() {
		var res api.GenerateResponse
		if err := json.Unmarshal(scanner.Bytes(), &res); err != nil {
			t.Fatalf("ungueltige ndjson-Zeile: %v", err)
		}
		responses = append(responses, res)
	}

	// 4 Fortschrittszeilen plus die finale Zeile
	if len(responses) != 5 {
		t.Fatalf("Zeilen = %d, erwartet 5", len(responses))
	}
	for i, res := range responses[:4] {
		if res.Done {
			t.Errorf("Zeile %d vorzeitig done", i)
		}
		if res.Completed != int64(i+1) || res.Total != 4 {
			t.Errorf("Zeile %d: Fortschritt %d/%d, erwartet %d/4", i, res.Completed, res.Total, i+1)
		}
	}

	final := responses[4]
	if !final.Done || final.DoneReason != "stop" {
		t.Fatalf("finale Zeile: done=%v reason=%q", final.Done, final.DoneReason)
	}
	if len(final.Images) != 1 {
		t.Fatalf("Bilder = %d, erwartet 1", len(final.Images))
	}

	img, err := png.Decode(bytes.NewReader(final.Images[0]))
	if err != nil {
		t.Fatalf("PNG-Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Errorf("Bild = %dx%d, erwartet 64x64", b.Dx(), b.Dy())
	}
}

func TestGenerateHandlerNonStreaming(t *testing.T) {
	stream := false
	w := postGenerate(t, testServer(), api.GenerateRequest{
		Prompt: "test",
		Width:  64,
		Height: 64,
		Steps:  2,
		Stream: &stream,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, Body %s", w.Code, w.Body.String())
	}

	var res api.GenerateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("Antwort ist kein einzelnes JSON-Objekt: %v", err)
	}
	if !res.Done || len(res.Images) != 1 {
		t.Errorf("done=%v images=%d, erwartet done mit einem Bild", res.Done, len(res.Images))
	}
}

func TestGenerateHandlerImg2Img(t *testing.T) {
	w := postGenerate(t, testServer(), api.GenerateRequest{
		Prompt:   "test",
		Steps:    2,
		Strength: 0.5,
		Image:    encodeTestPNG(t, 128, 64),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, Body %s", w.Code, w.Body.String())
	}

	var final api.GenerateResponse
	scanner := bufio.NewScanner(w.Body)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)
	for scanner.Scan() {
		if err := json.Unmarshal(scanner.Bytes(), &final); err != nil {
			t.Fatal(err)
		}
	}

	// Canvas kommt aus dem Init-Bild
	img, err := png.Decode(bytes.NewReader(final.Images[0]))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 128 || b.Dy() != 64 {
		t.Errorf("Bild = %dx%d, erwartet 128x64", b.Dx(), b.Dy())
	}
}
