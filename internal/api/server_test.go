package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/lumen/internal/apperr"
	"github.com/MikeSquared-Agency/lumen/internal/generate"
	"github.com/MikeSquared-Agency/lumen/internal/metrics"
	"github.com/MikeSquared-Agency/lumen/internal/processor"
	"github.com/MikeSquared-Agency/lumen/internal/store"
	"github.com/MikeSquared-Agency/lumen/internal/style"
	"github.com/MikeSquared-Agency/lumen/internal/summarize"
	"github.com/MikeSquared-Agency/lumen/internal/transcribe"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type echoModel struct{}

func (echoModel) Summarize(_ context.Context, text string, _, _ int) (string, error) {
	return "summary of " + strings.Fields(text)[0], nil
}

type failingModel struct{}

func (failingModel) Summarize(context.Context, string, int, int) (string, error) {
	return "", errors.New("connection refused")
}

type fakeTranscriber struct {
	seenPath string
	res      transcribe.Result
	err      error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, path, _ string) (transcribe.Result, error) {
	f.seenPath = path
	if _, err := os.Stat(path); err != nil {
		return transcribe.Result{}, err
	}
	return f.res, f.err
}

type countingGenerator struct{}

func (countingGenerator) Generate(_ context.Context, prompt string, p generate.Params) (generate.Result, error) {
	if p.Length <= 0 {
		return generate.Result{}, apperr.Invalid("length must be a positive number")
	}
	return generate.Result{Text: prompt + " ...", Calls: (p.Length + 99) / 100}, nil
}

type writingBackend struct{}

func (writingBackend) Stylize(_ context.Context, req style.Request) (style.Outcome, error) {
	if err := os.WriteFile(req.OutputPath, []byte("jpeg"), 0o644); err != nil {
		return style.Outcome{}, err
	}
	return style.Outcome{Success: true, Message: req.OutputPath, Progress: style.Progress{Steps: []style.Step{{Step: 300}}}}, nil
}

type fakeRuns struct {
	limit int
	empty bool
}

func (f *fakeRuns) RecentRuns(_ context.Context, limit int) ([]store.Run, error) {
	f.limit = limit
	if f.empty {
		return nil, nil
	}
	return []store.Run{{Kind: "summarize", Status: "ok"}}, nil
}

type testEnv struct {
	srv         *Server
	transcriber *fakeTranscriber
	runs        *fakeRuns
	dir         string
}

func newTestEnv(t *testing.T, token string, model summarize.Model) *testEnv {
	t.Helper()
	logger := discardLogger()
	dir := t.TempDir()
	tr := &fakeTranscriber{res: transcribe.Result{
		Text:     "hello world",
		Duration: 75 * time.Second,
		Windows: []transcribe.WindowOutcome{
			{Window: transcribe.Window{Index: 0, End: 30 * time.Second}, Status: transcribe.StatusOK, Text: "hello"},
			{Window: transcribe.Window{Index: 1, Start: 30 * time.Second, End: 60 * time.Second}, Status: transcribe.StatusNoSpeech},
			{Window: transcribe.Window{Index: 2, Start: 60 * time.Second, End: 75 * time.Second}, Status: transcribe.StatusOK, Text: "world"},
		},
	}}
	runs := &fakeRuns{}
	m := metrics.New()
	proc := processor.New(processor.Deps{
		Summarizer:  summarize.New(model, summarize.Config{}, logger),
		Transcriber: tr,
		Generator:   countingGenerator{},
		Stylizer:    style.NewService(writingBackend{}, logger),
		Metrics:     m,
	}, logger)
	srv := NewServer(Options{Port: 8760, APIToken: token, UploadDir: dir}, proc, runs, m, logger)
	return &testEnv{srv: srv, transcriber: tr, runs: runs, dir: dir}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.srv.router.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, files map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, name := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte("data"))
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, "", echoModel{})

	w := env.do(httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t, "", echoModel{})

	w := env.do(httptest.NewRequest("GET", "/api/v1/lumen/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["agent"] != "lumen" {
		t.Errorf("expected agent lumen, got %v", body["agent"])
	}
	if enabled, _ := body["enabled"].([]any); len(enabled) != 4 {
		t.Errorf("expected 4 enabled kinds, got %v", body["enabled"])
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	env := newTestEnv(t, "", echoModel{})

	w := env.do(httptest.NewRequest("GET", "/nonexistent", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	env := newTestEnv(t, "secret", echoModel{})

	w := env.do(httptest.NewRequest("GET", "/api/v1/lumen/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/v1/lumen/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if w := env.do(req); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/lumen/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if w := env.do(req); w.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", w.Code)
	}

	if w := env.do(httptest.NewRequest("GET", "/health", nil)); w.Code != http.StatusOK {
		t.Errorf("health must stay open, got %d", w.Code)
	}
}

func TestSummarizeEndpoint(t *testing.T) {
	env := newTestEnv(t, "", echoModel{})

	req := httptest.NewRequest("POST", "/api/v1/summarize", strings.NewReader(`{"text":"  quick   brown fox "}`))
	w := env.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["summary"] != "summary of quick" {
		t.Errorf("unexpected summary %v", body["summary"])
	}
	if body["run_id"] == "" || body["converged"] != true {
		t.Errorf("unexpected body %v", body)
	}
}

func TestSummarizeEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name  string
		model summarize.Model
		body  string
		want  int
	}{
		{"empty body", echoModel{}, ``, http.StatusBadRequest},
		{"bad json", echoModel{}, `{"text":`, http.StatusBadRequest},
		{"blank text", echoModel{}, `{"text":"   "}`, http.StatusBadRequest},
		{"model failure", failingModel{}, `{"text":"hello"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "", tt.model)
			w := env.do(httptest.NewRequest("POST", "/api/v1/summarize", strings.NewReader(tt.body)))
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestTranscribeEndpoint(t *testing.T) {
	env := newTestEnv(t, "", echoModel{})

	body, ctype := multipartBody(t, map[string]string{"audio": "meeting.mp3"}, map[string]string{"language": "en-GB"})
	req := httptest.NewRequest("POST", "/api/v1/transcribe", body)
	req.Header.Set("Content-Type", ctype)

	w := env.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["transcript"] != "hello world" || resp["duration_seconds"] != 75.0 {
		t.Errorf("unexpected body %v", resp)
	}
	if windows, _ := resp["windows"].([]any); len(windows) != 3 {
		t.Errorf("expected 3 windows, got %v", resp["windows"])
	}
	if !strings.HasSuffix(env.transcriber.seenPath, "_meeting.mp3") {
		t.Errorf("unexpected saved path %q", env.transcriber.seenPath)
	}
	if _, err := os.Stat(env.transcriber.seenPath); !os.IsNotExist(err) {
		t.Errorf("upload not removed after request")
	}
}

func TestTranscribeEndpoint_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		env := newTestEnv(t, "", echoModel{})
		body, ctype := multipartBody(t, nil, map[string]string{"language": "en-US"})
		req := httptest.NewRequest("POST", "/api/v1/transcribe", body)
		req.Header.Set("Content-Type", ctype)
		if w := env.do(req); w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("bad extension", func(t *testing.T) {
		env := newTestEnv(t, "", echoModel{})
		body, ctype := multipartBody(t, map[string]string{"audio": "notes.txt"}, nil)
		req := httptest.NewRequest("POST", "/api/v1/transcribe", body)
		req.Header.Set("Content-Type", ctype)
		if w := env.do(req); w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("no speech", func(t *testing.T) {
		env := newTestEnv(t, "", echoModel{})
		env.transcriber.err = apperr.ErrNoSpeechDetected
		body, ctype := multipartBody(t, map[string]string{"audio": "quiet.wav"}, nil)
		req := httptest.NewRequest("POST", "/api/v1/transcribe", body)
		req.Header.Set("Content-Type", ctype)
		w := env.do(req)
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", w.Code)
		}
		if resp := decodeBody(t, w); resp["windows"] == nil {
			t.Error("expected per-window outcomes in no-speech response")
		}
	})

	t.Run("conversion", func(t *testing.T) {
		env := newTestEnv(t, "", echoModel{})
		env.transcriber.err = apperr.ErrConversion
		body, ctype := multipartBody(t, map[string]string{"audio": "broken.ogg"}, nil)
		req := httptest.NewRequest("POST", "/api/v1/transcribe", body)
		req.Header.Set("Content-Type", ctype)
		if w := env.do(req); w.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", w.Code)
		}
	})
}

func TestTranscribeEndpoint_TooLarge(t *testing.T) {
	env := newTestEnv(t, "", echoModel{})
	env.srv.opts.MaxUploadBytes = 64

	body, ctype := multipartBody(t, map[string]string{"audio": "long.wav"}, map[string]string{"pad": strings.Repeat("x", 512)})
	req := httptest.NewRequest("POST", "/api/v1/transcribe", body)
	req.Header.Set("Content-Type", ctype)
	if w := env.do(req); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

func TestGenerateEndpoint(t *testing.T) {
	env := newTestEnv(t, "", echoModel{})

	w := env.do(httptest.NewRequest("POST", "/api/v1/generate", strings.NewReader(`{"prompt":"Once","length":250}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["text"] != "Once ..." || body["calls"] != 3.0 {
		t.Errorf("unexpected body %v", body)
	}

	w = env.do(httptest.NewRequest("POST", "/api/v1/generate", strings.NewReader(`{"prompt":"Once","length":-1}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestStyleTransferEndpoint(t *testing.T) {
	env := newTestEnv(t, "", echoModel{})

	body, ctype := multipartBody(t, map[string]string{"content": "photo.jpg", "style": "starry.png"}, nil)
	req := httptest.NewRequest("POST", "/api/v1/style-transfer", body)
	req.Header.Set("Content-Type", ctype)

	w := env.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	output, _ := resp["output_image"].(string)
	if !strings.HasPrefix(output, "/api/v1/outputs/stylized_") || !strings.HasSuffix(output, ".jpg") {
		t.Fatalf("unexpected output_image %q", output)
	}

	w = env.do(httptest.NewRequest("GET", output, nil))
	if w.Code != http.StatusOK || w.Body.String() != "jpeg" {
		t.Errorf("expected stored output, got %d %q", w.Code, w.Body.String())
	}
}

func TestStyleTransferEndpoint_BadExtension(t *testing.T) {
	env := newTestEnv(t, "", echoModel{})

	body, ctype := multipartBody(t, map[string]string{"content": "photo.gif", "style": "starry.png"}, nil)
	req := httptest.NewRequest("POST", "/api/v1/style-transfer", body)
	req.Header.Set("Content-Type", ctype)
	if w := env.do(req); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestOutputEndpoint_NotFound(t *testing.T) {
	env := newTestEnv(t, "", echoModel{})

	if w := env.do(httptest.NewRequest("GET", "/api/v1/outputs/missing.jpg", nil)); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestRunsEndpoint(t *testing.T) {
	env := newTestEnv(t, "", echoModel{})

	w := env.do(httptest.NewRequest("GET", "/api/v1/runs?limit=7", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if env.runs.limit != 7 {
		t.Errorf("expected limit 7, got %d", env.runs.limit)
	}
	if body := decodeBody(t, w); body["count"] != 1.0 {
		t.Errorf("unexpected body %v", body)
	}

	if w := env.do(httptest.NewRequest("GET", "/api/v1/runs?limit=abc", nil)); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestRunsEndpoint_EmptyIsArray(t *testing.T) {
	env := newTestEnv(t, "", echoModel{})
	env.runs.empty = true

	w := env.do(httptest.NewRequest("GET", "/api/v1/runs", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"runs":[]`) {
		t.Errorf("expected an empty runs array, got %s", w.Body.String())
	}
}

func TestRunsEndpoint_NoStore(t *testing.T) {
	logger := discardLogger()
	srv := NewServer(Options{UploadDir: t.TempDir()}, processor.New(processor.Deps{}, logger), nil, nil, logger)

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/runs", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a store, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/summarize", strings.NewReader(`{"text":"hi"}`)))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with no summarizer, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, "", echoModel{})
	env.do(httptest.NewRequest("POST", "/api/v1/summarize", strings.NewReader(`{"text":"hello"}`)))

	w := env.do(httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `route="/api/v1/summarize"`) {
		t.Error("expected summarize route in http metrics")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Invalid("x"), http.StatusBadRequest},
		{apperr.ErrNotFound, http.StatusNotFound},
		{apperr.ErrConversion, http.StatusUnprocessableEntity},
		{apperr.ErrNoSpeechDetected, http.StatusUnprocessableEntity},
		{apperr.Model("summarize", errors.New("x")), http.StatusBadGateway},
		{processor.ErrDisabled, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
