package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/lumen/internal/apperr"
	"github.com/MikeSquared-Agency/lumen/internal/generate"
	"github.com/MikeSquared-Agency/lumen/internal/store"
	"github.com/MikeSquared-Agency/lumen/internal/style"
	"github.com/MikeSquared-Agency/lumen/internal/summarize"
	"github.com/MikeSquared-Agency/lumen/internal/transcribe"
)

const maxJSONBody = 10 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("no input provided")
		}
		return apperr.Invalid("invalid JSON: %v", err)
	}
	return nil
}

type summarizeRequest struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length"`
	MinLength int    `json:"min_length"`
}

type summarizeResponse struct {
	RunID      string `json:"run_id"`
	Summary    string `json:"summary"`
	Passes     int    `json:"passes"`
	ChunkCalls int    `json:"chunk_calls"`
	Converged  bool   `json:"converged"`
}

// summarize handles POST /api/v1/summarize
func (s *Server) summarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, "", err)
		return
	}

	id, res, err := s.proc.Summarize(r.Context(), req.Text, summarize.Options{
		MaxLength: req.MaxLength,
		MinLength: req.MinLength,
	})
	if err != nil {
		s.writeError(w, r, id.String(), err)
		return
	}
	writeJSON(w, http.StatusOK, summarizeResponse{
		RunID:      id.String(),
		Summary:    res.Summary,
		Passes:     res.Passes,
		ChunkCalls: res.ChunkCalls,
		Converged:  res.Converged,
	})
}

type windowBody struct {
	Index        int     `json:"index"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Status       string  `json:"status"`
	Text         string  `json:"text,omitempty"`
}

type transcribeResponse struct {
	RunID           string       `json:"run_id"`
	Transcript      string       `json:"transcript"`
	DurationSeconds float64      `json:"duration_seconds"`
	Windows         []windowBody `json:"windows"`
}

func windowBodies(outcomes []transcribe.WindowOutcome) []windowBody {
	out := make([]windowBody, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, windowBody{
			Index:        o.Index,
			StartSeconds: o.Start.Seconds(),
			EndSeconds:   o.End.Seconds(),
			Status:       string(o.Status),
			Text:         o.Text,
		})
	}
	return out
}

// transcribe handles POST /api/v1/transcribe (multipart: audio, language)
func (s *Server) transcribe(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUpload(w, r); err != nil {
		s.writeError(w, r, "", err)
		return
	}
	path, err := s.saveUpload(r, "audio", audioDir, audioExtensions)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}
	defer s.removeUpload(path)

	id, res, err := s.proc.Transcribe(r.Context(), path, r.FormValue("language"))
	if err != nil {
		if errors.Is(err, apperr.ErrNoSpeechDetected) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":   err.Error(),
				"run_id":  id.String(),
				"windows": windowBodies(res.Windows),
			})
			return
		}
		s.writeError(w, r, id.String(), err)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{
		RunID:           id.String(),
		Transcript:      res.Text,
		DurationSeconds: res.Duration.Seconds(),
		Windows:         windowBodies(res.Windows),
	})
}

type generateRequest struct {
	Prompt      string  `json:"prompt"`
	Length      int     `json:"length"`
	Temperature float64 `json:"temperature"`
	TopK        int     `json:"top_k"`
	TopP        float64 `json:"top_p"`
}

type generateResponse struct {
	RunID string `json:"run_id"`
	Text  string `json:"text"`
	Calls int    `json:"calls"`
}

// generate handles POST /api/v1/generate
func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	req := generateRequest{Length: generate.DefaultLength}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, "", err)
		return
	}

	id, res, err := s.proc.Generate(r.Context(), req.Prompt, generate.Params{
		Length: req.Length,
		Sampling: generate.Sampling{
			Temperature: req.Temperature,
			TopK:        req.TopK,
			TopP:        req.TopP,
		},
	})
	if err != nil {
		s.writeError(w, r, id.String(), err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{RunID: id.String(), Text: res.Text, Calls: res.Calls})
}

type styleResponse struct {
	RunID       string       `json:"run_id"`
	OutputImage string       `json:"output_image"`
	Steps       []style.Step `json:"steps"`
}

// styleTransfer handles POST /api/v1/style-transfer (multipart: content, style)
func (s *Server) styleTransfer(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUpload(w, r); err != nil {
		s.writeError(w, r, "", err)
		return
	}
	contentPath, err := s.saveUpload(r, "content", imageDir, style.AllowedExtensions)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}
	defer s.removeUpload(contentPath)
	stylePath, err := s.saveUpload(r, "style", imageDir, style.AllowedExtensions)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}
	defer s.removeUpload(stylePath)

	params := style.Params{}
	if v := r.FormValue("steps"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, r, "", apperr.Invalid("steps must be a positive integer"))
			return
		}
		params.Steps = n
	}

	outName := "stylized_" + uuid.NewString() + filepath.Ext(contentPath)
	id, out, err := s.proc.StyleTransfer(r.Context(), style.Request{
		ContentPath: contentPath,
		StylePath:   stylePath,
		OutputPath:  filepath.Join(s.opts.UploadDir, outputDir, outName),
		Params:      params,
	})
	if err != nil {
		s.writeError(w, r, id.String(), err)
		return
	}
	if !out.Success {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: out.Message, RunID: id.String()})
		return
	}
	writeJSON(w, http.StatusOK, styleResponse{
		RunID:       id.String(),
		OutputImage: "/api/v1/outputs/" + outName,
		Steps:       out.Progress.Steps,
	})
}

// output handles GET /api/v1/outputs/{name}
func (s *Server) output(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		s.writeError(w, r, "", apperr.Invalid("invalid output name"))
		return
	}
	path := filepath.Join(s.opts.UploadDir, outputDir, name)
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, r, "", apperr.ErrNotFound)
		return
	}
	http.ServeFile(w, r, path)
}

// listRuns handles GET /api/v1/runs?limit=
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, r, "", apperr.Invalid("limit must be a positive integer"))
			return
		}
		limit = n
	}

	runs, err := s.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}
