package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/lumen/internal/apperr"
)

const (
	audioDir  = "audio"
	imageDir  = "images"
	outputDir = "outputs"
)

var audioExtensions = []string{"wav", "mp3", "ogg"}

// parseUpload bounds the request body and parses the multipart form.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return apperr.Invalid("malformed multipart form: %v", err)
	}
	return nil
}

// saveUpload writes the form file field under UploadDir/subdir with a
// uuid-prefixed name and returns its path.
func (s *Server) saveUpload(r *http.Request, field, subdir string, allowed []string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", apperr.Invalid("no %s file provided", field)
		}
		return "", apperr.Invalid("read %s file: %v", field, err)
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", apperr.Invalid("no %s file selected", field)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if !slices.Contains(allowed, ext) {
		return "", apperr.Invalid("invalid file type, please upload %s files", strings.Join(allowed, ", "))
	}

	dir := filepath.Join(s.opts.UploadDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(dir, uuid.NewString()+"_"+sanitize(name))

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

func (s *Server) removeUpload(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove upload", "path", path, "error", err)
	}
}

// sanitize keeps letters, digits, dot, dash and underscore.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
