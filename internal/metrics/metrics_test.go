package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MikeSquared-Agency/lumen/internal/summarize"
)

type stubModel struct{ err error }

func (s stubModel) Summarize(context.Context, string, int, int) (string, error) {
	return "ok", s.err
}

var _ summarize.Model = stubModel{}

func TestNew_Twice(t *testing.T) {
	// Private registries must not collide.
	New()
	New()
}

func TestInstrumentSummarizer(t *testing.T) {
	m := New()
	ok := m.InstrumentSummarizer(stubModel{})
	bad := m.InstrumentSummarizer(stubModel{err: errors.New("boom")})

	ok.Summarize(context.Background(), "x", 10, 1)
	ok.Summarize(context.Background(), "x", 10, 1)
	bad.Summarize(context.Background(), "x", 10, 1)

	if got := testutil.ToFloat64(m.ModelCalls.WithLabelValues("summarize", "ok")); got != 2 {
		t.Errorf("ok calls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ModelCalls.WithLabelValues("summarize", "error")); got != 1 {
		t.Errorf("error calls = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordRun("summarize", "ok", 2*time.Second)
	m.RecordHTTPRequest(http.MethodPost, "/api/v1/summarize", http.StatusOK, time.Millisecond)

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`lumen_runs_total{kind="summarize",status="ok"} 1`,
		`lumen_http_requests_total{method="POST",route="/api/v1/summarize",status_code="200"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
