package agent

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// A one-shot run with an unreachable watermark endpoint still cycles,
// but the failed pull must be visible in the logs.
func TestRunOnceLogsFailedWatermarkPull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	prev := Logger()
	SetLogger(zerolog.New(&buf))
	defer SetLogger(prev)

	cfg := DefaultConfig()
	cfg.WALDir = t.TempDir()
	cfg.ServiceURL = srv.URL
	cfg.Once = true

	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !strings.Contains(buf.String(), "watermark pull failed") {
		t.Fatalf("pull failure not logged:\n%s", buf.String())
	}
}
