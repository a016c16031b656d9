package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sermoncast/internal/metrics"
)

func TestHandlerExposesRecordedMetrics(t *testing.T) {
	reg := metrics.New()
	reg.JobStarted()
	reg.JobFinished("video", "completed")
	reg.ObserveStage("PACKAGE_HLS", 2*time.Second)
	reg.ObserveUpload("filesystem", 1024, time.Millisecond, nil)
	reg.ObserveUpload("filesystem", 0, time.Millisecond, errors.New("boom"))
	reg.ObserveEngine("encode_rendition", nil)
	reg.ObserveEvent("playback_started")

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`sermoncast_jobs_total{kind="video",outcome="completed"} 1`,
		`sermoncast_active_jobs 0`,
		`sermoncast_upload_bytes_total{backend="filesystem"} 1024`,
		`sermoncast_upload_failures_total{backend="filesystem"} 1`,
		`sermoncast_engine_commands_total{operation="encode_rendition",outcome="ok"} 1`,
		`sermoncast_analytics_events_total{event="playback_started"} 1`,
		`sermoncast_stage_duration_seconds_count{stage="PACKAGE_HLS"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var reg *metrics.Registry
	reg.JobStarted()
	reg.JobFinished("audio", "failed")
	reg.ObserveStage("INIT", time.Second)
	reg.ObserveUpload("s3", 1, time.Second, nil)
	reg.ObserveEngine("x", nil)
	reg.ObserveEvent("x")
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from nil registry, got %d", rec.Code)
	}
}
