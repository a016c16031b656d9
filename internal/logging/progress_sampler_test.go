package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize int
		want       int
	}{
		{"zero uses default", 0, 5},
		{"negative uses default", -3, 5},
		{"custom", 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.want {
				t.Fatalf("bucketSize = %d, want %d", s.bucketSize, tt.want)
			}
			if s.lastBucket != -1 {
				t.Fatalf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSamplerNilLogsEverything(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(42, "transcode_mp4") {
		t.Fatal("nil sampler should always log")
	}
	s.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)
	steps := []struct {
		percent int
		stage   string
		want    bool
	}{
		{0, "transcode_mp4", true},
		{3, "transcode_mp4", false},
		{9, "transcode_mp4", false},
		{10, "transcode_mp4", true},
		{15, "transcode_mp4", false},
		{42, "transcode_mp4", true},
		{42, "upload_mp4", true},
		{45, "upload_mp4", false},
		{150, "upload_mp4", true},
		{100, "upload_mp4", false},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.percent, step.stage); got != step.want {
			t.Fatalf("step %d (%d%% %s): got %v want %v", i, step.percent, step.stage, got, step.want)
		}
	}
}

func TestProgressSamplerUnknownPercentOnlyLogsStageChange(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(-1, "package_hls") {
		t.Fatal("first stage should log")
	}
	if s.ShouldLog(-1, "package_hls") {
		t.Fatal("unknown percent on same stage should not log")
	}
	s.Reset()
	if !s.ShouldLog(-1, "package_hls") {
		t.Fatal("reset should allow the stage to log again")
	}
}
