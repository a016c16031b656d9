package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"sermoncast/internal/api"
	"sermoncast/internal/queue"
	"sermoncast/internal/services"
	"sermoncast/internal/testsupport"
)

func newService(t *testing.T) (*api.JobService, *queue.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return api.NewJobService(store), store, t.TempDir()
}

func TestEnqueueValidUpload(t *testing.T) {
	svc, store, dir := newService(t)
	src := filepath.Join(dir, "sunday.mp3")
	testsupport.WriteFile(t, src, 2048)

	job, err := svc.Enqueue(context.Background(), api.EnqueueRequest{
		AssetID:    "sunday",
		Kind:       "Audio",
		SourcePath: src,
		Options:    json.RawMessage(` { "quality": "high" } `),
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.AssetID != "sunday" || job.Kind != "audio" || job.Status != string(queue.StatusPending) {
		t.Fatalf("unexpected job %#v", job)
	}
	if job.SourceSize != 2048 || job.MIMEType == "" {
		t.Fatalf("expected size and mime to be recorded, got %d %q", job.SourceSize, job.MIMEType)
	}
	if string(job.Options) != `{"quality":"high"}` {
		t.Fatalf("expected compacted options, got %s", job.Options)
	}

	item, err := store.GetByID(context.Background(), job.ID)
	if err != nil || item == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if item.SourcePath != src {
		t.Fatalf("source path = %q", item.SourcePath)
	}
}

func TestEnqueueGeneratesAssetID(t *testing.T) {
	svc, _, dir := newService(t)
	src := filepath.Join(dir, "service.mp4")
	testsupport.WriteFile(t, src, 64)

	job, err := svc.Enqueue(context.Background(), api.EnqueueRequest{Kind: "video", SourcePath: src})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(job.AssetID) != 36 {
		t.Fatalf("expected uuid asset id, got %q", job.AssetID)
	}
	if len(job.Options) != 0 {
		t.Fatalf("expected no stored options, got %s", job.Options)
	}
}

func TestEnqueueRejections(t *testing.T) {
	svc, _, dir := newService(t)
	audio := filepath.Join(dir, "talk.mp3")
	testsupport.WriteFile(t, audio, 16)

	cases := []struct {
		name   string
		req    api.EnqueueRequest
		marker error
	}{
		{"unknown kind", api.EnqueueRequest{Kind: "image", SourcePath: audio}, services.ErrValidation},
		{"bad asset id", api.EnqueueRequest{AssetID: "../escape", Kind: "audio", SourcePath: audio}, services.ErrValidation},
		{"missing source", api.EnqueueRequest{Kind: "audio", SourcePath: filepath.Join(dir, "gone.mp3")}, services.ErrNotFound},
		{"directory source", api.EnqueueRequest{Kind: "audio", SourcePath: dir}, services.ErrValidation},
		{"kind mismatch", api.EnqueueRequest{Kind: "video", SourcePath: audio}, services.ErrInvalidFileType},
		{"bad options json", api.EnqueueRequest{Kind: "audio", SourcePath: audio, Options: json.RawMessage(`{"quality":`)}, services.ErrValidation},
		{"contradictory options", api.EnqueueRequest{Kind: "audio", SourcePath: audio, Options: json.RawMessage(`{"transcodeVideo":true}`)}, services.ErrValidation},
		{"unknown quality", api.EnqueueRequest{Kind: "audio", SourcePath: audio, Options: json.RawMessage(`{"quality":"ultra"}`)}, services.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Enqueue(context.Background(), tc.req)
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}

func TestEnqueueRejectsActiveDuplicate(t *testing.T) {
	svc, store, dir := newService(t)
	src := filepath.Join(dir, "dup.mp3")
	testsupport.WriteFile(t, src, 16)
	req := api.EnqueueRequest{AssetID: "dup", Kind: "audio", SourcePath: src}

	first, err := svc.Enqueue(context.Background(), req)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	existing, err := svc.Enqueue(context.Background(), req)
	if !errors.Is(err, api.ErrAlreadyQueued) {
		t.Fatalf("expected ErrAlreadyQueued, got %v", err)
	}
	if existing == nil || existing.ID != first.ID {
		t.Fatalf("expected existing job to be returned, got %#v", existing)
	}

	item, _ := store.GetByID(context.Background(), first.ID)
	item.Status = queue.StatusCompleted
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := svc.Enqueue(context.Background(), req); err != nil {
		t.Fatalf("re-enqueue after completion: %v", err)
	}
}

func TestRetryAndRemoveOutcomes(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	failed := testsupport.NewJob(t, store, "failed", "audio")
	failed.SetFailed("UPLOAD_MP3", "upload", "boom", failed.CreatedAt)
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update: %v", err)
	}
	pending := testsupport.NewJob(t, store, "pending", "audio")
	running := testsupport.NewJob(t, store, "running", "video")
	running.Status = queue.StatusProcessing
	if err := store.Update(ctx, running); err != nil {
		t.Fatalf("Update: %v", err)
	}

	retry, err := svc.RetryFailedJobsByID(ctx, []int64{failed.ID, pending.ID, 999})
	if err != nil {
		t.Fatalf("RetryFailedJobsByID: %v", err)
	}
	if retry.UpdatedCount != 1 {
		t.Fatalf("expected 1 retried, got %d", retry.UpdatedCount)
	}
	want := []api.RetryJobOutcome{api.RetryJobUpdated, api.RetryJobNotFailed, api.RetryJobNotFound}
	for i, w := range want {
		if retry.Jobs[i].Outcome != w {
			t.Fatalf("retry[%d] = %s, want %s", i, retry.Jobs[i].Outcome, w)
		}
	}

	removed, err := svc.RemoveJobsByID(ctx, []int64{pending.ID, running.ID, 999})
	if err != nil {
		t.Fatalf("RemoveJobsByID: %v", err)
	}
	if removed.RemovedCount != 1 {
		t.Fatalf("expected 1 removed, got %d", removed.RemovedCount)
	}
	wantRemove := []api.RemoveJobOutcome{api.RemoveJobRemoved, api.RemoveJobProcessing, api.RemoveJobNotFound}
	for i, w := range wantRemove {
		if removed.Jobs[i].Outcome != w {
			t.Fatalf("remove[%d] = %s, want %s", i, removed.Jobs[i].Outcome, w)
		}
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["pending"] != 1 || stats["processing"] != 1 || stats["failed"] != 0 || stats["completed"] != 0 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestDescribeMissing(t *testing.T) {
	svc, _, _ := newService(t)
	job, err := svc.Describe(context.Background(), 42)
	if err != nil || job != nil {
		t.Fatalf("expected nil job, got %#v %v", job, err)
	}
	var nilSvc *api.JobService
	if jobs, err := nilSvc.List(context.Background()); jobs != nil || err != nil {
		t.Fatal("nil service should return nothing")
	}
}
