package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sermoncast/internal/api"
	"sermoncast/internal/ingest"
	"sermoncast/internal/logging"
	"sermoncast/internal/queue"
	"sermoncast/internal/testsupport"
)

func TestAssetIDFromPath(t *testing.T) {
	cases := map[string]string{
		"/in/sunday.mp3":              "sunday",
		"/in/Easter Service 2026.mp4": "Easter-Service-2026",
		"/in/--weird...name!!.wav":    "weird.name",
		"/in/café sermon.m4a":         "caf-sermon",
	}
	for in, want := range cases {
		if got := ingest.AssetIDFromPath(in); got != want {
			t.Fatalf("AssetIDFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func startWatcher(t *testing.T, w *ingest.Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
}

func waitForJobs(t *testing.T, store *queue.Store, n int) []*queue.Item {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		items, err := store.List(context.Background())
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(items) >= n {
			return items
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d jobs, have %d", n, len(items))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatcherQueuesSettledUploads(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithIngest())
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(store)

	var (
		mu    sync.Mutex
		wakes int
	)
	w := ingest.New(cfg, svc, store, logging.NewNop(), ingest.WithNotify(func() {
		mu.Lock()
		wakes++
		mu.Unlock()
	}))

	existing := filepath.Join(cfg.Ingest.WatchDir, "backlog.mp3")
	testsupport.WriteFile(t, existing, 32)
	if err := os.WriteFile(filepath.Join(cfg.Ingest.WatchDir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Ingest.WatchDir, ".partial.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	startWatcher(t, w)
	testsupport.WriteFile(t, filepath.Join(cfg.Ingest.WatchDir, "Sunday Service.mp4"), 64)

	items := waitForJobs(t, store, 2)
	time.Sleep(200 * time.Millisecond)
	items, _ = store.List(context.Background())
	if len(items) != 2 {
		t.Fatalf("expected exactly 2 jobs, got %d", len(items))
	}
	byAsset := map[string]*queue.Item{}
	for _, item := range items {
		byAsset[item.AssetID] = item
	}
	if byAsset["backlog"] == nil || byAsset["backlog"].Kind != "audio" {
		t.Fatalf("expected backlog audio job, got %#v", byAsset)
	}
	if byAsset["Sunday-Service"] == nil || byAsset["Sunday-Service"].Kind != "video" {
		t.Fatalf("expected Sunday-Service video job, got %#v", byAsset)
	}

	mu.Lock()
	defer mu.Unlock()
	if wakes != 2 {
		t.Fatalf("expected 2 wake notifications, got %d", wakes)
	}
}

func TestWatcherSkipsProcessedBacklog(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithIngest())
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(store)

	path := filepath.Join(cfg.Ingest.WatchDir, "done.mp3")
	testsupport.WriteFile(t, path, 32)
	item, err := store.Enqueue(context.Background(), queue.NewJob{AssetID: "done", Kind: "audio", SourcePath: path})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	item.MarkCompleted(`{}`, time.Now())
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	startWatcher(t, ingest.New(cfg, svc, store, logging.NewNop()))
	testsupport.WriteFile(t, filepath.Join(cfg.Ingest.WatchDir, "fresh.wav"), 32)

	waitForJobs(t, store, 2)
	time.Sleep(200 * time.Millisecond)
	items, _ := store.List(context.Background())
	if len(items) != 2 {
		t.Fatalf("expected the processed upload to be skipped, got %d jobs", len(items))
	}
}

func TestRunFailsForMissingDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.WatchDir = filepath.Join(t.TempDir(), "missing")
	w := ingest.New(cfg, nil, nil, logging.NewNop())
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing watch dir")
	}
}
