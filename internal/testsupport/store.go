package testsupport

import (
	"context"
	"testing"

	"sermoncast/internal/config"
	"sermoncast/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob enqueues a pending job for assetID pointing at a placeholder path.
func NewJob(t testing.TB, store *queue.Store, assetID, kind string) *queue.Item {
	t.Helper()

	item, err := store.Enqueue(context.Background(), queue.NewJob{
		AssetID:    assetID,
		Kind:       kind,
		SourcePath: "/uploads/" + assetID,
	})
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return item
}
