package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sermoncast/internal/testsupport"
)

func TestEnqueueCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	src := filepath.Join(env.baseDir, "uploads", "sunday.mp3")
	testsupport.WriteFile(t, src, 4096)

	out, _, err := runCLI(t, []string{"enqueue", src, "--id", "sunday-am", "--options", `{"quality":"high"}`}, env.configPath)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	requireContains(t, out, "Queued job 1 for asset sunday-am (audio)")

	out, _, err = runCLI(t, []string{"enqueue", src, "--id", "sunday-am"}, env.configPath)
	if err != nil {
		t.Fatalf("enqueue duplicate: %v", err)
	}
	requireContains(t, out, "already queued as job 1 (pending)")

	item, err := env.store.GetByID(context.Background(), 1)
	if err != nil || item == nil {
		t.Fatalf("lookup job: %v", err)
	}
	if item.OptionsJSON == "" || !strings.Contains(item.OptionsJSON, `"quality":"high"`) {
		t.Fatalf("expected stored options, got %q", item.OptionsJSON)
	}
}

func TestEnqueueCommandRejectsBadInput(t *testing.T) {
	env := setupCLITestEnv(t)
	notes := filepath.Join(env.baseDir, "uploads", "notes.txt")
	testsupport.WriteFile(t, notes, 10)
	audio := filepath.Join(env.baseDir, "uploads", "vespers.wav")
	testsupport.WriteFile(t, audio, 10)

	cases := [][]string{
		{"enqueue", notes},
		{"enqueue", audio, "--options", "{not json"},
		{"enqueue", audio, "--kind", "video"},
		{"enqueue", filepath.Join(env.baseDir, "missing.mp3")},
		{"enqueue", audio, "--id", "../escape"},
	}
	for _, args := range cases {
		if _, _, err := runCLI(t, args, env.configPath); err == nil {
			t.Fatalf("expected %v to fail", args)
		}
	}
}

func TestBuildAdHocItem(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Good Friday.mov")
	testsupport.WriteFile(t, src, 512)

	item, err := buildAdHocItem(src, "", "good-friday", ` {"generateHLS":false} `)
	if err != nil {
		t.Fatalf("buildAdHocItem: %v", err)
	}
	if item.Kind != "video" || item.AssetID != "good-friday" || item.SourceSize != 512 {
		t.Fatalf("unexpected item %#v", item)
	}
	if item.OptionsJSON != `{"generateHLS":false}` {
		t.Fatalf("options = %q", item.OptionsJSON)
	}
	if !strings.HasPrefix(item.MIMEType, "video/") {
		t.Fatalf("mime = %q", item.MIMEType)
	}

	generated, err := buildAdHocItem(src, "video", "", "")
	if err != nil {
		t.Fatalf("buildAdHocItem: %v", err)
	}
	if len(generated.AssetID) != 36 {
		t.Fatalf("expected uuid asset id, got %q", generated.AssetID)
	}

	if _, err := buildAdHocItem(dir, "", "", ""); err == nil {
		t.Fatal("expected directory to be rejected")
	}
	notes := filepath.Join(dir, "notes.txt")
	testsupport.WriteFile(t, notes, 1)
	if _, err := buildAdHocItem(notes, "", "", ""); err == nil {
		t.Fatal("expected unknown extension without --kind to be rejected")
	}
}

func TestProcessCommandRejectsMissingFile(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"process", filepath.Join(env.baseDir, "nope.mp4")}, env.configPath)
	if err == nil {
		t.Fatal("expected missing source to fail")
	}
}

func TestPlaybackPositionCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"playback", "position", "advent-4"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "No resume position for advent-4")

	out, _, err = runCLI(t, []string{"playback", "position", "advent-4", "--set", "42.5"}, env.configPath)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	requireContains(t, out, "set to 42.5s")

	pos, ok, err := env.store.LoadPosition(context.Background(), "advent-4")
	if err != nil || !ok || pos != 42.5 {
		t.Fatalf("stored position = %v %v %v", pos, ok, err)
	}

	out, _, err = runCLI(t, []string{"playback", "position", "advent-4"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Resume position for advent-4: 42.5s")

	out, _, err = runCLI(t, []string{"playback", "position", "advent-4", "--clear"}, env.configPath)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	requireContains(t, out, "Cleared resume position")
	if _, ok, _ := env.store.LoadPosition(context.Background(), "advent-4"); ok {
		t.Fatal("expected position to be cleared")
	}

	for _, args := range [][]string{
		{"playback", "position", "advent-4", "--set", "1", "--clear"},
		{"playback", "position", "advent-4", "--set", "-3"},
		{"playback", "position", "bad/id"},
	} {
		if _, _, err := runCLI(t, args, env.configPath); err == nil {
			t.Fatalf("expected %v to fail", args)
		}
	}
}

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "sermoncast", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	env.cfg.Paths.APIToken = "hunter2"
	writeTestConfig(t, env.configPath, env.cfg)
	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[storage]")
	requireContains(t, out, env.cfg.Storage.LocalDir)
	if strings.Contains(out, "hunter2") {
		t.Fatalf("expected api token to be redacted:\n%s", out)
	}
}

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewJob(t, env.store, "epiphany", "audio")

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "FFmpeg:")
	requireContains(t, out, "State directory:")
	requireContains(t, out, "Storage:")
	requireContains(t, out, "== Queue ==")
	requireContains(t, out, "Pending")
}

func TestTestNotifyCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"test-notify"}, env.configPath); err == nil {
		t.Fatal("expected disabled notifications to fail")
	}

	var title string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title = r.Header.Get("Title")
	}))
	defer server.Close()
	env.cfg.Notifications.NtfyTopic = server.URL
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if title != "sermoncast test" {
		t.Fatalf("unexpected title %q", title)
	}
}
