package media_test

import (
	"testing"

	"sermoncast/internal/media"
)

func TestCheckFileType(t *testing.T) {
	tests := []struct {
		name    string
		kind    media.Kind
		src     media.Source
		wantErr bool
	}{
		{"mp4 video", media.KindVideo, media.Source{Path: "/in/sunday.mp4", MIMEType: "video/mp4"}, false},
		{"wav audio", media.KindAudio, media.Source{Path: "/in/sunday.wav", MIMEType: "audio/wav"}, false},
		{"mime with params", media.KindAudio, media.Source{Path: "a.mp3", MIMEType: "audio/mpeg; charset=binary"}, false},
		{"octet stream falls back to extension", media.KindVideo, media.Source{Path: "a.mov", MIMEType: "application/octet-stream"}, false},
		{"no extension but mime", media.KindAudio, media.Source{Path: "upload", MIMEType: "audio/mpeg"}, false},
		{"text declared as video", media.KindVideo, media.Source{Path: "notes.txt", MIMEType: "text/plain"}, true},
		{"txt extension without mime", media.KindVideo, media.Source{Path: "notes.txt"}, true},
		{"audio declared as video", media.KindVideo, media.Source{Path: "a.mp3", MIMEType: "audio/mpeg"}, true},
		{"video extension with audio kind", media.KindAudio, media.Source{Path: "a.mp4"}, true},
		{"nothing known", media.KindAudio, media.Source{Path: "upload"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := media.CheckFileType(tt.kind, tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckFileType err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"master.m3u8":         "application/vnd.apple.mpegurl",
		"segment_720p_3.ts":   "video/mp2t",
		"abc.mp4":             "video/mp4",
		"abc.mp3":             "audio/mpeg",
		"abc.jpg":             "image/jpeg",
		"abc_waveform.PNG":    "image/png",
		"mystery.bin":         "application/octet-stream",
	}
	for name, want := range cases {
		if got := media.ContentTypeFor(name); got != want {
			t.Fatalf("ContentTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestKindHelpers(t *testing.T) {
	if kind, err := media.ParseKind(" Video "); err != nil || kind != media.KindVideo {
		t.Fatalf("ParseKind: %v %v", kind, err)
	}
	if _, err := media.ParseKind("podcast"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if kind, ok := media.KindForPath("/x/y.flac"); !ok || kind != media.KindAudio {
		t.Fatalf("KindForPath flac: %v %v", kind, ok)
	}
	if _, ok := media.KindForPath("/x/y.docx"); ok {
		t.Fatal("expected docx to be unknown")
	}
	if got := media.GuessMIME("/x/y.mp3"); got != "audio/mpeg" {
		t.Fatalf("GuessMIME mp3 = %q", got)
	}
}
