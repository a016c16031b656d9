package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sermoncast/internal/config"
)

const userAgent = "sermoncast/1.0"

// Service defines the notification surface used by the worker and the CLI.
type Service interface {
	NotifyProcessingCompleted(ctx context.Context, assetID, mediaURL string, warnings int) error
	NotifyProcessingFailed(ctx context.Context, assetID, stage string, err error, needsReview bool) error
	TestNotification(ctx context.Context) error
	Enabled() bool
}

// NewService builds an ntfy-backed service when a topic is configured and a
// no-op otherwise.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		notifySuccess: cfg.Notifications.NotifySuccess,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	notifySuccess bool
}

func (n *ntfyService) Enabled() bool { return true }

func (n *ntfyService) NotifyProcessingCompleted(ctx context.Context, assetID, mediaURL string, warnings int) error {
	if !n.notifySuccess {
		return nil
	}
	message := fmt.Sprintf("Published: %s", strings.TrimSpace(assetID))
	if mediaURL = strings.TrimSpace(mediaURL); mediaURL != "" {
		message += "\n" + mediaURL
	}
	if warnings > 0 {
		message += fmt.Sprintf("\n%d optional artifact(s) skipped", warnings)
	}
	return n.send(ctx, payload{
		title:   "Sermon published",
		message: message,
		tags:    []string{"sermoncast", "completed"},
	})
}

func (n *ntfyService) NotifyProcessingFailed(ctx context.Context, assetID, stage string, err error, needsReview bool) error {
	var builder strings.Builder
	builder.WriteString("Processing failed: ")
	builder.WriteString(strings.TrimSpace(assetID))
	if stage = strings.TrimSpace(stage); stage != "" {
		builder.WriteString(" (")
		builder.WriteString(stage)
		builder.WriteString(")")
	}
	builder.WriteString("\n")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown error")
	}

	tags := []string{"sermoncast", "error"}
	if needsReview {
		tags = append(tags, "review")
	}
	return n.send(ctx, payload{
		title:    "Sermon processing failed",
		message:  builder.String(),
		tags:     tags,
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "sermoncast test",
		message:  "Notification system test",
		tags:     []string{"sermoncast", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Enabled() bool { return false }
func (noopService) NotifyProcessingCompleted(context.Context, string, string, int) error {
	return nil
}
func (noopService) NotifyProcessingFailed(context.Context, string, string, error, bool) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
