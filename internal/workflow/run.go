package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"sermoncast/internal/logging"
	"sermoncast/internal/media"
	"sermoncast/internal/pipeline"
	"sermoncast/internal/queue"
	"sermoncast/internal/services"
)

var stageTitle = cases.Title(language.English)

// AssetFromItem rebuilds the pipeline input for a persisted job. Stored
// options are decoded on top of the kind's defaults.
func AssetFromItem(item *queue.Item) (pipeline.Asset, error) {
	kind, err := media.ParseKind(item.Kind)
	if err != nil {
		return pipeline.Asset{}, services.Wrap(services.ErrValidation, "init", "kind", "Unsupported media kind", err)
	}
	opts := pipeline.DefaultOptions(kind)
	if raw := strings.TrimSpace(item.OptionsJSON); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			return pipeline.Asset{}, services.Wrap(services.ErrValidation, "init", "options", "Invalid options payload", err)
		}
	}
	return pipeline.Asset{
		ID:   item.AssetID,
		Kind: kind,
		Source: media.Source{
			Path:     item.SourcePath,
			MIMEType: item.MIMEType,
			Size:     item.SourceSize,
		},
		Options: opts,
	}, nil
}

// StageLabel renders a pipeline state for humans ("PACKAGE_HLS" -> "Package Hls").
func StageLabel(stage string) string {
	if stage == "" {
		return ""
	}
	return stageTitle.String(strings.ReplaceAll(strings.ToLower(stage), "_", " "))
}

func (m *Manager) processItem(ctx context.Context, item *queue.Item) {
	ctx = services.WithJobID(ctx, item.ID)
	ctx = services.WithAssetID(ctx, item.AssetID)
	logger := logging.WithContext(ctx, m.logger)

	now := time.Now()
	item.StartedAt = &now
	item.SetProgress(string(pipeline.StateInit), "Starting", 0)
	if err := m.store.Update(ctx, item); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("failed to persist job start", logging.Error(err))
	}
	m.setCurrent(item)
	defer m.setCurrent(nil)
	m.hub.Publish(EventFromItem(item))

	asset, err := AssetFromItem(item)
	if err != nil {
		m.handleFailure(ctx, logger, item, string(pipeline.StateInit), err)
		return
	}

	logger.Info("job started",
		logging.String("kind", item.Kind),
		logging.String("source", item.SourcePath),
		logging.Int("attempt", item.Attempts),
		logging.String(logging.FieldEventType, "job_started"),
	)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, item.ID)

	result, err := m.processor.Process(ctx, asset, func(u pipeline.Update) {
		m.recordProgress(ctx, logger, item, u)
	})
	stopHeartbeat()
	hbWG.Wait()

	if err != nil {
		if ctx.Err() != nil {
			logger.Info("job interrupted by shutdown; it will be requeued on next start",
				logging.String(logging.FieldEventType, "job_interrupted"),
			)
			return
		}
		state := string(pipeline.FailedState(err))
		if state == "" {
			state = item.ProgressStage
		}
		m.handleFailure(ctx, logger, item, state, err)
		return
	}
	m.handleSuccess(ctx, logger, item, result)
}

func (m *Manager) recordProgress(ctx context.Context, logger *slog.Logger, item *queue.Item, u pipeline.Update) {
	item.SetProgress(string(u.State), StageLabel(string(u.State)), u.Percent)
	if err := m.store.UpdateProgress(ctx, item.ID, item.ProgressStage, item.ProgressPercent, item.ProgressMessage); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Warn("failed to persist progress", logging.Error(err))
		}
	}
	m.hub.Publish(EventFromItem(item))
}

func (m *Manager) handleSuccess(ctx context.Context, logger *slog.Logger, item *queue.Item, result pipeline.Result) {
	payload, err := json.Marshal(result)
	if err != nil {
		m.handleFailure(ctx, logger, item, string(pipeline.StateDone), fmt.Errorf("encode result: %w", err))
		return
	}
	item.MarkCompleted(string(payload), time.Now())
	if err := m.store.Update(ctx, item); err != nil {
		logger.Error("failed to persist job result",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_persist_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		m.setLastError(err)
	}
	m.setLastItem(item)

	event := EventFromItem(item)
	event.Result = &result
	m.hub.Publish(event)

	logger.Info("job completed",
		logging.String("media_url", result.MediaURL),
		logging.Bool("raw_fallback", result.RawFallback),
		logging.Int("warnings", len(result.Warnings)),
		logging.String(logging.FieldEventType, "job_completed"),
	)
	if err := m.notifier.NotifyProcessingCompleted(ctx, item.AssetID, result.MediaURL, len(result.Warnings)); err != nil {
		logger.Warn("completion notification failed", logging.Error(err))
	}
}

func (m *Manager) handleFailure(ctx context.Context, logger *slog.Logger, item *queue.Item, state string, jobErr error) {
	kind := services.ErrorKind(jobErr)
	message := strings.TrimSpace(jobErr.Error())
	item.SetFailed(state, kind, message, time.Now())

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist job failure")
		} else {
			logger.Error("failed to persist job failure", logging.Error(err))
		}
	}
	m.setLastError(jobErr)
	m.setLastItem(item)
	m.hub.Publish(EventFromItem(item))

	logging.WarnWithContext(logger, "job failed", "job_failed",
		logging.String("failed_stage", state),
		logging.String(logging.FieldErrorKind, kind),
		logging.Bool("needs_review", item.NeedsReview),
		logging.Error(jobErr),
		logging.String(logging.FieldErrorHint, retryHint(item)),
		logging.String(logging.FieldImpact, "job marked failed; uploaded artifacts are left in place"),
	)
	if err := m.notifier.NotifyProcessingFailed(ctx, item.AssetID, state, jobErr, item.NeedsReview); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
}

func retryHint(item *queue.Item) string {
	if item.NeedsReview {
		return "fix the input or options and resubmit the job"
	}
	return fmt.Sprintf("retry with 'sermoncast queue retry %d'", item.ID)
}
