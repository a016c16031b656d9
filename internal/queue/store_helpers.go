package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, asset_id, kind, source_path, mime_type, source_size, options_json, status, progress_stage, progress_percent, progress_message, result_json, error_kind, error_message, failed_stage, needs_review, attempts, created_at, updated_at, started_at, completed_at, last_heartbeat"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id              int64
		assetID         string
		kind            string
		sourcePath      string
		mimeType        sql.NullString
		sourceSize      sql.NullInt64
		optionsJSON     sql.NullString
		statusStr       string
		progressStage   sql.NullString
		progressPercent sql.NullInt64
		progressMessage sql.NullString
		resultJSON      sql.NullString
		errorKind       sql.NullString
		errorMessage    sql.NullString
		failedStage     sql.NullString
		needsReview     sql.NullInt64
		attempts        sql.NullInt64
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		startedRaw      sql.NullString
		completedRaw    sql.NullString
		heartbeatRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&assetID,
		&kind,
		&sourcePath,
		&mimeType,
		&sourceSize,
		&optionsJSON,
		&statusStr,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&resultJSON,
		&errorKind,
		&errorMessage,
		&failedStage,
		&needsReview,
		&attempts,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:              id,
		AssetID:         assetID,
		Kind:            kind,
		SourcePath:      sourcePath,
		MIMEType:        mimeType.String,
		SourceSize:      sourceSize.Int64,
		OptionsJSON:     optionsJSON.String,
		Status:          Status(statusStr),
		ProgressStage:   progressStage.String,
		ProgressPercent: int(progressPercent.Int64),
		ProgressMessage: progressMessage.String,
		ResultJSON:      resultJSON.String,
		ErrorKind:       errorKind.String,
		ErrorMessage:    errorMessage.String,
		FailedStage:     failedStage.String,
		NeedsReview:     needsReview.Valid && needsReview.Int64 != 0,
		Attempts:        int(attempts.Int64),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	item.StartedAt = parseNullableTime(startedRaw)
	item.CompletedAt = parseNullableTime(completedRaw)
	item.LastHeartbeat = parseNullableTime(heartbeatRaw)
	return item, nil
}

func scanItems(rows *sql.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
