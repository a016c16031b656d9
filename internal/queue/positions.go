package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SavePosition stores the playback position for assetID as a plain numeric
// string of elapsed seconds, replacing any previous value.
func (s *Store) SavePosition(ctx context.Context, assetID string, seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	now := nowString()
	if err := s.exec(
		ctx,
		`INSERT INTO playback_positions (asset_id, position, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(asset_id) DO UPDATE SET position = excluded.position, updated_at = excluded.updated_at`,
		assetID,
		strconv.FormatFloat(seconds, 'f', -1, 64),
		now,
	); err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

// LoadPosition returns the stored position for assetID. ok is false when
// nothing was stored or the stored value is not a number.
func (s *Store) LoadPosition(ctx context.Context, assetID string) (seconds float64, ok bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx, `SELECT position FROM playback_positions WHERE asset_id = ?`, assetID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load position: %w", err)
	}
	value, parseErr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if parseErr != nil || value < 0 {
		return 0, false, nil
	}
	return value, true, nil
}

// DeletePosition forgets the stored position for assetID.
func (s *Store) DeletePosition(ctx context.Context, assetID string) error {
	if err := s.exec(ctx, `DELETE FROM playback_positions WHERE asset_id = ?`, assetID); err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	return nil
}

// RawPosition returns the stored string verbatim, for diagnostics.
func (s *Store) RawPosition(ctx context.Context, assetID string) (string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT position FROM playback_positions WHERE asset_id = ?`, assetID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load position: %w", err)
	}
	return raw, nil
}
