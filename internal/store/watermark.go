package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bcgov/colin-migrate/internal/errs"
)

// Status is the processed_status of a corporation's watermark.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusPartial    Status = "PARTIAL"
)

// Scope identifies the watermark namespace: one row per corporation per
// (flow_name, environment).
type Scope struct {
	FlowName    string
	Environment string
}

// Watermark is the persisted progress record for one corporation.
type Watermark struct {
	CorpNum              string     `json:"corp_num"`
	FlowName             string     `json:"flow_name"`
	Environment          string     `json:"environment"`
	Status               Status     `json:"processed_status"`
	LastProcessedEventID *int64     `json:"last_processed_event_id"`
	FailedEventID        *int64     `json:"failed_event_id,omitempty"`
	LastError            string     `json:"last_error,omitempty"`
	RunID                string     `json:"run_id,omitempty"`
	ClaimedAt            *time.Time `json:"claimed_at,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Skip is an event the pipeline stepped over without a filing.
type Skip struct {
	EventID   int64  `json:"event_id"`
	ErrorKind string `json:"error_kind"`
	Reason    string `json:"reason"`
}

const watermarkColumns = `corp_num, flow_name, environment, processed_status,
	last_processed_event_id, failed_event_id, last_error, run_id, claimed_at, updated_at`

// Watermark returns the watermark for a corporation, or nil if the
// corporation was never processed in this scope.
func (s *Store) Watermark(ctx context.Context, scope Scope, corpNum string) (*Watermark, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(`
		SELECT `+watermarkColumns+`
		FROM corp_processing
		WHERE corp_num = ? AND flow_name = ? AND environment = ?
	`), corpNum, scope.FlowName, scope.Environment)

	wm, err := scanWatermark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read watermark: %w", err)
	}
	return wm, nil
}

// Watermarks returns the watermarks of the given corporations keyed by
// corp_num. Corporations never processed are absent from the map.
func (s *Store) Watermarks(ctx context.Context, scope Scope, corpNums []string) (map[string]Watermark, error) {
	out := make(map[string]Watermark, len(corpNums))
	if len(corpNums) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(corpNums)+2)
	args = append(args, scope.FlowName, scope.Environment)
	for _, c := range corpNums {
		args = append(args, c)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
		SELECT `+watermarkColumns+`
		FROM corp_processing
		WHERE flow_name = ? AND environment = ? AND corp_num IN (`+Placeholders(len(corpNums))+`)
		ORDER BY corp_num
	`), args...)
	if err != nil {
		return nil, fmt.Errorf("query watermarks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		wm, err := scanWatermark(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watermark: %w", err)
		}
		out[wm.CorpNum] = *wm
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watermarks: %w", err)
	}
	return out, nil
}

// ListWatermarks returns every watermark in the scope, optionally filtered by
// status, ordered by corp_num.
func (s *Store) ListWatermarks(ctx context.Context, scope Scope, status Status) ([]Watermark, error) {
	query := `
		SELECT ` + watermarkColumns + `
		FROM corp_processing
		WHERE flow_name = ? AND environment = ?`
	args := []any{scope.FlowName, scope.Environment}
	if status != "" {
		query += " AND processed_status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY corp_num"

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query watermarks: %w", err)
	}
	defer rows.Close()

	out := []Watermark{}
	for rows.Next() {
		wm, err := scanWatermark(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watermark: %w", err)
		}
		out = append(out, *wm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watermarks: %w", err)
	}
	return out, nil
}

// Claim marks a corporation PROCESSING for runID and returns its watermark.
//
// The row is created if absent and then read under a row lock, so two runs
// racing for the same corporation serialize here. A PROCESSING row held by
// another run is only taken over when its claim is older than staleAfter
// (staleAfter <= 0 never takes over); otherwise KindAlreadyClaimed is returned.
func (s *Store) Claim(ctx context.Context, scope Scope, corpNum, runID string, now time.Time, staleAfter time.Duration) (*Watermark, error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	defer tx.Rollback()

	// Step 1: make sure there is a row to lock
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO corp_processing
		(corp_num, flow_name, environment, processed_status, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (corp_num, flow_name, environment) DO NOTHING
	`, corpNum, scope.FlowName, scope.Environment, string(StatusFailed), now); err != nil {
		return nil, fmt.Errorf("claim: insert: %w", err)
	}

	// Step 2: lock it
	wm, err := scanWatermark(tx.QueryRowContext(ctx, `
		SELECT `+watermarkColumns+`
		FROM corp_processing
		WHERE corp_num = ? AND flow_name = ? AND environment = ?`+tx.dialect.ForUpdate(),
		corpNum, scope.FlowName, scope.Environment))
	if err != nil {
		return nil, fmt.Errorf("claim: select: %w", err)
	}

	if wm.Status == StatusProcessing && wm.RunID != runID {
		stale := staleAfter > 0 && wm.ClaimedAt != nil && now.Sub(*wm.ClaimedAt) >= staleAfter
		if !stale {
			return nil, errs.New(errs.KindAlreadyClaimed, "held by run %s", wm.RunID).At(corpNum, 0)
		}
	}

	// Step 3: take it
	if _, err := tx.ExecContext(ctx, `
		UPDATE corp_processing
		SET processed_status = ?, run_id = ?, claimed_at = ?, updated_at = ?
		WHERE corp_num = ? AND flow_name = ? AND environment = ?
	`, string(StatusProcessing), runID, now, now, corpNum, scope.FlowName, scope.Environment); err != nil {
		return nil, fmt.Errorf("claim: update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim: commit: %w", err)
	}

	wm.Status = StatusProcessing
	wm.RunID = runID
	wm.ClaimedAt = &now
	wm.UpdatedAt = now
	return wm, nil
}

// AdvanceTx moves the watermark to eventID inside the caller's transaction.
//
// The update is monotonic: an eventID at or below the stored value is a
// no-op. The caller must still hold the claim (run_id), otherwise
// KindAlreadyClaimed is returned and the caller's transaction must roll back.
func (t *Tx) AdvanceTx(ctx context.Context, scope Scope, corpNum, runID string, eventID int64, now time.Time) error {
	var heldBy sql.NullString
	var last sql.NullInt64
	err := t.QueryRowContext(ctx, `
		SELECT run_id, last_processed_event_id
		FROM corp_processing
		WHERE corp_num = ? AND flow_name = ? AND environment = ?`+t.dialect.ForUpdate(),
		corpNum, scope.FlowName, scope.Environment,
	).Scan(&heldBy, &last)
	if err != nil {
		return fmt.Errorf("advance watermark: select: %w", err)
	}

	if heldBy.String != runID {
		return errs.New(errs.KindAlreadyClaimed, "claim lost to run %s", heldBy.String).At(corpNum, eventID)
	}
	if last.Valid && last.Int64 >= eventID {
		return nil
	}

	if _, err := t.ExecContext(ctx, `
		UPDATE corp_processing
		SET last_processed_event_id = ?, updated_at = ?
		WHERE corp_num = ? AND flow_name = ? AND environment = ?
	`, eventID, now, corpNum, scope.FlowName, scope.Environment); err != nil {
		return fmt.Errorf("advance watermark: update: %w", err)
	}
	return nil
}

// RecordSkipTx records an event the pipeline stepped over.
// Uses ON CONFLICT DO NOTHING so re-recording the same skip is harmless.
func (t *Tx) RecordSkipTx(ctx context.Context, scope Scope, corpNum string, skip Skip) error {
	_, err := t.ExecContext(ctx, `
		INSERT INTO corp_event_skips
		(corp_num, flow_name, environment, event_id, error_kind, reason)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (corp_num, flow_name, environment, event_id) DO NOTHING
	`, corpNum, scope.FlowName, scope.Environment, skip.EventID, skip.ErrorKind, skip.Reason)
	if err != nil {
		return fmt.Errorf("record skip: %w", err)
	}
	return nil
}

// Finish releases the claim and records the outcome of a corporation's batch.
// failedEventID and lastError are cleared when status is COMPLETED.
func (s *Store) Finish(ctx context.Context, scope Scope, corpNum, runID string, status Status, failedEventID *int64, lastError string, now time.Time) error {
	var failed sql.NullInt64
	if failedEventID != nil {
		failed = sql.NullInt64{Int64: *failedEventID, Valid: true}
	}
	var lastErr sql.NullString
	if lastError != "" {
		lastErr = sql.NullString{String: lastError, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		UPDATE corp_processing
		SET processed_status = ?, failed_event_id = ?, last_error = ?, claimed_at = NULL, updated_at = ?
		WHERE corp_num = ? AND flow_name = ? AND environment = ? AND run_id = ?
	`), string(status), failed, lastErr, now, corpNum, scope.FlowName, scope.Environment, runID)
	if err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish: rows affected: %w", err)
	}
	if n == 0 {
		return errs.New(errs.KindAlreadyClaimed, "claim lost before finish").At(corpNum, 0)
	}
	return nil
}

// Reset releases a stuck claim so the next run resumes from the stored
// watermark. Only PROCESSING and FAILED rows are touched; the watermark
// itself never moves. Returns false if there was nothing to reset.
func (s *Store) Reset(ctx context.Context, scope Scope, corpNum string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		UPDATE corp_processing
		SET processed_status = ?, run_id = NULL, claimed_at = NULL, last_error = ?, updated_at = ?
		WHERE corp_num = ? AND flow_name = ? AND environment = ?
		AND processed_status IN (?, ?)
	`), string(StatusFailed), "reset by operator", now,
		corpNum, scope.FlowName, scope.Environment,
		string(StatusProcessing), string(StatusFailed))
	if err != nil {
		return false, fmt.Errorf("reset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reset: rows affected: %w", err)
	}
	return n > 0, nil
}

// Skips lists the skipped events of a corporation in event order.
func (s *Store) Skips(ctx context.Context, scope Scope, corpNum string) ([]Skip, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
		SELECT event_id, error_kind, reason
		FROM corp_event_skips
		WHERE corp_num = ? AND flow_name = ? AND environment = ?
		ORDER BY event_id ASC
	`), corpNum, scope.FlowName, scope.Environment)
	if err != nil {
		return nil, fmt.Errorf("query skips: %w", err)
	}
	defer rows.Close()

	out := []Skip{}
	for rows.Next() {
		var sk Skip
		if err := rows.Scan(&sk.EventID, &sk.ErrorKind, &sk.Reason); err != nil {
			return nil, fmt.Errorf("scan skip: %w", err)
		}
		out = append(out, sk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate skips: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatermark(row rowScanner) (*Watermark, error) {
	var wm Watermark
	var status string
	var last, failed sql.NullInt64
	var lastErr, runID sql.NullString
	var claimed sql.NullTime

	if err := row.Scan(
		&wm.CorpNum, &wm.FlowName, &wm.Environment, &status,
		&last, &failed, &lastErr, &runID, &claimed, &wm.UpdatedAt,
	); err != nil {
		return nil, err
	}

	wm.Status = Status(status)
	if last.Valid {
		v := last.Int64
		wm.LastProcessedEventID = &v
	}
	if failed.Valid {
		v := failed.Int64
		wm.FailedEventID = &v
	}
	wm.LastError = lastErr.String
	wm.RunID = runID.String
	if claimed.Valid {
		v := claimed.Time
		wm.ClaimedAt = &v
	}
	return &wm, nil
}
