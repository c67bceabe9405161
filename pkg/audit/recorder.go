package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harborlight/beacon/pkg/observability"
)

// Recorder accepts audit entries. Record never returns an error: the
// mutation being audited must not fail because the trail could not be
// written.
type Recorder interface {
	Record(ctx context.Context, entry *Entry)
}

// DBRecorder persists audit entries to PostgreSQL.
type DBRecorder struct {
	db      *sql.DB
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewDBRecorder creates a recorder and ensures the audit_log table
// exists. metrics may be nil.
func NewDBRecorder(db *sql.DB, logger *observability.Logger, metrics *observability.Metrics) (*DBRecorder, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	r := &DBRecorder{db: db, logger: logger, metrics: metrics}
	if err := r.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_log table: %w", err)
	}
	return r, nil
}

func (r *DBRecorder) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_log (
		id BIGSERIAL PRIMARY KEY,
		actor_id UUID NOT NULL,
		actor_email VARCHAR(255) NOT NULL DEFAULT '',
		action VARCHAR(100) NOT NULL,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_log_actor_id ON audit_log(actor_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	`

	_, err := r.db.Exec(query)
	return err
}

// Record writes one entry. Failures are logged and counted, never
// surfaced to the caller.
func (r *DBRecorder) Record(ctx context.Context, entry *Entry) {
	if err := r.insert(ctx, entry); err != nil {
		if r.metrics != nil {
			r.metrics.AuditWriteFailuresTotal.Inc()
		}
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"action":   string(entry.Action),
			"actor_id": entry.ActorID,
		}).Error("failed to record audit entry")
		return
	}

	if r.metrics != nil {
		r.metrics.AuditEntriesTotal.WithLabelValues(string(entry.Action)).Inc()
	}
}

func (r *DBRecorder) insert(ctx context.Context, entry *Entry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_log (actor_id, actor_email, action, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		entry.ActorID, entry.ActorEmail, string(entry.Action), metadataJSON,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// List returns audit entries matching the filter, newest first. Only
// holders of the top-scope role may reach this through the API.
func (r *DBRecorder) List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, error) {
	query := `SELECT id, actor_id, actor_email, action, metadata, created_at FROM audit_log WHERE 1=1`
	var args []interface{}
	argCount := 1

	if f.ActorID != "" {
		query += fmt.Sprintf(" AND actor_id = $%d", argCount)
		args = append(args, f.ActorID)
		argCount++
	}
	if f.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argCount)
		args = append(args, string(f.Action))
		argCount++
	}
	if !f.Since.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, f.Since)
		argCount++
	}
	if !f.Until.IsZero() {
		query += fmt.Sprintf(" AND created_at < $%d", argCount)
		args = append(args, f.Until)
		argCount++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			e            Entry
			action       string
			metadataJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorEmail, &action, &metadataJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = Action(action)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

// PurgeBefore deletes entries older than the cutoff and returns how
// many were removed. Driven by the retention job.
func (r *DBRecorder) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit entries: %w", err)
	}
	return n, nil
}
