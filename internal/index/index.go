package index

import (
	"context"
	"database/sql"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/siftlog/sift/internal/errors"
	"github.com/siftlog/sift/internal/router"
	"github.com/siftlog/sift/internal/store"
	"github.com/siftlog/sift/pkg/types"
)

// Index owns the append-only event log for all projects and keeps the
// derived summaries consistent with it.
type Index struct {
	db        *store.DB
	summaries *SummaryIndex
	logger    *zap.Logger
	notifier  *router.Notifier
}

// Open creates an Index over the given database and rebuilds the
// summary aggregates from the live log.
func Open(ctx context.Context, db *store.DB, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ix := &Index{
		db:        db,
		summaries: NewSummaryIndex(),
		logger:    logger,
	}
	if err := ix.recover(ctx); err != nil {
		return nil, err
	}
	return ix, nil
}

// recover scans the live log and rebuilds every (project, name)
// aggregate. Run once at startup, before the index serves requests.
func (ix *Index) recover(ctx context.Context) error {
	rebuilt := 0
	err := ix.db.Read(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT project_id, name, COUNT(*), MAX(ts)
			  FROM events
			 GROUP BY project_id, name`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var projectID, name string
			var count, lastSeen int64
			if err := rows.Scan(&projectID, &name, &count, &lastSeen); err != nil {
				return err
			}
			ix.summaries.Replace(projectID, name, count, lastSeen)
			rebuilt++
		}
		return rows.Err()
	})
	if err != nil {
		return err
	}
	ix.logger.Info("summary index rebuilt", zap.Int("keys", rebuilt))
	return nil
}

// Ingest appends the record to the project's log and atomically updates
// the corresponding summary. Safe under concurrent ingestion: the log
// append is serialized by the single-writer connection and the summary
// update by the key's stripe lock.
func (ix *Index) Ingest(ctx context.Context, rec types.Record) error {
	if rec.ProjectID == "" {
		return errors.NewValidationError(errors.CodeInvalidRequest, "project_id is required")
	}
	if rec.Name == "" {
		return errors.NewValidationError(errors.CodeInvalidRequest, "event name is required")
	}
	if rec.Timestamp <= 0 {
		return errors.NewValidationError(errors.CodeInvalidRequest, "timestamp must be positive nanoseconds")
	}

	attrs := rec.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	payload, err := json.Marshal(attrs)
	if err != nil {
		return errors.NewInternalError("failed to encode attributes", err)
	}

	err = ix.db.Write(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO events (project_id, name, ts, attributes) VALUES (?, ?, ?, ?)`,
			rec.ProjectID, rec.Name, rec.Timestamp, string(payload))
		return err
	})
	if err != nil {
		return err
	}

	// The summary is only updated after the append succeeds, so count
	// never exceeds the stored records.
	ix.summaries.Record(rec.ProjectID, rec.Name, rec.Timestamp)
	ix.notify(router.Notification{
		Type:      router.EventAppended,
		ProjectID: rec.ProjectID,
		EventName: rec.Name,
		Timestamp: rec.Timestamp,
	})
	return nil
}

// SetNotifier attaches a lifecycle notification bus. Must be called
// before the index starts serving requests.
func (ix *Index) SetNotifier(n *router.Notifier) {
	ix.notifier = n
}

func (ix *Index) notify(notif router.Notification) {
	if ix.notifier != nil {
		ix.notifier.Publish(notif)
	}
}

// Summaries returns a snapshot of the project's event summaries sorted
// by last-seen descending. Reflects all ingests that completed before
// the call started; concurrent ingests may or may not be visible.
func (ix *Index) Summaries(_ context.Context, projectID string) []types.Summary {
	return ix.summaries.Snapshot(projectID)
}

// Summary returns the aggregate for one event name.
func (ix *Index) Summary(projectID, name string) (types.Summary, bool) {
	return ix.summaries.Get(projectID, name)
}

// DB exposes the underlying store for read-only collaborators (search,
// detail retrieval).
func (ix *Index) DB() *store.DB {
	return ix.db
}

// rebuildKeys recomputes the aggregates for specific keys from the live
// log. Called by the retention daemon after deleting archived rows.
func (ix *Index) rebuildKeys(ctx context.Context, projectID string, names []string) error {
	for _, name := range names {
		var count, lastSeen int64
		err := ix.db.Read(ctx, func(ctx context.Context, db *sql.DB) error {
			return db.QueryRowContext(ctx,
				`SELECT COUNT(*), COALESCE(MAX(ts), 0) FROM events WHERE project_id = ? AND name = ?`,
				projectID, name,
			).Scan(&count, &lastSeen)
		})
		if err != nil {
			return err
		}
		ix.summaries.Replace(projectID, name, count, lastSeen)
	}
	return nil
}
