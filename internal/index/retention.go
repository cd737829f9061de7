package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siftlog/sift/internal/router"
	"github.com/siftlog/sift/internal/storage"
	"github.com/siftlog/sift/pkg/types"
)

// RetentionConfig holds configuration for the retention daemon.
type RetentionConfig struct {
	// TTL is the age after which records leave the live index.
	TTL time.Duration

	// CheckInterval is how often the daemon scans for expired records.
	CheckInterval time.Duration

	// BatchSize is the max records archived per project per cycle.
	BatchSize int

	// WorkDir is the temporary directory for segment assembly.
	WorkDir string
}

// Retention archives aged records out of the live event log into
// snappy-compressed segments in object storage, then deletes them and
// rebuilds the affected summaries. The archive catalog records every
// uploaded segment.
type Retention struct {
	cfg    RetentionConfig
	ix     *Index
	store  storage.ObjectStorage
	logger *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// now is the clock; overridden in tests.
	now func() time.Time
}

// NewRetention creates a retention daemon.
func NewRetention(cfg RetentionConfig, ix *Index, store storage.ObjectStorage, logger *zap.Logger) *Retention {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retention{
		cfg:    cfg,
		ix:     ix,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Start launches the background loop. Returns an error if already
// running.
func (r *Retention) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("retention daemon already running")
	}
	r.running = true

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.loop(ctx)
	return nil
}

// Stop signals the loop to exit and waits for it.
func (r *Retention) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	cancel()
	<-done
}

func (r *Retention) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			archived, err := r.RunOnce(ctx)
			if err != nil {
				r.logger.Error("retention cycle failed", zap.Error(err))
				continue
			}
			if archived > 0 {
				r.logger.Info("retention cycle complete", zap.Int("archived", archived))
			}
		}
	}
}

// RunOnce archives one batch of expired records per project and returns
// the total number of records archived.
func (r *Retention) RunOnce(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.cfg.TTL).UnixNano()

	var projectIDs []string
	err := r.ix.db.Read(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT DISTINCT project_id FROM events WHERE ts < ?`, cutoff)
		if err != nil {
			return err
		}
		defer rows.Close()

		projectIDs = projectIDs[:0]
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			projectIDs = append(projectIDs, id)
		}
		return rows.Err()
	})
	if err != nil {
		return 0, err
	}

	total := 0
	for _, projectID := range projectIDs {
		n, err := r.archiveProject(ctx, projectID, cutoff)
		if err != nil {
			return total, fmt.Errorf("archive project %s: %w", projectID, err)
		}
		total += n
	}
	return total, nil
}

// archiveProject moves one batch of a project's expired records into a
// segment. Order of operations: write segment, upload, register in the
// catalog, delete the rows, rebuild summaries. A crash between upload
// and delete leaves duplicate data in the archive, never data loss.
func (r *Retention) archiveProject(ctx context.Context, projectID string, cutoff int64) (int, error) {
	var records []types.Record
	var maxSeq int64
	names := map[string]struct{}{}

	err := r.ix.db.Read(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT seq, name, ts, attributes
			  FROM events
			 WHERE project_id = ? AND ts < ?
			 ORDER BY seq
			 LIMIT ?`,
			projectID, cutoff, r.cfg.BatchSize)
		if err != nil {
			return err
		}
		defer rows.Close()

		records = records[:0]
		for rows.Next() {
			var rec types.Record
			var attrs string
			if err := rows.Scan(&rec.Seq, &rec.Name, &rec.Timestamp, &attrs); err != nil {
				return err
			}
			rec.ProjectID = projectID
			rec.Attributes = decodeAttributes(attrs)
			records = append(records, rec)
			names[rec.Name] = struct{}{}
			if rec.Seq > maxSeq {
				maxSeq = rec.Seq
			}
		}
		return rows.Err()
	})
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	segmentID := uuid.NewString()
	localPath := filepath.Join(r.cfg.WorkDir, segmentID+".seg")
	defer os.Remove(localPath)

	size, err := WriteSegment(localPath, records)
	if err != nil {
		return 0, err
	}

	objectPath := fmt.Sprintf("archive/%s/%s.seg", projectID, segmentID)
	if err := r.store.Upload(ctx, localPath, objectPath); err != nil {
		return 0, fmt.Errorf("segment upload: %w", err)
	}

	minTS, maxTS := records[0].Timestamp, records[0].Timestamp
	for _, rec := range records[1:] {
		if rec.Timestamp < minTS {
			minTS = rec.Timestamp
		}
		if rec.Timestamp > maxTS {
			maxTS = rec.Timestamp
		}
	}

	err = r.ix.db.Write(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO archive_segments
				(segment_id, project_id, object_path, min_ts, max_ts, record_count, size_bytes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			segmentID, projectID, objectPath, minTS, maxTS, len(records), size, r.now().UnixNano(),
		); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM events WHERE project_id = ? AND ts < ? AND seq <= ?`,
			projectID, cutoff, maxSeq,
		); err != nil {
			return err
		}

		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}

	nameList := make([]string, 0, len(names))
	for name := range names {
		nameList = append(nameList, name)
	}
	if err := r.ix.rebuildKeys(ctx, projectID, nameList); err != nil {
		return len(records), err
	}

	r.ix.notify(router.Notification{
		Type:        router.SegmentArchived,
		ProjectID:   projectID,
		SegmentID:   segmentID,
		RecordCount: int64(len(records)),
		Timestamp:   maxTS,
	})
	r.logger.Info("archived segment",
		zap.String("project", projectID),
		zap.String("segment", segmentID),
		zap.Int("records", len(records)),
		zap.Int64("bytes", size))
	return len(records), nil
}

// decodeAttributes parses the stored JSON attribute payload, returning
// an empty map on malformed data rather than failing the archive.
func decodeAttributes(s string) map[string]string {
	out := map[string]string{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}
