// Package detail serves paginated record listings for a single event
// class, newest first.
package detail

import (
	"context"
	"database/sql"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/siftlog/sift/internal/errors"
	"github.com/siftlog/sift/internal/store"
	"github.com/siftlog/sift/pkg/types"
)

// Page is one window of an event class's records plus the cursor that
// continues the walk. NextCursor is empty on the last page.
type Page struct {
	Records    []types.Record
	NextCursor string
}

// Service pages through the records of one event class.
type Service struct {
	db       *store.DB
	secret   []byte
	pageSize int
	logger   *zap.Logger
}

// NewService creates a detail service. pageSize bounds how many
// records one page carries.
func NewService(db *store.DB, secret []byte, pageSize int, logger *zap.Logger) *Service {
	if pageSize <= 0 {
		pageSize = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, secret: secret, pageSize: pageSize, logger: logger}
}

// Records returns one page of the named event's records in descending
// (timestamp, seq) order. An empty cursor starts from the newest
// record; a non-empty cursor resumes a prior walk. Asking for an event
// class that has no records at all is NOT_FOUND, but an exhausted
// cursor on a class that did exist returns an empty final page.
func (s *Service) Records(ctx context.Context, projectID, eventName, cursor string) (Page, error) {
	if projectID == "" || eventName == "" {
		return Page{}, errors.NewValidationError(errors.CodeInvalidRequest,
			"project and event name are required")
	}

	var after *Cursor
	if cursor != "" {
		c, err := DecodeCursor(s.secret, cursor, projectID, eventName)
		if err != nil {
			return Page{}, err
		}
		after = &c
	}

	records, err := s.fetch(ctx, projectID, eventName, after)
	if err != nil {
		return Page{}, err
	}

	if len(records) == 0 {
		if after != nil {
			// The cursor was valid, the stream is just exhausted.
			return Page{Records: []types.Record{}}, nil
		}
		return Page{}, errors.NewNotFound("no records for event " + eventName)
	}

	page := Page{Records: records}
	if len(records) > s.pageSize {
		page.Records = records[:s.pageSize]
		last := page.Records[s.pageSize-1]
		page.NextCursor = EncodeCursor(s.secret, Cursor{
			ProjectID: projectID,
			EventName: eventName,
			LastTS:    last.Timestamp,
			LastSeq:   last.Seq,
		})
	}
	return page, nil
}

// fetch reads up to pageSize+1 records so the service can tell a full
// final page apart from one that has a successor.
func (s *Service) fetch(ctx context.Context, projectID, eventName string, after *Cursor) ([]types.Record, error) {
	query := `SELECT seq, ts, attributes FROM events
		WHERE project_id = ? AND name = ?`
	args := []interface{}{projectID, eventName}
	if after != nil {
		query += ` AND (ts < ? OR (ts = ? AND seq < ?))`
		args = append(args, after.LastTS, after.LastTS, after.LastSeq)
	}
	query += ` ORDER BY ts DESC, seq DESC LIMIT ?`
	args = append(args, s.pageSize+1)

	var records []types.Record
	err := s.db.Read(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		records = records[:0]
		for rows.Next() {
			rec := types.Record{ProjectID: projectID, Name: eventName}
			var attrs string
			if err := rows.Scan(&rec.Seq, &rec.Timestamp, &attrs); err != nil {
				return err
			}
			rec.Attributes = decodeAttrs(attrs)
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func decodeAttrs(s string) map[string]string {
	if s == "" {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
