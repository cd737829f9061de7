// Package search evaluates filter predicates against the event index
// and returns ranked event summaries.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/siftlog/sift/internal/errors"
	"github.com/siftlog/sift/internal/index"
	"github.com/siftlog/sift/internal/observability"
	"github.com/siftlog/sift/pkg/types"
)

// Filter maps attribute names to required values. An empty filter
// matches every event in the project. Events whose records lack a
// filtered attribute are excluded from results.
type Filter map[string]string

// attrKeyPattern bounds the attribute names a filter may reference.
var attrKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)

// Validate rejects malformed filters at the boundary.
func (f Filter) Validate() error {
	for key := range f {
		if !attrKeyPattern.MatchString(key) {
			return errors.NewValidationError(errors.CodeInvalidFilter,
				fmt.Sprintf("invalid filter attribute: %q", key))
		}
	}
	return nil
}

// Engine executes searches over a project's event index.
type Engine struct {
	ix     *index.Index
	stats  *observability.SearchStats
	logger *zap.Logger
}

// NewEngine creates a search engine over the index.
func NewEngine(ix *index.Index, stats *observability.SearchStats, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{ix: ix, stats: stats, logger: logger}
}

// Search returns the project's event summaries matching the filter,
// sorted by last-seen descending (name ascending on ties). This
// ordering is the contract consumers rely on for "most recently active
// first" views. Zero matches and empty projects return an empty slice,
// never an error.
func (e *Engine) Search(ctx context.Context, projectID string, filter Filter) ([]types.Summary, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	if len(filter) == 0 {
		return e.ix.Summaries(ctx, projectID), nil
	}

	if e.stats != nil {
		for key := range filter {
			e.stats.RecordFilter(key)
		}
	}
	return e.searchFiltered(ctx, projectID, filter)
}

// searchFiltered aggregates over the live log, matching each filtered
// attribute against the record's JSON payload. Counts and last-seen are
// computed over the matching records only.
func (e *Engine) searchFiltered(ctx context.Context, projectID string, filter Filter) ([]types.Summary, error) {
	// Deterministic clause order keeps query plans stable.
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(`SELECT name, COUNT(*), MAX(ts) FROM events WHERE project_id = ?`)
	args := []interface{}{projectID}
	for _, key := range keys {
		sb.WriteString(` AND json_extract(attributes, ?) = ?`)
		args = append(args, `$."`+key+`"`, filter[key])
	}
	sb.WriteString(` GROUP BY name`)

	var summaries []types.Summary
	err := e.ix.DB().Read(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, sb.String(), args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		summaries = summaries[:0]
		for rows.Next() {
			var s types.Summary
			if err := rows.Scan(&s.Name, &s.Count, &s.LastSeen); err != nil {
				return err
			}
			summaries = append(summaries, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].LastSeen != summaries[j].LastSeen {
			return summaries[i].LastSeen > summaries[j].LastSeen
		}
		return summaries[i].Name < summaries[j].Name
	})
	if summaries == nil {
		summaries = []types.Summary{}
	}
	return summaries, nil
}
