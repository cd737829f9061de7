// Package project implements the project registry: it maps opaque
// project IDs to display metadata and gates all project-scoped
// operations on subject membership. Projects are administered
// externally; the registry is read-only on the request path.
package project

import (
	"context"
	"crypto/subtle"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/siftlog/sift/internal/errors"
	"github.com/siftlog/sift/internal/store"
	"github.com/siftlog/sift/pkg/types"
)

// Registry provides project lookup and authorization checks.
type Registry struct {
	db *store.DB
}

// NewRegistry creates a registry backed by the sift database.
func NewRegistry(db *store.DB) *Registry {
	return &Registry{db: db}
}

// ListProjects returns the projects the subject is authorized for,
// ordered by name then ID so the ordering is deterministic.
func (r *Registry) ListProjects(ctx context.Context, subject types.Subject) ([]types.Project, error) {
	var projects []types.Project
	err := r.db.Read(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT p.id, p.name
			  FROM projects p
			  JOIN project_members m ON m.project_id = p.id
			 WHERE m.subject_id = ?
			 ORDER BY p.name, p.id`,
			subject.ID)
		if err != nil {
			return err
		}
		defer rows.Close()

		projects = projects[:0]
		for rows.Next() {
			var p types.Project
			if err := rows.Scan(&p.ID, &p.Name); err != nil {
				return err
			}
			projects = append(projects, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []types.Project{}
	}
	return projects, nil
}

// Authorize checks that the subject is a member of the project. It
// fails closed: unknown projects, missing membership, and lookup
// ambiguity all deny with ACCESS_DENIED, revealing nothing about
// whether the project exists.
func (r *Registry) Authorize(ctx context.Context, subject types.Subject, projectID string) error {
	if subject.ID == "" || projectID == "" {
		return errors.NewAccessDenied("project access denied")
	}

	var member bool
	err := r.db.Read(ctx, func(ctx context.Context, db *sql.DB) error {
		return db.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM project_members
				 WHERE project_id = ? AND subject_id = ?
			)`,
			projectID, subject.ID,
		).Scan(&member)
	})
	if err != nil {
		if errors.IsRetryable(err) {
			return err
		}
		return errors.NewAccessDenied("project access denied")
	}
	if !member {
		return errors.NewAccessDenied("project access denied")
	}
	return nil
}

// VerifyAPIKey checks the project's ingestion API key with a
// constant-time comparison. Unknown projects and wrong keys both deny.
func (r *Registry) VerifyAPIKey(ctx context.Context, projectID, apiKey string) error {
	if projectID == "" || apiKey == "" {
		return errors.NewAccessDenied("invalid api key")
	}

	var stored string
	err := r.db.Read(ctx, func(ctx context.Context, db *sql.DB) error {
		return db.QueryRowContext(ctx,
			`SELECT api_key FROM projects WHERE id = ?`, projectID,
		).Scan(&stored)
	})
	if stderrors.Is(err, sql.ErrNoRows) {
		// Compare anyway so unknown projects cost the same.
		subtle.ConstantTimeCompare([]byte(apiKey), []byte(apiKey))
		return errors.NewAccessDenied("invalid api key")
	}
	if err != nil {
		if errors.IsRetryable(err) {
			return err
		}
		return errors.NewAccessDenied("invalid api key")
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(apiKey)) != 1 {
		return errors.NewAccessDenied("invalid api key")
	}
	return nil
}

// Create provisions a new project. Used by the admin tool.
func (r *Registry) Create(ctx context.Context, p types.Project, apiKey string) error {
	return r.db.Write(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO projects (id, name, api_key, created_at) VALUES (?, ?, ?, ?)`,
			p.ID, p.Name, apiKey, time.Now().UnixNano())
		return err
	})
}

// Grant adds a subject to a project's member set. Used by the admin tool.
func (r *Registry) Grant(ctx context.Context, projectID, subjectID string) error {
	return r.db.Write(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO project_members (project_id, subject_id) VALUES (?, ?)`,
			projectID, subjectID)
		return err
	})
}
