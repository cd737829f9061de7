// Package auth implements credential verification and session token
// issuance. Tokens are HS256 JWTs with a fixed TTL; credentials are
// bcrypt hashes provisioned out of band.
package auth

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/siftlog/sift/internal/store"
)

// Credential is a stored login identity. The hash is bcrypt; the raw
// secret is never stored or logged.
type Credential struct {
	Username     string
	PasswordHash string
	SubjectID    string
}

// Store provides read access to provisioned credentials.
type Store struct {
	db *store.DB
}

// NewStore creates a credential store backed by the sift database.
func NewStore(db *store.DB) *Store {
	return &Store{db: db}
}

// Lookup returns the credential for username, or (nil, nil) when the
// username is unknown. Storage failures surface as errors.
func (s *Store) Lookup(ctx context.Context, username string) (*Credential, error) {
	var cred Credential
	err := s.db.Read(ctx, func(ctx context.Context, db *sql.DB) error {
		return db.QueryRowContext(ctx,
			`SELECT username, password_hash, subject_id FROM credentials WHERE username = ?`,
			username,
		).Scan(&cred.Username, &cred.PasswordHash, &cred.SubjectID)
	})
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// Create provisions a new credential. Used by the admin tool, not the
// request path.
func (s *Store) Create(ctx context.Context, cred *Credential) error {
	return s.db.Write(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO credentials (username, password_hash, subject_id, created_at) VALUES (?, ?, ?, ?)`,
			cred.Username, cred.PasswordHash, cred.SubjectID, time.Now().UnixNano())
		return err
	})
}
