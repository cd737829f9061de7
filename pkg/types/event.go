// Package types provides core data types shared across Sift components.
package types

// Record is a single event occurrence in a project's append-only log.
type Record struct {
	// ProjectID identifies the project the event belongs to
	ProjectID string `json:"project_id"`

	// Name is the event name key (e.g., "login", "click")
	Name string `json:"name"`

	// Timestamp is the Unix timestamp (nanoseconds) when the event occurred
	Timestamp int64 `json:"timestamp"`

	// Seq is the insertion ordinal, used as a tiebreak for identical timestamps.
	// Assigned by the index on ingest; zero before the record is stored.
	Seq int64 `json:"seq,omitempty"`

	// Attributes contains the event-specific key/value payload
	Attributes map[string]string `json:"attributes"`
}

// Summary is the derived aggregate for one event name within a project:
// the occurrence count and the maximum timestamp among its records.
type Summary struct {
	Name     string `json:"name"`
	Count    int64  `json:"count"`
	LastSeen int64  `json:"last_seen"`
}

// Project maps an opaque project ID to its display metadata.
// Projects are administered externally; read-only to this system.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Subject is the authenticated identity bound to a session token.
type Subject struct {
	ID       string
	Username string
}
