package detail

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/siftlog/sift/internal/errors"
)

// Cursor marks a position in a descending (ts, seq) walk over one
// event class. Cursors are opaque to clients: the payload is signed so
// tampered or foreign cursors are rejected rather than silently
// returning wrong pages.
type Cursor struct {
	ProjectID string `json:"p"`
	EventName string `json:"e"`
	LastTS    int64  `json:"t"`
	LastSeq   int64  `json:"s"`
}

func cursorSign(secret, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

// EncodeCursor serializes and signs a cursor. The token format is
// base64url(payload) "." base64url(signature).
func EncodeCursor(secret []byte, c Cursor) string {
	payload, _ := json.Marshal(c)
	sig := cursorSign(secret, payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(sig)
}

// DecodeCursor verifies and parses a cursor token. The caller's
// project and event name must match the pair the cursor was issued
// for; a cursor is never valid outside the stream it came from.
func DecodeCursor(secret []byte, token, projectID, eventName string) (Cursor, error) {
	var c Cursor

	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return c, errors.NewValidationError(errors.CodeInvalidCursor, "malformed cursor")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return c, errors.NewValidationError(errors.CodeInvalidCursor, "malformed cursor")
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return c, errors.NewValidationError(errors.CodeInvalidCursor, "malformed cursor")
	}
	want := cursorSign(secret, payload)
	if subtle.ConstantTimeCompare(sig, want) != 1 {
		return c, errors.NewValidationError(errors.CodeInvalidCursor, "cursor signature mismatch")
	}
	if err := json.Unmarshal(payload, &c); err != nil {
		return c, errors.NewValidationError(errors.CodeInvalidCursor, "malformed cursor")
	}
	if c.ProjectID != projectID || c.EventName != eventName {
		return c, errors.NewValidationError(errors.CodeInvalidCursor, "cursor does not match request")
	}
	return c, nil
}
