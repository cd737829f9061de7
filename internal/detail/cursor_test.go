package detail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siftlog/sift/internal/errors"
)

var cursorSecret = []byte("cursor-test-secret")

func TestCursor_Roundtrip(t *testing.T) {
	in := Cursor{ProjectID: "p1", EventName: "login", LastTS: 1700000000000000000, LastSeq: 42}

	token := EncodeCursor(cursorSecret, in)
	out, err := DecodeCursor(cursorSecret, token, "p1", "login")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCursor_Opaque(t *testing.T) {
	token := EncodeCursor(cursorSecret, Cursor{ProjectID: "p1", EventName: "login", LastTS: 5, LastSeq: 1})
	assert.NotContains(t, token, "login")
	assert.NotContains(t, token, " ")
}

func TestCursor_RejectsMalformed(t *testing.T) {
	for _, token := range []string{"", "nodot", "a.b.c!!!", "%%%.###", "YWJj."} {
		_, err := DecodeCursor(cursorSecret, token, "p1", "login")
		require.Error(t, err, "token %q", token)
		assert.Equal(t, errors.CodeInvalidCursor, errors.GetCode(err))
	}
}

func TestCursor_RejectsTampered(t *testing.T) {
	token := EncodeCursor(cursorSecret, Cursor{ProjectID: "p1", EventName: "login", LastTS: 5, LastSeq: 1})

	// Flip a character in the payload half.
	b := []byte(token)
	if b[0] == 'A' {
		b[0] = 'B'
	} else {
		b[0] = 'A'
	}
	_, err := DecodeCursor(cursorSecret, string(b), "p1", "login")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidCursor, errors.GetCode(err))
}

func TestCursor_RejectsWrongSecret(t *testing.T) {
	token := EncodeCursor(cursorSecret, Cursor{ProjectID: "p1", EventName: "login", LastTS: 5, LastSeq: 1})

	_, err := DecodeCursor([]byte("other-secret"), token, "p1", "login")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidCursor, errors.GetCode(err))
}

func TestCursor_BoundToStream(t *testing.T) {
	token := EncodeCursor(cursorSecret, Cursor{ProjectID: "p1", EventName: "login", LastTS: 5, LastSeq: 1})

	_, err := DecodeCursor(cursorSecret, token, "p2", "login")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidCursor, errors.GetCode(err))

	_, err = DecodeCursor(cursorSecret, token, "p1", "click")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidCursor, errors.GetCode(err))
}
