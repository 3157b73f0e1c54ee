package hashing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoteHash_IsDeterministicAndPrefixed(t *testing.T) {
	h1 := NoteHash([]byte("---\ntitle: x\n---\nbody\n"))
	h2 := NoteHash([]byte("---\ntitle: x\n---\nbody\n"))

	require.Equal(t, h1, h2)
	require.True(t, strings.HasPrefix(h1, "sha256:"))
}

func TestNoteHash_DiffersOnByteChange(t *testing.T) {
	h1 := NoteHash([]byte("body\n"))
	h2 := NoteHash([]byte("body"))

	require.NotEqual(t, h1, h2)
}

func TestNoteTypeHash_Deterministic(t *testing.T) {
	in := NoteTypeInput{Description: "d", AgentInstructions: "a"}

	h1, err := NoteTypeHash(in)
	require.NoError(t, err)

	h2, err := NoteTypeHash(in)
	require.NoError(t, err)

	require.Equal(t, h1, h2)
}

func TestNoteTypeHash_EqualFieldListsHashEqual(t *testing.T) {
	in1 := NoteTypeInput{Fields: []NoteTypeField{{Name: "a", Type: "string"}, {Name: "b", Type: "number"}}}
	in2 := NoteTypeInput{Fields: []NoteTypeField{{Name: "a", Type: "string"}, {Name: "b", Type: "number"}}}

	h1, err := NoteTypeHash(in1)
	require.NoError(t, err)

	h2, err := NoteTypeHash(in2)
	require.NoError(t, err)

	require.Equal(t, h1, h2)
}
