package linkgraph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultdb/vaultdb/internal/linkgraph"
)

func TestRewriteWikilinksByTitlePreservesCustomDisplay(t *testing.T) {
	body := "See [[Old Title]] and [[Old Title|My Custom Display]] and [[Other]]."

	out, n := linkgraph.RewriteWikilinksByTitle(body, "Old Title", "New Title")

	require.Equal(t, 2, n)
	require.Equal(t, "See [[New Title]] and [[New Title|My Custom Display]] and [[Other]].", out)
}

func TestRewriteWikilinksByTitleNoMatchIsNoop(t *testing.T) {
	body := "See [[Something Else]]."

	out, n := linkgraph.RewriteWikilinksByTitle(body, "Old Title", "New Title")

	require.Equal(t, 0, n)
	require.Equal(t, body, out)
}

func TestRewriteWikilinksByTitleSameTitleIsNoop(t *testing.T) {
	body := "See [[Same]]."

	out, n := linkgraph.RewriteWikilinksByTitle(body, "Same", "Same")

	require.Equal(t, 0, n)
	require.Equal(t, body, out)
}

func TestRewriteTypeFilenamePrefixExactMatchOnly(t *testing.T) {
	body := "See [[projects/alpha]] and [[projects/alpha.md|Alpha]] and [[projects/alpha-2]]."

	out, n := linkgraph.RewriteTypeFilenamePrefix(body, "projects", "alpha", "projects", "beta")

	require.Equal(t, 2, n)
	require.Equal(t, "See [[projects/beta]] and [[projects/beta.md|Alpha]] and [[projects/alpha-2]].", out)
}

func TestRewriteTypeFilenamePrefixChangesType(t *testing.T) {
	body := "[[notes/idea]]"

	out, n := linkgraph.RewriteTypeFilenamePrefix(body, "notes", "idea", "archive", "idea")

	require.Equal(t, 1, n)
	require.Equal(t, "[[archive/idea]]", out)
}
