package linkgraph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultdb/vaultdb/internal/linkgraph"
	"github.com/vaultdb/vaultdb/internal/model"
)

func TestExtractWikilinks(t *testing.T) {
	body := "See [[Atomic Habits]] and [[reading/deep-work|Deep Work]].\nAlso [[Atomic Habits]] again."

	result := linkgraph.Extract(body)

	require.Len(t, result.Wikilinks, 3)
	require.Equal(t, "Atomic Habits", result.Wikilinks[0].TargetRaw)
	require.Equal(t, 1, result.Wikilinks[0].LineNumber)
	require.Equal(t, "reading/deep-work", result.Wikilinks[1].TargetRaw)
	require.Equal(t, "Deep Work", result.Wikilinks[1].Display)
	require.Equal(t, 2, result.Wikilinks[2].LineNumber)
}

func TestExtractMarkdownLinksAndImages(t *testing.T) {
	body := "A [site](https://example.com/a) and an image ![alt](https://example.com/b.png)."

	result := linkgraph.Extract(body)

	require.Len(t, result.External, 2)
	require.Equal(t, model.LinkURL, result.External[0].Kind)
	require.Equal(t, "site", result.External[0].Title)
	require.Equal(t, model.LinkImage, result.External[1].Kind)
}

func TestExtractBareURLNotInsideMarkdownLink(t *testing.T) {
	body := "Visit https://example.com/bare directly, or [text](https://example.com/wrapped)."

	result := linkgraph.Extract(body)

	require.Len(t, result.External, 2)

	urls := map[string]bool{}
	for _, e := range result.External {
		urls[e.URL] = true
	}

	require.True(t, urls["https://example.com/bare"])
	require.True(t, urls["https://example.com/wrapped"])
}

func TestExtractDeduplicatesExternalURLsKeepingFirstTitle(t *testing.T) {
	body := "[first](https://example.com/x)\n[second](https://example.com/x)"

	result := linkgraph.Extract(body)

	require.Len(t, result.External, 1)
	require.Equal(t, "first", result.External[0].Title)
}

func TestExtractFileSchemeIsExternal(t *testing.T) {
	body := "[local](file:///tmp/a.txt)"

	result := linkgraph.Extract(body)

	require.Len(t, result.External, 1)
	require.Equal(t, "file:///tmp/a.txt", result.External[0].URL)
}
