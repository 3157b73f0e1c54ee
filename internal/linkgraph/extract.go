// Package linkgraph parses wikilinks and external links out of a note
// body, resolves wikilink targets against the vault's notes, and
// maintains the link graph (store/clear/repair/rewrite-on-rename)
// through [internal/store]'s note_links/external_links tables.
//
// Extraction is line-oriented: each line is scanned for wikilink,
// markdown-link, image-embed, and bare-URL tokens, and line numbers in
// the result are 1-based.
package linkgraph

import (
	"regexp"
	"strings"

	"github.com/vaultdb/vaultdb/internal/model"
)

var (
	wikilinkRe   = regexp.MustCompile(`\[\[([^\]|]+)(?:\|([^\]]+))?\]\]`)
	mdLinkRe     = regexp.MustCompile(`!?\[([^\]]*)\]\(([a-zA-Z][a-zA-Z0-9+.-]*://[^\s)]+)\)`)
	bareURLRe    = regexp.MustCompile(`https?://[^\s)\]]+`)
)

// ExtractedLink is one unresolved wikilink token found in a body.
type ExtractedLink struct {
	TargetRaw  string // bare title or "type/filename"
	Display    string // explicit display text from "[[target|display]]", empty if none
	LineNumber int
}

// Extraction is the full result of parsing one note body.
type Extraction struct {
	Wikilinks []ExtractedLink
	External  []model.ExternalLink
}

// Extract parses body (already stripped of frontmatter) for wikilinks,
// markdown links, image embeds, and bare URLs, deduplicating external URLs document-wide (first occurrence
// keeps its title).
func Extract(body string) Extraction {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")

	var out Extraction

	seenExternal := make(map[string]bool)

	for i, line := range lines {
		lineNo := i + 1

		consumedRanges := extractWikilinksFromLine(line, lineNo, &out.Wikilinks)
		consumedRanges = append(consumedRanges, extractMarkdownLinksFromLine(line, lineNo, seenExternal, &out.External)...)
		extractBareURLsFromLine(line, lineNo, consumedRanges, seenExternal, &out.External)
	}

	return out
}

type byteRange struct{ start, end int }

func extractWikilinksFromLine(line string, lineNo int, out *[]ExtractedLink) []byteRange {
	matches := wikilinkRe.FindAllStringSubmatchIndex(line, -1)

	ranges := make([]byteRange, 0, len(matches))

	for _, m := range matches {
		target := strings.TrimSpace(line[m[2]:m[3]])

		display := ""
		if m[4] != -1 {
			display = strings.TrimSpace(line[m[4]:m[5]])
		}

		*out = append(*out, ExtractedLink{TargetRaw: target, Display: display, LineNumber: lineNo})
		ranges = append(ranges, byteRange{m[0], m[1]})
	}

	return ranges
}

func extractMarkdownLinksFromLine(line string, lineNo int, seen map[string]bool, out *[]model.ExternalLink) []byteRange {
	matches := mdLinkRe.FindAllStringSubmatchIndex(line, -1)

	ranges := make([]byteRange, 0, len(matches))

	for _, m := range matches {
		full := line[m[0]:m[1]]
		title := line[m[2]:m[3]]
		url := line[m[4]:m[5]]

		kind := model.LinkURL
		if strings.HasPrefix(full, "!") {
			kind = model.LinkImage
		}

		if !seen[url] {
			seen[url] = true
			*out = append(*out, model.ExternalLink{URL: url, Title: title, LineNumber: lineNo, Kind: kind})
		}

		ranges = append(ranges, byteRange{m[0], m[1]})
	}

	return ranges
}

func extractBareURLsFromLine(line string, lineNo int, consumed []byteRange, seen map[string]bool, out *[]model.ExternalLink) {
	matches := bareURLRe.FindAllStringIndex(line, -1)

	for _, m := range matches {
		if withinAny(m[0], m[1], consumed) {
			continue
		}

		url := line[m[0]:m[1]]

		if seen[url] {
			continue
		}

		seen[url] = true
		*out = append(*out, model.ExternalLink{URL: url, LineNumber: lineNo, Kind: model.LinkURL})
	}
}

func withinAny(start, end int, ranges []byteRange) bool {
	for _, r := range ranges {
		if start >= r.start && end <= r.end {
			return true
		}
	}

	return false
}
