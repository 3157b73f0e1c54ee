package linkgraph

import (
	"regexp"
	"strings"
)

// RewriteWikilinksByTitle rewrites every "[[oldTitle]]" or
// "[[oldTitle|display]]" token in body so the target reads newTitle.
// An explicit custom display ("[[Old|Custom]]" where Custom != Old) is
// preserved as-is; only the target token itself is replaced. Returns
// the rewritten body and how many tokens changed.
func RewriteWikilinksByTitle(body, oldTitle, newTitle string) (string, int) {
	if oldTitle == "" || oldTitle == newTitle {
		return body, 0
	}

	pattern := regexp.MustCompile(`\[\[` + regexp.QuoteMeta(oldTitle) + `(\|[^\]]*)?\]\]`)

	count := 0

	out := pattern.ReplaceAllStringFunc(body, func(match string) string {
		count++

		sub := pattern.FindStringSubmatch(match)
		display := ""
		if len(sub) > 1 {
			display = sub[1]
		}

		return "[[" + newTitle + display + "]]"
	})

	return out, count
}

// RewriteTypeFilenamePrefix rewrites wikilinks of the exact form
// "[[oldType/oldFilename...]]" (with or without a trailing ".md", with
// or without an explicit display) to use newType/newFilename. Only an
// exact-matching "type/filename" target is rewritten, never a partial
// path. Returns the rewritten body and how many tokens changed.
func RewriteTypeFilenamePrefix(body, oldType, oldFilename, newType, newFilename string) (string, int) {
	oldStem := strings.TrimSuffix(oldFilename, ".md")
	newStem := strings.TrimSuffix(newFilename, ".md")

	oldTarget := oldType + "/" + oldStem

	pattern := regexp.MustCompile(`\[\[` + regexp.QuoteMeta(oldTarget) + `(\.md)?(\|[^\]]*)?\]\]`)

	count := 0

	out := pattern.ReplaceAllStringFunc(body, func(match string) string {
		count++

		sub := pattern.FindStringSubmatch(match)
		ext := ""
		display := ""

		if len(sub) > 1 {
			ext = sub[1]
		}

		if len(sub) > 2 {
			display = sub[2]
		}

		return "[[" + newType + "/" + newStem + ext + display + "]]"
	})

	return out, count
}
