// Package search implements the hybrid search surface: full-text and
// regex search, advanced structured search over the typed metadata
// table, the ad-hoc SQL passthrough, and the filesystem index rebuild.
// Filters translate to SQL; scoring and snippets run in Go over the
// candidate set the index narrows down.
package search

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/store"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
	"github.com/vaultdb/vaultdb/internal/vfs"
	"github.com/vaultdb/vaultdb/internal/vlog"
	"github.com/vaultdb/vaultdb/internal/workspace"
)

// Weights for full-text scoring: a term hit in the title outweighs one
// in the tags, which outweighs one in the body. Exact whole-word
// matches earn a bonus on top of the substring count.
const (
	weightTitle    = 10
	weightTags     = 8
	weightContent  = 2
	bonusExactWord = 5

	regexWeightTitle   = 10
	regexWeightTags    = 5
	regexWeightContent = 3

	snippetRadius = 80
)

// Searcher answers queries for one vault.
type Searcher struct {
	ws  *workspace.Workspace
	db  *store.Store
	fs  vfs.FS
	log *vlog.Logger

	rebuildMu sync.Mutex
}

// New builds a Searcher. log may be nil (discards).
func New(ws *workspace.Workspace, db *store.Store, log *vlog.Logger) *Searcher {
	if log == nil {
		log = vlog.Discard()
	}

	return &Searcher{ws: ws, db: db, fs: vfs.NewReal(), log: log}
}

// Result is one scored search hit.
type Result struct {
	Note    model.Note
	Score   float64
	Snippet string
}

// SearchNotes runs a basic search. An empty query returns all notes
// ordered by updated descending. Otherwise the query is matched via
// the full-text index (or, with useRegex, applied as a regex over
// title, body, and tags) and results are scored and sorted by score.
func (s *Searcher) SearchNotes(ctx context.Context, query, typeFilter string, limit int, useRegex bool) ([]Result, error) {
	query = strings.TrimSpace(query)

	if query == "" {
		notes, err := s.db.ListAll(ctx, typeFilter, limit)
		if err != nil {
			return nil, err
		}

		results := make([]Result, len(notes))
		for i, n := range notes {
			results[i] = Result{Note: n}
		}

		return results, nil
	}

	if useRegex {
		return s.searchRegex(ctx, query, typeFilter, limit)
	}

	return s.searchFullText(ctx, query, typeFilter, limit)
}

func (s *Searcher) searchFullText(ctx context.Context, query, typeFilter string, limit int) ([]Result, error) {
	ids, err := s.ftsCandidates(ctx, query)
	if err != nil {
		return nil, err
	}

	terms := strings.Fields(strings.ToLower(query))

	var results []Result

	for _, id := range ids {
		note, err := s.db.GetNote(ctx, id)
		if err != nil {
			if vaulterr.KindOf(err) == vaulterr.KindNotFound {
				continue
			}

			return nil, err
		}

		if typeFilter != "" && note.Type != typeFilter {
			continue
		}

		score := scoreNote(note, terms)
		if score <= 0 {
			continue
		}

		results = append(results, Result{Note: note, Score: score, Snippet: snippet(note.Content, terms)})
	}

	sortAndTrim(&results, limit)

	return results, nil
}

func (s *Searcher) ftsCandidates(ctx context.Context, query string) ([]string, error) {
	var ids []string

	err := s.db.QueryTx(func() error {
		rows, qerr := s.db.DB().QueryContext(ctx,
			"SELECT note_id FROM notes_fts WHERE notes_fts MATCH ?", ftsQuote(query))
		if qerr != nil {
			return qerr
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}

			ids = append(ids, id)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, vaulterr.IndexError(err)
	}

	return ids, nil
}

// ftsQuote turns a free-text query into an FTS5 expression that cannot
// be misread as FTS syntax: each whitespace token becomes a quoted
// phrase with a prefix wildcard.
func ftsQuote(query string) string {
	fields := strings.Fields(query)
	quoted := make([]string, len(fields))

	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"*`
	}

	return strings.Join(quoted, " ")
}

func (s *Searcher) searchRegex(ctx context.Context, query, typeFilter string, limit int) ([]Result, error) {
	re, err := regexp.Compile(query)
	if err != nil {
		return nil, vaulterr.ValidationFailed("invalid regex: " + err.Error())
	}

	notes, err := s.db.ListAll(ctx, typeFilter, 0)
	if err != nil {
		return nil, err
	}

	var results []Result

	for _, note := range notes {
		var score float64

		if re.MatchString(note.Title) {
			score += regexWeightTitle
		}

		if re.MatchString(tagsText(note)) {
			score += regexWeightTags
		}

		if re.MatchString(note.Content) {
			score += regexWeightContent
		}

		if score <= 0 {
			continue
		}

		snip := ""
		if loc := re.FindStringIndex(note.Content); loc != nil {
			snip = window(note.Content, loc[0], loc[1])
		}

		results = append(results, Result{Note: note, Score: score, Snippet: snip})
	}

	sortAndTrim(&results, limit)

	return results, nil
}

func scoreNote(note model.Note, terms []string) float64 {
	title := strings.ToLower(note.Title)
	content := strings.ToLower(note.Content)
	tags := strings.ToLower(tagsText(note))

	var score float64

	for _, term := range terms {
		score += float64(strings.Count(title, term)) * weightTitle
		score += float64(strings.Count(tags, term)) * weightTags
		score += float64(strings.Count(content, term)) * weightContent

		if containsWord(title, term) || containsWord(content, term) {
			score += bonusExactWord
		}
	}

	return score
}

// containsWord reports whether text contains term bounded by non-word
// characters on both sides.
func containsWord(text, term string) bool {
	for idx := 0; ; {
		i := strings.Index(text[idx:], term)
		if i == -1 {
			return false
		}

		start := idx + i
		end := start + len(term)

		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])

		if beforeOK && afterOK {
			return true
		}

		idx = start + 1
		if idx >= len(text) {
			return false
		}
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}

func tagsText(note model.Note) string {
	v := note.Metadata["tags"]
	if v == nil || v.Kind != model.ValueArrayKind {
		return ""
	}

	return strings.Join(v.Arr, " ")
}

// snippet extracts a window around the first term occurrence in the
// note's content.
func snippet(content string, terms []string) string {
	lower := strings.ToLower(content)

	for _, term := range terms {
		if i := strings.Index(lower, term); i != -1 {
			return window(content, i, i+len(term))
		}
	}

	return ""
}

func window(content string, start, end int) string {
	from := start - snippetRadius
	if from < 0 {
		from = 0
	}

	to := end + snippetRadius
	if to > len(content) {
		to = len(content)
	}

	out := strings.TrimSpace(content[from:to])

	if from > 0 {
		out = "…" + out
	}

	if to < len(content) {
		out += "…"
	}

	return out
}

func sortAndTrim(results *[]Result, limit int) {
	rs := *results

	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Score != rs[j].Score {
			return rs[i].Score > rs[j].Score
		}

		return rs[i].Note.Updated.After(rs[j].Note.Updated)
	})

	if limit > 0 && len(rs) > limit {
		rs = rs[:limit]
	}

	*results = rs
}

// SearchNotesSQL is the thin wrapper over the store's read-only SQL
// evaluator.
func (s *Searcher) SearchNotesSQL(ctx context.Context, in store.SQLQueryInput) (store.SQLQueryResult, error) {
	return s.db.ExecuteSQL(ctx, in)
}
