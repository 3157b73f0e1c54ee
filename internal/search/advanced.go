package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
)

// MetadataFilter is one structured predicate over a metadata key.
// Value carries the operand for scalar operators; Values carries the
// IN list.
type MetadataFilter struct {
	Key    string
	Op     string // one of = != > < >= <= LIKE IN
	Value  string
	Values []string
}

// AdvancedQuery is the structured search request. Duration fields
// accept forms like "7d", "36h", "45m", interpreted relative to now.
type AdvancedQuery struct {
	Type            string
	MetadataFilters []MetadataFilter
	UpdatedWithin   string
	UpdatedBefore   string
	CreatedWithin   string
	CreatedBefore   string
	ContentContains string
	TitleQuery      string
	Sort            string
	Limit           int
	Offset          int
	Fields          []string
}

// sortColumns whitelists the notes columns AdvancedQuery.Sort may
// reference; anything else is rejected rather than interpolated.
var sortColumns = map[string]string{
	"title":   "n.title",
	"type":    "n.type",
	"created": "n.created",
	"updated": "n.updated",
	"size":    "n.size",
}

var comparisonOps = map[string]bool{
	"=": true, "!=": true, ">": true, "<": true, ">=": true, "<=": true,
}

// SearchNotesAdvanced translates the structured query into SQL joins
// over notes and note_metadata and returns the matching notes. Numeric
// metadata comparisons cast through value_type so "rating >= 4" works
// on values stored as text.
func (s *Searcher) SearchNotesAdvanced(ctx context.Context, q AdvancedQuery) ([]model.Note, error) {
	query, args, err := s.buildAdvancedSQL(q)
	if err != nil {
		return nil, err
	}

	var ids []string

	seen := make(map[string]bool)

	err = s.db.QueryTx(func() error {
		rows, qerr := s.db.DB().QueryContext(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}

			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}

		return rows.Err()
	})
	if err != nil {
		return nil, vaulterr.IndexError(err)
	}

	notes := make([]model.Note, 0, len(ids))

	for _, id := range ids {
		note, err := s.db.GetNote(ctx, id)
		if err != nil {
			return nil, err
		}

		if len(q.Fields) > 0 {
			note = trimNote(note, q.Fields)
		}

		notes = append(notes, note)
	}

	return notes, nil
}

func (s *Searcher) buildAdvancedSQL(q AdvancedQuery) (string, []any, error) {
	var (
		joins  []string
		wheres []string
		args   []any
	)

	for i, f := range q.MetadataFilters {
		alias := fmt.Sprintf("m%d", i)
		joins = append(joins, fmt.Sprintf("JOIN note_metadata %s ON %s.note_id = n.id AND %s.key = ?", alias, alias, alias))
		args = append(args, f.Key)

		cond, condArgs, err := metadataCondition(alias, f)
		if err != nil {
			return "", nil, err
		}

		wheres = append(wheres, cond)
		args = append(args, condArgs...)
	}

	if q.Type != "" {
		wheres = append(wheres, "n.type = ?")
		args = append(args, q.Type)
	}

	now := time.Now().UTC()

	for _, tf := range []struct {
		spec   string
		column string
		op     string
	}{
		{q.UpdatedWithin, "n.updated", ">="},
		{q.UpdatedBefore, "n.updated", "<"},
		{q.CreatedWithin, "n.created", ">="},
		{q.CreatedBefore, "n.created", "<"},
	} {
		if tf.spec == "" {
			continue
		}

		dur, err := ParseDuration(tf.spec)
		if err != nil {
			return "", nil, err
		}

		wheres = append(wheres, fmt.Sprintf("datetime(%s) %s datetime(?)", tf.column, tf.op))
		args = append(args, now.Add(-dur).Format(time.RFC3339))
	}

	if q.ContentContains != "" {
		wheres = append(wheres, "n.content LIKE ?")
		args = append(args, "%"+q.ContentContains+"%")
	}

	if q.TitleQuery != "" {
		wheres = append(wheres, "n.title LIKE ?")
		args = append(args, "%"+q.TitleQuery+"%")
	}

	var b strings.Builder

	b.WriteString("SELECT n.id FROM notes n")

	for _, j := range joins {
		b.WriteString(" ")
		b.WriteString(j)
	}

	if len(wheres) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(wheres, " AND "))
	}

	orderBy, err := sortClause(q.Sort)
	if err != nil {
		return "", nil, err
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(orderBy)

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	fmt.Fprintf(&b, " LIMIT %d", limit)

	if q.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.Offset)
	}

	return b.String(), args, nil
}

func metadataCondition(alias string, f MetadataFilter) (string, []any, error) {
	op := strings.ToUpper(strings.TrimSpace(f.Op))
	if op == "" {
		op = "="
	}

	switch {
	case op == "IN":
		if len(f.Values) == 0 {
			return "", nil, vaulterr.ValidationFailed(fmt.Sprintf("filter on %q: IN requires values", f.Key))
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Values)), ", ")
		args := make([]any, len(f.Values))

		for i, v := range f.Values {
			args[i] = v
		}

		return fmt.Sprintf("%s.value IN (%s)", alias, placeholders), args, nil
	case op == "LIKE":
		return fmt.Sprintf("%s.value LIKE ?", alias), []any{f.Value}, nil
	case comparisonOps[op]:
		// Numeric operands compare through a REAL cast so "5" > "10"
		// doesn't go lexicographic; everything else compares as text.
		if _, err := strconv.ParseFloat(f.Value, 64); err == nil && op != "=" && op != "!=" {
			cond := fmt.Sprintf("(%s.value_type = 'number' AND CAST(%s.value AS REAL) %s CAST(? AS REAL))", alias, alias, op)
			return cond, []any{f.Value}, nil
		}

		return fmt.Sprintf("%s.value %s ?", alias, op), []any{f.Value}, nil
	default:
		return "", nil, vaulterr.ValidationFailed(fmt.Sprintf("filter on %q: unsupported operator %q", f.Key, f.Op))
	}
}

func sortClause(spec string) (string, error) {
	if strings.TrimSpace(spec) == "" {
		return "n.updated DESC", nil
	}

	parts := strings.Fields(strings.ToLower(spec))

	col, ok := sortColumns[parts[0]]
	if !ok {
		return "", vaulterr.ValidationFailed(fmt.Sprintf("unsupported sort field %q", parts[0]))
	}

	dir := "ASC"

	if len(parts) > 1 {
		switch parts[1] {
		case "asc":
		case "desc":
			dir = "DESC"
		default:
			return "", vaulterr.ValidationFailed(fmt.Sprintf("unsupported sort direction %q", parts[1]))
		}
	}

	return col + " " + dir, nil
}

// ParseDuration parses the relative-duration forms advanced search
// accepts: "<n>m" minutes, "<n>h" hours, "<n>d" days, "<n>w" weeks.
func ParseDuration(spec string) (time.Duration, error) {
	spec = strings.TrimSpace(spec)
	if len(spec) < 2 {
		return 0, vaulterr.ValidationFailed(fmt.Sprintf("invalid duration %q", spec))
	}

	n, err := strconv.Atoi(spec[:len(spec)-1])
	if err != nil || n < 0 {
		return 0, vaulterr.ValidationFailed(fmt.Sprintf("invalid duration %q", spec))
	}

	switch spec[len(spec)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, vaulterr.ValidationFailed(fmt.Sprintf("invalid duration unit in %q", spec))
	}
}

// trimNote zeroes every field not named in fields, for callers that
// asked for a projection. The id is always kept.
func trimNote(note model.Note, fields []string) model.Note {
	keep := make(map[string]bool, len(fields))
	for _, f := range fields {
		keep[strings.ToLower(f)] = true
	}

	out := model.Note{ID: note.ID}

	if keep["type"] {
		out.Type = note.Type
	}

	if keep["title"] {
		out.Title = note.Title
	}

	if keep["filename"] {
		out.Filename = note.Filename
	}

	if keep["path"] {
		out.Path = note.Path
	}

	if keep["content"] {
		out.Content = note.Content
	}

	if keep["metadata"] {
		out.Metadata = note.Metadata
	}

	if keep["created"] {
		out.Created = note.Created
	}

	if keep["updated"] {
		out.Updated = note.Updated
	}

	if keep["size"] {
		out.Size = note.Size
	}

	if keep["content_hash"] {
		out.ContentHash = note.ContentHash
	}

	return out
}
