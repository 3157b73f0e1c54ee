// Package frontmatter parses and serializes the YAML frontmatter
// block of a note file into
// model.Value-typed fields.
//
// The parser accepts a constrained, deterministic subset of YAML:
// scalar strings/ints/bools, inline lists ("[a, b, c]"),
// and block lists ("- item" per line). Bare ints and floats parse as
// Number values; RFC3339 dates parse as scalar strings and are further
// interpreted by the field's declared type in metaval, not by the codec
// itself; the codec only needs to
// tell a quoted string from a bare number/bool/date-looking token well
// enough to round-trip.
//
// Because ContentHasher hashes the raw file bytes rather than a
// re-derived canonical form, the codec does not need to byte-reproduce
// externally authored frontmatter, only its own output, which callers
// always re-parse as identity (see the round-trip test).
package frontmatter

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
)

const delimiter = "---"

// Parsed is the result of splitting a note file into frontmatter and body.
type Parsed struct {
	Fields map[string]*model.Value
	// Order preserves the original key order, for codec round-trip tests.
	Order []string
	Body  string
}

// Parse splits content into frontmatter fields and body. If content has
// no leading "---" delimiter, the whole content is treated as body with
// an empty frontmatter.
func Parse(content string) (Parsed, error) {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")

	if !strings.HasPrefix(normalized, delimiter+"\n") && normalized != delimiter {
		return Parsed{Fields: map[string]*model.Value{}, Body: content}, nil
	}

	rest := strings.TrimPrefix(normalized, delimiter+"\n")

	end := strings.Index(rest, "\n"+delimiter+"\n")

	var (
		block string
		body  string
	)

	if end == -1 {
		if strings.HasSuffix(rest, "\n"+delimiter) {
			block = rest[:len(rest)-len(delimiter)-1]
			body = ""
		} else {
			return Parsed{}, vaulterr.ValidationFailed("frontmatter: missing closing delimiter")
		}
	} else {
		block = rest[:end]
		body = rest[end+len(delimiter)+2:]
	}

	fields, order, err := parseBlock(block)
	if err != nil {
		return Parsed{}, err
	}

	return Parsed{Fields: fields, Order: order, Body: body}, nil
}

func parseBlock(block string) (map[string]*model.Value, []string, error) {
	fields := make(map[string]*model.Value)
	order := make([]string, 0)

	scanner := bufio.NewScanner(strings.NewReader(block))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lines := make([]string, 0)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, vaulterr.ValidationFailed(fmt.Sprintf("frontmatter: scan: %v", err))
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			i++
			continue
		}

		key, rawVal, ok := splitKeyValue(line)
		if !ok {
			return nil, nil, vaulterr.ValidationFailed(fmt.Sprintf("frontmatter: malformed line %q", line))
		}

		if rawVal == "" {
			// Possible block list on following indented "- " lines.
			items := make([]string, 0)
			j := i + 1

			for j < len(lines) && strings.HasPrefix(lines[j], "  - ") {
				items = append(items, parseScalarText(strings.TrimPrefix(lines[j], "  - ")).Str)
				j++
			}

			if j > i+1 {
				fields[key] = model.Array(items)
				order = append(order, key)
				i = j

				continue
			}

			fields[key] = model.String("")
			order = append(order, key)
			i++

			continue
		}

		val, err := parseValue(rawVal)
		if err != nil {
			return nil, nil, err
		}

		fields[key] = val
		order = append(order, key)
		i++
	}

	return fields, order, nil
}

func splitKeyValue(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx == -1 {
		return "", "", false
	}

	key = strings.TrimSpace(line[:idx])
	if key == "" {
		return "", "", false
	}

	rest := line[idx+1:]
	if rest == "" {
		return key, "", true
	}

	if !strings.HasPrefix(rest, " ") {
		return "", "", false
	}

	return key, strings.TrimSpace(rest), true
}

func parseValue(raw string) (*model.Value, error) {
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		inner := strings.TrimSpace(raw[1 : len(raw)-1])
		if inner == "" {
			return model.Array(nil), nil
		}

		parts := strings.Split(inner, ", ")
		items := make([]string, len(parts))

		for i, p := range parts {
			items[i] = parseScalarText(p).Str
		}

		return model.Array(items), nil
	}

	return parseScalarText(raw), nil
}

// parseScalarText classifies a bare scalar token as bool, int/float, or
// string, unquoting single/double-quoted forms.
func parseScalarText(raw string) *model.Value {
	raw = strings.TrimSpace(raw)

	if len(raw) >= 2 {
		if (raw[0] == '"' && raw[len(raw)-1] == '"') || (raw[0] == '\'' && raw[len(raw)-1] == '\'') {
			return model.String(raw[1 : len(raw)-1])
		}
	}

	if raw == "true" {
		return model.Boolean(true)
	}

	if raw == "false" {
		return model.Boolean(false)
	}

	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return model.Number(f)
	}

	return model.String(raw)
}

// Marshal renders a frontmatter block followed by body. keyOrder fixes
// the key order in the output (callers pass schema-field order followed
// by sorted extras); any field not present in keyOrder is
// appended alphabetically so no data is silently dropped.
func Marshal(fields map[string]*model.Value, keyOrder []string, body string) string {
	order := completeOrder(fields, keyOrder)

	var b strings.Builder

	b.WriteString(delimiter)
	b.WriteString("\n")

	for _, key := range order {
		v := fields[key]
		if v == nil {
			continue
		}

		writeField(&b, key, v)
	}

	b.WriteString(delimiter)
	b.WriteString("\n")
	b.WriteString(body)

	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}

	return b.String()
}

func completeOrder(fields map[string]*model.Value, keyOrder []string) []string {
	present := make(map[string]bool, len(keyOrder))
	order := make([]string, 0, len(fields))

	for _, k := range keyOrder {
		if _, ok := fields[k]; ok && !present[k] {
			order = append(order, k)
			present[k] = true
		}
	}

	extras := make([]string, 0)

	for k := range fields {
		if !present[k] {
			extras = append(extras, k)
		}
	}

	sort.Strings(extras)

	return append(order, extras...)
}

func writeField(b *strings.Builder, key string, v *model.Value) {
	b.WriteString(key)
	b.WriteString(":")

	switch v.Kind {
	case model.ValueArrayKind:
		if len(v.Arr) == 0 {
			b.WriteString(" []\n")
			return
		}

		b.WriteString("\n")

		for _, item := range v.Arr {
			b.WriteString("  - ")
			b.WriteString(quoteIfNeeded(item))
			b.WriteString("\n")
		}
	case model.ValueBooleanKind:
		b.WriteString(" ")
		b.WriteString(strconv.FormatBool(v.Bool))
		b.WriteString("\n")
	case model.ValueNumberKind:
		b.WriteString(" ")
		b.WriteString(strconv.FormatFloat(v.Num, 'g', -1, 64))
		b.WriteString("\n")
	case model.ValueDateKind:
		b.WriteString(" ")
		b.WriteString(quoteIfNeeded(v.DateRFC))
		b.WriteString("\n")
	default:
		b.WriteString(" ")
		b.WriteString(quoteIfNeeded(v.Str))
		b.WriteString("\n")
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}

	needsQuote := strings.ContainsAny(s, ":#[]{}\"'\n") || s != strings.TrimSpace(s)
	if !needsQuote {
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			needsQuote = true
		}

		if s == "true" || s == "false" {
			needsQuote = true
		}
	}

	if !needsQuote {
		return s
	}

	escaped := strings.ReplaceAll(s, `"`, `\"`)

	return `"` + escaped + `"`
}
