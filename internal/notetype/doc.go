package notetype

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vaultdb/vaultdb/internal/model"
)

// The description document is a markdown file with three fixed
// sections: purpose (free text), agent instructions (free text), and
// an ad-hoc line-oriented metadata schema list. ContentHasher hashes a
// canonical JSON derivation of the three logical fields (see
// internal/hashing), not the document's bytes, so this format only
// needs to parse back what buildDoc wrote; it is not a public wire
// format callers depend on byte-for-byte.

const (
	sectionPurpose     = "# Purpose"
	sectionInstructions = "# Agent Instructions"
	sectionSchema      = "# Metadata Schema"
)

func buildDoc(description, instructions string, schema model.MetadataSchema) string {
	var b strings.Builder

	b.WriteString(sectionPurpose)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(description))
	b.WriteString("\n\n")

	b.WriteString(sectionInstructions)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(instructions))
	b.WriteString("\n\n")

	b.WriteString(sectionSchema)
	b.WriteString("\n\n")

	if len(schema.Fields) == 0 {
		b.WriteString("(none)\n")
	} else {
		for _, f := range schema.Fields {
			b.WriteString(encodeField(f))
			b.WriteString("\n")
		}
	}

	if schema.Closed {
		b.WriteString("\nclosed: true\n")
	}

	return b.String()
}

func encodeField(f model.FieldDef) string {
	var b strings.Builder

	fmt.Fprintf(&b, "- %s: type=%s", f.Name, f.Type)

	if f.Required {
		b.WriteString(" required=true")
	}

	if f.Default != nil {
		fmt.Fprintf(&b, " default=%s", quoteToken(f.Default.Text()))
	}

	if f.Constraints.Min != nil {
		fmt.Fprintf(&b, " min=%s", strconv.FormatFloat(*f.Constraints.Min, 'g', -1, 64))
	}

	if f.Constraints.Max != nil {
		fmt.Fprintf(&b, " max=%s", strconv.FormatFloat(*f.Constraints.Max, 'g', -1, 64))
	}

	if f.Constraints.Pattern != "" {
		fmt.Fprintf(&b, " pattern=%s", quoteToken(f.Constraints.Pattern))
	}

	if len(f.Constraints.Options) > 0 {
		fmt.Fprintf(&b, " options=[%s]", strings.Join(f.Constraints.Options, ","))
	}

	return b.String()
}

func quoteToken(s string) string {
	if s == "" {
		return `""`
	}

	if strings.ContainsAny(s, " \t\"") {
		return strconv.Quote(s)
	}

	return s
}

// parsedDoc is the result of splitting a description document into its
// three logical sections.
type parsedDoc struct {
	Description  string
	Instructions string
	Schema       model.MetadataSchema
}

func parseDoc(content string) (parsedDoc, error) {
	sections := splitSections(content)

	schema, err := parseSchemaSection(sections[sectionSchema])
	if err != nil {
		return parsedDoc{}, err
	}

	return parsedDoc{
		Description:  strings.TrimSpace(sections[sectionPurpose]),
		Instructions: strings.TrimSpace(sections[sectionInstructions]),
		Schema:       schema,
	}, nil
}

func splitSections(content string) map[string]string {
	headers := []string{sectionPurpose, sectionInstructions, sectionSchema}
	out := make(map[string]string, len(headers))

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	current := ""
	var buf []string

	flush := func() {
		if current != "" {
			out[current] = strings.Join(buf, "\n")
		}

		buf = nil
	}

	for _, line := range lines {
		matched := ""

		for _, h := range headers {
			if strings.TrimSpace(line) == h {
				matched = h
				break
			}
		}

		if matched != "" {
			flush()
			current = matched

			continue
		}

		buf = append(buf, line)
	}

	flush()

	return out
}

func parseSchemaSection(section string) (model.MetadataSchema, error) {
	var schema model.MetadataSchema

	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)

		if line == "" || line == "(none)" {
			continue
		}

		if strings.HasPrefix(line, "closed:") {
			schema.Closed = strings.TrimSpace(strings.TrimPrefix(line, "closed:")) == "true"
			continue
		}

		if !strings.HasPrefix(line, "- ") {
			continue
		}

		field, err := parseFieldLine(strings.TrimPrefix(line, "- "))
		if err != nil {
			return model.MetadataSchema{}, err
		}

		schema.Fields = append(schema.Fields, field)
	}

	return schema, nil
}

func parseFieldLine(line string) (model.FieldDef, error) {
	nameRest := strings.SplitN(line, ":", 2)
	if len(nameRest) != 2 {
		return model.FieldDef{}, fmt.Errorf("malformed schema field line: %q", line)
	}

	field := model.FieldDef{Name: strings.TrimSpace(nameRest[0])}

	for _, tok := range tokenizeAttrs(nameRest[1]) {
		kv := strings.SplitN(tok, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key, val := kv[0], unquoteToken(kv[1])

		switch key {
		case "type":
			field.Type = model.FieldType(val)
		case "required":
			field.Required = val == "true"
		case "default":
			field.Default = defaultValueFor(field.Type, val)
		case "min":
			f, _ := strconv.ParseFloat(val, 64)
			field.Constraints.Min = &f
		case "max":
			f, _ := strconv.ParseFloat(val, 64)
			field.Constraints.Max = &f
		case "pattern":
			field.Constraints.Pattern = val
		case "options":
			field.Constraints.Options = splitOptions(val)
		}
	}

	return field, nil
}

func defaultValueFor(t model.FieldType, text string) *model.Value {
	switch t {
	case model.FieldNumber:
		f, _ := strconv.ParseFloat(text, 64)
		return model.Number(f)
	case model.FieldBoolean:
		return model.Boolean(text == "true")
	case model.FieldDate:
		return model.Date(text)
	case model.FieldArray:
		return model.Array(splitOptions(text))
	default:
		return model.String(text)
	}
}

func splitOptions(s string) []string {
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimSpace(s)

	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	return parts
}

// tokenizeAttrs splits "type=string required=true default=\"a b\"" into
// tokens, honoring quoted values and bracketed option lists that may
// contain no spaces (so a plain space split would otherwise be fine,
// but quoted defaults may contain spaces).
func tokenizeAttrs(s string) []string {
	var tokens []string

	var cur strings.Builder

	inQuote := false

	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case r == ' ' && !inQuote:
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}

	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}

	return tokens
}

func unquoteToken(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		unq, err := strconv.Unquote(s)
		if err == nil {
			return unq
		}
	}

	return s
}
