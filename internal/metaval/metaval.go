// Package metaval validates a MetadataSchema definition itself, and
// validates a note's metadata map against a schema. Both are pure
// functions over model.Value.
package metaval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
)

// ValidateSchema checks a schema definition for internal consistency:
// no duplicate field names, no protected names, "select" fields carry
// non-empty options, min<=max, patterns compile, and defaults satisfy
// their own field's type and constraints.
func ValidateSchema(schema model.MetadataSchema) error {
	seen := make(map[string]bool, len(schema.Fields))

	for _, f := range schema.Fields {
		if f.Name == "" {
			return vaulterr.SchemaInvalid("field name must not be empty")
		}

		if model.ProtectedFieldNames[f.Name] {
			return vaulterr.SchemaInvalid(fmt.Sprintf("field %q is a protected name", f.Name))
		}

		if seen[f.Name] {
			return vaulterr.SchemaInvalid(fmt.Sprintf("duplicate field %q", f.Name))
		}

		seen[f.Name] = true

		switch f.Type {
		case model.FieldString, model.FieldNumber, model.FieldBoolean, model.FieldDate, model.FieldArray, model.FieldSelect:
		default:
			return vaulterr.SchemaInvalid(fmt.Sprintf("field %q has unknown type %q", f.Name, f.Type))
		}

		if f.Type == model.FieldSelect && len(f.Constraints.Options) == 0 {
			return vaulterr.SchemaInvalid(fmt.Sprintf("field %q: select requires non-empty options", f.Name))
		}

		if f.Constraints.Min != nil && f.Constraints.Max != nil && *f.Constraints.Min > *f.Constraints.Max {
			return vaulterr.SchemaInvalid(fmt.Sprintf("field %q: min must be <= max", f.Name))
		}

		if f.Constraints.Pattern != "" {
			if _, err := regexp.Compile(f.Constraints.Pattern); err != nil {
				return vaulterr.SchemaInvalid(fmt.Sprintf("field %q: invalid pattern: %v", f.Name, err))
			}
		}

		if f.Default != nil {
			if err := validateField(f, f.Default); err != nil {
				return vaulterr.SchemaInvalid(fmt.Sprintf("field %q: default value invalid: %v", f.Name, err))
			}
		}
	}

	return nil
}

// ValidateMetadata checks metadata against schema: required fields
// present, each value's type matches its field, select options
// enforced, numeric min/max enforced, string pattern matched. Unknown
// keys are permitted unless schema.Closed.
func ValidateMetadata(schema model.MetadataSchema, metadata map[string]*model.Value) error {
	byName := make(map[string]model.FieldDef, len(schema.Fields))
	for _, f := range schema.Fields {
		byName[f.Name] = f
	}

	for _, f := range schema.Fields {
		v, ok := metadata[f.Name]
		if !ok || v == nil {
			if f.Required {
				return vaulterr.ValidationFailed(fmt.Sprintf("missing required field %q", f.Name))
			}

			continue
		}

		if err := validateField(f, v); err != nil {
			return vaulterr.ValidationFailed(err.Error())
		}
	}

	if schema.Closed {
		for key := range metadata {
			if _, ok := byName[key]; !ok && !model.ProtectedFieldNames[key] {
				return vaulterr.ValidationFailed(fmt.Sprintf("unknown field %q is not permitted by closed schema", key))
			}
		}
	}

	return nil
}

func validateField(f model.FieldDef, v *model.Value) error {
	if v.FieldType() != fieldTypeForValidation(f.Type) {
		return fmt.Errorf("field %q: expected type %s, got %s", f.Name, f.Type, v.FieldType())
	}

	switch f.Type {
	case model.FieldSelect:
		if !contains(f.Constraints.Options, v.Str) {
			return fmt.Errorf("field %q: value %q is not one of %s", f.Name, v.Str, strings.Join(f.Constraints.Options, ", "))
		}
	case model.FieldNumber:
		if f.Constraints.Min != nil && v.Num < *f.Constraints.Min {
			return fmt.Errorf("field %q: value %g below minimum %g", f.Name, v.Num, *f.Constraints.Min)
		}

		if f.Constraints.Max != nil && v.Num > *f.Constraints.Max {
			return fmt.Errorf("field %q: value %g above maximum %g", f.Name, v.Num, *f.Constraints.Max)
		}
	case model.FieldString:
		if f.Constraints.Pattern != "" {
			re := regexp.MustCompile(f.Constraints.Pattern)
			if !re.MatchString(v.Str) {
				return fmt.Errorf("field %q: value %q does not match pattern %q", f.Name, v.Str, f.Constraints.Pattern)
			}
		}
	}

	return nil
}

// fieldTypeForValidation maps select to the string ValueKind since
// model.Value has no distinct select kind.
func fieldTypeForValidation(t model.FieldType) model.FieldType {
	if t == model.FieldSelect {
		return model.FieldString
	}

	return t
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}

	return false
}
