package metaval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultdb/vaultdb/internal/model"
)

func ratingSchema() model.MetadataSchema {
	min := 1.0
	max := 5.0

	return model.MetadataSchema{
		Fields: []model.FieldDef{
			{Name: "rating", Type: model.FieldNumber, Constraints: model.FieldConstraints{Min: &min, Max: &max}},
			{Name: "status", Type: model.FieldSelect, Required: true, Constraints: model.FieldConstraints{Options: []string{"todo", "done"}}},
			{Name: "tags", Type: model.FieldArray},
		},
	}
}

func TestValidateSchema_RejectsProtectedName(t *testing.T) {
	schema := model.MetadataSchema{Fields: []model.FieldDef{{Name: "title", Type: model.FieldString}}}

	err := ValidateSchema(schema)
	require.Error(t, err)
}

func TestValidateSchema_RejectsDuplicate(t *testing.T) {
	schema := model.MetadataSchema{Fields: []model.FieldDef{
		{Name: "a", Type: model.FieldString},
		{Name: "a", Type: model.FieldString},
	}}

	require.Error(t, ValidateSchema(schema))
}

func TestValidateSchema_SelectRequiresOptions(t *testing.T) {
	schema := model.MetadataSchema{Fields: []model.FieldDef{{Name: "status", Type: model.FieldSelect}}}

	require.Error(t, ValidateSchema(schema))
}

func TestValidateSchema_MinMustBeLessThanMax(t *testing.T) {
	min, max := 5.0, 1.0
	schema := model.MetadataSchema{Fields: []model.FieldDef{
		{Name: "rating", Type: model.FieldNumber, Constraints: model.FieldConstraints{Min: &min, Max: &max}},
	}}

	require.Error(t, ValidateSchema(schema))
}

func TestValidateSchema_Valid(t *testing.T) {
	require.NoError(t, ValidateSchema(ratingSchema()))
}

func TestValidateMetadata_RequiredMissing(t *testing.T) {
	err := ValidateMetadata(ratingSchema(), map[string]*model.Value{
		"rating": model.Number(4),
	})
	require.Error(t, err)
}

func TestValidateMetadata_NumericOutOfRange(t *testing.T) {
	err := ValidateMetadata(ratingSchema(), map[string]*model.Value{
		"status": model.String("todo"),
		"rating": model.Number(10),
	})
	require.Error(t, err)
}

func TestValidateMetadata_SelectOptionEnforced(t *testing.T) {
	err := ValidateMetadata(ratingSchema(), map[string]*model.Value{
		"status": model.String("archived"),
	})
	require.Error(t, err)
}

func TestValidateMetadata_UnknownKeyAllowedWhenOpen(t *testing.T) {
	err := ValidateMetadata(ratingSchema(), map[string]*model.Value{
		"status": model.String("todo"),
		"extra":  model.String("anything"),
	})
	require.NoError(t, err)
}

func TestValidateMetadata_UnknownKeyRejectedWhenClosed(t *testing.T) {
	schema := ratingSchema()
	schema.Closed = true

	err := ValidateMetadata(schema, map[string]*model.Value{
		"status": model.String("todo"),
		"extra":  model.String("anything"),
	})
	require.Error(t, err)
}

func TestValidateMetadata_Valid(t *testing.T) {
	err := ValidateMetadata(ratingSchema(), map[string]*model.Value{
		"status": model.String("done"),
		"rating": model.Number(5),
		"tags":   model.Array([]string{"habits"}),
	})
	require.NoError(t, err)
}
