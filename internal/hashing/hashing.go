// Package hashing derives the canonical hashable form of notes and
// note type definitions and tags it with SHA-256.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

const prefix = "sha256:"

// NoteHash hashes the exact bytes of a note file as stored on disk
// (frontmatter + body, with whatever newline bytes are present).
func NoteHash(fileBytes []byte) string {
	sum := sha256.Sum256(fileBytes)

	return prefix + hex.EncodeToString(sum[:])
}

// noteTypeCanonical is the deterministic JSON shape hashed for a note
// type: fixed key order, missing values normalized to empty.
type noteTypeCanonical struct {
	Description       string   `json:"description"`
	AgentInstructions string   `json:"agent_instructions"`
	MetadataSchema    []fieldJ `json:"metadata_schema"`
}

type fieldJ struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Default  string   `json:"default"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Pattern  string   `json:"pattern"`
	Options  []string `json:"options"`
}

// NoteTypeInput is the minimal shape NoteTypeHash needs, a plain struct
// independent of model.NoteType.
type NoteTypeInput struct {
	Description       string
	AgentInstructions string
	Fields            []NoteTypeField
}

type NoteTypeField struct {
	Name          string
	Type          string
	Required      bool
	DefaultText   string
	Min, Max      *float64
	Pattern       string
	Options       []string
}

// NoteTypeHash hashes the canonical JSON form of a note type definition.
func NoteTypeHash(in NoteTypeInput) (string, error) {
	canon := noteTypeCanonical{
		Description:       in.Description,
		AgentInstructions: in.AgentInstructions,
		MetadataSchema:    make([]fieldJ, len(in.Fields)),
	}

	for i, f := range in.Fields {
		options := f.Options
		if options == nil {
			options = []string{}
		}

		canon.MetadataSchema[i] = fieldJ{
			Name:     f.Name,
			Type:     f.Type,
			Required: f.Required,
			Default:  f.DefaultText,
			Min:      f.Min,
			Max:      f.Max,
			Pattern:  f.Pattern,
			Options:  options,
		}
	}

	data, err := json.Marshal(canon)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)

	return prefix + hex.EncodeToString(sum[:]), nil
}
