package document

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownKey indicates a key outside the closed logical-key set.
	//
	// Recovery: none. The caller passed a key the vault does not manage.
	ErrUnknownKey = errors.New("document: unknown key")

	// ErrSyntax indicates a blob that is not parseable JSON at all.
	//
	// Recovery: heuristic repair may fix mechanical damage; otherwise
	// restore from backup.
	ErrSyntax = errors.New("document: malformed json")

	// ErrSchema indicates parseable JSON with the wrong shape or missing
	// required fields. Match with errors.Is; inspect details via
	// errors.As with *SchemaError.
	//
	// Recovery: same as ErrSyntax. Repair only succeeds if the repaired
	// blob also passes schema validation.
	ErrSchema = errors.New("document: schema violation")
)

// SchemaError reports which parts of a document violate its schema.
// Field paths are caller-readable, e.g. "notes[2].title".
type SchemaError struct {
	Key Key

	// Missing lists required fields that are absent or empty.
	Missing []string

	// WrongTypes lists fields carrying the wrong JSON type or a
	// malformed value (such as a tag color that is not "#RRGGBB").
	WrongTypes []string
}

func (e *SchemaError) Error() string {
	var parts []string

	if len(e.Missing) > 0 {
		parts = append(parts, "missing required: "+strings.Join(e.Missing, ", "))
	}

	if len(e.WrongTypes) > 0 {
		parts = append(parts, "wrong type: "+strings.Join(e.WrongTypes, ", "))
	}

	if len(parts) == 0 {
		parts = append(parts, "invalid shape")
	}

	return fmt.Sprintf("document %q: schema violation (%s)", e.Key, strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrSchema) match any *SchemaError.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}
