package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Decode parses blob as the document stored under key.
//
// Error classification, which the corruption detector depends on:
//   - [ErrSyntax]: blob is not parseable JSON
//   - [ErrSchema] (a *SchemaError): parseable JSON with the wrong shape,
//     missing required fields, or malformed values
//   - [ErrUnknownKey]: key outside the closed set
func Decode(key Key, blob []byte) (Doc, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	doc, err := decodeShape(key, blob)
	if err != nil {
		return nil, err
	}

	if err := Validate(doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// Encode serializes doc canonically: two-space indented JSON, object keys
// sorted, trailing newline. The same document value always produces the
// same bytes, so checksums over encoded blobs are stable.
//
// Returns [ErrSchema] when doc violates its schema; an invalid document is
// never handed to the medium.
func Encode(doc Doc) ([]byte, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}

	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("document %q: marshal: %w", doc.Key(), err)
	}

	return append(buf, '\n'), nil
}

func decodeShape(key Key, blob []byte) (Doc, error) {
	switch key {
	case KeyNotes:
		var d Notes
		if err := unmarshalClassified(key, blob, &d); err != nil {
			return nil, err
		}

		if d == nil {
			return nil, rootMismatch(key, "null", "array")
		}

		return d, nil

	case KeyNotebooks:
		var d Notebooks
		if err := unmarshalClassified(key, blob, &d); err != nil {
			return nil, err
		}

		if d == nil {
			return nil, rootMismatch(key, "null", "array")
		}

		return d, nil

	case KeySettings:
		var d Settings
		if err := unmarshalClassified(key, blob, &d); err != nil {
			return nil, err
		}

		if d == nil {
			return nil, rootMismatch(key, "null", "object")
		}

		return d, nil

	case KeyTagColors:
		var d TagColors
		if err := unmarshalClassified(key, blob, &d); err != nil {
			return nil, err
		}

		if d == nil {
			return nil, rootMismatch(key, "null", "object")
		}

		return d, nil

	default:
		panic("unreachable: " + string(key))
	}
}

// unmarshalClassified maps encoding/json failures onto the vault's
// corruption taxonomy. Type mismatches are schema violations, everything
// else is a syntax failure.
func unmarshalClassified(key Key, blob []byte, v any) error {
	err := json.Unmarshal(blob, v)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			return rootMismatch(key, typeErr.Value, "")
		}

		return &SchemaError{
			Key:        key,
			WrongTypes: []string{fmt.Sprintf("%s (got %s)", field, typeErr.Value)},
		}
	}

	return fmt.Errorf("%w: %v", ErrSyntax, err)
}

func rootMismatch(key Key, got, want string) *SchemaError {
	detail := "document root (got " + got + ")"
	if want != "" {
		detail = fmt.Sprintf("document root (got %s, want %s)", got, want)
	}

	return &SchemaError{Key: key, WrongTypes: []string{detail}}
}
