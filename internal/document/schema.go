package document

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// docValidate is the shared validator for document schemas.
// Initialized once; validator instances cache struct metadata.
var docValidate *validator.Validate

func init() {
	docValidate = validator.New()

	// Report json field names, not Go field names, in violations.
	docValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	// The built-in hexcolor validation also admits the short "#abc" form.
	// Tag colors are always the 6-digit form.
	_ = docValidate.RegisterValidation("hexcolor6", validateHexColor6)
}

var hexColor6Re = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

func validateHexColor6(fl validator.FieldLevel) bool {
	return hexColor6Re.MatchString(fl.Field().String())
}

// Validate checks doc against its schema. Returns a *SchemaError (matching
// errors.Is(err, ErrSchema)) describing every violation, or nil.
func Validate(doc Doc) error {
	if se := schemaViolations(doc); se != nil {
		return se
	}

	return nil
}

func schemaViolations(doc Doc) *SchemaError {
	switch d := doc.(type) {
	case Notes:
		return entryViolations(KeyNotes, "notes", len(d), func(i int) error {
			return docValidate.Struct(d[i])
		})
	case Notebooks:
		return entryViolations(KeyNotebooks, "notebooks", len(d), func(i int) error {
			return docValidate.Struct(d[i])
		})
	case Settings:
		// Any key/value object is valid settings.
		return nil
	case TagColors:
		return tagColorViolations(d)
	default:
		panic(fmt.Sprintf("unreachable: %T", doc))
	}
}

// entryViolations collects per-entry violations for the list documents.
func entryViolations(key Key, label string, n int, check func(i int) error) *SchemaError {
	se := &SchemaError{Key: key}

	for i := range n {
		err := check(i)
		if err == nil {
			continue
		}

		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			se.WrongTypes = append(se.WrongTypes, fmt.Sprintf("%s[%d]", label, i))

			continue
		}

		for _, fe := range verrs {
			path := fmt.Sprintf("%s[%d].%s", label, i, fe.Field())

			if fe.Tag() == "required" {
				se.Missing = append(se.Missing, path)
			} else {
				se.WrongTypes = append(se.WrongTypes, path)
			}
		}
	}

	if len(se.Missing) == 0 && len(se.WrongTypes) == 0 {
		return nil
	}

	return se
}

func tagColorViolations(tc TagColors) *SchemaError {
	se := &SchemaError{Key: KeyTagColors}

	for _, tag := range slices.Sorted(maps.Keys(tc)) {
		if err := docValidate.Var(tc[tag], "hexcolor6"); err != nil {
			se.WrongTypes = append(se.WrongTypes, fmt.Sprintf("tag-colors[%q]=%q", tag, tc[tag]))
		}
	}

	if len(se.WrongTypes) == 0 {
		return nil
	}

	return se
}
