package document

import (
	"regexp"

	"github.com/tailscale/hujson"
)

// Repair attempts mechanical fixes on a blob that does not decode: JWCC
// standardization (comments, trailing commas), single-quote normalization,
// bare-key quoting, and trailing-comma stripping.
//
// Passes apply cumulatively and the chain runs twice, because a regex fix
// in round one can turn the blob into something the JWCC pass accepts in
// round two. After every pass the candidate must fully decode, schema
// validation included; a repair that produces well-formed JSON with an
// invalid shape is still a failure.
//
// Returns the decoded document and whether repair succeeded. Best effort:
// content inside badly quoted strings can be altered by the regex passes,
// which is the accepted cost of salvaging otherwise lost documents.
func Repair(key Key, blob []byte) (Doc, bool) {
	if !key.Valid() {
		return nil, false
	}

	if doc, err := Decode(key, blob); err == nil {
		return doc, true
	}

	passes := []func([]byte) []byte{
		standardizeJWCC,
		normalizeQuotes,
		quoteBareKeys,
		stripTrailingCommas,
	}

	current := append([]byte(nil), blob...)

	for range 2 {
		for _, pass := range passes {
			current = pass(current)

			if doc, err := Decode(key, current); err == nil {
				return doc, true
			}
		}
	}

	return nil, false
}

// standardizeJWCC runs the blob through hujson, which tolerates comments
// and trailing commas. Inapplicable input passes through unchanged.
func standardizeJWCC(blob []byte) []byte {
	out, err := hujson.Standardize(blob)
	if err != nil {
		return blob
	}

	return out
}

// normalizeQuotes rewrites single-quoted strings as double-quoted ones.
// Apostrophes inside double-quoted strings are left alone; double quotes
// inside single-quoted strings get escaped.
func normalizeQuotes(blob []byte) []byte {
	out := make([]byte, 0, len(blob))

	var inDouble, inSingle bool

	for i := 0; i < len(blob); i++ {
		c := blob[i]

		switch {
		case inDouble:
			out = append(out, c)

			if c == '\\' && i+1 < len(blob) {
				i++
				out = append(out, blob[i])
			} else if c == '"' {
				inDouble = false
			}

		case inSingle:
			switch {
			case c == '\\' && i+1 < len(blob):
				next := blob[i+1]
				i++

				if next == '\'' {
					out = append(out, '\'')
				} else {
					out = append(out, '\\', next)
				}
			case c == '\'':
				out = append(out, '"')
				inSingle = false
			case c == '"':
				out = append(out, '\\', '"')
			default:
				out = append(out, c)
			}

		case c == '"':
			inDouble = true

			out = append(out, c)

		case c == '\'':
			inSingle = true

			out = append(out, '"')

		default:
			out = append(out, c)
		}
	}

	return out
}

var (
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_\-]*)\s*:`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

func quoteBareKeys(blob []byte) []byte {
	return replaceOutsideStrings(blob, bareKeyRe, []byte(`${1}"${2}":`))
}

func stripTrailingCommas(blob []byte) []byte {
	return replaceOutsideStrings(blob, trailingCommaRe, []byte(`${1}`))
}

// replaceOutsideStrings applies re only to the parts of blob that are not
// inside double-quoted strings, so user content never matches.
func replaceOutsideStrings(blob []byte, re *regexp.Regexp, repl []byte) []byte {
	out := make([]byte, 0, len(blob))

	segStart := 0
	inString := false

	flush := func(end int) {
		seg := blob[segStart:end]
		if inString {
			out = append(out, seg...)
		} else {
			out = append(out, re.ReplaceAll(seg, repl)...)
		}

		segStart = end
	}

	for i := 0; i < len(blob); i++ {
		c := blob[i]

		if inString {
			if c == '\\' {
				i++

				continue
			}

			if c == '"' {
				flush(i + 1)

				inString = false
			}

			continue
		}

		if c == '"' {
			flush(i)

			inString = true
		}
	}

	flush(len(blob))

	return out
}
