// Package document defines the vault's logical documents and their codec.
//
// Each logical [Key] maps to exactly one Go type: [Notes], [Notebooks],
// [Settings], or [TagColors]. [Decode] classifies bad input precisely
// (malformed JSON vs schema violation), which is what the corruption
// detector and recovery engine key off. [Repair] holds the mechanical
// heuristics for near-miss JSON.
package document

import "time"

// Doc is the closed set of vault documents. Implemented only by [Notes],
// [Notebooks], [Settings], and [TagColors].
type Doc interface {
	// Key returns the logical key this document is stored under.
	Key() Key

	sealed()
}

// Note is one note entry. ID and Title must be non-empty; everything else
// is optional.
type Note struct {
	ID         string    `json:"id"         validate:"required"`
	Title      string    `json:"title"      validate:"required"`
	Body       string    `json:"body,omitempty"`
	NotebookID string    `json:"notebookId,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Pinned     bool      `json:"pinned,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Notes is the document stored under [KeyNotes]: a flat list of entries.
type Notes []Note

func (Notes) Key() Key { return KeyNotes }
func (Notes) sealed()  {}

// Notebook is one notebook entry. ID and Name must be non-empty.
type Notebook struct {
	ID        string    `json:"id"   validate:"required"`
	Name      string    `json:"name" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notebooks is the document stored under [KeyNotebooks].
type Notebooks []Notebook

func (Notebooks) Key() Key { return KeyNotebooks }
func (Notebooks) sealed()  {}

// Settings is the document stored under [KeySettings]: a free-form
// key/value object. Values are whatever JSON the app layer puts there.
type Settings map[string]any

func (Settings) Key() Key { return KeySettings }
func (Settings) sealed()  {}

// TagColors is the document stored under [KeyTagColors]: tag name to
// "#RRGGBB" color.
type TagColors map[string]string

func (TagColors) Key() Key { return KeyTagColors }
func (TagColors) sealed()  {}

// Default returns the empty document for key: empty list for notes and
// notebooks, empty object for settings and tag colors. Panics on an
// unknown key; callers validate keys at the boundary.
func Default(key Key) Doc {
	switch key {
	case KeyNotes:
		return Notes{}
	case KeyNotebooks:
		return Notebooks{}
	case KeySettings:
		return Settings{}
	case KeyTagColors:
		return TagColors{}
	default:
		panic("unknown key: " + string(key))
	}
}
