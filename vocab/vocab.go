// Package vocab holds the controlled vocabularies used to turn free-text
// sector and organization-type labels into canonical codes. Both are thin
// domain wrappers around matching.CodeLookup, populated once per run from a
// reference table plus a few legacy synonyms that the reference tables no
// longer carry.
package vocab

import (
	"log/slog"

	"opresence/matching"
)

// Entry is one (code, preferred label) pair from a reference table.
type Entry struct {
	Code string
	Name string
}

// Vocabulary resolves variant spellings of labels onto canonical codes and
// answers reverse lookups from code to preferred label.
type Vocabulary struct {
	kind   string
	lookup *matching.CodeLookup
	names  map[string]string
	extras []Entry
	logger *slog.Logger
}

func newVocabulary(kind string, extras []Entry) *Vocabulary {
	return &Vocabulary{
		kind:   kind,
		lookup: matching.NewCodeLookup(0),
		names:  make(map[string]string),
		extras: extras,
		logger: slog.Default().With("component", "vocab", "kind", kind),
	}
}

// NewOrgTypes creates the organization-type vocabulary. The numbered extras
// are legacy types still present in country submissions but absent from the
// current reference list.
func NewOrgTypes() *Vocabulary {
	return newVocabulary("org_type", []Entry{
		{Code: "501", Name: "Civil Society"},
		{Code: "502", Name: "Observer"},
		{Code: "503", Name: "Development Programme"},
		{Code: "504", Name: "Local NGO"},
	})
}

// NewSectors creates the sector vocabulary with its legacy synonyms.
func NewSectors() *Vocabulary {
	return newVocabulary("sector", []Entry{
		{Code: "Cash", Name: "Cash programming"},
		{Code: "Hum", Name: "Humanitarian assistance (unspecified)"},
		{Code: "Multi", Name: "Multi-sector (unspecified)"},
		{Code: "Intersectoral", Name: "Intersectoral"},
	})
}

// Populate loads the reference entries. Each entry is registered under four
// variants (code, label, normalized code, normalized label), all mapping to
// the code. Populate is called once per run, before any lookups.
func (v *Vocabulary) Populate(entries []Entry) {
	v.logger.Info("Populating vocabulary", "entries", len(entries), "extras", len(v.extras))
	for _, entry := range entries {
		v.add(entry)
	}
	for _, entry := range v.extras {
		v.add(entry)
	}
}

func (v *Vocabulary) add(entry Entry) {
	if entry.Code == "" {
		v.logger.Warn("Skipping vocabulary entry with empty code", "name", entry.Name)
		return
	}
	v.lookup.AddEntry(entry.Code, entry.Name)
	v.names[entry.Code] = entry.Name
}

// GetCode resolves free text to a canonical code, "" when unresolvable.
func (v *Vocabulary) GetCode(text string) string {
	return v.lookup.Get(text, true)
}

// GetCodeExact resolves without fuzzy matching.
func (v *Vocabulary) GetCodeExact(text string) string {
	return v.lookup.Get(text, false)
}

// GetName returns the preferred label for a code, "" for blank or unknown
// codes.
func (v *Vocabulary) GetName(code string) string {
	if code == "" {
		return ""
	}
	return v.names[code]
}
