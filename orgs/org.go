// Package orgs resolves the many textual mentions of real-world
// organizations found in per-country presence tables onto deduplicated
// canonical records. Mentions arrive with partial information in any order;
// the resolver converges everything sharing a normalized (acronym, name)
// pair onto one record.
package orgs

import (
	"fmt"
	"log/slog"
	"sort"

	"opresence/matching"
	"opresence/vocab"
)

// DefaultMaxAcronymLength caps acronyms backfilled from source columns.
// Anything longer is a name pasted into the acronym column.
const DefaultMaxAcronymLength = 32

// GlobalScope marks a reference row valid for every country.
const GlobalScope = "*"

// Identity is one candidate mention of an organization inside a specific
// country's dataset. It is mutated in place as missing fields are learned
// and never deleted within a run.
type Identity struct {
	CanonicalName     string
	NormalisedName    string
	Acronym           string
	NormalisedAcronym string
	TypeCode          string
	Complete          bool // acronym and type both known
	Used              bool // has reached MergeOrRegister
}

// CanonicalOrg is the deduplicated cross-country organization record.
type CanonicalOrg struct {
	Acronym  string
	Name     string
	TypeCode string
}

// ReferenceRow is one row of the authoritative organization table.
// CountryCode may be GlobalScope.
type ReferenceRow struct {
	CountryCode   string
	CanonicalName string
	Acronym       string
	Pattern       string // alternate display pattern, eg "Name (ACRONYM)"
	TypeCode      string
}

// DiagnosticSink receives data-quality findings without aborting records.
type DiagnosticSink interface {
	MissingValue(dataset, valueType, value string)
	Warning(dataset, message string)
}

type identityKey struct {
	country string // "" = global scope
	lookup  string
}

type canonicalKey struct {
	acronym string // normalized
	name    string // normalized
}

// Resolver owns the per-country identity map and the canonical org table.
// All state is process-wide and unlocked; callers run it single-threaded.
type Resolver struct {
	orgTypes         *vocab.Vocabulary
	sink             DiagnosticSink
	identities       map[identityKey]*Identity
	canonical        map[canonicalKey]*CanonicalOrg
	maxAcronymLength int
	logger           *slog.Logger
}

// NewResolver creates an organization resolver. maxAcronymLength <= 0
// selects DefaultMaxAcronymLength.
func NewResolver(orgTypes *vocab.Vocabulary, sink DiagnosticSink, maxAcronymLength int) *Resolver {
	if maxAcronymLength <= 0 {
		maxAcronymLength = DefaultMaxAcronymLength
	}
	return &Resolver{
		orgTypes:         orgTypes,
		sink:             sink,
		identities:       make(map[identityKey]*Identity),
		canonical:        make(map[canonicalKey]*CanonicalOrg),
		maxAcronymLength: maxAcronymLength,
		logger:           slog.Default().With("component", "org_resolver"),
	}
}

// Populate indexes the authoritative organization table. Each row lands
// under six lookup keys: canonical name, normalized name, acronym,
// normalized acronym, display pattern and its normalized form, each scoped
// to the row's country (or global). Last writer wins on duplicate keys.
func (r *Resolver) Populate(rows []ReferenceRow) {
	r.logger.Info("Populating org reference map", "rows", len(rows))
	indexed := 0
	for i, row := range rows {
		if row.CanonicalName == "" {
			r.logger.Error("Canonical name is empty in org reference row", "row", i)
			continue
		}
		country := row.CountryCode
		if country == GlobalScope {
			country = ""
		}
		identity := &Identity{
			CanonicalName:     row.CanonicalName,
			NormalisedName:    matching.Normalise(row.CanonicalName),
			Acronym:           row.Acronym,
			NormalisedAcronym: matching.Normalise(row.Acronym),
			TypeCode:          row.TypeCode,
			Complete:          row.Acronym != "" && row.TypeCode != "",
		}
		for _, lookup := range []string{
			identity.CanonicalName,
			identity.NormalisedName,
			identity.Acronym,
			identity.NormalisedAcronym,
			row.Pattern,
			matching.Normalise(row.Pattern),
		} {
			if lookup == "" {
				continue
			}
			r.identities[identityKey{country: country, lookup: lookup}] = identity
		}
		indexed++
	}
	r.logger.Info("Org reference map populated", "indexed", indexed, "keys", len(r.identities))
}

// GetIdentity finds the identity for a raw organization string seen in a
// country's table. A country-scoped match wins over a global one and an
// exact string wins over its normalized form. On a complete miss a new
// incomplete identity is created and cached under (country, raw).
func (r *Resolver) GetIdentity(raw, country string) *Identity {
	key := identityKey{country: country, lookup: raw}
	if identity, ok := r.identities[key]; ok {
		return identity
	}
	normalised := matching.Normalise(raw)
	for _, candidate := range []identityKey{
		{country: country, lookup: normalised},
		{country: "", lookup: raw},
		{country: "", lookup: normalised},
	} {
		if identity, ok := r.identities[candidate]; ok {
			r.identities[key] = identity
			return identity
		}
	}
	identity := &Identity{
		CanonicalName:  raw,
		NormalisedName: normalised,
	}
	r.identities[key] = identity
	return identity
}

// CompleteIdentity backfills a missing acronym and type code from the
// fallback values found on the source row itself. An unresolvable type
// label is reported as a missing value and the record continues.
func (r *Resolver) CompleteIdentity(identity *Identity, acronym, typeLabel, dataset string) {
	if identity.Acronym == "" && acronym != "" {
		if runes := []rune(acronym); len(runes) > r.maxAcronymLength {
			acronym = string(runes[:r.maxAcronymLength])
		}
		identity.Acronym = acronym
		identity.NormalisedAcronym = matching.Normalise(acronym)
	}

	if identity.TypeCode == "" && typeLabel != "" {
		typeCode := r.orgTypes.GetCode(typeLabel)
		if typeCode != "" {
			identity.TypeCode = typeCode
		} else {
			r.sink.MissingValue(dataset, "org type", typeLabel)
		}
	}
}

// MergeOrRegister folds the identity into the canonical org table keyed by
// its normalized (acronym, name). The first non-empty type code seen for a
// key is sticky; a later conflicting code is reported and discarded. The
// identity's acronym, name and type converge to the canonical values.
func (r *Resolver) MergeOrRegister(identity *Identity, dataset string) CanonicalOrg {
	key := canonicalKey{acronym: identity.NormalisedAcronym, name: identity.NormalisedName}
	org, ok := r.canonical[key]
	if ok {
		if org.TypeCode == "" && identity.TypeCode != "" {
			org.TypeCode = identity.TypeCode
		} else {
			if identity.TypeCode != "" && identity.TypeCode != org.TypeCode {
				r.sink.Warning(dataset, fmt.Sprintf(
					"conflicting org type for %s: kept %s, seen %s",
					org.Name, org.TypeCode, identity.TypeCode))
			}
			identity.TypeCode = org.TypeCode
		}
		// The lookup key already matches on normalized acronym and name, so
		// only the display forms need converging.
		identity.Acronym = org.Acronym
		identity.CanonicalName = org.Name
	} else {
		org = &CanonicalOrg{
			Acronym:  identity.Acronym,
			Name:     identity.CanonicalName,
			TypeCode: identity.TypeCode,
		}
		r.canonical[key] = org
	}
	identity.Complete = identity.Acronym != "" && identity.TypeCode != ""
	identity.Used = true
	return *org
}

// TypeDescription returns the preferred label for an org type code, "" for
// blank or unknown codes.
func (r *Resolver) TypeDescription(code string) string {
	return r.orgTypes.GetName(code)
}

// CanonicalOrgs returns the deduplicated org table sorted by acronym, name
// and type code.
func (r *Resolver) CanonicalOrgs() []CanonicalOrg {
	result := make([]CanonicalOrg, 0, len(r.canonical))
	for _, org := range r.canonical {
		result = append(result, *org)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Acronym != result[j].Acronym {
			return result[i].Acronym < result[j].Acronym
		}
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].TypeCode < result[j].TypeCode
	})
	return result
}
