// Package admins resolves free-text administrative-area names and partial
// pcodes onto the canonical subdivision tree of a country. Each admin level
// keeps its own index; name matching is scoped to the children of the
// already-resolved parent so same-named areas under different parents do
// not collide.
package admins

import (
	"fmt"
	"log/slog"
	"sort"

	"opresence/matching"
)

// MaxLevels is how deep the canonical tree goes.
const MaxLevels = 3

// Unit is one administrative subdivision at some level of a country.
type Unit struct {
	CountryISO3 string
	PCode       string
	Name        string
	ParentPCode string // "" at level 1
}

type levelIndex struct {
	units     map[string]*Unit   // pcode -> unit
	parents   map[string]string  // pcode -> parent pcode
	byCountry map[string][]*Unit // country -> units, insertion order
}

func newLevelIndex() *levelIndex {
	return &levelIndex{
		units:     make(map[string]*Unit),
		parents:   make(map[string]string),
		byCountry: make(map[string][]*Unit),
	}
}

// Resolver holds the per-level pcode trees, loaded once at startup from
// canonical reference data.
type Resolver struct {
	levels    [MaxLevels]*levelIndex
	phonetics *matching.Phonetics
	maxLevel  int
	logger    *slog.Logger
}

// NewResolver creates an admin resolver resolving down to maxLevel (1..3).
func NewResolver(maxLevel int) *Resolver {
	if maxLevel < 1 || maxLevel > MaxLevels {
		maxLevel = MaxLevels
	}
	r := &Resolver{
		phonetics: matching.NewPhonetics(),
		maxLevel:  maxLevel,
		logger:    slog.Default().With("component", "admin_resolver"),
	}
	for i := range r.levels {
		r.levels[i] = newLevelIndex()
	}
	return r
}

// AddUnit registers one subdivision at the given 1-based level.
func (r *Resolver) AddUnit(level int, unit Unit) error {
	if level < 1 || level > MaxLevels {
		return fmt.Errorf("admin level %d out of range 1..%d", level, MaxLevels)
	}
	if unit.PCode == "" {
		return fmt.Errorf("admin unit %q has no pcode", unit.Name)
	}
	index := r.levels[level-1]
	stored := unit
	index.units[unit.PCode] = &stored
	if unit.ParentPCode != "" {
		index.parents[unit.PCode] = unit.ParentPCode
	}
	index.byCountry[unit.CountryISO3] = append(index.byCountry[unit.CountryISO3], &stored)
	return nil
}

// UnitCount reports how many units are loaded at a 1-based level.
func (r *Resolver) UnitCount(level int) int {
	if level < 1 || level > MaxLevels {
		return 0
	}
	return len(r.levels[level-1].units)
}

// Name returns the canonical name for a pcode at a 1-based level, "" when
// unknown.
func (r *Resolver) Name(level int, pcode string) string {
	if level < 1 || level > MaxLevels || pcode == "" {
		return ""
	}
	if unit, ok := r.levels[level-1].units[pcode]; ok {
		return unit.Name
	}
	return ""
}

// Resolution is the outcome of resolving one row's admin columns.
type Resolution struct {
	Codes    []string // per level, "" when unresolved
	Names    []string // canonical names for resolved codes, else ""
	Depth    int      // deepest level with a code or non-empty provider name
	Warnings []string
}

// Resolve maps a row's provider names and provided codes onto canonical
// pcodes. Provided codes are validated deepest-first; a missing code is
// derived from the already-validated child via the parent table. Levels
// still lacking a code are matched by name against the children of the
// resolved parent (or the country's roots). Invalid pcodes and failed name
// matches yield warnings, never errors; the row keeps empty strings at
// unresolved levels.
func (r *Resolver) Resolve(countryISO3 string, providerNames, providedCodes []string) Resolution {
	res := Resolution{
		Codes: make([]string, r.maxLevel),
		Names: make([]string, r.maxLevel),
	}
	names := make([]string, r.maxLevel)
	copy(names, providerNames)
	codes := make([]string, r.maxLevel)
	copy(codes, providedCodes)

	// Pass 1: validate provided codes deepest-first, deriving missing
	// parents from the child's pcode.
	childCode := ""
	childLevel := 0
	for level := r.maxLevel; level >= 1; level-- {
		index := r.levels[level-1]
		code := codes[level-1]
		if code != "" {
			unit, ok := index.units[code]
			if !ok || unit.CountryISO3 != countryISO3 {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("invalid admin %d pcode %s", level, code))
				code = ""
			}
		}
		if code == "" && childCode != "" {
			// Walk up from the validated child.
			parent := childCode
			for l := childLevel; l > level; l-- {
				parent = r.levels[l-1].parents[parent]
				if parent == "" {
					break
				}
			}
			code = parent
		}
		if code != "" {
			res.Codes[level-1] = code
			childCode = code
			childLevel = level
		}
	}

	// Pass 2: name matching for levels still without a code, scoped to the
	// resolved parent where one exists.
	parent := ""
	for level := 1; level <= r.maxLevel; level++ {
		if res.Codes[level-1] != "" {
			parent = res.Codes[level-1]
			continue
		}
		name := names[level-1]
		if name == "" {
			continue
		}
		pcode, canonical := r.matchName(level, countryISO3, name, parent)
		if pcode == "" {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("admin %d name %q not found", level, name))
			continue
		}
		res.Codes[level-1] = pcode
		res.Names[level-1] = canonical
		parent = pcode
	}

	// Canonical names for codes resolved in pass 1.
	for level := 1; level <= r.maxLevel; level++ {
		if res.Codes[level-1] != "" && res.Names[level-1] == "" {
			res.Names[level-1] = r.Name(level, res.Codes[level-1])
		}
	}

	for level := 1; level <= r.maxLevel; level++ {
		if res.Codes[level-1] != "" || names[level-1] != "" {
			res.Depth = level
		}
	}

	return res
}

// matchName finds the pcode of name at a 1-based level, restricted to the
// children of parent when parent is non-empty. Exact normalized matches win;
// otherwise the phonetic matcher decides.
func (r *Resolver) matchName(level int, countryISO3, name, parent string) (string, string) {
	index := r.levels[level-1]
	var candidates []*Unit
	for _, unit := range index.byCountry[countryISO3] {
		if parent != "" && unit.ParentPCode != parent {
			continue
		}
		candidates = append(candidates, unit)
	}
	if len(candidates) == 0 {
		return "", ""
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].PCode < candidates[j].PCode })

	normalised := matching.Normalise(name)
	for _, unit := range candidates {
		if unit.Name == name || matching.Normalise(unit.Name) == normalised {
			return unit.PCode, unit.Name
		}
	}

	candidateNames := make([]string, len(candidates))
	for i, unit := range candidates {
		candidateNames[i] = unit.Name
	}
	matchIndex := r.phonetics.Match(candidateNames, name, normalised)
	if matchIndex < 0 {
		return "", ""
	}
	return candidates[matchIndex].PCode, candidates[matchIndex].Name
}
