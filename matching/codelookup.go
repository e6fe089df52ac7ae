package matching

import "sort"

// DefaultMinFuzzyLength is the shortest name (in bytes) eligible for fuzzy
// matching. Anything at or below it is too ambiguous to guess at.
const DefaultMinFuzzyLength = 5

// CodeLookup resolves free-text names onto canonical codes. Successful
// normalized and fuzzy resolutions are memoized back into the lookup table
// so repeated raw strings resolve in O(1); names that fail are remembered in
// an unmatched set and never retried for the life of the process.
//
// CodeLookup mutates itself on lookup and carries no locking: callers run
// it single-threaded.
type CodeLookup struct {
	codes          map[string]string
	unmatched      map[string]bool
	phonetics      *Phonetics
	stemmer        *Stemmer
	minFuzzyLength int

	fuzzyAttempts int
}

// NewCodeLookup creates an empty lookup. minFuzzyLength <= 0 selects
// DefaultMinFuzzyLength.
func NewCodeLookup(minFuzzyLength int) *CodeLookup {
	if minFuzzyLength <= 0 {
		minFuzzyLength = DefaultMinFuzzyLength
	}
	return &CodeLookup{
		codes:          make(map[string]string),
		unmatched:      make(map[string]bool),
		phonetics:      NewPhonetics(),
		stemmer:        NewStemmer(),
		minFuzzyLength: minFuzzyLength,
	}
}

// Add maps one name variant onto a code.
func (l *CodeLookup) Add(name, code string) {
	if name == "" {
		return
	}
	l.codes[name] = code
}

// AddEntry registers a canonical (code, label) pair under its four variants:
// the code, the label, and both normalized forms, all pointing at the code.
func (l *CodeLookup) AddEntry(code, label string) {
	l.Add(code, code)
	l.Add(label, code)
	l.Add(Normalise(code), code)
	l.Add(Normalise(label), code)
}

// Len reports the number of name variants currently mapped.
func (l *CodeLookup) Len() int {
	return len(l.codes)
}

// FuzzyAttempts reports how many lookups reached the fuzzy matching phase.
func (l *CodeLookup) FuzzyAttempts() int {
	return l.fuzzyAttempts
}

// IsUnmatched reports whether name has been recorded as unresolvable.
func (l *CodeLookup) IsUnmatched(name string) bool {
	return l.unmatched[name]
}

// Get resolves name to its code, or "" when it cannot be resolved.
// Resolution order: exact match, unmatched-set short circuit, normalized
// match (memoized), length guard, fuzzy permission guard, stem-equality
// then phonetic/fuzzy match (both memoized). Lookups mutate the lookup's
// caches.
func (l *CodeLookup) Get(name string, allowFuzzy bool) string {
	if code, ok := l.codes[name]; ok {
		return code
	}
	if l.unmatched[name] {
		return ""
	}
	normalised := Normalise(name)
	if code, ok := l.codes[normalised]; ok {
		l.codes[name] = code
		return code
	}
	if len(name) <= l.minFuzzyLength {
		l.unmatched[name] = true
		return ""
	}
	if !allowFuzzy {
		l.unmatched[name] = true
		return ""
	}

	l.fuzzyAttempts++
	candidates := make([]string, 0, len(l.codes))
	for key := range l.codes {
		if len(key) > l.minFuzzyLength {
			candidates = append(candidates, key)
		}
	}
	// Map iteration order is random; sort so equal-scoring ties resolve the
	// same way on every run.
	sort.Strings(candidates)

	// Inflected variants of a known label share its stemmed tokens, so try
	// stem equality before the phonetic pass.
	stemmed := l.stemmer.StemPhrase(normalised)
	for _, candidate := range candidates {
		if l.stemmer.StemPhrase(Normalise(candidate)) == stemmed {
			code := l.codes[candidate]
			l.codes[name] = code
			l.codes[normalised] = code
			return code
		}
	}

	index := l.phonetics.Match(candidates, name, normalised)
	if index < 0 {
		l.unmatched[name] = true
		return ""
	}
	code := l.codes[candidates[index]]
	l.codes[name] = code
	l.codes[normalised] = code
	return code
}
