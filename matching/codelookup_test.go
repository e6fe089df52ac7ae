package matching

import "testing"

func setupSectorLookup(t *testing.T) *CodeLookup {
	t.Helper()
	lookup := NewCodeLookup(0)
	lookup.AddEntry("HEA", "Health")
	lookup.AddEntry("EDU", "Education")
	lookup.AddEntry("PRO", "Protection")
	return lookup
}

func TestGetExactMatch(t *testing.T) {
	lookup := setupSectorLookup(t)

	if got := lookup.Get("Health", true); got != "HEA" {
		t.Errorf("Get(Health) = %q, want HEA", got)
	}
	// Codes resolve to themselves.
	if got := lookup.Get("HEA", true); got != "HEA" {
		t.Errorf("Get(HEA) = %q, want HEA", got)
	}
}

func TestGetNormalisedMatchMemoizes(t *testing.T) {
	lookup := setupSectorLookup(t)

	before := lookup.Len()
	if got := lookup.Get("HEALTH.", true); got != "HEA" {
		t.Errorf("Get(HEALTH.) = %q, want HEA", got)
	}
	if lookup.Len() != before+1 {
		t.Errorf("raw string was not memoized: len %d, want %d", lookup.Len(), before+1)
	}
	// The memoized raw string now resolves without touching fuzzy matching.
	if got := lookup.Get("HEALTH.", true); got != "HEA" {
		t.Errorf("repeat Get(HEALTH.) = %q, want HEA", got)
	}
	if lookup.FuzzyAttempts() != 0 {
		t.Errorf("normalized match should not reach fuzzy phase, got %d attempts", lookup.FuzzyAttempts())
	}
}

func TestGetShortNameGuard(t *testing.T) {
	lookup := setupSectorLookup(t)

	// A 3-character unknown must be recorded unmatched without any fuzzy work.
	if got := lookup.Get("WSH", true); got != "" {
		t.Errorf("Get(WSH) = %q, want empty", got)
	}
	if !lookup.IsUnmatched("WSH") {
		t.Error("short unmatched name was not recorded in the unmatched set")
	}
	if lookup.FuzzyAttempts() != 0 {
		t.Errorf("short name reached fuzzy matching: %d attempts", lookup.FuzzyAttempts())
	}
}

func TestGetFuzzyMatchMemoizes(t *testing.T) {
	lookup := setupSectorLookup(t)

	if got := lookup.Get("Healthe", true); got != "HEA" {
		t.Fatalf("Get(Healthe) = %q, want HEA", got)
	}
	if lookup.FuzzyAttempts() != 1 {
		t.Fatalf("expected one fuzzy attempt, got %d", lookup.FuzzyAttempts())
	}
	// Both the raw and normalized forms are memoized; the repeat lookup must
	// not re-invoke fuzzy matching.
	if got := lookup.Get("Healthe", true); got != "HEA" {
		t.Errorf("repeat Get(Healthe) = %q, want HEA", got)
	}
	if got := lookup.Get("healthe", true); got != "HEA" {
		t.Errorf("Get(healthe) = %q, want HEA", got)
	}
	if lookup.FuzzyAttempts() != 1 {
		t.Errorf("fuzzy matching re-invoked: %d attempts", lookup.FuzzyAttempts())
	}
}

func TestGetStemEqualityMatch(t *testing.T) {
	lookup := setupSectorLookup(t)

	// "Educations" and "Education" share the stem "educ"; the plural must
	// resolve through stem equality inside the fuzzy phase and be memoized.
	if got := lookup.Get("Educations", true); got != "EDU" {
		t.Fatalf("Get(Educations) = %q, want EDU", got)
	}
	if lookup.FuzzyAttempts() != 1 {
		t.Fatalf("expected one fuzzy attempt, got %d", lookup.FuzzyAttempts())
	}
	if got := lookup.Get("Educations", true); got != "EDU" {
		t.Errorf("repeat Get(Educations) = %q, want EDU", got)
	}
	if got := lookup.Get("educations", true); got != "EDU" {
		t.Errorf("Get(educations) = %q, want EDU", got)
	}
	if lookup.FuzzyAttempts() != 1 {
		t.Errorf("stem match was not memoized: %d attempts", lookup.FuzzyAttempts())
	}
}

func TestGetFuzzyDisallowed(t *testing.T) {
	lookup := setupSectorLookup(t)

	if got := lookup.Get("Healthe", false); got != "" {
		t.Errorf("Get with fuzzy disallowed = %q, want empty", got)
	}
	if !lookup.IsUnmatched("Healthe") {
		t.Error("fuzzy-disallowed miss was not recorded unmatched")
	}
}

func TestGetUnmatchedNeverRetried(t *testing.T) {
	lookup := setupSectorLookup(t)

	if got := lookup.Get("Wibbleton", true); got != "" {
		t.Fatalf("Get(Wibbleton) = %q, want empty", got)
	}
	attempts := lookup.FuzzyAttempts()
	if attempts != 1 {
		t.Fatalf("expected one fuzzy attempt, got %d", attempts)
	}
	if got := lookup.Get("Wibbleton", true); got != "" {
		t.Errorf("repeat Get(Wibbleton) = %q, want empty", got)
	}
	if lookup.FuzzyAttempts() != attempts {
		t.Error("unmatched name was retried through fuzzy matching")
	}
}
