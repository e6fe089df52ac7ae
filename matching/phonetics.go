package matching

import (
	"strings"
)

// Phonetics implements a metaphone-style phonetic encoder for Latin-script
// names together with a candidate matcher. Names that sound alike encode to
// the same key, which makes the matcher robust against the spelling drift
// seen in hand-typed source tables ("organisation" vs "organization").
type Phonetics struct {
	// MinSimilarity is the edit-distance ratio a candidate must reach when
	// no phonetic key matches exactly.
	MinSimilarity float64
}

// DefaultMinSimilarity is the fallback edit-ratio threshold for candidates
// whose phonetic keys do not match.
const DefaultMinSimilarity = 0.9

// NewPhonetics creates a phonetic matcher with default thresholds.
func NewPhonetics() *Phonetics {
	return &Phonetics{MinSimilarity: DefaultMinSimilarity}
}

// Encode produces the phonetic key of a name. The input is normalized
// first, so case, punctuation and diacritics never influence the key.
func (p *Phonetics) Encode(text string) string {
	text = strings.ToUpper(Normalise(text))
	var cleaned strings.Builder
	for _, r := range text {
		if r >= 'A' && r <= 'Z' {
			cleaned.WriteRune(r)
		}
	}
	runes := []rune(cleaned.String())
	length := len(runes)
	if length == 0 {
		return ""
	}

	var result strings.Builder

	i := 0
	// Leading silent pairs: KNight, GNome, PNeumonia, WRite.
	if length > 1 {
		switch string(runes[0:2]) {
		case "KN", "GN", "PN", "WR":
			i = 1
		}
	}
	if runes[i] == 'X' {
		result.WriteByte('S')
		i++
	} else {
		result.WriteRune(runes[i])
		i++
	}

	for i < length {
		curr := runes[i]
		var prev, next rune
		if i > 0 {
			prev = runes[i-1]
		}
		if i < length-1 {
			next = runes[i+1]
		}
		var nextNext rune
		if i < length-2 {
			nextNext = runes[i+2]
		}

		code, skip := phoneticCode(curr, prev, next, nextNext, i == length-1)
		if code != "" {
			// Collapse doubled codes ("SS" -> "S").
			tail := result.String()
			if !strings.HasSuffix(tail, code) {
				result.WriteString(code)
			}
		}
		i += 1 + skip
	}

	return result.String()
}

// phoneticCode maps one letter to its code given its neighbours. The second
// return value is how many extra letters the digraph consumed.
func phoneticCode(curr, prev, next, nextNext rune, last bool) (string, int) {
	switch curr {
	case 'A', 'E', 'I', 'O', 'U':
		return "", 0 // vowels only survive as the first letter
	case 'B':
		if last && prev == 'M' {
			return "", 0 // laMB
		}
		return "B", 0
	case 'C':
		if next == 'H' {
			return "X", 1 // CHurch
		}
		if next == 'I' && nextNext == 'A' {
			return "X", 0 // speCIAl
		}
		if next == 'I' || next == 'E' || next == 'Y' {
			return "S", 0
		}
		if next == 'K' {
			return "K", 1 // baCK
		}
		return "K", 0
	case 'D':
		if next == 'G' && (nextNext == 'E' || nextNext == 'I' || nextNext == 'Y') {
			return "J", 1 // eDGe
		}
		return "T", 0
	case 'F':
		return "F", 0
	case 'G':
		if next == 'H' {
			return "K", 1 // GHost; roughly right for aGHast too
		}
		if next == 'N' && last {
			return "N", 1 // siGN... final GN
		}
		if next == 'I' || next == 'E' || next == 'Y' {
			return "J", 0
		}
		return "K", 0
	case 'H':
		if isPhoneticVowel(next) && !isPhoneticVowel(prev) {
			return "H", 0
		}
		return "", 0
	case 'J':
		return "J", 0
	case 'K':
		if prev == 'C' {
			return "", 0
		}
		return "K", 0
	case 'L':
		return "L", 0
	case 'M':
		return "M", 0
	case 'N':
		return "N", 0
	case 'P':
		if next == 'H' {
			return "F", 1 // PHone
		}
		return "P", 0
	case 'Q':
		return "K", 0
	case 'R':
		return "R", 0
	case 'S':
		if next == 'H' {
			return "X", 1 // SHelter
		}
		if next == 'I' && (nextNext == 'O' || nextNext == 'A') {
			return "X", 0 // proviSIOn
		}
		return "S", 0
	case 'T':
		if next == 'H' {
			return "0", 1 // healTH
		}
		if next == 'I' && (nextNext == 'O' || nextNext == 'A') {
			return "X", 0 // educaTIOn
		}
		return "T", 0
	case 'V':
		return "F", 0
	case 'W':
		if isPhoneticVowel(next) {
			return "W", 0
		}
		return "", 0
	case 'X':
		return "KS", 0
	case 'Y':
		if isPhoneticVowel(next) {
			return "Y", 0
		}
		return "", 0
	case 'Z':
		return "S", 0
	}
	return string(curr), 0
}

func isPhoneticVowel(r rune) bool {
	switch r {
	case 'A', 'E', 'I', 'O', 'U':
		return true
	}
	return false
}

// Match finds the best candidate for name among possibleNames and returns
// its index, or -1 when nothing is close enough. alternativeName is the
// normalized form of name and participates in both phases. Candidates whose
// phonetic key equals that of name (or its alternative) win first; they are
// ranked by edit similarity. When no key matches, the candidate with the
// highest similarity is accepted if it reaches MinSimilarity.
func (p *Phonetics) Match(possibleNames []string, name string, alternativeName string) int {
	if len(possibleNames) == 0 {
		return -1
	}
	nameCode := p.Encode(name)
	altCode := ""
	if alternativeName != "" && alternativeName != name {
		altCode = p.Encode(alternativeName)
	}

	bestIndex := -1
	bestScore := -1.0
	phoneticHit := false

	for i, candidate := range possibleNames {
		candidateNorm := Normalise(candidate)
		score := Similarity(Normalise(name), candidateNorm)
		if s := Similarity(alternativeName, candidateNorm); s > score {
			score = s
		}

		candidateCode := p.Encode(candidate)
		codeMatches := candidateCode != "" &&
			(candidateCode == nameCode || (altCode != "" && candidateCode == altCode))

		switch {
		case codeMatches && !phoneticHit:
			// First phonetic hit displaces any similarity-only candidate.
			phoneticHit = true
			bestIndex = i
			bestScore = score
		case codeMatches && score > bestScore:
			bestIndex = i
			bestScore = score
		case !codeMatches && !phoneticHit && score > bestScore:
			bestIndex = i
			bestScore = score
		}
	}

	if phoneticHit {
		return bestIndex
	}
	if bestScore >= p.MinSimilarity {
		return bestIndex
	}
	return -1
}
