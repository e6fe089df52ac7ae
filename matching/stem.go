package matching

import (
	"strings"

	"github.com/kljensen/snowball"
)

// Stemmer reduces English words to their snowball stems so inflected
// variants of a label ("Educations", "Education") compare equal. Stems are
// cached per word; like the rest of the package there is no locking.
type Stemmer struct {
	cache map[string]string
}

// NewStemmer creates a caching English stemmer.
func NewStemmer() *Stemmer {
	return &Stemmer{cache: make(map[string]string)}
}

// Stem returns the stem of one lowercase word. Words the stemmer cannot
// handle come back unchanged.
func (s *Stemmer) Stem(word string) string {
	if word == "" {
		return ""
	}
	if stemmed, ok := s.cache[word]; ok {
		return stemmed
	}
	stemmed, err := snowball.Stem(word, "english", true)
	if err != nil {
		stemmed = word
	}
	s.cache[word] = stemmed
	return stemmed
}

// StemPhrase stems every whitespace-separated token of an already
// normalized phrase.
func (s *Stemmer) StemPhrase(phrase string) string {
	if phrase == "" {
		return ""
	}
	tokens := strings.Fields(phrase)
	for i, token := range tokens {
		tokens[i] = s.Stem(token)
	}
	return strings.Join(tokens, " ")
}
