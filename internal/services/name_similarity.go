package services

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

var nonWord = regexp.MustCompile(`[^\w\s]`)

// normalizeName folds a station name for comparison: diacritics removed,
// lower case, punctuation dropped, whitespace collapsed.
func normalizeName(name string) string {
	name = unidecode.Unidecode(name)
	name = strings.ToLower(name)
	name = strings.NewReplacer("-", " ", "/", " ", "&", " ").Replace(name)
	name = nonWord.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(name), " ")
}

// NameSimilarity scores two names from 0 (unrelated or missing) to 100 (same
// after normalization).
func NameSimilarity(a, b string) int {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 100
	}
	return fuzzy.Ratio(na, nb)
}
