// Package normalize canonicalizes raw entity surface forms before
// deduplication. Normalization is a pure function of the input name and
// entity type: the same input always yields the same output, and applying
// it twice yields the same result as applying it once.
package normalize

import (
	"strings"

	"github.com/atlasgraph/atlas/pkg/common"
)

// organizationSuffixes lists legal-entity suffixes stripped from the end of
// organization names. The list is language-aware and extensible; matching is
// case- and dot-insensitive. List order is irrelevant because matching
// always prefers the longest trailing match, so multi-token suffixes win
// over their shorter variants.
//
// Known ambiguity: a multi-word organization whose last word is itself
// meaningful (e.g. "Amazon Web Services") can be truncated incorrectly when
// that word collides with a suffix. This is a documented accuracy gap, not
// something we special-case per brand.
var organizationSuffixes = []string{
	"inc", "incorporated", "corp", "corporation", "co", "company",
	"ltd", "limited", "llc", "llp", "lp", "plc", "pllc",
	"gmbh", "ag", "kg", "kgaa", "ug", "ev", "ggmbh",
	"sa", "sas", "sarl", "sl", "slu", "spa", "srl", "snc",
	"bv", "nv", "vof",
	"ab", "as", "aps", "oy", "oyj", "asa",
	"sp z oo", "sp zoo", "sro", "zrt", "kft", "doo",
	"pty ltd", "pty", "pte ltd", "pte", "kk", "yk",
}

// personTitles lists leading titles and honorifics stripped from person
// names, including common non-English forms.
var personTitles = []string{
	"dr", "prof", "professor", "mr", "mrs", "ms", "miss", "mx",
	"sir", "dame", "lord", "lady", "rev", "fr", "hon",
	"herr", "frau", "mme", "mlle", "monsieur", "madame",
	"sr", "sra", "srta", "dott", "ing",
}

// personSuffixes lists trailing generational and credential suffixes
// stripped from person names.
var personSuffixes = []string{
	"jr", "sr", "ii", "iii", "iv",
	"phd", "ph d", "md", "m d", "dds", "esq", "jd", "mba", "msc", "bsc",
}

// Normalize canonicalizes a raw entity string for its type: collapses
// whitespace for every type, strips legal-entity suffixes from
// organizations, and strips titles and credential suffixes from persons.
// Name-internal particles such as "van", "de" or "von" are preserved
// because stripping only ever touches the ends of the name.
func Normalize(raw string, entityType common.EntityType) string {
	name := collapseWhitespace(raw)
	if name == "" {
		return ""
	}

	switch entityType {
	case common.EntityTypeOrganization:
		name = stripOrganizationSuffixes(name)
	case common.EntityTypePerson:
		name = stripPersonTitles(name)
		name = stripPersonSuffixes(name)
	}

	return name
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// foldToken lowercases a token and removes dots and commas so "Inc.",
// "inc" and "Inc," compare equal.
func foldToken(tok string) string {
	tok = strings.ToLower(tok)
	tok = strings.ReplaceAll(tok, ".", "")
	tok = strings.ReplaceAll(tok, ",", "")
	return tok
}

func foldTokens(tokens []string) string {
	folded := make([]string, len(tokens))
	for i, tok := range tokens {
		folded[i] = foldToken(tok)
	}
	return strings.Join(folded, " ")
}

// stripOrganizationSuffixes removes trailing legal-entity suffixes, longest
// match first, repeating until no suffix matches. A suffix is only removed
// when at least one token remains, so a brand that consists of nothing but
// the suffix keeps its name.
func stripOrganizationSuffixes(name string) string {
	for {
		tokens := strings.Fields(name)
		if len(tokens) < 2 {
			return name
		}

		stripped := false
		// Longest suffix first so "Pty Ltd" wins over "Ltd".
		for width := 3; width >= 1; width-- {
			if width >= len(tokens) {
				continue
			}
			tail := foldTokens(tokens[len(tokens)-width:])
			for _, suffix := range organizationSuffixes {
				if tail == suffix {
					name = strings.Join(tokens[:len(tokens)-width], " ")
					name = strings.TrimRight(name, ",")
					stripped = true
					break
				}
			}
			if stripped {
				break
			}
		}

		if !stripped {
			return name
		}
	}
}

func stripPersonTitles(name string) string {
	for {
		tokens := strings.Fields(name)
		if len(tokens) < 2 {
			return name
		}

		head := foldToken(tokens[0])
		stripped := false
		for _, title := range personTitles {
			if head == title {
				name = strings.Join(tokens[1:], " ")
				stripped = true
				break
			}
		}

		if !stripped {
			return name
		}
	}
}

func stripPersonSuffixes(name string) string {
	for {
		tokens := strings.Fields(name)
		if len(tokens) < 2 {
			return name
		}

		stripped := false
		for width := 2; width >= 1; width-- {
			if width >= len(tokens) {
				continue
			}
			tail := foldTokens(tokens[len(tokens)-width:])
			for _, suffix := range personSuffixes {
				if tail == suffix {
					name = strings.Join(tokens[:len(tokens)-width], " ")
					name = strings.TrimRight(name, ",")
					stripped = true
					break
				}
			}
			if stripped {
				break
			}
		}

		if !stripped {
			return name
		}
	}
}
