package ner

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxCandidateTokens caps the candidate length. Anything longer is a
// sentence fragment the model failed to segment, not an entity name.
const maxCandidateTokens = 8

// pronounLeads are lowercase pronouns and possessive contractions that mark
// a span as prose rather than a name when they appear lowercased at the
// start.
var pronounLeads = map[string]struct{}{
	"i": {}, "i'm": {}, "i've": {}, "he": {}, "she": {}, "it": {},
	"it's": {}, "its": {}, "we": {}, "they": {}, "them": {}, "you": {},
	"his": {}, "her": {}, "their": {}, "our": {}, "your": {}, "my": {},
	"this": {}, "that": {}, "these": {}, "those": {},
}

// prepositionLeads mark bare prepositional phrases ("in the morning").
var prepositionLeads = map[string]struct{}{
	"in": {}, "of": {}, "on": {}, "at": {}, "for": {}, "with": {},
	"from": {}, "by": {}, "to": {}, "into": {}, "over": {}, "under": {},
}

// verbMarkers are auxiliary verbs whose presence mid-span means the model
// returned a clause instead of a name.
var verbMarkers = map[string]struct{}{
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"being": {}, "has": {}, "have": {}, "had": {}, "will": {},
	"would": {}, "can": {}, "could": {}, "should": {}, "does": {},
	"did": {},
}

// IsNoise reports whether a candidate span is a sentence fragment rather
// than an entity name. The filter is deliberately narrow: it only rejects
// clear prose markers, because an over-eager filter silently erodes recall
// while a missed fragment merely adds one bad node.
func IsNoise(span string) bool {
	span = strings.TrimSpace(span)
	if utf8.RuneCountInString(span) < 2 {
		return true
	}

	tokens := strings.Fields(span)
	if len(tokens) == 0 || len(tokens) > maxCandidateTokens {
		return true
	}

	first := tokens[0]
	if startsLower(first) {
		key := strings.Trim(strings.ToLower(first), `.,;:!?"'`)
		if _, ok := pronounLeads[key]; ok {
			return true
		}
		if _, ok := prepositionLeads[key]; ok {
			return true
		}
	}

	// Auxiliary verbs inside the span, lowercased, mean it is a clause.
	// The first and last position are exempt so names like "Will Smith"
	// survive when the model lowercases nothing.
	for i := 1; i < len(tokens)-1; i++ {
		if !startsLower(tokens[i]) {
			continue
		}
		if _, ok := verbMarkers[strings.ToLower(tokens[i])]; ok {
			return true
		}
	}

	return false
}

func startsLower(tok string) bool {
	r, _ := utf8.DecodeRuneInString(tok)
	return unicode.IsLower(r)
}
