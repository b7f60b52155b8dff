package ner

import (
	"context"
	"errors"
	"testing"

	"github.com/atlasgraph/atlas/pkg/common"
)

type fakeRecognizer struct {
	candidates []Candidate
	err        error
	calls      int
}

func (f *fakeRecognizer) Recognize(_ context.Context, _ string) ([]Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func TestMapLabel(t *testing.T) {
	tests := []struct {
		label string
		want  common.EntityType
		ok    bool
	}{
		{"PERSON", common.EntityTypePerson, true},
		{"per", common.EntityTypePerson, true},
		{"ORG", common.EntityTypeOrganization, true},
		{"Organization", common.EntityTypeOrganization, true},
		{"GPE", common.EntityTypeLocation, true},
		{"PRODUCT", common.EntityTypeProduct, true},
		{"EVENT", common.EntityTypeEvent, true},
		{"DATE", common.EntityTypeOther, false},
		{"MONEY", common.EntityTypeOther, false},
		{"PERCENT", common.EntityTypeOther, false},
		{"", common.EntityTypeOther, false},
	}

	for _, tt := range tests {
		got, ok := MapLabel(tt.label)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MapLabel(%q) = (%s, %v), want (%s, %v)", tt.label, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRegistryUnsupportedLanguage(t *testing.T) {
	reg := NewRegistry()
	reg.Register("en", &fakeRecognizer{})

	if _, err := reg.Recognizer("en"); err != nil {
		t.Fatalf("registered language lookup failed: %v", err)
	}
	if _, err := reg.Recognizer("EN"); err != nil {
		t.Errorf("language lookup should be case-insensitive: %v", err)
	}

	_, err := reg.Recognizer("xx")
	if !errors.Is(err, common.ErrUnsupportedLanguage) {
		t.Errorf("expected ErrUnsupportedLanguage, got %v", err)
	}
}

func TestExtractMergesModelAndPatternCandidates(t *testing.T) {
	reg := NewRegistry()
	rec := &fakeRecognizer{candidates: []Candidate{
		{Text: "Ada Lovelace", Type: common.EntityTypePerson},
		{Text: "Analytical Engine", Type: common.EntityTypeProduct},
	}}
	reg.Register("en", rec)
	ex := NewExtractor(reg)

	res, err := ex.Extract(context.Background(), "Ada Lovelace wrote programs in Python for the Analytical Engine.", "en")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.PatternOnly {
		t.Errorf("PatternOnly should be false when a model served the chunk")
	}

	want := map[string]common.EntityType{
		"Ada Lovelace":      common.EntityTypePerson,
		"Analytical Engine": common.EntityTypeProduct,
		"Python":            common.EntityTypeConcept,
	}
	if len(res.Candidates) != len(want) {
		t.Fatalf("got %d candidates %v, want %d", len(res.Candidates), res.Candidates, len(want))
	}
	for _, c := range res.Candidates {
		if want[c.Text] != c.Type {
			t.Errorf("candidate %q has type %s, want %s", c.Text, c.Type, want[c.Text])
		}
	}
}

func TestExtractModelWinsOnOverlap(t *testing.T) {
	reg := NewRegistry()
	reg.Register("en", &fakeRecognizer{candidates: []Candidate{
		{Text: "Python", Type: common.EntityTypeProduct},
	}})
	ex := NewExtractor(reg)

	res, err := ex.Extract(context.Background(), "We migrated the service to Python.", "en")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("overlapping span counted twice: %v", res.Candidates)
	}
	if res.Candidates[0].Type != common.EntityTypeProduct {
		t.Errorf("model label should win on overlap, got %s", res.Candidates[0].Type)
	}
}

func TestExtractUnsupportedLanguage(t *testing.T) {
	ex := NewExtractor(NewRegistry())

	_, err := ex.Extract(context.Background(), "text", "xx")
	if !errors.Is(err, common.ErrUnsupportedLanguage) {
		t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
	}

	res := ex.ExtractPatternOnly("The backend uses Go, PostgreSQL and Redis.")
	if !res.PatternOnly {
		t.Errorf("PatternOnly should be set in degraded mode")
	}
	names := map[string]bool{}
	for _, c := range res.Candidates {
		names[c.Text] = true
	}
	for _, want := range []string{"Go", "PostgreSQL", "Redis"} {
		if !names[want] {
			t.Errorf("pattern-only extraction missed %q: %v", want, res.Candidates)
		}
	}
}

func TestExtractModelFailurePropagates(t *testing.T) {
	reg := NewRegistry()
	wantErr := errors.New("model timeout")
	reg.Register("en", &fakeRecognizer{err: wantErr})
	ex := NewExtractor(reg)

	_, err := ex.Extract(context.Background(), "text", "en")
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped model error, got %v", err)
	}
}

func TestExtractFiltersNoise(t *testing.T) {
	reg := NewRegistry()
	reg.Register("en", &fakeRecognizer{candidates: []Candidate{
		{Text: "it was mentioned", Type: common.EntityTypeConcept},
		{Text: "Berlin", Type: common.EntityTypeLocation},
		{Text: "in the morning", Type: common.EntityTypeConcept},
	}})
	ex := NewExtractor(reg)

	res, err := ex.Extract(context.Background(), "Berlin.", "en")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].Text != "Berlin" {
		t.Errorf("noise survived the filter: %v", res.Candidates)
	}
	if res.Rejected != 2 {
		t.Errorf("Rejected = %d, want 2", res.Rejected)
	}
}

func TestIsNoise(t *testing.T) {
	tests := []struct {
		span string
		want bool
	}{
		{"Berlin", false},
		{"Angela Merkel", false},
		{"Will Smith", false},
		{"New York City", false},
		{"it was mentioned", true},
		{"they arrived", true},
		{"his company", true},
		{"in the morning", true},
		{"of the people", true},
		{"the deal that was signed by both parties yesterday afternoon", true},
		{"x", true},
		{"", true},
		{"C#", false},
	}

	for _, tt := range tests {
		if got := IsNoise(tt.span); got != tt.want {
			t.Errorf("IsNoise(%q) = %v, want %v", tt.span, got, tt.want)
		}
	}
}

func TestPatternDetectorVersionedNames(t *testing.T) {
	d := NewPatternDetector()

	got := d.Detect("We run Python 3.11 behind Nginx, with some legacy COBOL batch jobs.")

	byName := map[string]common.EntityType{}
	for _, c := range got {
		byName[c.Text] = c.Type
	}

	if typ, ok := byName["Python 3.11"]; !ok || typ != common.EntityTypeProduct {
		t.Errorf("versioned span not detected as product: %v", got)
	}
	if _, ok := byName["Python"]; ok {
		t.Errorf("bare term inside versioned span should be shadowed: %v", got)
	}
	if typ, ok := byName["Nginx"]; !ok || typ != common.EntityTypeProduct {
		t.Errorf("Nginx not detected as product: %v", got)
	}
	if typ, ok := byName["COBOL"]; !ok || typ != common.EntityTypeConcept {
		t.Errorf("COBOL not detected as concept: %v", got)
	}
}

func TestPatternDetectorCaseSensitive(t *testing.T) {
	d := NewPatternDetector()

	got := d.Detect("let's go to the basic market")
	if len(got) != 0 {
		t.Errorf("lowercase prose words matched as technical terms: %v", got)
	}
}

func TestPatternDetectorSpecialCharacters(t *testing.T) {
	d := NewPatternDetector()

	got := d.Detect("The services are written in C++ and C#, with a Node.js gateway.")

	byName := map[string]common.EntityType{}
	for _, c := range got {
		byName[c.Text] = c.Type
	}
	for _, want := range []string{"C++", "C#", "Node.js"} {
		if _, ok := byName[want]; !ok {
			t.Errorf("term %q not detected: %v", want, got)
		}
	}
}
