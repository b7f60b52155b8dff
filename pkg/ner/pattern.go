package ner

import (
	"regexp"
	"strings"

	"github.com/atlasgraph/atlas/pkg/common"
)

// technicalLanguages are programming languages tagged as concepts. Matching
// is case-sensitive on the first letter so prose words like "go" and "basic"
// do not trigger.
var technicalLanguages = []string{
	"Go", "Golang", "Python", "Java", "JavaScript", "TypeScript", "Rust",
	"C++", "C#", "Ruby", "PHP", "Kotlin", "Swift", "Scala", "Haskell",
	"Erlang", "Elixir", "Clojure", "Perl", "Lua", "Dart", "Fortran",
	"COBOL", "SQL", "HTML", "CSS", "Bash", "PowerShell", "Zig", "OCaml",
	"Julia", "MATLAB",
}

// technicalProducts are frameworks, runtimes and infrastructure tools tagged
// as products.
var technicalProducts = []string{
	"React", "Angular", "Vue", "Svelte", "Next.js", "Node.js", "Deno",
	"Django", "Flask", "FastAPI", "Rails", "Laravel", "Spring", "Spring Boot",
	"Kubernetes", "Docker", "Terraform", "Ansible", "Jenkins", "GitHub",
	"GitLab", "PostgreSQL", "MySQL", "SQLite", "MongoDB", "Redis",
	"Elasticsearch", "Kafka", "RabbitMQ", "Nginx", "Apache", "GraphQL",
	"gRPC", "TensorFlow", "PyTorch", "Keras", "Pandas", "NumPy", "Spark",
	"Hadoop", "Airflow", "Grafana", "Prometheus", "Linux", "Windows",
	"macOS", "Android", "iOS",
}

// versionedNameRe matches a capitalized name followed by a dotted version
// ("Python 3.11", "Angular 17.0.1", "HTTP 2.0"). The whole span is the
// candidate so version variants stay distinguishable.
var versionedNameRe = regexp.MustCompile(`\b([A-Z][A-Za-z0-9.+#-]*(?:\s[A-Z][A-Za-z0-9.+#-]*)*)\s+v?(\d+(?:\.\d+)+)\b`)

// PatternDetector finds technical vocabulary by dictionary and regular
// expression matching. It needs no model and works on any language whose
// technical terms are written in Latin script, which is what makes it the
// fallback path for unsupported languages.
type PatternDetector struct {
	languages map[string]struct{}
	products  map[string]struct{}
}

// NewPatternDetector builds a detector over the built-in term dictionaries.
func NewPatternDetector() *PatternDetector {
	d := &PatternDetector{
		languages: make(map[string]struct{}, len(technicalLanguages)),
		products:  make(map[string]struct{}, len(technicalProducts)),
	}
	for _, term := range technicalLanguages {
		d.languages[term] = struct{}{}
	}
	for _, term := range technicalProducts {
		d.products[term] = struct{}{}
	}
	return d
}

// Detect returns candidates for every technical term found in the text.
// Versioned spans are matched first and shadow the bare term inside them, so
// "Python 3.11" yields one product candidate rather than a product and a
// concept. Each distinct surface form is reported once.
func (d *PatternDetector) Detect(text string) []Candidate {
	var out []Candidate
	seen := make(map[string]struct{})

	covered := make([]bool, len(text))
	for _, m := range versionedNameRe.FindAllStringSubmatchIndex(text, -1) {
		span := text[m[0]:m[1]]
		name := text[m[2]:m[3]]
		if !d.isKnownTerm(name) {
			continue
		}
		for i := m[0]; i < m[1]; i++ {
			covered[i] = true
		}
		key := strings.ToLower(span)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Candidate{Text: span, Type: common.EntityTypeProduct})
	}

	for _, tok := range tokenize(text) {
		if covered[tok.start] {
			continue
		}
		typ, ok := d.termType(tok.text)
		if !ok {
			continue
		}
		key := strings.ToLower(tok.text)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Candidate{Text: tok.text, Type: typ})
	}

	return out
}

func (d *PatternDetector) isKnownTerm(term string) bool {
	_, ok := d.termType(term)
	return ok
}

func (d *PatternDetector) termType(term string) (common.EntityType, bool) {
	if _, ok := d.products[term]; ok {
		return common.EntityTypeProduct, true
	}
	if _, ok := d.languages[term]; ok {
		return common.EntityTypeConcept, true
	}
	return common.EntityTypeOther, false
}

type token struct {
	text  string
	start int
}

// tokenize splits on whitespace and trims sentence punctuation while keeping
// characters that are part of technical names ("C++", "C#", "Node.js").
// Two-token product names like "Spring Boot" are probed by joining each
// token with its successor.
func tokenize(text string) []token {
	var tokens []token
	fields := strings.Fields(text)
	offset := 0
	for _, f := range fields {
		start := strings.Index(text[offset:], f) + offset
		offset = start + len(f)
		trimmed := strings.Trim(f, `.,;:!?()"'`+"`")
		if trimmed == "" {
			continue
		}
		// Node.js loses its suffix to the dot trim above; restore the raw
		// field when it ends in a known dotted extension.
		if strings.HasSuffix(strings.ToLower(f), ".js") {
			trimmed = strings.Trim(f, `,;:!?()"'`+"`")
		}
		shift := strings.Index(f, trimmed)
		if shift < 0 {
			shift = 0
		}
		tokens = append(tokens, token{text: trimmed, start: start + shift})
	}

	// Join adjacent tokens so multi-word products are single candidates.
	joined := make([]token, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		if i+1 < len(tokens) {
			pair := tokens[i].text + " " + tokens[i+1].text
			if _, ok := knownPairs[pair]; ok {
				joined = append(joined, token{text: pair, start: tokens[i].start})
				i++
				continue
			}
		}
		joined = append(joined, tokens[i])
	}
	return joined
}

var knownPairs = map[string]struct{}{
	"Spring Boot": {},
}
