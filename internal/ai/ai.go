// Package ai wires the configured model adapter into a recognizer registry.
// The server, the worker and the migrate CLI all build their extraction
// stack through this package so the adapter selection lives in one place.
package ai

import (
	"strings"

	"github.com/atlasgraph/atlas/internal/util"
	"github.com/atlasgraph/atlas/pkg/logger"
	"github.com/atlasgraph/atlas/pkg/ner"
	nerollama "github.com/atlasgraph/atlas/pkg/ner/ollama"
	neropenai "github.com/atlasgraph/atlas/pkg/ner/openai"
)

// BuildRegistry creates a recognizer registry from the environment. The
// AI_ADAPTER variable selects the backend ("ollama" or OpenAI-compatible by
// default) and NER_LANGUAGES lists the language codes the model serves.
// Chunks in any other language fall back to pattern-only extraction.
func BuildRegistry() *ner.Registry {
	adapter := util.GetEnv("AI_ADAPTER")

	var rec ner.Recognizer
	switch adapter {
	case "ollama":
		client, err := nerollama.NewRecognizer(nerollama.NewRecognizerParams{
			Model:   util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_MAX_CONCURRENT_REQUESTS", 1)),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama recognizer", "err", err)
		}
		rec = client
	default:
		rec = neropenai.NewRecognizer(neropenai.NewRecognizerParams{
			Model:   util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),
		})
	}

	registry := ner.NewRegistry()
	for _, lang := range strings.Split(util.GetEnvString("NER_LANGUAGES", "en"), ",") {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		registry.Register(lang, rec)
	}
	return registry
}

// Metrics collects accumulated model usage across every registered
// recognizer, skipping backends that do not track metrics. Registering one
// recognizer under several languages does not double count.
func Metrics(registry *ner.Registry) ner.Metrics {
	var total ner.Metrics
	seen := make(map[ner.MetricsProvider]struct{})
	for _, lang := range registry.Languages() {
		rec, err := registry.Recognizer(lang)
		if err != nil {
			continue
		}
		mp, ok := rec.(ner.MetricsProvider)
		if !ok {
			continue
		}
		if _, dup := seen[mp]; dup {
			continue
		}
		seen[mp] = struct{}{}
		m := mp.Metrics()
		total.Requests += m.Requests
		total.DurationMs += m.DurationMs
	}
	return total
}

// ResetMetrics clears accumulated usage on every registered recognizer.
func ResetMetrics(registry *ner.Registry) {
	for _, lang := range registry.Languages() {
		rec, err := registry.Recognizer(lang)
		if err != nil {
			continue
		}
		if mp, ok := rec.(ner.MetricsProvider); ok {
			mp.ResetMetrics()
		}
	}
}
