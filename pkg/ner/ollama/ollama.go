// Package ollama implements ner.Recognizer against a locally-hosted Ollama
// server with schema-constrained JSON output.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/atlasgraph/atlas/pkg/ner"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// Recognizer calls one Ollama model for named-entity recognition. Request
// concurrency is capped with a weighted semaphore because local inference
// servers degrade badly under parallel load.
type Recognizer struct {
	model string

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ner.Metrics

	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client

	Client *api.Client
}

// NewRecognizerParams contains configuration for creating a Recognizer.
type NewRecognizerParams struct {
	Model   string
	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		// don't overwrite if already set
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewRecognizer creates an Ollama-backed recognizer connected to the server
// at BaseURL (or the Ollama default if empty).
func NewRecognizer(params NewRecognizerParams) (*Recognizer, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: map[string]string{
				"Authorization": "Bearer " + params.ApiKey,
			},
			rt: http.DefaultTransport,
		},
	}

	cli := api.NewClient(u, httpClient)

	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 1
	}
	sem := semaphore.NewWeighted(params.MaxConcurrentRequests)

	return &Recognizer{
		model: params.Model,

		reqLock: sem,

		metricsLock: sync.Mutex{},
		metrics:     ner.Metrics{},

		baseURL:    u,
		apiKey:     params.ApiKey,
		httpClient: httpClient,

		Client: cli,
	}, nil
}

type recognizeResponse struct {
	Entities []recognizedEntity `json:"entities" jsonschema_description:"Named entities identified in the text"`
}

type recognizedEntity struct {
	Text string `json:"text" jsonschema_description:"Entity surface form exactly as written in the text"`
	Type string `json:"type" jsonschema:"enum=PERSON,enum=ORGANIZATION,enum=LOCATION,enum=CONCEPT,enum=PRODUCT,enum=EVENT"`
}

// Recognize sends the chunk text to the model with a JSON schema format and
// maps the labeled spans onto the entity type allow-list. Spans with labels
// outside the allow-list are dropped here, not downstream.
func (c *Recognizer) Recognize(ctx context.Context, text string) ([]ner.Candidate, error) {
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	schemaObj := ner.GenerateSchema(&recognizeResponse{})
	formatBytes, err := json.Marshal(schemaObj)
	if err != nil {
		return nil, err
	}
	var format json.RawMessage = formatBytes

	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "user", Content: fmt.Sprintf(ner.RecognizePrompt, text)},
		},
		Stream:  &stream,
		Format:  format,
		Options: map[string]any{"temperature": 0.1},
	}

	var final api.ChatResponse
	if err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return nil, err
	}

	c.modifyMetrics(ner.Metrics{
		Requests:   1,
		DurationMs: final.Metrics.TotalDuration.Milliseconds(),
	})

	var parsed recognizeResponse
	if err := ner.UnmarshalFlexible(final.Message.Content, &parsed); err != nil {
		return nil, err
	}

	candidates := make([]ner.Candidate, 0, len(parsed.Entities))
	for _, e := range parsed.Entities {
		typ, ok := ner.MapLabel(e.Type)
		if !ok {
			continue
		}
		candidates = append(candidates, ner.Candidate{Text: e.Text, Type: typ})
	}
	return candidates, nil
}

// ResetMetrics clears the accumulated request metrics.
func (c *Recognizer) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ner.Metrics{}
	c.metricsLock.Unlock()
}

// Metrics returns the accumulated request metrics since the last reset.
func (c *Recognizer) Metrics() ner.Metrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *Recognizer) modifyMetrics(m ner.Metrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.Requests += m.Requests
	c.metrics.DurationMs += m.DurationMs
}
