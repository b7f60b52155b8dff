// Package openai implements ner.Recognizer against any OpenAI-compatible
// chat completion endpoint using strict JSON schema response formats.
package openai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atlasgraph/atlas/pkg/ner"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Recognizer calls one chat model for named-entity recognition.
type Recognizer struct {
	model   string
	baseURL string
	apiKey  string

	metricsLock sync.Mutex
	metrics     ner.Metrics

	Client *openai.Client
}

// NewRecognizerParams contains configuration for creating a Recognizer.
// BaseURL may point at any OpenAI-compatible server; empty means the
// official endpoint.
type NewRecognizerParams struct {
	Model   string
	BaseURL string
	ApiKey  string
}

// NewRecognizer creates an OpenAI-backed recognizer.
func NewRecognizer(params NewRecognizerParams) *Recognizer {
	opts := []option.RequestOption{}
	if params.ApiKey != "" {
		opts = append(opts, option.WithAPIKey(params.ApiKey))
	}
	if params.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(params.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &Recognizer{
		model:   params.Model,
		baseURL: params.BaseURL,
		apiKey:  params.ApiKey,

		metricsLock: sync.Mutex{},
		metrics:     ner.Metrics{},

		Client: &client,
	}
}

type recognizeResponse struct {
	Entities []recognizedEntity `json:"entities" jsonschema_description:"Named entities identified in the text"`
}

type recognizedEntity struct {
	Text string `json:"text" jsonschema_description:"Entity surface form exactly as written in the text"`
	Type string `json:"type" jsonschema:"enum=PERSON,enum=ORGANIZATION,enum=LOCATION,enum=CONCEPT,enum=PRODUCT,enum=EVENT"`
}

// Recognize sends the chunk text with a strict JSON schema response format
// and maps the labeled spans onto the entity type allow-list.
func (c *Recognizer) Recognize(ctx context.Context, text string) ([]ner.Candidate, error) {
	schema := ner.GenerateSchema(&recognizeResponse{})
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "named_entities",
		Description: openai.String("Named entities found in a text passage"),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}

	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(fmt.Sprintf(ner.RecognizePrompt, text)),
		},
		Temperature: openai.Float(0.1),
	}

	start := time.Now()
	response, err := c.Client.Chat.Completions.New(ctx, body)
	if err != nil {
		return nil, err
	}

	c.modifyMetrics(ner.Metrics{
		Requests:   1,
		DurationMs: time.Since(start).Milliseconds(),
	})

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response from model")
	}
	message := response.Choices[0].Message.Content
	if message == "" {
		return nil, fmt.Errorf("empty response from model (finish_reason: %s)", response.Choices[0].FinishReason)
	}

	var parsed recognizeResponse
	if err := ner.UnmarshalFlexible(message, &parsed); err != nil {
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
