package openai

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-insights/internal/domain/entities"
	"github.com/johnquangdev/meeting-insights/pkg/config"
)

const extractionSystemPrompt = "You are a meeting analyst that returns only valid JSON responses. Extract structured meeting data from transcripts."

// The schema is spelled out verbatim in the user prompt; the low temperature
// pushes repeated runs on identical input toward identical structure.
// Downstream still validates, because the reply is free text.
const extractionPromptFormat = `You are a meeting analyst that returns ONLY valid JSON. Given the following timestamped transcript segments, produce a JSON response with this exact structure:

{
  "summary": "Brief 1-2 sentence summary of the meeting",
  "action_items": [
    {
      "id": "unique-id",
      "text": "Action item description",
      "owner": "Person responsible",
      "timestamp": 123.45,
      "due_date": "2024-01-15",
      "confidence": 0.95,
      "priority": "medium"
    }
  ],
  "timeline_events": [
    {
      "id": "unique-id",
      "time": 123.45,
      "title": "Event title",
      "description": "Brief description",
      "importance": 0.8
    }
  ],
  "sentiment": [
    {
      "time": 0,
      "value": 0.2
    }
  ],
  "speakers": [
    {
      "name": "Speaker Name",
      "speaking_time_seconds": 45.2,
      "speaking_percentage": 35.5
    }
  ],
  "transcript_segments": [
    {
      "id": "unique-id",
      "speaker": "Speaker Name",
      "start": 0.0,
      "end": 5.2,
      "text": "Transcript text",
      "confidence": 0.95
    }
  ]
}

Transcript segments: %s

Return only valid JSON, no other text.`

// ExtractionResult carries the raw completion text plus token accounting.
// The text is expected to be a JSON document but may be wrapped in code
// fences; validating that is the normalizer's job, not this stage's.
type ExtractionResult struct {
	RawContent  string
	TotalTokens int
	Model       string
}

// Extractor requests a structured analysis of a segment-level transcript
// from a chat-completion model.
type Extractor struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewExtractor creates an Extractor from config.
func NewExtractor(cfg *config.OpenAIConfig, logger *zap.Logger) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.ExtractionModel
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Extractor{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}
}

// Extract serializes the transcript segments into the fixed schema prompt
// and returns the raw completion. Network and service failures propagate
// as-is.
func (e *Extractor) Extract(ctx context.Context, segments []entities.WhisperSegment) (*ExtractionResult, error) {
	serialized, err := json.Marshal(segments)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transcript segments: %w", err)
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: extractionSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(extractionPromptFormat, string(serialized)),
			},
		},
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("extraction model returned no choices")
	}

	e.logger.Info("extraction completed",
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return &ExtractionResult{
		RawContent:  resp.Choices[0].Message.Content,
		TotalTokens: resp.Usage.TotalTokens,
		Model:       resp.Model,
	}, nil
}
