package openai

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	apperrors "github.com/johnquangdev/meeting-insights/errors"
	"github.com/johnquangdev/meeting-insights/internal/domain/entities"
	"github.com/johnquangdev/meeting-insights/pkg/config"
)

// Transcriber sends raw audio to the Whisper API and returns the full text
// plus time-coded segments. Pure request/response; no side effects.
type Transcriber struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewTranscriber creates a Transcriber from config.
func NewTranscriber(cfg *config.OpenAIConfig, logger *zap.Logger) *Transcriber {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.TranscriptionModel
	if model == "" {
		model = openai.Whisper1
	}
	return &Transcriber{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}
}

// Transcribe uploads the audio and requests a verbose_json transcription.
// fileName must carry the original extension so the API can sniff the
// container format. Quota and credential failures are mapped to their own
// error kinds because they are operator-actionable; everything else maps to
// the generic transcription failure.
func (t *Transcriber) Transcribe(ctx context.Context, audio io.Reader, fileName, language string) (*entities.RawTranscript, error) {
	req := openai.AudioRequest{
		Model:    t.model,
		Reader:   audio,
		FilePath: fileName,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: language,
	}

	resp, err := t.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, t.mapError(err)
	}

	segments := make([]entities.WhisperSegment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		segments = append(segments, entities.WhisperSegment{
			ID:               seg.ID,
			Seek:             seg.Seek,
			Start:            seg.Start,
			End:              seg.End,
			Text:             seg.Text,
			Temperature:      seg.Temperature,
			AvgLogprob:       seg.AvgLogprob,
			CompressionRatio: seg.CompressionRatio,
			NoSpeechProb:     seg.NoSpeechProb,
		})
	}

	t.logger.Info("transcription completed",
		zap.String("language", resp.Language),
		zap.Float64("duration_sec", resp.Duration),
		zap.Int("segment_count", len(segments)),
	)

	return &entities.RawTranscript{
		Text:     resp.Text,
		Segments: segments,
		Language: resp.Language,
		Duration: resp.Duration,
	}, nil
}

func (t *Transcriber) mapError(err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		switch {
		case code == "insufficient_quota":
			return apperrors.ErrTranscriptionQuotaExceeded(err)
		case code == "invalid_api_key" || apiErr.HTTPStatusCode == http.StatusUnauthorized:
			return apperrors.ErrTranscriptionAuthFailed(err)
		}
	}
	return apperrors.ErrTranscriptionFailed(err)
}
