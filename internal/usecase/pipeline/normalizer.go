package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/johnquangdev/meeting-insights/errors"
	"github.com/johnquangdev/meeting-insights/internal/domain/entities"
)

// idNamespace seeds deterministic ids for extracted elements the model left
// unidentified. Normalizing the same raw output twice yields the same ids.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("meeting-insights"))

// Normalizer validates and repairs the raw model output into an
// AnalysisDocument that satisfies the storage schema.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize parses the raw chat-completion content into a document,
// defaulting missing collections, clamping out-of-range numbers, and
// assigning deterministic ids where the model omitted them.
func (n *Normalizer) Normalize(rawContent string) (*entities.AnalysisDocument, error) {
	jsonString := extractJSON(rawContent)

	var doc entities.AnalysisDocument
	if err := json.Unmarshal([]byte(jsonString), &doc); err != nil {
		return nil, apperrors.ErrExtractionParseFailed(err)
	}

	if strings.TrimSpace(doc.Summary) == "" {
		return nil, apperrors.ErrExtractionParseFailed(fmt.Errorf("missing summary in model output"))
	}

	if doc.ActionItems == nil {
		doc.ActionItems = make([]entities.DocumentAction, 0)
	}
	if doc.TimelineEvents == nil {
		doc.TimelineEvents = make([]entities.TimelineEvent, 0)
	}
	if doc.Sentiment == nil {
		doc.Sentiment = make([]entities.SentimentPoint, 0)
	}
	if doc.Speakers == nil {
		doc.Speakers = make([]entities.Speaker, 0)
	}
	if doc.TranscriptSegments == nil {
		doc.TranscriptSegments = make([]entities.DocumentSegment, 0)
	}

	for i := range doc.ActionItems {
		item := &doc.ActionItems[i]
		if item.ID == "" {
			item.ID = deterministicID("action_item", i, item.Text)
		}
		item.Confidence = clamp(item.Confidence, 0, 1)
		item.Timestamp = max0(item.Timestamp)
		item.Priority = normalizePriority(item.Priority)
		if item.DueDate != nil && strings.TrimSpace(*item.DueDate) == "" {
			item.DueDate = nil
		}
	}

	for i := range doc.TimelineEvents {
		event := &doc.TimelineEvents[i]
		if event.ID == "" {
			event.ID = deterministicID("timeline_event", i, event.Title)
		}
		event.Importance = clamp(event.Importance, 0, 1)
		event.Time = max0(event.Time)
	}

	for i := range doc.Sentiment {
		point := &doc.Sentiment[i]
		point.Value = clamp(point.Value, -1, 1)
		point.Time = max0(point.Time)
	}

	for i := range doc.Speakers {
		speaker := &doc.Speakers[i]
		speaker.SpeakingTimeSeconds = max0(speaker.SpeakingTimeSeconds)
		speaker.SpeakingPercentage = clamp(speaker.SpeakingPercentage, 0, 100)
	}

	for i := range doc.TranscriptSegments {
		segment := &doc.TranscriptSegments[i]
		if segment.ID == "" {
			segment.ID = deterministicID("transcript_segment", i, segment.Text)
		}
		if segment.Speaker == "" {
			segment.Speaker = "Unknown"
		}
		segment.Start = max0(segment.Start)
		if segment.End < segment.Start {
			segment.End = segment.Start
		}
		segment.Confidence = clamp(segment.Confidence, 0, 1)
	}

	return &doc, nil
}

func deterministicID(kind string, index int, content string) string {
	return uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("%s:%d:%s", kind, index, content))).String()
}

func normalizePriority(priority string) string {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case entities.ActionItemPriorityLow:
		return entities.ActionItemPriorityLow
	case entities.ActionItemPriorityHigh:
		return entities.ActionItemPriorityHigh
	default:
		return entities.ActionItemPriorityMedium
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// extractJSON strips the markdown code fence the model sometimes wraps its
// JSON output in.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	}

	return strings.TrimSpace(content)
}
