package entities

// AnalysisDocument is the validated, schema-conformant structured output of
// the extraction stage, stored verbatim as analyses.analysis_json. It is the
// authoritative record of a completed analysis; derived rows are projections.
type AnalysisDocument struct {
	Summary            string            `json:"summary"`
	ActionItems        []DocumentAction  `json:"action_items"`
	TimelineEvents     []TimelineEvent   `json:"timeline_events"`
	Sentiment          []SentimentPoint  `json:"sentiment"`
	Speakers           []Speaker         `json:"speakers"`
	TranscriptSegments []DocumentSegment `json:"transcript_segments"`
}

// DocumentAction is an action item as extracted by the model.
type DocumentAction struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Owner      string  `json:"owner"`
	Timestamp  float64 `json:"timestamp"`
	DueDate    *string `json:"due_date"`
	Confidence float64 `json:"confidence"`
	Priority   string  `json:"priority"`
}

// TimelineEvent is a notable moment in the meeting.
type TimelineEvent struct {
	ID          string  `json:"id"`
	Time        float64 `json:"time"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Importance  float64 `json:"importance"`
}

// SentimentPoint is one sample of the meeting sentiment curve, value in [-1,1].
type SentimentPoint struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// Speaker holds per-speaker talk-time statistics. SpeakingPercentage values
// for all speakers of one analysis should sum to roughly 100.
type Speaker struct {
	Name                string  `json:"name"`
	SpeakingTimeSeconds float64 `json:"speaking_time_seconds"`
	SpeakingPercentage  float64 `json:"speaking_percentage"`
}

// DocumentSegment is a speaker-attributed transcript segment as normalized
// by the extraction stage.
type DocumentSegment struct {
	ID         string  `json:"id"`
	Speaker    string  `json:"speaker"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// TokenUsage records the token accounting for one pipeline run.
type TokenUsage struct {
	TranscriptionTokens int `json:"transcription_tokens"`
	AnalysisTokens      int `json:"analysis_tokens"`
}
