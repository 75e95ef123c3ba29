package entities

// WhisperSegment is one time-coded segment of the raw speech-to-text
// response (verbose_json format). avg_logprob is the per-segment confidence
// signal; no_speech_prob flags probable silence.
type WhisperSegment struct {
	ID               int     `json:"id"`
	Seek             int     `json:"seek"`
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	Text             string  `json:"text"`
	Temperature      float64 `json:"temperature"`
	AvgLogprob       float64 `json:"avg_logprob"`
	CompressionRatio float64 `json:"compression_ratio"`
	NoSpeechProb     float64 `json:"no_speech_prob"`
}

// RawTranscript is the full speech-to-text result, checkpointed onto the
// Analysis row before extraction runs so it survives extraction failures.
type RawTranscript struct {
	Text     string           `json:"text"`
	Segments []WhisperSegment `json:"segments"`
	Language string           `json:"language"`
	Duration float64          `json:"duration,omitempty"`
}
