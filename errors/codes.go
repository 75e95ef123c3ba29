package errors

// ErrorCode identifies a failure kind in API responses and logs.
type ErrorCode string

const (
	ErrorCode_INTERNAL         ErrorCode = "INTERNAL"
	ErrorCode_INVALID_ARGUMENT ErrorCode = "INVALID_ARGUMENT"
	ErrorCode_NOT_FOUND        ErrorCode = "NOT_FOUND"
	ErrorCode_ALREADY_EXISTS   ErrorCode = "ALREADY_EXISTS"

	// Pipeline failure kinds. Each external dependency that can fail
	// independently gets its own code so operators can tell an
	// actionable failure (quota, credentials) from a transient one.
	ErrorCode_PIPELINE_DOWNLOAD_FAILED     ErrorCode = "PIPELINE_DOWNLOAD_FAILED"
	ErrorCode_TRANSCRIPTION_QUOTA_EXCEEDED ErrorCode = "TRANSCRIPTION_QUOTA_EXCEEDED"
	ErrorCode_TRANSCRIPTION_AUTH_FAILED    ErrorCode = "TRANSCRIPTION_AUTH_FAILED"
	ErrorCode_TRANSCRIPTION_FAILED         ErrorCode = "TRANSCRIPTION_FAILED"
	ErrorCode_EXTRACTION_REQUEST_FAILED    ErrorCode = "EXTRACTION_REQUEST_FAILED"
	ErrorCode_EXTRACTION_PARSE_FAILED      ErrorCode = "EXTRACTION_PARSE_FAILED"
	ErrorCode_PERSISTENCE_FAILED           ErrorCode = "PERSISTENCE_FAILED"
	ErrorCode_ANALYSIS_IN_PROGRESS         ErrorCode = "ANALYSIS_IN_PROGRESS"
	ErrorCode_MEETING_NOT_FOUND            ErrorCode = "MEETING_NOT_FOUND"
	ErrorCode_INVALID_STATUS_TRANSITION    ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrorCode_INTEGRATION_STORAGE_FAILED   ErrorCode = "INTEGRATION_STORAGE_FAILED"
	ErrorCode_INVALID_PAYLOAD              ErrorCode = "INVALID_PAYLOAD"
	ErrorCode_PROCESSING_FAILED            ErrorCode = "PROCESSING_FAILED"
)

// String returns the code as a plain string.
func (c ErrorCode) String() string {
	return string(c)
}
