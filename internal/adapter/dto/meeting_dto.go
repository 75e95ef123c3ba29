package dto

// CreateMeetingRequest is the payload for registering a new meeting.
type CreateMeetingRequest struct {
	OwnerID  string `json:"owner_id" validate:"required,uuid"`
	Title    string `json:"title" validate:"required,max=500"`
	Language string `json:"language" validate:"omitempty,max=10"`
}

// ProcessMeetingRequest triggers the analysis pipeline for a meeting.
type ProcessMeetingRequest struct {
	AudioPath string `json:"audio_path" validate:"required"`
}

// ProcessMeetingResponse is the success payload of a pipeline run.
type ProcessMeetingResponse struct {
	Success    bool   `json:"success"`
	AnalysisID string `json:"analysisId"`
}

// UploadAudioResponse reports a stored audio object.
type UploadAudioResponse struct {
	AudioPath string `json:"audio_path"`
	AudioSize int64  `json:"audio_size"`
}

// UpdateActionItemRequest toggles action item completion.
type UpdateActionItemRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}
