package validator

import (
	"strings"
	"testing"
)

func TestValidate_ErrorsUseJSONFieldNames(t *testing.T) {
	type payload struct {
		AudioPath string `json:"audio_path" validate:"required"`
	}

	err := New().Validate(&payload{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "audio_path") {
		t.Fatalf("expected json field name in error, got: %v", err)
	}
	if strings.Contains(err.Error(), "AudioPath") {
		t.Fatalf("expected Go field name to be replaced, got: %v", err)
	}
}

func TestValidate_PassesValidStruct(t *testing.T) {
	type payload struct {
		AudioPath string `json:"audio_path" validate:"required"`
	}

	if err := New().Validate(&payload{AudioPath: "meetings/x/audio.mp3"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
