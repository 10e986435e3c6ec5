package asr

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"

	"asr-webservice-go/internal/domain/engine"
)

func TestBuildDoc_CapabilityConditional(t *testing.T) {
	bare := engine.Capabilities{Name: "whisper", LanguageDetection: true}
	doc, err := buildDoc(bare, false)
	if err != nil {
		t.Fatalf("buildDoc() failed: %v", err)
	}
	if strings.Contains(doc, "vad_filter") || strings.Contains(doc, "diarize") {
		t.Error("reference engine doc should not document optional features")
	}
	for _, always := range []string{"audio_file", "initial_prompt", "response_format", "/detect-language"} {
		if !strings.Contains(doc, always) {
			t.Errorf("doc missing %q", always)
		}
	}

	var parsed map[string]interface{}
	if err := sonic.Unmarshal([]byte(doc), &parsed); err != nil {
		t.Fatalf("doc is not valid json: %v", err)
	}
}

func TestBuildDoc_DiarizationNeedsCredential(t *testing.T) {
	full := engine.Capabilities{
		Name: "whisperx", VADFilter: true, WordTimestamps: true,
		Diarization: true, LanguageDetection: true,
	}

	withToken, err := buildDoc(full, true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(withToken, "diarize") || !strings.Contains(withToken, "min_speakers") {
		t.Error("diarization parameters missing despite capability and credential")
	}
	if !strings.Contains(withToken, "word_timestamps") {
		t.Error("word timestamp parameter missing")
	}

	withoutToken, err := buildDoc(full, false)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(withoutToken, "diarize") {
		t.Error("diarization documented without a configured credential")
	}
	if !strings.Contains(withoutToken, "vad_filter") {
		t.Error("vad parameter should not depend on the diarization credential")
	}
}
