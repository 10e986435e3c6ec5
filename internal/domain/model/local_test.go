package model

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"asr-webservice-go/internal/domain/audio"
	platformconfig "asr-webservice-go/internal/platform/config"
)

func TestLocalRuntime_Decode(t *testing.T) {
	var gotTask, gotLanguage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotTask = r.FormValue("task")
		gotLanguage = r.FormValue("language")
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"language": "en",
			"language_probability": 0.97,
			"duration": 2.5,
			"segments": [
				{"start": 0.0, "end": 1.2, "text": " hello", "avg_logprob": -0.2,
				 "words": [{"word": "hello", "start": 0.0, "end": 1.1, "probability": 0.9}]},
				{"start": 1.2, "end": 2.5, "text": " world", "avg_logprob": -0.3}
			]
		}`))
	}))
	defer server.Close()

	rt := newLocalRuntime(platformconfig.RuntimeConfig{
		BaseURL: server.URL,
		Timeout: 10 * time.Second,
	}, "base")

	wf := &audio.Waveform{SampleRate: 16000, Samples: make([]float32, 16000)}
	res, err := rt.Decode(context.Background(), wf, DecodeRequest{
		Task:           "transcribe",
		Language:       "en",
		WordTimestamps: true,
	})
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}

	if gotTask != "transcribe" || gotLanguage != "en" {
		t.Errorf("request fields task=%q language=%q", gotTask, gotLanguage)
	}
	if res.Language != "en" || res.LanguageConfidence != 0.97 {
		t.Errorf("language result = %q/%v", res.Language, res.LanguageConfidence)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("segment count = %d, want 2", len(res.Segments))
	}
	if len(res.Segments[0].Words) != 1 || res.Segments[0].Words[0].Word != "hello" {
		t.Errorf("words not carried through: %+v", res.Segments[0].Words)
	}
}

func TestLocalRuntime_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	rt := newLocalRuntime(platformconfig.RuntimeConfig{BaseURL: server.URL}, "base")
	wf := &audio.Waveform{SampleRate: 16000, Samples: make([]float32, 160)}

	if _, err := rt.Decode(context.Background(), wf, DecodeRequest{Task: "transcribe"}); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestNew_UnknownRuntime(t *testing.T) {
	if _, err := New(platformconfig.RuntimeConfig{Type: "bogus"}, "base"); err == nil {
		t.Fatal("expected error for unknown runtime type")
	}
}

func TestNew_OpenAIRequiresKey(t *testing.T) {
	if _, err := New(platformconfig.RuntimeConfig{Type: "openai"}, "base"); err == nil {
		t.Fatal("expected error when api key missing")
	}
}
