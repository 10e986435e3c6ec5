package eventbus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"asr-webservice-go/internal/platform/logging"
)

func TestRegisterListeners_EveryTopicHasConsumer(t *testing.T) {
	bus := NewAsyncEventBus(1)
	if err := registerListeners(bus, nil); err != nil {
		t.Fatalf("registerListeners() failed: %v", err)
	}

	for _, topic := range []string{
		EventTranscribeStarted,
		EventTranscribeCompleted,
		EventTranscribeFailed,
		EventLanguageDetected,
		EventLanguageFailed,
	} {
		if !bus.HasCallback(topic) {
			t.Errorf("no subscriber for %s", topic)
		}
	}
}

func TestRegisterListeners_LogsLifecycleEvents(t *testing.T) {
	dir := t.TempDir()
	logger, err := logging.New(logging.Config{Level: "debug", Dir: dir, Filename: "events.log"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	bus := NewAsyncEventBus(1)
	if err := registerListeners(bus, logger); err != nil {
		t.Fatalf("registerListeners() failed: %v", err)
	}

	// Synchronous delivery keeps the file assertions deterministic.
	bus.Publish(EventTranscribeStarted, TranscriptionEventData{
		RequestID: "r1", Engine: "whisper", Task: "transcribe", OutputFormat: "txt",
	})
	bus.Publish(EventTranscribeCompleted, TranscriptionEventData{
		RequestID: "r1", Engine: "whisper", DurationSec: 3.2,
	})
	bus.Publish(EventTranscribeFailed, TranscriptionEventData{
		RequestID: "r2", Engine: "whisper", Error: "decode stalled",
	})
	bus.Publish(EventLanguageDetected, LanguageEventData{
		RequestID: "r3", Engine: "whisper", Language: "en", Confidence: 0.93,
	})
	logger.Close()

	data, err := os.ReadFile(filepath.Join(dir, "events.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		"transcription started: request=r1",
		"transcription completed: request=r1",
		"transcription failed: request=r2",
		"language detected: request=r3",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("log output missing %q, got: %s", want, content)
		}
	}
}
