package whisper

import (
	"context"
	"sync"
	"testing"
	"time"

	"asr-webservice-go/internal/domain/audio"
	"asr-webservice-go/internal/domain/engine"
	"asr-webservice-go/internal/domain/model"
	platformconfig "asr-webservice-go/internal/platform/config"
	platformerrors "asr-webservice-go/internal/platform/errors"
)

// stubRuntime replays one scripted result per call and records the requests
// it saw.
type stubRuntime struct {
	mu       sync.Mutex
	results  []*model.DecodeResult
	requests []model.DecodeRequest
	calls    int
	block    bool
}

func (s *stubRuntime) Decode(ctx context.Context, _ *audio.Waveform, req model.DecodeRequest) (*model.DecodeResult, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	res := &model.DecodeResult{Language: "en"}
	if s.calls < len(s.results) {
		res = s.results[s.calls]
	}
	s.calls++
	return res, nil
}

func silence(seconds float64) *audio.Waveform {
	return &audio.Waveform{SampleRate: 16000, Samples: make([]float32, int(seconds*16000))}
}

func testConfig(chunkSec float64) *platformconfig.ASRConfig {
	cfg := platformconfig.DefaultConfig().ASR
	cfg.ChunkSeconds = chunkSec
	return &cfg
}

func newTestEngine(t *testing.T, rt model.Runtime, cfg *platformconfig.ASRConfig) engine.Engine {
	t.Helper()
	eng, err := New(engine.Deps{Runtime: rt, Config: cfg})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return eng
}

func TestTranscribe_ChunkOffsetsApplied(t *testing.T) {
	rt := &stubRuntime{results: []*model.DecodeResult{
		{Language: "en", Segments: []model.DecodedSegment{{Start: 0, End: 1, Text: " one "}}},
		{Language: "en", Segments: []model.DecodedSegment{{Start: 0.5, End: 1.5, Text: "two"}}},
	}}
	eng := newTestEngine(t, rt, testConfig(2))

	stream, err := eng.Transcribe(context.Background(), silence(4), engine.Options{})
	if err != nil {
		t.Fatalf("Transcribe() failed: %v", err)
	}
	segments, err := stream.Collect()
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}

	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Text != "one" {
		t.Errorf("segment text not trimmed: %q", segments[0].Text)
	}
	if segments[1].Start != 2.5 || segments[1].End != 3.5 {
		t.Errorf("second chunk not offset: got [%v, %v], want [2.5, 3.5]", segments[1].Start, segments[1].End)
	}
}

func TestTranscribe_LanguagePinnedAfterFirstChunk(t *testing.T) {
	rt := &stubRuntime{results: []*model.DecodeResult{
		{Language: "de", Segments: []model.DecodedSegment{{End: 1, Text: "hallo"}}},
		{Language: "de"},
	}}
	eng := newTestEngine(t, rt, testConfig(2))

	stream, err := eng.Transcribe(context.Background(), silence(4), engine.Options{InitialPrompt: "context"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := stream.Collect(); err != nil {
		t.Fatal(err)
	}

	if len(rt.requests) != 2 {
		t.Fatalf("got %d decode calls, want 2", len(rt.requests))
	}
	if rt.requests[0].Language != "" {
		t.Errorf("first chunk should auto-detect, got language %q", rt.requests[0].Language)
	}
	if rt.requests[1].Language != "de" {
		t.Errorf("second chunk language = %q, want pinned %q", rt.requests[1].Language, "de")
	}
	if rt.requests[0].InitialPrompt != "context" || rt.requests[1].InitialPrompt != "" {
		t.Errorf("prompt must be fed once: %q then %q", rt.requests[0].InitialPrompt, rt.requests[1].InitialPrompt)
	}
}

func TestTranscribe_UnsupportedOptionsIgnored(t *testing.T) {
	rt := &stubRuntime{}
	eng := newTestEngine(t, rt, testConfig(30))

	opts := engine.Options{VADFilter: true, WordTimestamps: true,
		Diarization: engine.DiarizationOptions{Enabled: true}}
	stream, err := eng.Transcribe(context.Background(), silence(1), opts)
	if err != nil {
		t.Fatalf("unsupported options must not error: %v", err)
	}
	if _, err := stream.Collect(); err != nil {
		t.Fatal(err)
	}
	if rt.requests[0].WordTimestamps {
		t.Error("word timestamps were forwarded despite not being advertised")
	}
}

func TestTranscribe_EmptyWaveform(t *testing.T) {
	eng := newTestEngine(t, &stubRuntime{}, testConfig(30))

	_, err := eng.Transcribe(context.Background(), &audio.Waveform{SampleRate: 16000}, engine.Options{})
	if !platformerrors.IsKind(err, platformerrors.KindInvalidAudio) {
		t.Errorf("error = %v, want invalid_audio", err)
	}
}

func TestTranscribe_InferenceTimeout(t *testing.T) {
	cfg := testConfig(30)
	cfg.InferenceTimeout = 10 * time.Millisecond
	eng := newTestEngine(t, &stubRuntime{block: true}, cfg)

	stream, err := eng.Transcribe(context.Background(), silence(1), engine.Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = stream.Collect()
	if !platformerrors.IsKind(err, platformerrors.KindEngineTimeout) {
		t.Errorf("error = %v, want engine_timeout", err)
	}
}

func TestDetectLanguage(t *testing.T) {
	rt := &stubRuntime{results: []*model.DecodeResult{{Language: "ja", LanguageConfidence: 0.92}}}
	eng := newTestEngine(t, rt, testConfig(30))

	det, err := eng.DetectLanguage(context.Background(), silence(2))
	if err != nil {
		t.Fatalf("DetectLanguage() failed: %v", err)
	}
	if det.LanguageCode != "ja" || det.Confidence != 0.92 {
		t.Errorf("detection = %+v", det)
	}
}

func TestDetectLanguage_ConfidenceClamped(t *testing.T) {
	rt := &stubRuntime{results: []*model.DecodeResult{{Language: "en", LanguageConfidence: 1.7}}}
	eng := newTestEngine(t, rt, testConfig(30))

	det, err := eng.DetectLanguage(context.Background(), silence(1))
	if err != nil {
		t.Fatal(err)
	}
	if det.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", det.Confidence)
	}
}

func TestDetectLanguage_EmptyWaveform(t *testing.T) {
	eng := newTestEngine(t, &stubRuntime{}, testConfig(30))

	_, err := eng.DetectLanguage(context.Background(), &audio.Waveform{SampleRate: 16000})
	if !platformerrors.IsKind(err, platformerrors.KindInvalidAudio) {
		t.Errorf("error = %v, want invalid_audio", err)
	}
}
