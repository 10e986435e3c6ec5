package whisperx

import (
	"context"
	"math"
	"sync"
	"testing"

	"asr-webservice-go/internal/domain/audio"
	"asr-webservice-go/internal/domain/engine"
	"asr-webservice-go/internal/domain/model"
	platformconfig "asr-webservice-go/internal/platform/config"
	platformerrors "asr-webservice-go/internal/platform/errors"
)

// stubRuntime emits one fixed segment per second of decoded audio so the
// post-pass has per-turn segments to label.
type stubRuntime struct {
	mu    sync.Mutex
	calls int
}

func (s *stubRuntime) Decode(_ context.Context, w *audio.Waveform, _ model.DecodeRequest) (*model.DecodeResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	res := &model.DecodeResult{Language: "en"}
	for sec := 0.0; sec < w.Duration(); sec++ {
		res.Segments = append(res.Segments, model.DecodedSegment{
			Start: sec, End: sec + 1, Text: "turn",
		})
	}
	return res, nil
}

// twoVoiceWaveform alternates a loud low voice and a quiet high voice in
// 1-second turns.
func twoVoiceWaveform(seconds int) *audio.Waveform {
	rate := 16000
	samples := make([]float32, rate*seconds)
	for sec := 0; sec < seconds; sec++ {
		amp, freq := 0.5, 200.0
		if sec%2 == 1 {
			amp, freq = 0.1, 2400.0
		}
		for i := 0; i < rate; i++ {
			samples[sec*rate+i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
		}
	}
	return &audio.Waveform{SampleRate: rate, Samples: samples}
}

func testConfig(token string) *platformconfig.ASRConfig {
	cfg := platformconfig.DefaultConfig().ASR
	cfg.Diarization.HFToken = token
	return &cfg
}

func intPtr(v int) *int { return &v }

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(engine.Deps{Runtime: &stubRuntime{}, Config: testConfig("")})
	if err == nil {
		t.Fatal("construction without a diarization token must fail")
	}

	// Through the registry the failure carries the construction kind.
	cfg := testConfig("")
	_, err = engine.Create("whisperx", engine.Deps{Runtime: &stubRuntime{}, Config: cfg})
	if !platformerrors.IsKind(err, platformerrors.KindEngineConstruction) {
		t.Errorf("Create() error = %v, want engine_construction", err)
	}
}

func newTestEngine(t *testing.T) engine.Engine {
	t.Helper()
	eng, err := New(engine.Deps{Runtime: &stubRuntime{}, Config: testConfig("hf_test")})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return eng
}

func TestTranscribe_SpeakerBoundsValidatedBeforeInference(t *testing.T) {
	eng := newTestEngine(t)
	rt := &stubRuntime{}
	eng2, _ := New(engine.Deps{Runtime: rt, Config: testConfig("hf_test")})

	opts := engine.Options{Diarization: engine.DiarizationOptions{
		Enabled: true, MinSpeakers: intPtr(3), MaxSpeakers: intPtr(2),
	}}
	if _, err := eng.Transcribe(context.Background(), twoVoiceWaveform(2), opts); !platformerrors.IsKind(err, platformerrors.KindInvalidOption) {
		t.Errorf("error = %v, want invalid_option", err)
	}

	_, _ = eng2.Transcribe(context.Background(), twoVoiceWaveform(2), opts)
	if rt.calls != 0 {
		t.Errorf("runtime was called %d times before option validation", rt.calls)
	}
}

func TestTranscribe_LabelsSegments(t *testing.T) {
	eng := newTestEngine(t)

	opts := engine.Options{Diarization: engine.DiarizationOptions{
		Enabled: true, MinSpeakers: intPtr(2), MaxSpeakers: intPtr(2),
	}}
	stream, err := eng.Transcribe(context.Background(), twoVoiceWaveform(8), opts)
	if err != nil {
		t.Fatalf("Transcribe() failed: %v", err)
	}
	segments, err := stream.Collect()
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 8 {
		t.Fatalf("got %d segments, want 8", len(segments))
	}

	labels := make(map[string]bool)
	for _, seg := range segments {
		if seg.Speaker == "" {
			t.Fatalf("segment missing speaker label: %+v", seg)
		}
		labels[seg.Speaker] = true
	}
	if len(labels) != 2 {
		t.Errorf("got %d distinct speakers (%v), want exactly 2", len(labels), labels)
	}
	if segments[0].Speaker == segments[1].Speaker {
		t.Errorf("alternating voices share a speaker: %+v", segments[:2])
	}
}

func TestTranscribe_BoundariesUntouchedByLabeling(t *testing.T) {
	eng := newTestEngine(t)

	plain, err := eng.Transcribe(context.Background(), twoVoiceWaveform(4), engine.Options{})
	if err != nil {
		t.Fatal(err)
	}
	plainSegs, err := plain.Collect()
	if err != nil {
		t.Fatal(err)
	}

	labeled, err := eng.Transcribe(context.Background(), twoVoiceWaveform(4),
		engine.Options{Diarization: engine.DiarizationOptions{Enabled: true}})
	if err != nil {
		t.Fatal(err)
	}
	labeledSegs, err := labeled.Collect()
	if err != nil {
		t.Fatal(err)
	}

	if len(plainSegs) != len(labeledSegs) {
		t.Fatalf("labeling changed segment count: %d vs %d", len(plainSegs), len(labeledSegs))
	}
	for i := range plainSegs {
		if plainSegs[i].Start != labeledSegs[i].Start ||
			plainSegs[i].End != labeledSegs[i].End ||
			plainSegs[i].Text != labeledSegs[i].Text {
			t.Errorf("segment %d changed: %+v vs %+v", i, plainSegs[i], labeledSegs[i])
		}
	}
}

func TestTranscribe_DiarizationOffPassesThrough(t *testing.T) {
	eng := newTestEngine(t)

	stream, err := eng.Transcribe(context.Background(), twoVoiceWaveform(2), engine.Options{})
	if err != nil {
		t.Fatal(err)
	}
	segments, err := stream.Collect()
	if err != nil {
		t.Fatal(err)
	}
	for _, seg := range segments {
		if seg.Speaker != "" {
			t.Errorf("speaker label present without diarization: %+v", seg)
		}
	}
}

func TestDetectLanguage_Delegates(t *testing.T) {
	eng := newTestEngine(t)

	det, err := eng.DetectLanguage(context.Background(), twoVoiceWaveform(2))
	if err != nil {
		t.Fatalf("DetectLanguage() failed: %v", err)
	}
	if det.LanguageCode != "en" {
		t.Errorf("language = %q, want en", det.LanguageCode)
	}
}
