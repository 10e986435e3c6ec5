package engine

import (
	"context"
	"errors"
	"testing"

	platformerrors "asr-webservice-go/internal/platform/errors"
)

func intPtr(v int) *int { return &v }

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"zero value", Options{}, false},
		{"transcribe", Options{Task: TaskTranscribe}, false},
		{"translate", Options{Task: TaskTranslate}, false},
		{"unknown task", Options{Task: "summarize"}, true},
		{"bounds ok", Options{Diarization: DiarizationOptions{MinSpeakers: intPtr(1), MaxSpeakers: intPtr(4)}}, false},
		{"min exceeds max", Options{Diarization: DiarizationOptions{MinSpeakers: intPtr(3), MaxSpeakers: intPtr(2)}}, true},
		{"zero min", Options{Diarization: DiarizationOptions{MinSpeakers: intPtr(0)}}, true},
		{"negative max", Options{Diarization: DiarizationOptions{MaxSpeakers: intPtr(-1)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !platformerrors.IsKind(err, platformerrors.KindInvalidOption) {
				t.Errorf("error kind = %v, want invalid_option", err)
			}
		})
	}
}

func TestCapabilitiesGate(t *testing.T) {
	requested := Options{
		Task:           TaskTranscribe,
		Language:       "de",
		VADFilter:      true,
		WordTimestamps: true,
		Diarization:    DiarizationOptions{Enabled: true, MinSpeakers: intPtr(2)},
	}

	bare := Capabilities{Name: "bare", LanguageDetection: true}
	gated := bare.Gate(requested)
	if gated.VADFilter || gated.WordTimestamps || gated.Diarization.Enabled || gated.Diarization.MinSpeakers != nil {
		t.Errorf("bare variant kept unsupported options: %+v", gated)
	}
	if gated.Task != TaskTranscribe || gated.Language != "de" {
		t.Errorf("gating must not touch supported fields: %+v", gated)
	}

	full := Capabilities{Name: "full", VADFilter: true, WordTimestamps: true, Diarization: true}
	if got := full.Gate(requested); got != requested && got.Diarization.MinSpeakers == nil {
		t.Errorf("full variant dropped supported options: %+v", got)
	}
}

func TestStream_EmitAndDrain(t *testing.T) {
	s := NewStream()
	go func() {
		for i := 0; i < 3; i++ {
			s.Emit(context.Background(), Segment{Start: float64(i), End: float64(i + 1)})
		}
		s.Close(nil)
	}()

	segments, err := s.Collect()
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}
	if segments[2].Start != 2 {
		t.Errorf("segments arrived out of order: %+v", segments)
	}
}

func TestStream_ProducerError(t *testing.T) {
	s := NewStream()
	wantErr := errors.New("decode blew up")
	go func() {
		s.Emit(context.Background(), Segment{End: 1, Text: "partial"})
		s.Close(wantErr)
	}()

	segments, err := s.Collect()
	if len(segments) != 1 {
		t.Errorf("segments before failure = %d, want 1", len(segments))
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("Collect() error = %v, want %v", err, wantErr)
	}
}

func TestStream_EmitStopsOnCancel(t *testing.T) {
	s := NewStream()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Fill the buffer, then the cancelled emit must report false.
	for i := 0; ; i++ {
		if !s.Emit(ctx, Segment{Start: float64(i)}) {
			return
		}
		if i > 1000 {
			t.Fatal("Emit never observed the cancelled context")
		}
	}
}

func TestCreate_UnknownEngine(t *testing.T) {
	_, err := Create("definitely-not-registered", Deps{})
	if !platformerrors.IsKind(err, platformerrors.KindEngineConstruction) {
		t.Errorf("Create() error = %v, want engine_construction", err)
	}
}

func TestCreate_FactoryFailureWrapped(t *testing.T) {
	Register("broken-for-test", func(Deps) (Engine, error) {
		return nil, errors.New("no runtime")
	})

	_, err := Create("broken-for-test", Deps{})
	if !platformerrors.IsKind(err, platformerrors.KindEngineConstruction) {
		t.Errorf("Create() error = %v, want engine_construction", err)
	}
	if !Registered("broken-for-test") {
		t.Error("Registered() should report the test factory")
	}
}
