package diarize

import (
	"math"
	"testing"

	"asr-webservice-go/internal/domain/audio"
)

// twoVoiceWaveform alternates a loud low-frequency voice and a quiet
// high-frequency voice in 1-second turns.
func twoVoiceWaveform(rate, seconds int) *audio.Waveform {
	samples := make([]float32, rate*seconds)
	for sec := 0; sec < seconds; sec++ {
		amp, freq := 0.5, 200.0
		if sec%2 == 1 {
			amp, freq = 0.1, 2400.0
		}
		for i := 0; i < rate; i++ {
			idx := sec*rate + i
			samples[idx] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
		}
	}
	return &audio.Waveform{SampleRate: rate, Samples: samples}
}

func TestClusterer_TwoSpeakersBounded(t *testing.T) {
	wf := twoVoiceWaveform(16000, 8)
	c := NewClusterer(Config{MinSpeakers: 2, MaxSpeakers: 2})

	labels := make(map[string]bool)
	var sequence []string
	for sec := 0; sec < 8; sec++ {
		l := c.Assign(wf, float64(sec), float64(sec+1))
		if l == "" {
			t.Fatalf("segment %d got empty label", sec)
		}
		labels[l] = true
		sequence = append(sequence, l)
	}

	if len(labels) != 2 {
		t.Fatalf("got %d distinct labels (%v), want exactly 2", len(labels), labels)
	}
	// Alternating voices should map to alternating speakers.
	if sequence[0] == sequence[1] {
		t.Errorf("first two turns share a speaker: %v", sequence)
	}
	if sequence[0] != sequence[2] || sequence[1] != sequence[3] {
		t.Errorf("turn pattern not consistent: %v", sequence)
	}
}

func TestClusterer_SingleVoiceSingleSpeaker(t *testing.T) {
	rate := 16000
	samples := make([]float32, rate*4)
	for i := range samples {
		samples[i] = float32(0.4 * math.Sin(2*math.Pi*300*float64(i)/float64(rate)))
	}
	wf := &audio.Waveform{SampleRate: rate, Samples: samples}

	c := NewClusterer(Config{})
	labels := make(map[string]bool)
	for sec := 0; sec < 4; sec++ {
		labels[c.Assign(wf, float64(sec), float64(sec+1))] = true
	}
	if len(labels) != 1 {
		t.Errorf("uniform voice produced %d speakers, want 1: %v", len(labels), labels)
	}
}

func TestClusterer_MinSpeakersIsAHintNotAGuarantee(t *testing.T) {
	// One uniform voice with min_speakers=2: the clusterer must not invent a
	// second speaker out of identical features.
	rate := 16000
	samples := make([]float32, rate*6)
	for i := range samples {
		samples[i] = float32(0.4 * math.Sin(2*math.Pi*300*float64(i)/float64(rate)))
	}
	wf := &audio.Waveform{SampleRate: rate, Samples: samples}

	c := NewClusterer(Config{MinSpeakers: 2, MaxSpeakers: 4})
	labels := make(map[string]bool)
	for sec := 0; sec < 6; sec++ {
		labels[c.Assign(wf, float64(sec), float64(sec+1))] = true
	}
	if len(labels) != 1 {
		t.Errorf("uniform voice produced %d speakers, want 1: %v", len(labels), labels)
	}
}

func TestClusterer_MaxSpeakersRespected(t *testing.T) {
	wf := twoVoiceWaveform(16000, 8)
	c := NewClusterer(Config{MaxSpeakers: 1})

	labels := make(map[string]bool)
	for sec := 0; sec < 8; sec++ {
		labels[c.Assign(wf, float64(sec), float64(sec+1))] = true
	}
	if len(labels) != 1 {
		t.Errorf("max_speakers=1 produced %d labels: %v", len(labels), labels)
	}
}

func TestClusterer_ContinuityBiasOnSilence(t *testing.T) {
	// Two identical near-silent spans after two distinct voices: ambiguous
	// features should inherit the previous speaker rather than a new label.
	wf := twoVoiceWaveform(16000, 4)
	c := NewClusterer(Config{MinSpeakers: 2, MaxSpeakers: 2})

	first := c.Assign(wf, 0, 1)
	second := c.Assign(wf, 1, 2)
	if first == second {
		t.Fatalf("setup failed, want two speakers")
	}

	silent := &audio.Waveform{SampleRate: 16000, Samples: make([]float32, 16000*6)}
	copy(silent.Samples, wf.Samples)

	a := c.Assign(silent, 4, 5)
	b := c.Assign(silent, 5, 6)
	if a != b {
		t.Errorf("ambiguous segments switched speakers: %q then %q", a, b)
	}
}
