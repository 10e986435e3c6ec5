// Package engine defines the transcription contract shared by all ASR
// backends: one interface, one capability descriptor per variant, and a
// lazily-produced segment stream so long audio never has to be materialized.
package engine

import (
	"context"

	"asr-webservice-go/internal/domain/audio"
	platformerrors "asr-webservice-go/internal/platform/errors"
)

// Task selects between plain transcription and translation to English.
type Task string

const (
	TaskTranscribe Task = "transcribe"
	TaskTranslate  Task = "translate"
)

// DiarizationOptions bound the speaker-clustering post-pass.
type DiarizationOptions struct {
	Enabled     bool
	MinSpeakers *int
	MaxSpeakers *int
}

// Options carries the per-request decoding knobs. Options an engine does not
// support are silently ignored (see Capabilities.Gate), keeping one request
// contract across variants.
type Options struct {
	Task           Task
	Language       string // ISO-639-1 code, empty for auto-detect
	InitialPrompt  string
	VADFilter      bool
	WordTimestamps bool
	Diarization    DiarizationOptions
}

// Validate rejects option combinations with no safe fallback.
func (o Options) Validate() error {
	if o.Task != "" && o.Task != TaskTranscribe && o.Task != TaskTranslate {
		return platformerrors.New(platformerrors.KindInvalidOption, "engine:options", "unknown task "+string(o.Task))
	}
	min, max := o.Diarization.MinSpeakers, o.Diarization.MaxSpeakers
	if min != nil && *min < 1 {
		return platformerrors.New(platformerrors.KindInvalidOption, "engine:options", "min_speakers must be positive")
	}
	if max != nil && *max < 1 {
		return platformerrors.New(platformerrors.KindInvalidOption, "engine:options", "max_speakers must be positive")
	}
	if min != nil && max != nil && *min > *max {
		return platformerrors.New(platformerrors.KindInvalidOption, "engine:options", "min_speakers exceeds max_speakers")
	}
	return nil
}

// Word is a word-level timing produced when the engine supports it.
type Word struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"probability"`
}

// Segment is one contiguous unit of transcript text on the original upload
// timeline. Segments are emitted in non-decreasing start order.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Words   []Word  `json:"words,omitempty"`
	Speaker string  `json:"speaker,omitempty"`
}

// LanguageDetection is the result of probing the waveform for its language.
type LanguageDetection struct {
	LanguageCode string
	Confidence   float64
}

// Engine is the polymorphic transcription core. One instance is constructed
// at startup and shared by all requests; implementations must be safe for
// concurrent use.
type Engine interface {
	// Capabilities returns the immutable feature descriptor of this variant.
	Capabilities() Capabilities

	// Transcribe decodes the waveform into a lazily-produced segment stream.
	// The stream is single-consumption: one pass, then exhausted.
	Transcribe(ctx context.Context, waveform *audio.Waveform, opts Options) (*Stream, error)

	// DetectLanguage probes the waveform and returns the most likely language.
	DetectLanguage(ctx context.Context, waveform *audio.Waveform) (LanguageDetection, error)
}
