// Package model abstracts the inference backend that actually runs the
// network. Engines treat it as an opaque capability: audio in, decoded
// segments out. Weights, kernels and devices live behind this boundary.
package model

import (
	"context"
	"fmt"

	"asr-webservice-go/internal/domain/audio"
	platformconfig "asr-webservice-go/internal/platform/config"
)

// DecodeRequest carries the decoding parameters for one inference call.
type DecodeRequest struct {
	Task           string
	Language       string // empty for auto-detect
	InitialPrompt  string
	WordTimestamps bool
}

// DecodedWord is a word-level timing reported by the backend.
type DecodedWord struct {
	Word        string
	Start       float64
	End         float64
	Probability float64
}

// DecodedSegment is one backend segment, relative to the decoded audio.
type DecodedSegment struct {
	Start        float64
	End          float64
	Text         string
	AvgLogProb   float64
	NoSpeechProb float64
	Words        []DecodedWord
}

// DecodeResult is the backend output for one inference call.
type DecodeResult struct {
	Language           string
	LanguageConfidence float64
	Duration           float64
	Segments           []DecodedSegment
}

// Runtime performs inference. Implementations must be safe for concurrent
// calls; the single engine instance is shared by all in-flight requests.
type Runtime interface {
	Decode(ctx context.Context, waveform *audio.Waveform, req DecodeRequest) (*DecodeResult, error)
}

// New constructs the runtime named in configuration.
func New(cfg platformconfig.RuntimeConfig, model string) (Runtime, error) {
	switch cfg.Type {
	case "", "local":
		return newLocalRuntime(cfg, model), nil
	case "openai":
		return newOpenAIRuntime(cfg, model)
	default:
		return nil, fmt.Errorf("unknown model runtime: %s", cfg.Type)
	}
}
