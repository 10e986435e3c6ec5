package model

import (
	"bytes"
	"context"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"asr-webservice-go/internal/domain/audio"
	platformconfig "asr-webservice-go/internal/platform/config"
)

// openaiRuntime delegates inference to any OpenAI-compatible
// audio/transcriptions endpoint.
type openaiRuntime struct {
	client *openai.Client
	model  string
}

func newOpenAIRuntime(cfg platformconfig.RuntimeConfig, model string) (*openaiRuntime, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai runtime requires an api key")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	// The remote endpoint names its own weights; cfg.Model wins over the
	// local model identifier.
	runtimeModel := cfg.Model
	if runtimeModel == "" {
		runtimeModel = openai.Whisper1
	}

	return &openaiRuntime{
		client: openai.NewClientWithConfig(clientCfg),
		model:  runtimeModel,
	}, nil
}

func (r *openaiRuntime) Decode(ctx context.Context, waveform *audio.Waveform, req DecodeRequest) (*DecodeResult, error) {
	audioReq := openai.AudioRequest{
		Model:    r.model,
		Reader:   bytes.NewReader(audio.EncodeWAV(waveform)),
		FilePath: "audio.wav",
		Prompt:   req.InitialPrompt,
		Language: req.Language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}
	if req.WordTimestamps {
		audioReq.TimestampGranularities = []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
			openai.TranscriptionTimestampGranularityWord,
		}
	}

	var (
		resp openai.AudioResponse
		err  error
	)
	if req.Task == "translate" {
		resp, err = r.client.CreateTranslation(ctx, audioReq)
	} else {
		resp, err = r.client.CreateTranscription(ctx, audioReq)
	}
	if err != nil {
		return nil, fmt.Errorf("openai runtime: %w", err)
	}

	return convertOpenAI(&resp), nil
}

func convertOpenAI(in *openai.AudioResponse) *DecodeResult {
	out := &DecodeResult{
		Language: in.Language,
		Duration: in.Duration,
		Segments: make([]DecodedSegment, 0, len(in.Segments)),
	}

	var logProbSum float64
	for _, s := range in.Segments {
		seg := DecodedSegment{
			Start:        s.Start,
			End:          s.End,
			Text:         s.Text,
			AvgLogProb:   s.AvgLogprob,
			NoSpeechProb: s.NoSpeechProb,
		}
		logProbSum += s.AvgLogprob
		out.Segments = append(out.Segments, seg)
	}

	// Words come back as a flat list; attach each to the segment covering it.
	for _, w := range in.Words {
		for i := range out.Segments {
			if w.Start >= out.Segments[i].Start && w.Start < out.Segments[i].End {
				out.Segments[i].Words = append(out.Segments[i].Words, DecodedWord{
					Word:        w.Word,
					Start:       w.Start,
					End:         w.End,
					Probability: clamp01(math.Exp(out.Segments[i].AvgLogProb)),
				})
				break
			}
		}
	}

	// The endpoint reports no language confidence; derive one from the mean
	// segment log-probability.
	if n := len(in.Segments); n > 0 {
		out.LanguageConfidence = clamp01(math.Exp(logProbSum / float64(n)))
	}

	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
