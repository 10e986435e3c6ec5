// Package whisperx is the diarization-augmented engine variant. It wraps the
// optimized pipeline and attaches a speaker label to each segment in a
// clustering post-pass. Segment boundaries, timing and text are passed through
// untouched; only the speaker field is added.
package whisperx

import (
	"context"
	"errors"

	"asr-webservice-go/internal/domain/audio"
	"asr-webservice-go/internal/domain/diarize"
	"asr-webservice-go/internal/domain/engine"
	"asr-webservice-go/internal/domain/engine/fasterwhisper"
	"asr-webservice-go/internal/platform/logging"
)

var capabilities = engine.Capabilities{
	Name:              "whisperx",
	VADFilter:         true,
	WordTimestamps:    true,
	Diarization:       true,
	LanguageDetection: true,
}

func init() {
	engine.Register("whisperx", New)
}

// Engine layers speaker clustering on top of the optimized variant.
type Engine struct {
	inner  engine.Engine
	logger *logging.Logger
}

// New constructs the diarization-augmented engine. The diarization credential
// is checked here, at startup, so a misconfigured deployment fails before it
// can accept requests.
func New(deps engine.Deps) (engine.Engine, error) {
	if deps.Config == nil || deps.Config.Diarization.HFToken == "" {
		return nil, errors.New("whisperx engine requires a diarization token (hf_token)")
	}

	inner, err := fasterwhisper.New(deps)
	if err != nil {
		return nil, err
	}
	return &Engine{inner: inner, logger: deps.Logger}, nil
}

func (e *Engine) Capabilities() engine.Capabilities {
	return capabilities
}

func (e *Engine) Transcribe(ctx context.Context, waveform *audio.Waveform, opts engine.Options) (*engine.Stream, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = capabilities.Gate(opts)

	innerOpts := opts
	innerOpts.Diarization = engine.DiarizationOptions{}
	inner, err := e.inner.Transcribe(ctx, waveform, innerOpts)
	if err != nil {
		return nil, err
	}
	if !opts.Diarization.Enabled {
		return inner, nil
	}

	cfg := diarize.Config{}
	if opts.Diarization.MinSpeakers != nil {
		cfg.MinSpeakers = *opts.Diarization.MinSpeakers
	}
	if opts.Diarization.MaxSpeakers != nil {
		cfg.MaxSpeakers = *opts.Diarization.MaxSpeakers
	}

	out := engine.NewStream()
	go e.label(ctx, out, inner, waveform, cfg)
	return out, nil
}

// label consumes the inner stream and re-emits each segment with a speaker
// attached. Clustering is online, so labeling keeps pace with production
// instead of buffering the transcript.
func (e *Engine) label(ctx context.Context, out, inner *engine.Stream, waveform *audio.Waveform, cfg diarize.Config) {
	clusterer := diarize.NewClusterer(cfg)
	for {
		seg, ok := inner.Next()
		if !ok {
			out.Close(inner.Err())
			return
		}
		seg.Speaker = clusterer.Assign(waveform, seg.Start, seg.End)
		if !out.Emit(ctx, seg) {
			out.Close(ctx.Err())
			return
		}
	}
}

func (e *Engine) DetectLanguage(ctx context.Context, waveform *audio.Waveform) (engine.LanguageDetection, error) {
	return e.inner.DetectLanguage(ctx, waveform)
}
