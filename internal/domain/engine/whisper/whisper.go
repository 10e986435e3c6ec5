// Package whisper is the reference engine variant: transcribe/translate and
// language detection only. Optional features (VAD, word timestamps,
// diarization) are not advertised and degrade silently when requested.
package whisper

import (
	"context"
	"errors"
	"strings"

	"asr-webservice-go/internal/domain/audio"
	"asr-webservice-go/internal/domain/engine"
	"asr-webservice-go/internal/domain/model"
	platformconfig "asr-webservice-go/internal/platform/config"
	platformerrors "asr-webservice-go/internal/platform/errors"
	"asr-webservice-go/internal/platform/logging"
)

var capabilities = engine.Capabilities{
	Name:              "whisper",
	LanguageDetection: true,
}

func init() {
	engine.Register("whisper", New)
}

// Engine drives the model runtime chunk by chunk with no pre- or post-pass.
type Engine struct {
	runtime model.Runtime
	cfg     platformconfig.ASRConfig
	logger  *logging.Logger
}

// New constructs the reference engine.
func New(deps engine.Deps) (engine.Engine, error) {
	if deps.Runtime == nil {
		return nil, errors.New("whisper engine requires a model runtime")
	}
	cfg := platformconfig.DefaultConfig().ASR
	if deps.Config != nil {
		cfg = *deps.Config
	}
	if cfg.ChunkSeconds <= 0 {
		cfg.ChunkSeconds = 30
	}
	return &Engine{runtime: deps.Runtime, cfg: cfg, logger: deps.Logger}, nil
}

func (e *Engine) Capabilities() engine.Capabilities {
	return capabilities
}

func (e *Engine) Transcribe(ctx context.Context, waveform *audio.Waveform, opts engine.Options) (*engine.Stream, error) {
	if waveform.Empty() {
		return nil, platformerrors.New(platformerrors.KindInvalidAudio, "whisper:transcribe", "empty waveform")
	}
	opts = capabilities.Gate(opts)

	stream := engine.NewStream()
	go e.produce(ctx, stream, waveform, opts)
	return stream, nil
}

func (e *Engine) produce(ctx context.Context, stream *engine.Stream, waveform *audio.Waveform, opts engine.Options) {
	var err error
	defer func() { stream.Close(err) }()

	language := opts.Language
	prompt := opts.InitialPrompt
	duration := waveform.Duration()
	prevStart := 0.0

	for offset := 0.0; offset < duration; offset += e.cfg.ChunkSeconds {
		chunk := waveform.Slice(offset, offset+e.cfg.ChunkSeconds)
		if chunk.Empty() {
			break
		}

		var res *model.DecodeResult
		res, err = DecodeWithTimeout(ctx, e.runtime, e.cfg, chunk, model.DecodeRequest{
			Task:          string(opts.Task),
			Language:      language,
			InitialPrompt: prompt,
		})
		if err != nil {
			return
		}
		// Pin the detected language so later chunks decode consistently,
		// and feed the prompt only once.
		if language == "" {
			language = res.Language
		}
		prompt = ""

		for _, ds := range res.Segments {
			seg := engine.Segment{
				Start: offset + ds.Start,
				End:   offset + ds.End,
				Text:  strings.TrimSpace(ds.Text),
			}
			if seg.Start < prevStart {
				seg.Start = prevStart
			}
			if seg.End < seg.Start {
				seg.End = seg.Start
			}
			prevStart = seg.Start
			if !stream.Emit(ctx, seg) {
				return
			}
		}
	}
}

func (e *Engine) DetectLanguage(ctx context.Context, waveform *audio.Waveform) (engine.LanguageDetection, error) {
	return DetectLanguage(ctx, e.runtime, e.cfg, waveform)
}

// DetectLanguage probes the leading chunk of audio through the runtime. The
// variants share this; detection behaves identically regardless of the
// decoding pipeline stacked on top.
func DetectLanguage(ctx context.Context, runtime model.Runtime, cfg platformconfig.ASRConfig, waveform *audio.Waveform) (engine.LanguageDetection, error) {
	if waveform.Empty() {
		return engine.LanguageDetection{}, platformerrors.New(platformerrors.KindInvalidAudio, "whisper:detect-language", "empty waveform")
	}

	chunkSec := cfg.ChunkSeconds
	if chunkSec <= 0 {
		chunkSec = 30
	}
	probe := waveform.Slice(0, chunkSec)

	res, err := DecodeWithTimeout(ctx, runtime, cfg, probe, model.DecodeRequest{Task: string(engine.TaskTranscribe)})
	if err != nil {
		return engine.LanguageDetection{}, err
	}

	confidence := res.LanguageConfidence
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	return engine.LanguageDetection{LanguageCode: res.Language, Confidence: confidence}, nil
}

// DecodeWithTimeout enforces the engine-side inference budget and maps a
// blown budget to the timeout error kind. Shared by the variants that layer
// extra passes on top of the same runtime.
func DecodeWithTimeout(ctx context.Context, runtime model.Runtime, cfg platformconfig.ASRConfig, chunk *audio.Waveform, req model.DecodeRequest) (*model.DecodeResult, error) {
	decodeCtx := ctx
	if cfg.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		decodeCtx, cancel = context.WithTimeout(ctx, cfg.InferenceTimeout)
		defer cancel()
	}

	res, err := runtime.Decode(decodeCtx, chunk, req)
	if err != nil {
		if errors.Is(decodeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, platformerrors.Wrap(platformerrors.KindEngineTimeout, "engine:decode", "inference exceeded its time budget", err)
		}
		return nil, err
	}
	return res, nil
}
