// Package fasterwhisper is the optimized engine variant. It adds a voice
// activity pre-filter that skips non-speech audio before decoding, plus
// word-level timestamps. Everything decoded inside a speech region is
// re-aligned to the original upload timeline before it is emitted.
package fasterwhisper

import (
	"context"
	"errors"
	"strings"

	"asr-webservice-go/internal/domain/audio"
	"asr-webservice-go/internal/domain/engine"
	"asr-webservice-go/internal/domain/engine/whisper"
	"asr-webservice-go/internal/domain/model"
	"asr-webservice-go/internal/domain/vad"
	platformconfig "asr-webservice-go/internal/platform/config"
	platformerrors "asr-webservice-go/internal/platform/errors"
	"asr-webservice-go/internal/platform/logging"
)

var capabilities = engine.Capabilities{
	Name:              "fasterwhisper",
	VADFilter:         true,
	WordTimestamps:    true,
	LanguageDetection: true,
}

func init() {
	engine.Register("fasterwhisper", New)
}

// Engine decodes speech regions instead of the raw timeline when the VAD
// filter is requested, and falls back to plain chunking otherwise.
type Engine struct {
	runtime model.Runtime
	cfg     platformconfig.ASRConfig
	vadCfg  vad.Config
	logger  *logging.Logger
}

// New constructs the optimized engine.
func New(deps engine.Deps) (engine.Engine, error) {
	if deps.Runtime == nil {
		return nil, errors.New("fasterwhisper engine requires a model runtime")
	}
	cfg := platformconfig.DefaultConfig().ASR
	if deps.Config != nil {
		cfg = *deps.Config
	}
	if cfg.ChunkSeconds <= 0 {
		cfg.ChunkSeconds = 30
	}

	vadCfg := vad.DefaultConfig()
	if cfg.VAD.EnergyThreshold > 0 {
		vadCfg.EnergyThreshold = cfg.VAD.EnergyThreshold
	}
	if cfg.VAD.MinSilenceMs > 0 {
		vadCfg.MinSilenceMs = cfg.VAD.MinSilenceMs
	}
	if cfg.VAD.SpeechPadMs > 0 {
		vadCfg.SpeechPadMs = cfg.VAD.SpeechPadMs
	}

	return &Engine{runtime: deps.Runtime, cfg: cfg, vadCfg: vadCfg, logger: deps.Logger}, nil
}

func (e *Engine) Capabilities() engine.Capabilities {
	return capabilities
}

func (e *Engine) Transcribe(ctx context.Context, waveform *audio.Waveform, opts engine.Options) (*engine.Stream, error) {
	if waveform.Empty() {
		return nil, platformerrors.New(platformerrors.KindInvalidAudio, "fasterwhisper:transcribe", "empty waveform")
	}
	opts = capabilities.Gate(opts)

	regions := []vad.Region{{Start: 0, End: waveform.Duration()}}
	if opts.VADFilter {
		regions = vad.Detect(waveform, e.vadCfg)
		e.logger.DebugTag("ENGINE", "vad pre-filter kept %d speech regions", len(regions))
	}

	stream := engine.NewStream()
	go e.produce(ctx, stream, waveform, opts, regions)
	return stream, nil
}

func (e *Engine) produce(ctx context.Context, stream *engine.Stream, waveform *audio.Waveform, opts engine.Options, regions []vad.Region) {
	var err error
	defer func() { stream.Close(err) }()

	em := emitter{stream: stream}
	language := opts.Language
	prompt := opts.InitialPrompt

	for _, region := range regions {
		for offset := region.Start; offset < region.End; offset += e.cfg.ChunkSeconds {
			end := offset + e.cfg.ChunkSeconds
			if end > region.End {
				end = region.End
			}
			chunk := waveform.Slice(offset, end)
			if chunk.Empty() {
				continue
			}

			var res *model.DecodeResult
			res, err = whisper.DecodeWithTimeout(ctx, e.runtime, e.cfg, chunk, model.DecodeRequest{
				Task:           string(opts.Task),
				Language:       language,
				InitialPrompt:  prompt,
				WordTimestamps: opts.WordTimestamps,
			})
			if err != nil {
				return
			}
			if language == "" {
				language = res.Language
			}
			prompt = ""

			// Decoded timestamps are relative to the chunk; shift them back
			// onto the original, unfiltered timeline.
			for _, ds := range res.Segments {
				if !em.emit(ctx, realign(ds, offset, opts.WordTimestamps)) {
					return
				}
			}
		}
	}
}

func (e *Engine) DetectLanguage(ctx context.Context, waveform *audio.Waveform) (engine.LanguageDetection, error) {
	return whisper.DetectLanguage(ctx, e.runtime, e.cfg, waveform)
}

// emitter enforces non-decreasing start times across region boundaries.
type emitter struct {
	stream    *engine.Stream
	prevStart float64
}

func (em *emitter) emit(ctx context.Context, seg engine.Segment) bool {
	if seg.Start < em.prevStart {
		seg.Start = em.prevStart
	}
	if seg.End < seg.Start {
		seg.End = seg.Start
	}
	em.prevStart = seg.Start
	return em.stream.Emit(ctx, seg)
}

func realign(ds model.DecodedSegment, offset float64, withWords bool) engine.Segment {
	seg := engine.Segment{
		Start: offset + ds.Start,
		End:   offset + ds.End,
		Text:  strings.TrimSpace(ds.Text),
	}
	if withWords && len(ds.Words) > 0 {
		seg.Words = make([]engine.Word, 0, len(ds.Words))
		for _, w := range ds.Words {
			seg.Words = append(seg.Words, engine.Word{
				Word:       w.Word,
				Start:      offset + w.Start,
				End:        offset + w.End,
				Confidence: w.Probability,
			})
		}
	}
	return seg
}
