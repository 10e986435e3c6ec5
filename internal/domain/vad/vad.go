// Package vad implements energy-based voice activity detection. The optimized
// engine uses it as a pre-filter: non-speech spans are dropped before decoding
// and segment timestamps are later re-aligned to the original timeline.
package vad

import "asr-webservice-go/internal/domain/audio"

const frameMs = 30

// Config tunes speech/non-speech classification.
type Config struct {
	EnergyThreshold float64 // RMS above this is treated as speech
	MinSilenceMs    int     // gaps shorter than this are merged into speech
	SpeechPadMs     int     // padding applied around detected speech
}

// DefaultConfig mirrors the service defaults.
func DefaultConfig() Config {
	return Config{
		EnergyThreshold: 0.01,
		MinSilenceMs:    800,
		SpeechPadMs:     200,
	}
}

// Region is a speech span in seconds on the original timeline.
type Region struct {
	Start float64
	End   float64
}

// Duration returns the region length in seconds.
func (r Region) Duration() float64 {
	return r.End - r.Start
}

// Detect classifies the waveform into speech regions. An empty result means
// no frame crossed the energy threshold.
func Detect(w *audio.Waveform, cfg Config) []Region {
	if w.Empty() {
		return nil
	}
	if cfg.EnergyThreshold <= 0 {
		cfg.EnergyThreshold = DefaultConfig().EnergyThreshold
	}

	frameLen := w.SampleRate * frameMs / 1000
	if frameLen <= 0 {
		frameLen = 1
	}

	frameSec := float64(frameMs) / 1000
	var regions []Region
	var current *Region

	for off := 0; off < len(w.Samples); off += frameLen {
		start := float64(off) / float64(w.SampleRate)
		rms := w.RMS(start, start+frameSec)

		if rms >= cfg.EnergyThreshold {
			if current == nil {
				current = &Region{Start: start}
			}
			current.End = start + frameSec
		} else if current != nil {
			regions = append(regions, *current)
			current = nil
		}
	}
	if current != nil {
		regions = append(regions, *current)
	}

	return pad(mergeGaps(regions, float64(cfg.MinSilenceMs)/1000), float64(cfg.SpeechPadMs)/1000, w.Duration())
}

// mergeGaps joins adjacent regions separated by less than minGap seconds.
func mergeGaps(regions []Region, minGap float64) []Region {
	if len(regions) < 2 {
		return regions
	}
	merged := []Region{regions[0]}
	for _, r := range regions[1:] {
		last := &merged[len(merged)-1]
		if r.Start-last.End < minGap {
			last.End = r.End
		} else {
			merged = append(merged, r)
		}
	}
	return merged
}

// pad widens each region by padSec on both sides, clamped to the audio and
// re-merged where padding created overlap.
func pad(regions []Region, padSec, total float64) []Region {
	if padSec <= 0 || len(regions) == 0 {
		return regions
	}
	for i := range regions {
		regions[i].Start -= padSec
		if regions[i].Start < 0 {
			regions[i].Start = 0
		}
		regions[i].End += padSec
		if regions[i].End > total {
			regions[i].End = total
		}
	}
	return mergeGaps(regions, 0)
}
