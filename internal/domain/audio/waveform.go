package audio

import "math"

// Waveform is normalized mono audio at a fixed sample rate. Samples are in [-1, 1].
type Waveform struct {
	SampleRate int
	Samples    []float32
}

// Duration returns the waveform length in seconds.
func (w *Waveform) Duration() float64 {
	if w == nil || w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Empty reports whether the waveform carries no samples.
func (w *Waveform) Empty() bool {
	return w == nil || len(w.Samples) == 0
}

// Slice returns the sub-waveform covering [startSec, endSec), clamped to bounds.
func (w *Waveform) Slice(startSec, endSec float64) *Waveform {
	if w.Empty() {
		return &Waveform{SampleRate: w.SampleRate}
	}
	start := int(startSec * float64(w.SampleRate))
	end := int(endSec * float64(w.SampleRate))
	if start < 0 {
		start = 0
	}
	if end > len(w.Samples) {
		end = len(w.Samples)
	}
	if start >= end {
		return &Waveform{SampleRate: w.SampleRate}
	}
	return &Waveform{SampleRate: w.SampleRate, Samples: w.Samples[start:end]}
}

// RMS computes the root-mean-square energy over [startSec, endSec).
func (w *Waveform) RMS(startSec, endSec float64) float64 {
	seg := w.Slice(startSec, endSec)
	if seg.Empty() {
		return 0
	}
	var sum float64
	for _, s := range seg.Samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(seg.Samples)))
}
