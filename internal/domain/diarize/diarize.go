// Package diarize assigns speaker labels to transcript segments. Clustering
// is online over cheap acoustic features so labels can be attached while the
// segment stream is still being produced; boundaries and timing are never
// altered.
package diarize

import (
	"fmt"
	"math"

	"asr-webservice-go/internal/domain/audio"
)

const (
	// seedDistance: while below the minimum speaker count, any segment this
	// far from every centroid seeds a new cluster.
	seedDistance = 0.05
	// splitDistance: beyond the minimum, a segment must be this far from
	// every centroid before a new speaker is introduced.
	splitDistance = 0.25
	// ambiguityMargin: when the two nearest clusters are this close, the
	// assignment is considered low-confidence and falls back to the previous
	// segment's speaker.
	ambiguityMargin = 0.03
)

// Config bounds the number of speakers. Zero means unbounded. MaxSpeakers is
// a hard cap. MinSpeakers lowers the seeding threshold while the cluster
// count is below it but is not a guarantee: voices whose features never
// separate collapse into one label, the same way reference diarization
// pipelines behave on indistinguishable speakers.
type Config struct {
	MinSpeakers int
	MaxSpeakers int
}

type cluster struct {
	centroid [2]float64
	count    int
}

// Clusterer labels segments one at a time. It is single-request state and is
// not safe for concurrent use; each transcription builds its own.
type Clusterer struct {
	cfg       Config
	clusters  []cluster
	lastLabel int
}

// NewClusterer creates a clusterer for one transcription.
func NewClusterer(cfg Config) *Clusterer {
	return &Clusterer{cfg: cfg, lastLabel: -1}
}

// Assign returns the speaker label for the segment spanning [startSec, endSec).
func (c *Clusterer) Assign(w *audio.Waveform, startSec, endSec float64) string {
	f := extractFeatures(w, startSec, endSec)

	if len(c.clusters) == 0 {
		c.clusters = append(c.clusters, cluster{centroid: f, count: 1})
		c.lastLabel = 0
		return label(0)
	}

	nearest, nearestDist, runnerUpDist := c.nearest(f)

	switch {
	case len(c.clusters) < c.cfg.MinSpeakers && nearestDist > seedDistance:
		// Still owe the caller more speakers; seed eagerly.
		return c.seed(f)
	case nearestDist > splitDistance && (c.cfg.MaxSpeakers == 0 || len(c.clusters) < c.cfg.MaxSpeakers):
		return c.seed(f)
	case runnerUpDist-nearestDist < ambiguityMargin && len(c.clusters) > 1 && c.lastLabel >= 0:
		// Low confidence: keep the previous segment's speaker.
		c.update(c.lastLabel, f)
		return label(c.lastLabel)
	default:
		c.update(nearest, f)
		c.lastLabel = nearest
		return label(nearest)
	}
}

func (c *Clusterer) seed(f [2]float64) string {
	c.clusters = append(c.clusters, cluster{centroid: f, count: 1})
	c.lastLabel = len(c.clusters) - 1
	return label(c.lastLabel)
}

func (c *Clusterer) nearest(f [2]float64) (idx int, nearest, runnerUp float64) {
	nearest, runnerUp = math.MaxFloat64, math.MaxFloat64
	for i, cl := range c.clusters {
		d := distance(cl.centroid, f)
		if d < nearest {
			runnerUp = nearest
			nearest = d
			idx = i
		} else if d < runnerUp {
			runnerUp = d
		}
	}
	return idx, nearest, runnerUp
}

func (c *Clusterer) update(idx int, f [2]float64) {
	cl := &c.clusters[idx]
	cl.count++
	n := float64(cl.count)
	cl.centroid[0] += (f[0] - cl.centroid[0]) / n
	cl.centroid[1] += (f[1] - cl.centroid[1]) / n
}

// extractFeatures computes [RMS energy, zero-crossing rate] for the span.
// Crude but cheap; enough to separate speakers with distinct voice energy
// and spectral character.
func extractFeatures(w *audio.Waveform, startSec, endSec float64) [2]float64 {
	seg := w.Slice(startSec, endSec)
	if seg.Empty() {
		return [2]float64{}
	}

	rms := w.RMS(startSec, endSec)

	var crossings int
	prev := seg.Samples[0]
	for _, s := range seg.Samples[1:] {
		if (prev < 0 && s >= 0) || (prev >= 0 && s < 0) {
			crossings++
		}
		prev = s
	}
	zcr := float64(crossings) / float64(len(seg.Samples))

	return [2]float64{rms, zcr}
}

func distance(a, b [2]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Sqrt(dx*dx + dy*dy)
}

func label(idx int) string {
	return fmt.Sprintf("SPEAKER_%02d", idx)
}
