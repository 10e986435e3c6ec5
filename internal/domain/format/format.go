// Package format renders segment streams into the five client-facing text
// encodings. All formats except json are emitted incrementally as segments
// arrive; json is the single buffering format since a valid JSON document
// cannot be closed before the last segment is known.
package format

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/bytedance/sonic"

	"asr-webservice-go/internal/domain/engine"
	platformerrors "asr-webservice-go/internal/platform/errors"
)

// Format names a supported output encoding.
type Format string

const (
	TXT  Format = "txt"
	VTT  Format = "vtt"
	SRT  Format = "srt"
	TSV  Format = "tsv"
	JSON Format = "json"
)

// All lists every supported format.
func All() []Format {
	return []Format{TXT, VTT, SRT, TSV, JSON}
}

// Parse validates a format name, defaulting to txt when empty.
func Parse(s string) (Format, error) {
	if s == "" {
		return TXT, nil
	}
	f := Format(strings.ToLower(s))
	for _, known := range All() {
		if f == known {
			return f, nil
		}
	}
	return "", platformerrors.New(platformerrors.KindInvalidOption, "format:parse", "unknown output format: "+s)
}

// Render drains the stream into w using the requested encoding. The stream is
// consumed exactly once; a producer error surfaces after the last segment it
// managed to emit.
func Render(w io.Writer, stream *engine.Stream, f Format) error {
	switch f {
	case TXT:
		return renderTXT(w, stream)
	case VTT:
		return renderVTT(w, stream)
	case SRT:
		return renderSRT(w, stream)
	case TSV:
		return renderTSV(w, stream)
	case JSON:
		return renderJSON(w, stream)
	default:
		return platformerrors.New(platformerrors.KindInvalidOption, "format:render", "unknown output format: "+string(f))
	}
}

// validate enforces the segment invariants every renderer relies on.
func validate(seg engine.Segment, prevStart float64) error {
	if math.IsNaN(seg.Start) || math.IsNaN(seg.End) || math.IsInf(seg.Start, 0) || math.IsInf(seg.End, 0) {
		return platformerrors.New(platformerrors.KindInvalidSegment, "format:render", "segment timestamp is not finite")
	}
	if seg.Start < 0 || seg.End < seg.Start {
		return platformerrors.New(platformerrors.KindInvalidSegment, "format:render", "segment time range is inverted or negative")
	}
	if seg.Start < prevStart {
		return platformerrors.New(platformerrors.KindInvalidSegment, "format:render", "segment start times are not monotonic")
	}
	return nil
}

func renderTXT(w io.Writer, stream *engine.Stream) error {
	prev := 0.0
	for {
		seg, ok := stream.Next()
		if !ok {
			return stream.Err()
		}
		if err := validate(seg, prev); err != nil {
			return err
		}
		prev = seg.Start
		if _, err := fmt.Fprintln(w, strings.TrimSpace(seg.Text)); err != nil {
			return err
		}
	}
}

func renderVTT(w io.Writer, stream *engine.Stream) error {
	if _, err := fmt.Fprint(w, "WEBVTT\n\n"); err != nil {
		return err
	}
	prev := 0.0
	for {
		seg, ok := stream.Next()
		if !ok {
			return stream.Err()
		}
		if err := validate(seg, prev); err != nil {
			return err
		}
		prev = seg.Start
		_, err := fmt.Fprintf(w, "%s --> %s\n%s\n\n",
			formatTimestamp(seg.Start, "."),
			formatTimestamp(seg.End, "."),
			cueText(seg))
		if err != nil {
			return err
		}
	}
}

func renderSRT(w io.Writer, stream *engine.Stream) error {
	prev := 0.0
	index := 0
	for {
		seg, ok := stream.Next()
		if !ok {
			return stream.Err()
		}
		if err := validate(seg, prev); err != nil {
			return err
		}
		prev = seg.Start
		index++
		_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			index,
			formatTimestamp(seg.Start, ","),
			formatTimestamp(seg.End, ","),
			cueText(seg))
		if err != nil {
			return err
		}
	}
}

func renderTSV(w io.Writer, stream *engine.Stream) error {
	if _, err := fmt.Fprint(w, "start\tend\ttext\n"); err != nil {
		return err
	}
	prev := 0.0
	for {
		seg, ok := stream.Next()
		if !ok {
			return stream.Err()
		}
		if err := validate(seg, prev); err != nil {
			return err
		}
		prev = seg.Start
		_, err := fmt.Fprintf(w, "%d\t%d\t%s\n",
			int64(math.Round(1000*seg.Start)),
			int64(math.Round(1000*seg.End)),
			strings.TrimSpace(seg.Text))
		if err != nil {
			return err
		}
	}
}

type jsonDocument struct {
	Text     string           `json:"text"`
	Segments []engine.Segment `json:"segments"`
}

func renderJSON(w io.Writer, stream *engine.Stream) error {
	segments, err := stream.Collect()
	if err != nil {
		return err
	}

	prev := 0.0
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if err := validate(seg, prev); err != nil {
			return err
		}
		prev = seg.Start
		parts = append(parts, strings.TrimSpace(seg.Text))
	}

	doc := jsonDocument{
		Text:     strings.Join(parts, " "),
		Segments: segments,
	}
	if doc.Segments == nil {
		doc.Segments = []engine.Segment{}
	}

	payload, err := sonic.Marshal(doc)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindInvalidSegment, "format:render", "failed to encode json document", err)
	}
	_, err = w.Write(payload)
	return err
}

// cueText prefixes the speaker label when diarization ran.
func cueText(seg engine.Segment) string {
	text := strings.TrimSpace(seg.Text)
	if seg.Speaker != "" {
		return fmt.Sprintf("[%s]: %s", seg.Speaker, text)
	}
	return text
}

// formatTimestamp renders seconds as HH:MM:SS<sep>mmm. VTT uses a dot,
// SRT a comma.
func formatTimestamp(seconds float64, sep string) string {
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, sep, ms)
}
