// Package audio converts uploaded bytes into the normalized mono waveform the
// engines consume. WAV and MP3 containers are decoded and resampled; with the
// encode flag off the payload is interpreted as raw 16-bit little-endian PCM
// already at the target rate.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	platformerrors "asr-webservice-go/internal/platform/errors"
)

// Decoder is the byte-to-waveform conversion stage in front of the engines.
type Decoder struct {
	sampleRate int
}

// NewDecoder creates a decoder targeting the given sample rate (typically 16000).
func NewDecoder(sampleRate int) *Decoder {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Decoder{sampleRate: sampleRate}
}

// SampleRate returns the output sample rate of decoded waveforms.
func (d *Decoder) SampleRate() int {
	return d.sampleRate
}

// Decode converts uploaded bytes into a mono waveform. When encode is false
// the bytes are taken as raw s16le PCM at the target rate, matching the
// behavior of the upstream service when re-encoding is skipped.
func (d *Decoder) Decode(data []byte, encode bool) (*Waveform, error) {
	if len(data) == 0 {
		return nil, platformerrors.New(platformerrors.KindInvalidAudio, "audio:decode", "empty audio payload")
	}

	if !encode {
		return d.decodeRawPCM(data)
	}

	switch sniffFormat(data) {
	case formatWAV:
		return d.decodeWAV(data)
	case formatMP3:
		return d.decodeMP3(data)
	default:
		return nil, platformerrors.New(platformerrors.KindInvalidAudio, "audio:decode", "unrecognized audio container")
	}
}

type containerFormat int

const (
	formatUnknown containerFormat = iota
	formatWAV
	formatMP3
)

func sniffFormat(data []byte) containerFormat {
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		return formatWAV
	}
	if len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")) {
		return formatMP3
	}
	// MPEG frame sync: 11 set bits.
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return formatMP3
	}
	return formatUnknown
}

func (d *Decoder) decodeRawPCM(data []byte) (*Waveform, error) {
	if len(data)%2 != 0 {
		return nil, platformerrors.New(platformerrors.KindInvalidAudio, "audio:decode", "raw PCM payload has odd length")
	}
	samples := make([]float32, len(data)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(data[2*i:]))
		samples[i] = float32(s) / 32768.0
	}
	return &Waveform{SampleRate: d.sampleRate, Samples: samples}, nil
}

func (d *Decoder) decodeWAV(data []byte) (*Waveform, error) {
	rate, channels, pcm, err := parseWAV(data)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindInvalidAudio, "audio:decode", "malformed WAV payload", err)
	}

	mono := downmix(pcm, channels)
	if len(mono) == 0 {
		return nil, platformerrors.New(platformerrors.KindInvalidAudio, "audio:decode", "WAV payload carries no samples")
	}

	return &Waveform{SampleRate: d.sampleRate, Samples: resample(mono, rate, d.sampleRate)}, nil
}

func (d *Decoder) decodeMP3(data []byte) (*Waveform, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindInvalidAudio, "audio:decode", "malformed MP3 payload", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindInvalidAudio, "audio:decode", "MP3 decode failed", err)
	}

	// go-mp3 always yields 16-bit stereo PCM.
	samples := make([]float32, 0, len(raw)/4)
	for i := 0; i+3 < len(raw); i += 4 {
		left := int16(binary.LittleEndian.Uint16(raw[i:]))
		right := int16(binary.LittleEndian.Uint16(raw[i+2:]))
		samples = append(samples, (float32(left)+float32(right))/2/32768.0)
	}
	if len(samples) == 0 {
		return nil, platformerrors.New(platformerrors.KindInvalidAudio, "audio:decode", "MP3 payload carries no samples")
	}

	return &Waveform{SampleRate: d.sampleRate, Samples: resample(samples, dec.SampleRate(), d.sampleRate)}, nil
}

// parseWAV walks the RIFF chunk list and returns sample rate, channel count
// and interleaved PCM16 samples. Only uncompressed PCM16 is accepted.
func parseWAV(data []byte) (rate, channels int, pcm []int16, err error) {
	r := bytes.NewReader(data[12:])

	var bitsPerSample int
	var dataChunk []byte

	for {
		var header [8]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			break
		}
		id := string(header[0:4])
		size := binary.LittleEndian.Uint32(header[4:8])

		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, 0, nil, fmt.Errorf("truncated %q chunk", id)
		}
		// Chunks are word-aligned.
		if size%2 == 1 {
			_, _ = r.ReadByte()
		}

		switch id {
		case "fmt ":
			if len(body) < 16 {
				return 0, 0, nil, fmt.Errorf("fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			if format != 1 { // PCM
				return 0, 0, nil, fmt.Errorf("unsupported WAV format code %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			rate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
		case "data":
			dataChunk = body
		}
	}

	if rate == 0 || channels == 0 {
		return 0, 0, nil, fmt.Errorf("missing fmt chunk")
	}
	if bitsPerSample != 16 {
		return 0, 0, nil, fmt.Errorf("unsupported bit depth %d", bitsPerSample)
	}
	if dataChunk == nil {
		return 0, 0, nil, fmt.Errorf("missing data chunk")
	}

	pcm = make([]int16, len(dataChunk)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(dataChunk[2*i:]))
	}
	return rate, channels, pcm, nil
}

func downmix(pcm []int16, channels int) []float32 {
	if channels <= 0 {
		return nil
	}
	frames := len(pcm) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(pcm[i*channels+c])
		}
		mono[i] = sum / float32(channels) / 32768.0
	}
	return mono
}

// resample performs linear interpolation between sample rates.
func resample(in []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(in) == 0 {
		return in
	}
	outLen := int(float64(len(in)) * float64(to) / float64(from))
	if outLen == 0 {
		outLen = 1
	}
	out := make([]float32, outLen)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}
