package audio

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV renders the waveform as a mono PCM16 RIFF/WAVE payload. Model
// runtimes use this to ship audio to out-of-process inference backends.
func EncodeWAV(w *Waveform) []byte {
	dataLen := len(w.Samples) * 2

	var out bytes.Buffer
	out.Grow(44 + dataLen)

	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(36+dataLen))
	out.WriteString("WAVE")

	out.WriteString("fmt ")
	binary.Write(&out, binary.LittleEndian, uint32(16))
	binary.Write(&out, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&out, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&out, binary.LittleEndian, uint32(w.SampleRate))
	binary.Write(&out, binary.LittleEndian, uint32(w.SampleRate*2))
	binary.Write(&out, binary.LittleEndian, uint16(2))
	binary.Write(&out, binary.LittleEndian, uint16(16))

	out.WriteString("data")
	binary.Write(&out, binary.LittleEndian, uint32(dataLen))
	for _, s := range w.Samples {
		v := s
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.Write(&out, binary.LittleEndian, int16(v*32767))
	}

	return out.Bytes()
}
