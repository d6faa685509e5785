package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// WriteWAVHeader writes a minimal 44-byte WAV header for 16-bit mono PCM at
// the given sample rate.
func WriteWAVHeader(w io.Writer, sampleRate, dataSize int) error {
	totalSize := 36 + dataSize
	byteRate := sampleRate * 2 // mono, 16-bit

	// RIFF header
	if _, err := w.Write([]byte("RIFF")); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(totalSize)); err != nil {
		return err
	}
	if _, err := w.Write([]byte("WAVE")); err != nil {
		return err
	}

	// fmt sub-chunk
	if _, err := w.Write([]byte("fmt ")); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(16)); err != nil { // sub-chunk size
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(1)); err != nil { // PCM format
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(1)); err != nil { // mono
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(sampleRate)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(byteRate)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(2)); err != nil { // block align
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(16)); err != nil { // bits per sample
		return err
	}

	// data sub-chunk
	if _, err := w.Write([]byte("data")); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, uint32(dataSize))
}

// EncodeWAV wraps float32 samples as a complete 16-bit mono WAV file.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	pcm := Float32ToPCM16(samples)
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	if err := WriteWAVHeader(&buf, sampleRate, len(pcm)); err != nil {
		return nil, fmt.Errorf("write WAV header: %w", err)
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// DecodeWAV extracts mono float32 samples and the sample rate from a 16-bit
// PCM WAV file. Stereo input is downmixed by taking the first channel.
func DecodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		sampleRate int
		channels   int
		bits       int
		pcm        []byte
	)

	// Walk the chunk list; fmt must precede data.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			return nil, 0, fmt.Errorf("truncated %q chunk", id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("short fmt chunk")
			}
			format := int(binary.LittleEndian.Uint16(data[body:]))
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = int(binary.LittleEndian.Uint16(data[body+14:]))
			if format != 1 || bits != 16 {
				return nil, 0, fmt.Errorf("unsupported WAV encoding (format=%d bits=%d), need 16-bit PCM", format, bits)
			}
		case "data":
			pcm = data[body : body+size]
		}
		// Chunks are word-aligned.
		off = body + size + size%2
	}

	if sampleRate == 0 || pcm == nil {
		return nil, 0, fmt.Errorf("missing fmt or data chunk")
	}
	if channels <= 0 {
		channels = 1
	}

	samples := PCM16ToFloat32(pcm)
	if channels > 1 {
		mono := make([]float32, 0, len(samples)/channels)
		for i := 0; i+channels <= len(samples); i += channels {
			mono = append(mono, samples[i])
		}
		samples = mono
	}
	return samples, sampleRate, nil
}
