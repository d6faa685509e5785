// Package audio holds the small PCM plumbing shared by the transcription
// backends and the chunking pipeline: sample format conversion, RMS energy,
// resampling, and WAV framing. Everything operates on mono audio.
package audio

import (
	"encoding/binary"
	"math"
)

// Float32ToPCM16 converts float32 samples in [-1, 1] to little-endian
// signed 16-bit PCM bytes. Out-of-range samples are clipped.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// PCM16ToFloat32 converts little-endian signed 16-bit PCM bytes to float32
// samples in [-1, 1]. A trailing odd byte is dropped.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(v) / 32768
	}
	return out
}

// RMS computes the root-mean-square energy of float32 samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
