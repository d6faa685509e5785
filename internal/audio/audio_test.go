package audio

import (
	"math"
	"testing"
)

func TestPCM16RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.999, -0.999}
	pcm := Float32ToPCM16(in)
	if len(pcm) != len(in)*2 {
		t.Fatalf("pcm length = %d, want %d", len(pcm), len(in)*2)
	}

	out := PCM16ToFloat32(pcm)
	for i := range in {
		if diff := math.Abs(float64(in[i] - out[i])); diff > 0.001 {
			t.Errorf("sample %d: %f -> %f (diff %f)", i, in[i], out[i], diff)
		}
	}
}

func TestFloat32ToPCM16Clips(t *testing.T) {
	pcm := Float32ToPCM16([]float32{2.0, -2.0})
	out := PCM16ToFloat32(pcm)
	if out[0] < 0.99 || out[1] > -0.99 {
		t.Errorf("out-of-range samples should clip, got %v", out)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %f, want 0", got)
	}
	if got := RMS(make([]float32, 100)); got != 0 {
		t.Errorf("RMS(silence) = %f, want 0", got)
	}

	// Constant amplitude: RMS equals the amplitude.
	loud := make([]float32, 100)
	for i := range loud {
		loud[i] = 0.5
	}
	if got := RMS(loud); math.Abs(got-0.5) > 1e-6 {
		t.Errorf("RMS = %f, want 0.5", got)
	}
}

func TestResample(t *testing.T) {
	// A 24 kHz buffer of one second should come out as roughly 16000 samples.
	in := make([]float32, 24000)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 24000))
	}

	out := Resample(in, 24000, 16000)
	if len(out) != 16000 {
		t.Errorf("resampled length = %d, want 16000", len(out))
	}

	// Same rate returns the input unchanged.
	same := Resample(in, 16000, 16000)
	if len(same) != len(in) {
		t.Error("same-rate resample should be a no-op")
	}

	// Upsampling grows the buffer.
	up := Resample(in[:8000], 8000, 16000)
	if len(up) != 16000 {
		t.Errorf("upsampled length = %d, want 16000", len(up))
	}
}

func TestWAVRoundTrip(t *testing.T) {
	in := make([]float32, 1600)
	for i := range in {
		in[i] = float32(math.Sin(2*math.Pi*float64(i)/100)) * 0.8
	}

	wav, err := EncodeWAV(in, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if len(wav) != 44+len(in)*2 {
		t.Fatalf("wav size = %d, want %d", len(wav), 44+len(in)*2)
	}

	out, rate, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 16000 {
		t.Errorf("rate = %d, want 16000", rate)
	}
	if len(out) != len(in) {
		t.Fatalf("decoded %d samples, want %d", len(out), len(in))
	}
	for i := range in {
		if math.Abs(float64(in[i]-out[i])) > 0.001 {
			t.Fatalf("sample %d mismatch: %f vs %f", i, in[i], out[i])
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("definitely not a wav file at all......")); err == nil {
		t.Error("garbage should not decode")
	}
	if _, _, err := DecodeWAV(nil); err == nil {
		t.Error("empty input should not decode")
	}
}

func TestDecodeWAVStereoDownmix(t *testing.T) {
	// Hand-build a stereo file: left channel ramps, right channel is zero.
	left := []float32{0.1, 0.2, 0.3, 0.4}
	interleaved := make([]float32, 0, len(left)*2)
	for _, s := range left {
		interleaved = append(interleaved, s, 0)
	}
	pcm := Float32ToPCM16(interleaved)

	var buf []byte
	{
		w := &writerBuf{}
		if err := WriteWAVHeader(w, 16000, len(pcm)); err != nil {
			t.Fatal(err)
		}
		buf = append(w.b, pcm...)
	}
	// Patch channel count to 2 (offset 22 in the canonical header).
	buf[22] = 2

	out, _, err := DecodeWAV(buf)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if len(out) != len(left) {
		t.Fatalf("downmixed %d samples, want %d", len(out), len(left))
	}
	for i := range left {
		if math.Abs(float64(out[i]-left[i])) > 0.001 {
			t.Errorf("sample %d = %f, want %f", i, out[i], left[i])
		}
	}
}

type writerBuf struct{ b []byte }

func (w *writerBuf) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}
