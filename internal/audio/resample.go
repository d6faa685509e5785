package audio

// Resample converts mono float32 samples from one sample rate to another
// using linear interpolation. It returns the input unchanged when the rates
// already match. Good enough for speech; the recognition engines are far
// less sensitive than the ear.
func Resample(in []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(in) < 2 || fromRate <= 0 || toRate <= 0 {
		return in
	}

	ratio := float64(fromRate) / float64(toRate)
	outSamples := int(float64(len(in)) / ratio)
	if outSamples < 1 {
		return nil
	}

	out := make([]float32, outSamples)
	for i := range out {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := sampleAt(in, srcIdx)
		s1 := sampleAt(in, srcIdx+1)

		out[i] = s0 + float32(frac)*(s1-s0)
	}
	return out
}

func sampleAt(in []float32, idx int) float32 {
	if idx >= len(in) {
		// Clamp to last sample.
		idx = len(in) - 1
	}
	if idx < 0 {
		return 0
	}
	return in[idx]
}
