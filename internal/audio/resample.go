package audio

import "math"

// resampleInt16 converts the samples from one sample rate to another using linear interpolation.
func resampleInt16(input []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(input) == 0 || fromRate <= 0 || toRate <= 0 {
		return input
	}

	outputLen := int(int64(len(input)) * int64(toRate) / int64(fromRate))
	output := make([]int16, outputLen)
	ratio := float64(fromRate) / float64(toRate)

	for i := range output {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(input)-1 {
			output[i] = input[len(input)-1]
			continue
		}

		frac := pos - float64(idx)
		output[i] = int16(math.Round(float64(input[idx])*(1-frac) + float64(input[idx+1])*frac))
	}

	return output
}

// fitFrame copies the samples into frame, zero-padding or truncating them as needed.
func fitFrame(frame Frame, samples []int16) {
	n := copy(frame, samples)
	for i := n; i < len(frame); i++ {
		frame[i] = 0
	}
}

// downmix averages interleaved channels into a single channel.
func downmix(samples []int, channels int) []int16 {
	if channels <= 1 {
		output := make([]int16, len(samples))
		for i, s := range samples {
			output[i] = int16(s)
		}
		return output
	}

	output := make([]int16, len(samples)/channels)
	for i := range output {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		output[i] = int16(sum / channels)
	}

	return output
}
