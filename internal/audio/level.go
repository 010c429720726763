package audio

import (
	"math"
	"time"
)

// RMS returns the root-mean-square amplitude of samples on the int16 scale.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// AmbientRMS measures the energy over the first d of p. Recognizers use it as
// the noise floor when deciding where speech starts.
func AmbientRMS(p *PCM, d time.Duration) float64 {
	return RMS(p.Slice(0, d).Samples)
}
