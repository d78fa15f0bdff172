package features

import "math"

const (
	minTempo   = 30.0
	maxTempo   = 300.0
	startTempo = 120.0
	// tempoSpread is the standard deviation of the tempo prior, in octaves.
	tempoSpread = 1.0

	// Pitch tracking searches local spectral peaks within this range that
	// reach pitchThreshold of the frame maximum.
	pitchMinHz     = 150.0
	pitchMaxHz     = 4000.0
	pitchThreshold = 0.1
)

// onsetEnvelope returns the mean positive change of the log-mel bands
// between consecutive frames.
func onsetEnvelope(melDB [][]float64) []float64 {
	env := make([]float64, len(melDB))
	for t := 1; t < len(melDB); t++ {
		var sum float64
		for b, v := range melDB[t] {
			sum += max(0, v-melDB[t-1][b])
		}
		env[t] = sum / float64(len(melDB[t]))
	}
	return env
}

// estimateTempo picks the beat period, in BPM, whose onset autocorrelation
// is strongest after weighting by a log-normal prior centred on 120 BPM.
// It returns 0 when the recording has no periodic onsets.
func estimateTempo(onset []float64, sampleRate int) float64 {
	frameRate := float64(sampleRate) / HopSize
	minLag := max(1, int(math.Floor(60*frameRate/maxTempo)))
	maxLag := min(len(onset)-1, int(math.Ceil(60*frameRate/minTempo)))

	var best float64
	bestLag := 0
	for lag := minLag; lag <= maxLag; lag++ {
		var ac float64
		for i := lag; i < len(onset); i++ {
			ac += onset[i] * onset[i-lag]
		}
		bpm := 60 * frameRate / float64(lag)
		octaves := (math.Log2(bpm) - math.Log2(startTempo)) / tempoSpread
		score := ac * math.Exp(-0.5*octaves*octaves)
		if score > best {
			best, bestLag = score, lag
		}
	}
	if bestLag == 0 {
		return 0
	}
	return 60 * frameRate / float64(bestLag)
}

// framePitch returns the highest frequency among the local magnitude peaks
// of one frame, refined by parabolic interpolation. It returns 0 for a
// frame without qualifying peaks.
func framePitch(mag []float64, binHz float64) float64 {
	var peak float64
	for _, m := range mag {
		peak = max(peak, m)
	}
	threshold := pitchThreshold * peak

	lo := max(1, int(math.Ceil(pitchMinHz/binHz)))
	hi := min(len(mag)-2, int(math.Floor(pitchMaxHz/binHz)))
	var pitch float64
	for k := lo; k <= hi; k++ {
		m := mag[k]
		if m <= threshold || m <= mag[k-1] || m < mag[k+1] {
			continue
		}
		shift := 0.0
		if curve := 2*m - mag[k-1] - mag[k+1]; curve != 0 {
			shift = 0.5 * (mag[k+1] - mag[k-1]) / curve
		}
		pitch = max(pitch, (float64(k)+shift)*binHz)
	}
	return pitch
}
