package recording

import (
	"errors"
	"image"
	"image/draw"
	"math/cmplx"

	"github.com/eligwz/spectrogram"
	"github.com/mjibson/go-dsp/fft"
)

// Plausible heart rate band searched by DominantRate.
const (
	MinPulseHz = 0.5 // 30 BPM
	MaxPulseHz = 4.0 // 240 BPM
)

// DominantRate returns the strongest periodicity of the signal inside the
// heart rate band, in beats per minute. It is a whole-recording diagnostic,
// independent of the peak detector.
func DominantRate(samples []float64, sampleRate int) (float64, error) {
	if sampleRate <= 0 {
		return 0, errors.New("sample rate must be positive")
	}
	if len(samples) < 2*sampleRate {
		return 0, errors.New("need at least two seconds of signal")
	}

	var mean float64
	for _, v := range samples {
		mean += v
	}
	mean /= float64(len(samples))

	centered := make([]float64, len(samples))
	for i, v := range samples {
		centered[i] = v - mean
	}

	spectrum := fft.FFTReal(centered)
	resolution := float64(sampleRate) / float64(len(samples))

	lo := int(MinPulseHz/resolution + 0.5)
	hi := int(MaxPulseHz / resolution)
	if hi >= len(spectrum)/2 {
		hi = len(spectrum)/2 - 1
	}

	bestBin, bestMag := -1, 0.0
	for k := lo; k <= hi; k++ {
		if mag := cmplx.Abs(spectrum[k]); mag > bestMag {
			bestMag = mag
			bestBin = k
		}
	}
	if bestBin < 0 || bestMag == 0 {
		return 0, errors.New("no periodic component in heart rate band")
	}

	return float64(bestBin) * resolution * 60, nil
}

// RenderSpectrogram draws the recording's spectrogram to a PNG file.
func RenderSpectrogram(samples []float64, sampleRate int, path string) error {
	if len(samples) == 0 {
		return errors.New("samples cannot be empty")
	}

	const (
		width  = 1024
		height = 256
	)

	img := spectrogram.NewImage128(image.Rect(0, 0, width, height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	spectrogram.Drawfft(
		img,
		samples,
		uint32(sampleRate),
		uint32(height),
		false, // hamming window
		false, // fft
		true,  // magnitude
		false, // linear scale
	)

	return spectrogram.SavePng(img, path)
}
