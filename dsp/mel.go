package dsp

import (
	"errors"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// MelConfig controls mel spectrogram extraction.
//
// Defaults:
//
//	FFTSize: 2048
//	HopSize:  256
//	NumMels:  128
//	FMin:       0
//	FMax:    8000
type MelConfig struct {
	FFTSize int
	HopSize int
	NumMels int
	FMin    float64
	FMax    float64
}

func DefaultMelConfig() MelConfig {
	return MelConfig{FFTSize: 2048, HopSize: 256, NumMels: 128, FMin: 0, FMax: 8000}
}

var errEmptyWaveform = errors.New("empty waveform")

// MelSpectrogram computes a [frame][band] mel-scaled magnitude spectrogram
// with a Hann window of FFTSize samples. Clips shorter than one window are
// zero-padded into a single frame.
func MelSpectrogram(samples []float64, sampleRate int, cfg MelConfig) ([][]float64, error) {
	if len(samples) == 0 {
		return nil, errEmptyWaveform
	}
	if cfg.FFTSize <= 0 || cfg.HopSize <= 0 || cfg.NumMels <= 0 || sampleRate <= 0 {
		return nil, errors.New("invalid mel config")
	}

	n := cfg.FFTSize
	numFrames := 1
	if len(samples) > n {
		numFrames = (len(samples)-n)/cfg.HopSize + 1
	}

	fmax := cfg.FMax
	if nyq := float64(sampleRate) / 2; fmax <= 0 || fmax > nyq {
		fmax = nyq
	}
	bank := melFilterBank(cfg.NumMels, n, sampleRate, cfg.FMin, fmax)
	window := hannWindow(n)
	fft := fourier.NewFFT(n)

	frame := make([]float64, n)
	coeffs := make([]complex128, n/2+1)
	mag := make([]float64, n/2+1)
	out := make([][]float64, numFrames)

	for t := 0; t < numFrames; t++ {
		start := t * cfg.HopSize
		for i := range frame {
			frame[i] = 0
			if start+i < len(samples) {
				frame[i] = samples[start+i] * window[i]
			}
		}
		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			mag[k] = cmplx.Abs(c)
		}

		mel := make([]float64, cfg.NumMels)
		for m, filter := range bank {
			sum := 0.0
			for k, w := range filter {
				if w != 0 {
					sum += w * mag[k]
				}
			}
			mel[m] = sum
		}
		out[t] = mel
	}
	return out, nil
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// HzToMel uses the HTK formula.
func HzToMel(hz float64) float64 { return 1127.0 * math.Log(1.0+hz/700.0) }

func MelToHz(mel float64) float64 { return 700.0 * (math.Exp(mel/1127.0) - 1.0) }

// melFilterBank builds triangular filters with edges equally spaced on the
// mel scale. Returns [numMels][fftSize/2+1].
func melFilterBank(numMels, fftSize, sampleRate int, fmin, fmax float64) [][]float64 {
	half := fftSize/2 + 1
	lo, hi := HzToMel(fmin), HzToMel(fmax)

	edges := make([]float64, numMels+2)
	step := (hi - lo) / float64(numMels+1)
	for i := range edges {
		edges[i] = MelToHz(lo + float64(i)*step)
	}

	binHz := float64(sampleRate) / float64(fftSize)
	bank := make([][]float64, numMels)
	for m := 0; m < numMels; m++ {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		filter := make([]float64, half)
		// skip DC
		for k := 1; k < half; k++ {
			f := float64(k) * binHz
			switch {
			case f > left && f <= center:
				filter[k] = (f - left) / (center - left)
			case f > center && f < right:
				filter[k] = (right - f) / (right - center)
			}
		}
		bank[m] = filter
	}
	return bank
}
