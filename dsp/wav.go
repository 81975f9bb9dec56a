// Package dsp decodes PCM WAV clips and computes the spectral features drawn
// in the report: a mel spectrogram plus pitch and formant curves.
package dsp

import (
	"context"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// Waveform is a mono clip with samples normalized to [-1, 1].
type Waveform struct {
	Path       string
	Samples    []float64
	SampleRate int
}

// Duration in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// ReadWAV decodes a PCM WAV file, mixing channels down to mono.
func ReadWAV(path string) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return Waveform{}, fmt.Errorf("%s: not a valid wav file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("decode %s: %w", path, err)
	}

	chans := int(d.NumChans)
	if chans < 1 {
		chans = 1
	}
	bitDepth := int(d.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth == 0 {
		return Waveform{}, fmt.Errorf("%s: unknown bit depth", path)
	}
	scale := float64(int64(1) << (bitDepth - 1))

	n := len(buf.Data) / chans
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for c := 0; c < chans; c++ {
			sum += float64(buf.Data[i*chans+c])
		}
		samples[i] = sum / float64(chans) / scale
	}

	return Waveform{Path: path, Samples: samples, SampleRate: int(d.SampleRate)}, nil
}

// Decoder reads already-transcoded WAV files from disk.
type Decoder struct{}

func (Decoder) Decode(ctx context.Context, path string) (Waveform, error) {
	if err := ctx.Err(); err != nil {
		return Waveform{}, err
	}
	return ReadWAV(path)
}
