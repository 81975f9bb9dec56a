package dsp

import (
	"context"
	"fmt"
)

// Curves are per-frame pitch and formant tracks in Hz. Zero marks an
// unvoiced frame.
type Curves struct {
	TimeStep float64     `json:"time_step"` // sec between points
	Pitch    []float64   `json:"pitch"`
	Formants [][]float64 `json:"formants"` // F1, F2, F3...
}

// Features is what the spectral renderer draws.
type Features struct {
	Mel        [][]float64
	Curves     Curves
	SampleRate int
}

// CurveSource computes pitch and formant tracks for a clip on disk.
type CurveSource interface {
	Curves(ctx context.Context, wavPath string) (Curves, error)
}

// Extractor computes the mel spectrogram locally and asks a CurveSource for
// the acoustic curves.
type Extractor struct {
	Mel    MelConfig
	Curves CurveSource
}

func NewExtractor(cfg MelConfig, curves CurveSource) *Extractor {
	return &Extractor{Mel: cfg, Curves: curves}
}

func (e *Extractor) Extract(ctx context.Context, w Waveform) (Features, error) {
	mel, err := MelSpectrogram(w.Samples, w.SampleRate, e.Mel)
	if err != nil {
		return Features{}, fmt.Errorf("mel spectrogram: %w", err)
	}
	curves, err := e.Curves.Curves(ctx, w.Path)
	if err != nil {
		return Features{}, fmt.Errorf("acoustic curves: %w", err)
	}
	return Features{Mel: mel, Curves: curves, SampleRate: w.SampleRate}, nil
}
