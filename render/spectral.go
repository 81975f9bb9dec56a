// Package render draws the spectral part of the report: a dB-scaled mel
// spectrogram with the pitch and formant tracks laid over it.
package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"github.com/maastricht-university/voicebot/dsp"
)

// Spectral renders mel spectrograms to JPEG.
type Spectral struct {
	Mel       dsp.MelConfig
	MaxWidth  int     // columns; longer clips are downsampled
	RowHeight int     // pixels per mel band
	DynRange  float64 // dB shown below the peak
	Quality   int
}

func NewSpectral(mel dsp.MelConfig) *Spectral {
	return &Spectral{Mel: mel, MaxWidth: 1600, RowHeight: 3, DynRange: 80, Quality: 90}
}

var (
	pitchColor   = color.RGBA{R: 0x00, G: 0xe5, B: 0xff, A: 0xff}
	formantColor = []color.RGBA{
		{R: 0xff, G: 0x40, B: 0x40, A: 0xff},
		{R: 0xff, G: 0xa0, B: 0x20, A: 0xff},
		{R: 0xff, G: 0xff, B: 0x60, A: 0xff},
		{R: 0xb0, G: 0xff, B: 0x60, A: 0xff},
	}
)

// RenderSpectral draws mel ([frame][band] magnitudes) with curves overlaid.
func (s *Spectral) RenderSpectral(mel [][]float64, curves dsp.Curves, sampleRate int) ([]byte, error) {
	if len(mel) == 0 || len(mel[0]) == 0 {
		return nil, errors.New("render: empty spectrogram")
	}
	if sampleRate <= 0 {
		return nil, errors.New("render: invalid sample rate")
	}

	frames, bands := len(mel), len(mel[0])
	width := frames
	if s.MaxWidth > 0 && width > s.MaxWidth {
		width = s.MaxWidth
	}
	rh := s.RowHeight
	if rh < 1 {
		rh = 1
	}
	height := bands * rh

	db := toDB(mel, s.DynRange)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		fr := x * frames / width
		for b := 0; b < bands && b < len(db[fr]); b++ {
			c := colormap(db[fr][b])
			// low frequencies at the bottom
			y0 := height - (b+1)*rh
			for y := y0; y < y0+rh; y++ {
				img.SetRGBA(x, y, c)
			}
		}
	}

	fmax := s.Mel.FMax
	if nyq := float64(sampleRate) / 2; fmax <= 0 || fmax > nyq {
		fmax = nyq
	}
	hop := s.Mel.HopSize
	if hop <= 0 {
		hop = dsp.DefaultMelConfig().HopSize
	}
	// seconds -> pixel column
	xScale := float64(sampleRate) / float64(hop) * float64(width) / float64(frames)
	melLo, melHi := dsp.HzToMel(s.Mel.FMin), dsp.HzToMel(fmax)
	yOf := func(hz float64) int {
		frac := (dsp.HzToMel(hz) - melLo) / (melHi - melLo)
		return height - 1 - int(frac*float64(height-1))
	}

	for i, track := range curves.Formants {
		drawCurve(img, track, curves.TimeStep, xScale, yOf, formantColor[i%len(formantColor)], fmax)
	}
	drawCurve(img, curves.Pitch, curves.TimeStep, xScale, yOf, pitchColor, fmax)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// toDB converts magnitudes to power dB normalized into [0, 1] over dynRange.
func toDB(mel [][]float64, dynRange float64) [][]float64 {
	if dynRange <= 0 {
		dynRange = 80
	}
	out := make([][]float64, len(mel))
	peak := math.Inf(-1)
	for i, row := range mel {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			d := 10 * math.Log10(v*v+1e-10)
			out[i][j] = d
			if d > peak {
				peak = d
			}
		}
	}
	for _, row := range out {
		for j, d := range row {
			row[j] = math.Max(0, (d-(peak-dynRange))/dynRange)
		}
	}
	return out
}

var stops = []color.RGBA{
	{R: 0x00, G: 0x00, B: 0x04, A: 0xff},
	{R: 0x3b, G: 0x0f, B: 0x70, A: 0xff},
	{R: 0x8c, G: 0x29, B: 0x81, A: 0xff},
	{R: 0xde, G: 0x49, B: 0x68, A: 0xff},
	{R: 0xfe, G: 0x9f, B: 0x6d, A: 0xff},
	{R: 0xfc, G: 0xfd, B: 0xbf, A: 0xff},
}

// colormap maps v in [0, 1] onto a magma-like gradient.
func colormap(v float64) color.RGBA {
	if math.IsNaN(v) || v <= 0 {
		return stops[0]
	}
	if v >= 1 {
		return stops[len(stops)-1]
	}
	pos := v * float64(len(stops)-1)
	i := int(pos)
	t := pos - float64(i)
	a, b := stops[i], stops[i+1]
	lerp := func(x, y uint8) uint8 { return uint8(float64(x) + t*(float64(y)-float64(x))) }
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 0xff}
}

func drawCurve(img *image.RGBA, track []float64, step, xScale float64, yOf func(float64) int, c color.RGBA, fmax float64) {
	if step <= 0 {
		return
	}
	bounds := img.Bounds()
	for i, hz := range track {
		if hz <= 0 || hz > fmax || math.IsNaN(hz) {
			continue
		}
		x := int(float64(i) * step * xScale)
		y := yOf(hz)
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				p := image.Pt(x+dx, y+dy)
				if p.In(bounds) {
					img.SetRGBA(p.X, p.Y, c)
				}
			}
		}
	}
}
