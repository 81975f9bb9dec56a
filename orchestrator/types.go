package orchestrator

import (
	"context"

	"github.com/maastricht-university/voicebot/analysis"
	"github.com/maastricht-university/voicebot/dsp"
)

// Component names, also used as metric and log labels.
const (
	Classification = "classification"
	Spectral       = "spectral"
	Statistics     = "statistics"
)

type MessageKind int

const (
	TextMessage MessageKind = iota
	ImageMessage
	DocumentMessage
)

func (k MessageKind) String() string {
	switch k {
	case ImageMessage:
		return "image"
	case DocumentMessage:
		return "document"
	default:
		return "text"
	}
}

// Message is one outbound artifact. Text is the caption for images and
// documents.
type Message struct {
	Kind     MessageKind
	Text     string
	Data     []byte
	Filename string
}

// Outcome is the result of one report component. Exactly one of Message and
// Err is set.
type Outcome struct {
	Component string
	Message   *Message
	Err       error
}

// Segmenter is the speaker-type segmentation model.
type Segmenter interface {
	Segment(ctx context.Context, wavPath string) (analysis.Timeline, error)
}

// Decoder turns a local audio file into normalized samples.
type Decoder interface {
	Decode(ctx context.Context, wavPath string) (dsp.Waveform, error)
}

// FeatureExtractor computes the mel spectrogram and acoustic curves.
type FeatureExtractor interface {
	Extract(ctx context.Context, w dsp.Waveform) (dsp.Features, error)
}

type SegmentRenderer interface {
	RenderSegments(ctx context.Context, wavPath string, tl analysis.Timeline) ([]byte, error)
}

type SpectralRenderer interface {
	RenderSpectral(mel [][]float64, curves dsp.Curves, sampleRate int) ([]byte, error)
}
