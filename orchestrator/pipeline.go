package orchestrator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/voicebot/analysis"
	"github.com/maastricht-university/voicebot/metrics"
)

// Resources are the process-wide collaborators, built once before the first
// request and only read afterwards.
type Resources struct {
	Segmenter        Segmenter
	Decoder          Decoder
	Extractor        FeatureExtractor
	SegmentRenderer  SegmentRenderer
	SpectralRenderer SpectralRenderer
}

// Composer runs the requested report components for one clip.
type Composer struct {
	res     Resources
	log     *logrus.Logger
	metrics *metrics.Metrics
}

func NewComposer(res Resources, log *logrus.Logger, m *metrics.Metrics) *Composer {
	return &Composer{res: res, log: log, metrics: m}
}

type ctxKey struct{}

// WithLogger attaches a request-scoped log entry used by Run.
func WithLogger(ctx context.Context, e *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, e)
}

func (c *Composer) entry(ctx context.Context) *logrus.Entry {
	if e, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
		return e
	}
	return logrus.NewEntry(c.log)
}

// Run executes each requested component in turn. Components are
// independent: a failure is recorded in its Outcome and the next component
// still runs. Statistics is accepted and produces nothing.
func (c *Composer) Run(ctx context.Context, req analysis.Request, wavPath string) []Outcome {
	var out []Outcome
	if req.Classification {
		out = append(out, c.run(ctx, Classification, wavPath, c.classify))
	}
	if req.Spectral {
		out = append(out, c.run(ctx, Spectral, wavPath, c.spectral))
	}
	if req.Statistics {
		c.entry(ctx).WithField("component", Statistics).Debug("statistics requested; nothing to do yet")
	}
	return out
}

func (c *Composer) run(ctx context.Context, name, wavPath string, fn func(context.Context, string) (*Message, error)) Outcome {
	log := c.entry(ctx).WithField("component", name)
	start := time.Now()

	msg, err := fn(ctx, wavPath)

	elapsed := time.Since(start)
	kind := ""
	if err != nil {
		err = analysis.Collaboration(err, name)
		kind = analysis.KindOf(err).String()
		log.WithError(err).WithField("kind", kind).Warn("component failed")
	} else {
		log.WithField("elapsed", elapsed.Round(time.Millisecond)).Info("component done")
	}
	c.metrics.Component(name, elapsed, kind)

	if err != nil {
		return Outcome{Component: name, Err: err}
	}
	return Outcome{Component: name, Message: msg}
}

func (c *Composer) classify(ctx context.Context, wavPath string) (*Message, error) {
	tl, err := c.res.Segmenter.Segment(ctx, wavPath)
	if err != nil {
		return nil, analysis.Collaboration(err, "segmentation")
	}
	if err := tl.Validate(0); err != nil {
		return nil, err
	}
	if len(tl) == 0 {
		return nil, analysis.NewError(analysis.KindEmptyResult, analysis.EmptyResultText)
	}

	ratios, err := analysis.ComputeRatios(tl)
	if err != nil {
		return nil, err
	}
	c.entry(ctx).WithFields(logrus.Fields{
		"frames":       len(tl),
		"female":       ratios.Female,
		"male":         ratios.Male,
		"female_share": ratios.FemaleShare,
	}).Debug("ratios")

	img, err := c.res.SegmentRenderer.RenderSegments(ctx, wavPath, tl)
	if err != nil {
		return nil, analysis.Collaboration(err, "render segments")
	}
	return &Message{Kind: ImageMessage, Text: classificationCaption(ratios), Data: img}, nil
}

func (c *Composer) spectral(ctx context.Context, wavPath string) (*Message, error) {
	wf, err := c.res.Decoder.Decode(ctx, wavPath)
	if err != nil {
		return nil, analysis.Collaboration(err, "decode audio")
	}
	feat, err := c.res.Extractor.Extract(ctx, wf)
	if err != nil {
		return nil, analysis.Collaboration(err, "feature extraction")
	}
	img, err := c.res.SpectralRenderer.RenderSpectral(feat.Mel, feat.Curves, feat.SampleRate)
	if err != nil {
		return nil, analysis.Collaboration(err, "render spectrogram")
	}
	return &Message{Kind: DocumentMessage, Text: spectralCaption, Data: img, Filename: spectralFilename}, nil
}
