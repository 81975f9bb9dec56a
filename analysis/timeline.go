// Package analysis holds the request-scoped values of a voice report: the
// speaker-type timeline, its duration ratios and the parsed analysis request.
package analysis

import "fmt"

// Speaker-type labels produced by the segmentation model.
const (
	LabelFemale = "female"
	LabelMale   = "male"
	LabelOther  = "other"
	LabelNoise  = "noise"
)

// Frame is one classified segment of audio.
type Frame struct {
	Label string  `json:"label"`
	Start float64 `json:"start"` // sec
	End   float64 `json:"end"`   // sec
}

func (f Frame) Duration() float64 { return f.End - f.Start }

// Timeline is the ordered sequence of frames for one clip. It may be empty.
type Timeline []Frame

// Duration is the total time covered by frames.
func (t Timeline) Duration() float64 {
	total := 0.0
	for _, f := range t {
		total += f.Duration()
	}
	return total
}

// Validate checks the segmentation contract: positive-length frames in
// chronological order without overlap, covering no more than clipDuration.
// A clipDuration of zero or less skips the coverage check.
func (t Timeline) Validate(clipDuration float64) error {
	for i, f := range t {
		if f.End <= f.Start {
			return Collaboration(fmt.Errorf("frame %d [%g, %g] has no duration", i, f.Start, f.End), "segmentation")
		}
		if i > 0 && f.Start < t[i-1].End {
			return Collaboration(fmt.Errorf("frame %d starts at %g before previous end %g", i, f.Start, t[i-1].End), "segmentation")
		}
	}
	if clipDuration > 0 && t.Duration() > clipDuration {
		return Collaboration(fmt.Errorf("frames cover %gs of a %gs clip", t.Duration(), clipDuration), "segmentation")
	}
	return nil
}
