package orchestrator

import (
	"fmt"
	"math"

	"github.com/maastricht-university/voicebot/analysis"
)

const (
	classificationDisclaimer = "(For reference only. If the result is not what you expected, blame the model and let us know.)"
	spectralCaption          = "Spectrogram with pitch and formants\n(currently tracked with the Praat algorithm)"
	spectralFilename         = "spectrogram.jpg"
)

// classificationCaption renders female, male and other shares as whole
// percents.
func classificationCaption(r analysis.Ratios) string {
	return fmt.Sprintf("CNN model result: %.0f%% 🙋‍♀️ | %.0f%% 🙋‍♂️ | %.0f%% 🚫\n%s\n",
		percent(r.Female), percent(r.Male), percent(r.Other), classificationDisclaimer)
}

// percent clamps rounding noise so the complement never prints as "-0".
func percent(ratio float64) float64 {
	return math.Max(0, ratio*100)
}
