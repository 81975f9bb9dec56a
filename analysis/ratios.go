package analysis

// EmptyResultText is shown when a clip yields nothing to analyze.
const EmptyResultText = "Analysis failed, the audio is probably too quiet or too short. Please try again."

// Ratios are per-label shares of the analyzed duration.
type Ratios struct {
	ByLabel map[string]float64

	Female float64
	Male   float64
	// Other is 1 - Female - Male, so every other label folds into it.
	Other float64
	// FemaleShare is Female / (Female + Male), 0 when neither was heard.
	FemaleShare float64
}

// ComputeRatios reduces a timeline into duration ratios. It fails with an
// empty-result error when the timeline covers no time at all.
func ComputeRatios(t Timeline) (Ratios, error) {
	total := 0.0
	durations := make(map[string]float64, 4)
	for _, f := range t {
		d := f.Duration()
		durations[f.Label] += d
		total += d
	}
	if total == 0 {
		return Ratios{}, NewError(KindEmptyResult, EmptyResultText)
	}

	for k := range durations {
		durations[k] /= total
	}

	r := Ratios{
		ByLabel: durations,
		Female:  durations[LabelFemale],
		Male:    durations[LabelMale],
	}
	r.Other = 1 - r.Female - r.Male
	if fm := r.Female + r.Male; fm != 0 {
		r.FemaleShare = r.Female / fm
	}
	return r, nil
}
