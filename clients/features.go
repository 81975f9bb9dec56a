package clients

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/maastricht-university/voicebot/dsp"
)

// --- Acoustic features (/features) ---
type FeaturesResp struct {
	TimeStep float64     `json:"time_step"`
	Pitch    []float64   `json:"pitch"`
	Formants [][]float64 `json:"formants"`
	Method   string      `json:"method,omitempty"`
}

func (h *HTTP) Features(ctx context.Context, url, wavPath string) (*FeaturesResp, error) {
	resp, err := h.postFile(ctx, url+"/features", wavPath, nil, "features")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out FeaturesResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("features decode: %w", err)
	}
	return &out, nil
}

// FeatureService binds the acoustic features service URL.
type FeatureService struct {
	HTTP *HTTP
	URL  string
}

func (s FeatureService) Curves(ctx context.Context, wavPath string) (dsp.Curves, error) {
	resp, err := s.HTTP.Features(ctx, s.URL, wavPath)
	if err != nil {
		return dsp.Curves{}, err
	}
	if resp.TimeStep <= 0 {
		return dsp.Curves{}, fmt.Errorf("features: invalid time_step %g", resp.TimeStep)
	}
	return dsp.Curves{TimeStep: resp.TimeStep, Pitch: resp.Pitch, Formants: resp.Formants}, nil
}
