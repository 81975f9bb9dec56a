package clients

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/maastricht-university/voicebot/analysis"
)

// --- Segmentation (/segment) ---
type SegFrame struct {
	Label string  `json:"label"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}
type SegResp struct {
	Segments []SegFrame `json:"segments"`
}

func (h *HTTP) Segment(ctx context.Context, url, wavPath string) (*SegResp, error) {
	resp, err := h.postFile(ctx, url+"/segment", wavPath, nil, "segment")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out SegResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("segment decode: %w", err)
	}
	return &out, nil
}

// Segmenter binds the segmentation service URL.
type Segmenter struct {
	HTTP *HTTP
	URL  string
}

func (s Segmenter) Segment(ctx context.Context, wavPath string) (analysis.Timeline, error) {
	resp, err := s.HTTP.Segment(ctx, s.URL, wavPath)
	if err != nil {
		return nil, err
	}
	tl := make(analysis.Timeline, 0, len(resp.Segments))
	for _, f := range resp.Segments {
		tl = append(tl, analysis.Frame{Label: f.Label, Start: f.Start, End: f.End})
	}
	return tl, nil
}
