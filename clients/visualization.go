package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/maastricht-university/voicebot/analysis"
)

// --- Visualization (/render-segments) ---

// maxImage caps rendered image downloads.
const maxImage = 20 << 20

func (h *HTTP) RenderSegments(ctx context.Context, url, wavPath string, frames []SegFrame) ([]byte, error) {
	seg, err := json.Marshal(frames)
	if err != nil {
		return nil, fmt.Errorf("viz segments marshal: %w", err)
	}
	resp, err := h.postFile(ctx, url+"/render-segments", wavPath, map[string]string{"segments": string(seg)}, "viz segments")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	img, err := io.ReadAll(io.LimitReader(resp.Body, maxImage))
	if err != nil {
		return nil, fmt.Errorf("viz segments read: %w", err)
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("viz segments: empty image")
	}
	return img, nil
}

// SegmentRenderer binds the visualization service URL.
type SegmentRenderer struct {
	HTTP *HTTP
	URL  string
}

func (r SegmentRenderer) RenderSegments(ctx context.Context, wavPath string, tl analysis.Timeline) ([]byte, error) {
	frames := make([]SegFrame, len(tl))
	for i, f := range tl {
		frames[i] = SegFrame{Label: f.Label, Start: f.Start, End: f.End}
	}
	return r.HTTP.RenderSegments(ctx, r.URL, wavPath, frames)
}
