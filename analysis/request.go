package analysis

import "strings"

// Request says which parts of the report to produce.
type Request struct {
	Classification bool
	Spectral       bool
	Statistics     bool
}

type capability uint8

const (
	capClassification capability = 1 << iota
	capSpectral
	capStatistics

	capAll = capClassification | capSpectral | capStatistics
)

var commandCapabilities = map[string]capability{
	"analyze":     capAll,
	"ml":          capClassification,
	"spectrogram": capSpectral,
	"formant":     capSpectral,
	"pitch":       capSpectral,
	"stats":       capStatistics,
}

// ParseRequest maps a command token to a Request. Unknown tokens give the
// zero Request. Prefix characters such as '!' must be stripped beforehand.
func ParseRequest(cmd string) Request {
	c := commandCapabilities[strings.ToLower(strings.TrimSpace(cmd))]
	return Request{
		Classification: c&capClassification != 0,
		Spectral:       c&capSpectral != 0,
		Statistics:     c&capStatistics != 0,
	}
}

// Empty reports whether nothing was requested.
func (r Request) Empty() bool {
	return !r.Classification && !r.Spectral && !r.Statistics
}
