package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Workspace is a per-request scratch directory under the process temp dir.
// It is removed once the request is answered.
type Workspace struct {
	ID  string
	Dir string
}

func NewWorkspace(tmpRoot string) (*Workspace, error) {
	id := uuid.NewString()
	dir := filepath.Join(tmpRoot, "req_"+time.Now().Format("20060102-150405")+"_"+id[:8])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Workspace{ID: id, Dir: dir}, nil
}

func (w *Workspace) Path(name string) string { return filepath.Join(w.Dir, name) }

func (w *Workspace) Close() error { return os.RemoveAll(w.Dir) }

// ReportEntry summarizes one Outcome in report.json.
type ReportEntry struct {
	Component string `json:"component"`
	Kind      string `json:"kind,omitempty"`
	Caption   string `json:"caption,omitempty"`
	File      string `json:"file,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ReportBundle struct {
	AudioPath   string        `json:"audio_path"`
	GeneratedAt time.Time     `json:"generated_at"`
	Entries     []ReportEntry `json:"entries"`
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// SaveReport writes every artifact in outcomes to outDir plus a report.json
// index, returning the index path.
func SaveReport(outDir, audioPath string, outcomes []Outcome) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}

	bundle := ReportBundle{AudioPath: audioPath, GeneratedAt: time.Now()}
	for _, o := range outcomes {
		e := ReportEntry{Component: o.Component}
		if o.Err != nil {
			e.Error = o.Err.Error()
			bundle.Entries = append(bundle.Entries, e)
			continue
		}
		e.Kind = o.Message.Kind.String()
		e.Caption = o.Message.Text
		if len(o.Message.Data) > 0 {
			name := o.Message.Filename
			if name == "" {
				name = fmt.Sprintf("%s.png", o.Component)
			}
			if err := os.WriteFile(filepath.Join(outDir, name), o.Message.Data, 0o644); err != nil {
				return "", err
			}
			e.File = name
		}
		bundle.Entries = append(bundle.Entries, e)
	}

	path := filepath.Join(outDir, "report.json")
	if err := writeJSON(path, bundle); err != nil {
		return "", err
	}
	return path, nil
}
