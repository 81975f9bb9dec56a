package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/voicebot/analysis"
	"github.com/maastricht-university/voicebot/media"
	"github.com/maastricht-university/voicebot/orchestrator"
)

var (
	analyzeCommand string
	analyzeOut     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <audio>",
	Short: "Analyze a local audio file",
	Long: `Run the same report the bot sends for a local audio file and write the
artifacts plus a report.json index to --out.

Commands: analyze (everything), ml, formant, pitch, spectrogram, stats.

Examples:
  voicebot analyze memo.ogg
  voicebot analyze --command ml --out ./out memo.mp3`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCommand, "command", "analyze", "which report to produce")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "report", "output directory")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	in := args[0]
	req := analysis.ParseRequest(analyzeCommand)
	if req.Empty() {
		return fmt.Errorf("unknown command %q", analyzeCommand)
	}
	if _, err := os.Stat(in); err != nil {
		return err
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	ws, err := orchestrator.NewWorkspace(cfg.Paths.Tmp)
	if err != nil {
		return err
	}
	defer ws.Close()

	src := media.NewSource(localFiles{}, cfg.Audio.FFmpeg, cfg.Audio.SampleRate, log)
	wav, err := src.Fetch(ctx, in, ws.Dir, media.AudioName(time.Now(), "cli", filepath.Ext(in)))
	if err != nil {
		return err
	}

	entry := log.WithField("request_id", ws.ID)
	outcomes := newComposer(cfg, log, nil).Run(orchestrator.WithLogger(ctx, entry), req, wav)
	index, err := orchestrator.SaveReport(analyzeOut, in, outcomes)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary(in, index, outcomes))
	if len(outcomes) > 0 && failed(outcomes) == len(outcomes) {
		return errors.New("no report component succeeded")
	}
	return nil
}

// localFiles serves file ids that are local paths.
type localFiles struct{}

func (localFiles) Download(ctx context.Context, path string, dst io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(dst, f)
	return err
}

func failed(outcomes []orchestrator.Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")).Padding(0, 1)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff9f"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	labelStyle = lipgloss.NewStyle().Bold(true).Width(16)
)

// summary renders one line per component for the terminal.
func summary(audio, index string, outcomes []orchestrator.Outcome) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("voicebot report: " + filepath.Base(audio)))
	b.WriteString("\n")

	if len(outcomes) == 0 {
		b.WriteString(dimStyle.Render("  nothing to report for this command"))
		b.WriteString("\n")
	}
	for _, o := range outcomes {
		b.WriteString("  ")
		if o.Err != nil {
			b.WriteString(failStyle.Render("✗ "))
			b.WriteString(labelStyle.Render(o.Component))
			msg := analysis.UserText(o.Err)
			if msg == "" {
				msg = o.Err.Error()
			}
			b.WriteString(failStyle.Render(msg))
		} else {
			b.WriteString(okStyle.Render("✓ "))
			b.WriteString(labelStyle.Render(o.Component))
			b.WriteString(firstLine(o.Message.Text))
		}
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("  index: " + index))
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
