// Package media fetches user audio and transcodes it into the mono PCM WAV
// clips the analysis works on.
package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"
)

// Downloader fetches a remote file by opaque id.
type Downloader interface {
	Download(ctx context.Context, fileID string, dst io.Writer) error
}

// Source downloads audio and converts it with ffmpeg.
type Source struct {
	dl         Downloader
	ffmpeg     string
	sampleRate int // 0 keeps the source rate
	log        *logrus.Logger

	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewSource(dl Downloader, ffmpeg string, sampleRate int, log *logrus.Logger) *Source {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &Source{dl: dl, ffmpeg: ffmpeg, sampleRate: sampleRate, log: log, run: execRun}
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// AudioName builds the download file name from the request time and the
// sender, e.g. "2024-03-01 10-22 alice.mp3".
func AudioName(t time.Time, user, ext string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			return r
		}
		return -1
	}, user)
	if clean == "" {
		clean = "user"
	}
	return fmt.Sprintf("%s %s%s", t.Format("2006-01-02 15-04"), clean, ext)
}

// Fetch downloads fileID into dir under name and returns the path of the
// transcoded WAV next to it.
func (s *Source) Fetch(ctx context.Context, fileID, dir, name string) (string, error) {
	raw := filepath.Join(dir, name)
	f, err := os.Create(raw)
	if err != nil {
		return "", err
	}
	if err := s.dl.Download(ctx, fileID, f); err != nil {
		f.Close()
		return "", fmt.Errorf("download %s: %w", fileID, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	s.log.WithFields(logrus.Fields{"file_id": fileID, "path": raw}).Debug("audio downloaded")

	return s.ToWAV(ctx, raw)
}

// ToWAV transcodes any ffmpeg-readable file to mono 16-bit PCM WAV placed
// beside the input.
func (s *Source) ToWAV(ctx context.Context, in string) (string, error) {
	out := strings.TrimSuffix(in, filepath.Ext(in)) + ".pcm.wav"
	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error", "-y", "-i", in, "-vn", "-ac", "1", "-c:a", "pcm_s16le"}
	if s.sampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(s.sampleRate))
	}
	args = append(args, out)

	if msg, err := s.run(ctx, s.ffmpeg, args...); err != nil {
		return "", fmt.Errorf("ffmpeg %s: %w: %s", filepath.Base(in), err, strings.TrimSpace(string(msg)))
	}
	if st, err := os.Stat(out); err != nil || st.Size() == 0 {
		return "", fmt.Errorf("ffmpeg %s: no output", filepath.Base(in))
	}
	return out, nil
}
