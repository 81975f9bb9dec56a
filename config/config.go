package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/maastricht-university/voicebot/dsp"
)

type Service struct {
	URL string `yaml:"url" mapstructure:"url"`
}

type Services struct {
	Segmentation  Service `yaml:"segmentation" mapstructure:"segmentation"`
	Features      Service `yaml:"features" mapstructure:"features"`
	Visualization Service `yaml:"visualization" mapstructure:"visualization"`
}

type Bot struct {
	Token         string `yaml:"token" mapstructure:"token"`
	TokenFile     string `yaml:"token_file" mapstructure:"token_file"`
	APIURL        string `yaml:"api_url" mapstructure:"api_url"`
	PollTimeout   int    `yaml:"poll_timeout" mapstructure:"poll_timeout"` // seconds
	MaxConcurrent int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

type Spectral struct {
	FFTSize int     `yaml:"fft_size" mapstructure:"fft_size"`
	HopSize int     `yaml:"hop_size" mapstructure:"hop_size"`
	NumMels int     `yaml:"num_mels" mapstructure:"num_mels"`
	FMin    float64 `yaml:"fmin" mapstructure:"fmin"`
	FMax    float64 `yaml:"fmax" mapstructure:"fmax"`
}

type Audio struct {
	FFmpeg     string `yaml:"ffmpeg" mapstructure:"ffmpeg"`
	SampleRate int    `yaml:"sample_rate" mapstructure:"sample_rate"` // 0 keeps the clip's rate
}

type Paths struct {
	Tmp string `yaml:"tmp" mapstructure:"tmp"`
}

type Logging struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type Metrics struct {
	Address string `yaml:"address" mapstructure:"address"` // empty disables the listener
}

type Root struct {
	Bot         Bot      `yaml:"bot" mapstructure:"bot"`
	Services    Services `yaml:"services" mapstructure:"services"`
	HTTPTimeout int      `yaml:"http_timeout" mapstructure:"http_timeout"` // seconds
	Spectral    Spectral `yaml:"spectral" mapstructure:"spectral"`
	Audio       Audio    `yaml:"audio" mapstructure:"audio"`
	Paths       Paths    `yaml:"paths" mapstructure:"paths"`
	Logging     Logging  `yaml:"logging" mapstructure:"logging"`
	Metrics     Metrics  `yaml:"metrics" mapstructure:"metrics"`
}

const envPrefix = "VOICEBOT"

func setDefaults(v *viper.Viper) {
	mel := dsp.DefaultMelConfig()

	v.SetDefault("bot.token", "")
	v.SetDefault("bot.token_file", "voice-bot-token.txt")
	v.SetDefault("bot.api_url", "https://api.telegram.org")
	v.SetDefault("bot.poll_timeout", 30)
	v.SetDefault("bot.max_concurrent", 4)

	v.SetDefault("services.segmentation.url", "http://localhost:8001")
	v.SetDefault("services.features.url", "http://localhost:8002")
	v.SetDefault("services.visualization.url", "http://localhost:8003")
	v.SetDefault("http_timeout", 120)

	v.SetDefault("spectral.fft_size", mel.FFTSize)
	v.SetDefault("spectral.hop_size", mel.HopSize)
	v.SetDefault("spectral.num_mels", mel.NumMels)
	v.SetDefault("spectral.fmin", mel.FMin)
	v.SetDefault("spectral.fmax", mel.FMax)

	v.SetDefault("audio.ffmpeg", "ffmpeg")
	v.SetDefault("audio.sample_rate", 0)
	v.SetDefault("paths.tmp", "audio_tmp")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("metrics.address", ":9090")
}

// Guess returns the config file for CONFIG_ENV (default "dev"), or "" when
// none of the usual locations exist.
func Guess() string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	guess := []string{
		filepath.Join("config", env, "config.yaml"),
		"config.yaml",
	}
	for _, p := range guess {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load reads path (or the guessed file when path is empty), then applies
// VOICEBOT_* environment overrides. A .env file in the working directory is
// loaded first when present. The bot token falls back to TG_TOKEN, tg_token
// and finally bot.token_file.
func Load(path string) (*Root, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("bot.token", envPrefix+"_BOT_TOKEN", "TG_TOKEN", "tg_token"); err != nil {
		return nil, err
	}

	if path == "" {
		path = Guess()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Bot.loadTokenFile(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (b *Bot) loadTokenFile() error {
	if b.Token != "" || b.TokenFile == "" {
		return nil
	}
	raw, err := os.ReadFile(b.TokenFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read token file: %w", err)
	}
	b.Token = strings.TrimSpace(string(raw))
	return nil
}

// Validate checks everything needed to analyze a clip. The bot section is
// validated separately since only the serve command needs it.
func (c *Root) Validate() error {
	if err := c.Services.Validate(); err != nil {
		return fmt.Errorf("services: %w", err)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive")
	}
	if err := c.Spectral.Validate(); err != nil {
		return fmt.Errorf("spectral: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if c.Paths.Tmp == "" {
		return fmt.Errorf("paths: tmp is required")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

func (b *Bot) Validate() error {
	if b.Token == "" {
		return fmt.Errorf("token is required (set TG_TOKEN or %s)", b.TokenFile)
	}
	if err := checkURL(b.APIURL); err != nil {
		return fmt.Errorf("api_url: %w", err)
	}
	if b.PollTimeout <= 0 {
		return fmt.Errorf("poll_timeout must be positive")
	}
	if b.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive")
	}
	return nil
}

func (s *Services) Validate() error {
	for name, svc := range map[string]Service{
		"segmentation":  s.Segmentation,
		"features":      s.Features,
		"visualization": s.Visualization,
	} {
		if err := checkURL(svc.URL); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (s *Spectral) Validate() error {
	switch {
	case s.FFTSize <= 0:
		return fmt.Errorf("fft_size must be positive")
	case s.HopSize <= 0:
		return fmt.Errorf("hop_size must be positive")
	case s.NumMels <= 0:
		return fmt.Errorf("num_mels must be positive")
	case s.FMin < 0 || s.FMax <= s.FMin:
		return fmt.Errorf("need 0 <= fmin < fmax, got %g..%g", s.FMin, s.FMax)
	}
	return nil
}

func (s Spectral) MelConfig() dsp.MelConfig {
	return dsp.MelConfig{FFTSize: s.FFTSize, HopSize: s.HopSize, NumMels: s.NumMels, FMin: s.FMin, FMax: s.FMax}
}

func (a *Audio) Validate() error {
	if a.FFmpeg == "" {
		return fmt.Errorf("ffmpeg is required")
	}
	if a.SampleRate < 0 {
		return fmt.Errorf("sample_rate must not be negative")
	}
	return nil
}

func (l *Logging) Validate() error {
	if _, err := logrus.ParseLevel(l.Level); err != nil {
		return err
	}
	if l.Format != "text" && l.Format != "json" {
		return fmt.Errorf("format must be text or json, got %q", l.Format)
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q is not an http(s) URL", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}

// Dump writes the effective configuration as YAML with the token masked.
func (c Root) Dump(w io.Writer) error {
	if c.Bot.Token != "" {
		c.Bot.Token = "***"
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
