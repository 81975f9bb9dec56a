package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/voicebot/clients"
	"github.com/maastricht-university/voicebot/config"
	"github.com/maastricht-university/voicebot/dsp"
	"github.com/maastricht-university/voicebot/metrics"
	"github.com/maastricht-university/voicebot/orchestrator"
	"github.com/maastricht-university/voicebot/render"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "voicebot",
	Short: "Voice analysis bot",
	Long: `voicebot - voice message analysis over Telegram.

Configuration is read from --config, or config/$CONFIG_ENV/config.yaml
(CONFIG_ENV defaults to "dev"). Any key can be overridden with a
VOICEBOT_ variable, e.g. VOICEBOT_LOGGING_LEVEL=debug. The bot token is
taken from TG_TOKEN, tg_token or bot.token_file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return cfg.Dump(cmd.OutOrStdout())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "voicebot %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.AddCommand(configCmd, versionCmd)
}

// loadConfig loads and validates the configuration and builds the logger.
func loadConfig() (*config.Root, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, newLogger(cfg.Logging), nil
}

// newLogger assumes l has been validated.
func newLogger(l config.Logging) *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(l.Level); err == nil {
		log.SetLevel(lvl)
	}
	if l.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

// newComposer wires the analysis services shared by serve and analyze.
func newComposer(cfg *config.Root, log *logrus.Logger, m *metrics.Metrics) *orchestrator.Composer {
	h := clients.NewHTTP(config.DurSeconds(cfg.HTTPTimeout))
	mel := cfg.Spectral.MelConfig()
	svc := cfg.Services

	return orchestrator.NewComposer(orchestrator.Resources{
		Segmenter:        clients.Segmenter{HTTP: h, URL: svc.Segmentation.URL},
		Decoder:          dsp.Decoder{},
		Extractor:        dsp.NewExtractor(mel, clients.FeatureService{HTTP: h, URL: svc.Features.URL}),
		SegmentRenderer:  clients.SegmentRenderer{HTTP: h, URL: svc.Visualization.URL},
		SpectralRenderer: render.NewSpectral(mel),
	}, log, m)
}
