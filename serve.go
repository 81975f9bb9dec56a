package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/voicebot/bot"
	"github.com/maastricht-university/voicebot/clients"
	"github.com/maastricht-university/voicebot/config"
	"github.com/maastricht-university/voicebot/media"
	"github.com/maastricht-university/voicebot/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot",
	Long: `Long-poll Telegram for voice messages and commands and answer with
analysis reports. Prometheus metrics and a health check are served on
metrics.address unless it is empty.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Bot.Validate(); err != nil {
		return fmt.Errorf("invalid config: bot: %w", err)
	}
	ctx := cmd.Context()
	m := metrics.New()

	poll := config.DurSeconds(cfg.Bot.PollTimeout)
	tg := clients.NewTelegram(cfg.Bot.APIURL, cfg.Bot.Token, poll+config.DurSeconds(cfg.HTTPTimeout))
	src := media.NewSource(tg, cfg.Audio.FFmpeg, cfg.Audio.SampleRate, log)
	h := bot.NewHandler(tg, src, newComposer(cfg, log, m), cfg.Paths.Tmp, log, m)
	p := bot.NewPoller(tg, h, poll, cfg.Bot.MaxConcurrent, log, m)

	if cfg.Metrics.Address != "" {
		srv := newMetricsServer(cfg.Metrics.Address, m)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
		defer shutdown(srv, log)
		log.WithField("address", cfg.Metrics.Address).Info("metrics listening")
	}

	log.WithFields(logrus.Fields{
		"tmp":            cfg.Paths.Tmp,
		"max_concurrent": cfg.Bot.MaxConcurrent,
	}).Info("voicebot polling")
	err = p.Run(ctx)
	log.Info("voicebot stopped")
	return err
}

func newMetricsServer(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok\n"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func shutdown(srv *http.Server, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("metrics server shutdown")
	}
}
