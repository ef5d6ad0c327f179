// Command urlqueued serves the capture work-queue HTTP API: it hands out
// CaptureWork items to browser-driving capture workers and records their
// completion reports to report.json, the one load-bearing contract point
// the dataset driver later consumes.
package main

import (
	"flag"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/starfys/pcapfeatures/urlqueue"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func main() {
	configPath := flag.String("config", "urlqueue.yaml", "path to the work-queue config file")
	flag.Parse()

	cfg, err := urlqueue.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	entries, err := urlqueue.LoadURLEntries(cfg.URLsPath, cfg.NumURLs)
	if err != nil {
		log.Fatal().Err(err).Msg("loading url list")
	}

	svc, err := urlqueue.NewService(entries, cfg.ReportPath)
	if err != nil {
		log.Fatal().Err(err).Msg("initializing work-queue service")
	}
	defer svc.Close()

	r := gin.New()
	r.Use(gin.Recovery())
	svc.Register(r)

	log.Info().Str("addr", cfg.ListenAddr).Int("urls", len(entries)).Msg("urlqueued: listening")
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatal().Err(err).Msg("urlqueued: server exited")
	}
}
