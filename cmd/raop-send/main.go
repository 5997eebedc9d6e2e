// Command raop-send is demonstration wiring for the RAOP streaming
// engine: it plays a local WAV file to a receiver already reachable
// through an RTSP collaborator supplied by the caller's own discovery and
// signalling stack. It is not a replacement for that stack.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/airraop/raop"
	"github.com/airraop/raop/config"
	"github.com/airraop/raop/metrics"
	"github.com/airraop/raop/pcm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	wavPath := flag.String("wav", "", "path to a PCM WAV file to stream")
	configPath := flag.String("config", "", "optional YAML config overriding the engine defaults")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load config")
		}
	}

	lev, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || lev == zerolog.NoLevel {
		lev = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.StampMicro,
	}).With().Timestamp().Logger().Level(lev)

	if *wavPath == "" {
		log.Fatal().Msg("-wav is required")
	}

	f, err := os.Open(*wavPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *wavPath).Msg("failed to open wav file")
	}
	defer f.Close()

	source, err := pcm.NewWavSource(f)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse wav file")
	}

	reg := metrics.New()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if cfg.MetricsListenAddr != "" {
		go func() {
			if err := reg.Serve(ctx, cfg.MetricsListenAddr, log.Logger); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	rtsp := mustDiscoverReceiver(ctx)

	session := raop.NewSession(rtsp,
		raop.WithMetrics(reg),
		raop.WithConfig(cfg),
		raop.WithLogger(log.Logger),
	)

	properties := map[string]string{
		"et": "0,4",
		"md": "0,2",
		"sr": "44100",
		"ch": "2",
		"ss": "16",
	}
	if err := session.Initialize(properties); err != nil {
		log.Fatal().Err(err).Msg("session initialize failed")
	}

	log.Info().Str("wav", *wavPath).Msg("starting stream")
	if err := session.SendAudio(ctx, source); err != nil {
		log.Fatal().Err(err).Msg("stream ended with error")
	}
	log.Info().Msg("stream finished")
}

// mustDiscoverReceiver is a placeholder for the service-discovery and RTSP
// signalling stack this command depends on via the raop.RTSPCollaborator
// interface but never implements; wiring a concrete RTSP client is outside
// this engine's scope.
func mustDiscoverReceiver(ctx context.Context) raop.RTSPCollaborator {
	log.Fatal().Msg("no RTSP collaborator wired: supply a concrete raop.RTSPCollaborator implementation")
	return nil
}
