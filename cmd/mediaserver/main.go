// Command mediaserver starts the HTTP API, the asynq job worker, the
// idle-transcode reaper, and the event bus heartbeat.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelhaven/mediaserver/internal/api"
	"github.com/reelhaven/mediaserver/internal/config"
	"github.com/reelhaven/mediaserver/internal/events"
	"github.com/reelhaven/mediaserver/internal/jobs"
	"github.com/reelhaven/mediaserver/internal/probe"
	"github.com/reelhaven/mediaserver/internal/scanner"
	"github.com/reelhaven/mediaserver/internal/store"
	"github.com/reelhaven/mediaserver/internal/streamtoken"
	"github.com/reelhaven/mediaserver/internal/transcode"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create data directory")
	}
	transcodeRoot := cfg.DataDir + "/transcodes"
	if err := os.MkdirAll(transcodeRoot, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create transcode directory")
	}

	db, err := store.Open(cfg.DatabasePath, store.DefaultConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()
	log.Info().Str("path", cfg.DatabasePath).Msg("database ready")

	if err := cfg.MergeFromDB(db); err != nil {
		log.Warn().Err(err).Msg("failed to merge runtime settings from database")
	}

	libraries := store.NewLibraryRepository(db)
	items := store.NewItemRepository(db)
	jobsRepo := store.NewJobRepository(db)
	users := store.NewUserRepository(db)

	if n, err := users.Count(); err != nil {
		log.Fatal().Err(err).Msg("failed to count users")
	} else if n == 0 {
		log.Warn().Msg("no users exist yet; register the first admin via POST /auth/register")
	}

	sc := scanner.NewScanner(libraries, items)
	prober := probe.NewProber(cfg.FFprobePath)

	transcodeCfg := transcode.DefaultConfig(transcodeRoot)
	transcodeCfg.FFmpegPath = cfg.FFmpegPath
	transcodeCfg.MaxConcurrent = cfg.MaxTranscodes
	transcodeCfg.HWAccel = cfg.HWAccel
	transcodeMgr := transcode.NewManager(transcodeCfg)

	reapStop := make(chan struct{})
	go transcodeMgr.RunIdleReapLoop(20*time.Second, reapStop)
	defer close(reapStop)

	bus := events.NewBus()
	heartbeatStop := make(chan struct{})
	go bus.RunHeartbeatLoop(heartbeatStop)
	defer close(heartbeatStop)

	if cfg.JWTSecret == "" {
		log.Warn().Msg("jwt_secret is unset; stream tokens will be signed with an empty key")
	}
	streamTokens := streamtoken.NewIssuer([]byte(cfg.JWTSecret))

	jobQueue := jobs.NewQueue(cfg.RedisAddr, log)
	jobQueue.RegisterHandler(jobs.TaskLibraryScan, jobs.NewScanHandler(sc, jobsRepo, bus, log))

	queueCtx, queueCancel := context.WithCancel(context.Background())
	go func() {
		if err := jobQueue.Start(queueCtx); err != nil {
			log.Error().Err(err).Msg("job queue worker exited")
		}
	}()
	defer func() {
		queueCancel()
		jobQueue.Stop()
	}()

	srv := api.NewServer(api.Deps{
		Cfg:          cfg,
		Log:          log,
		Libraries:    libraries,
		Items:        items,
		Jobs:         jobsRepo,
		Users:        users,
		Scanner:      sc,
		Prober:       prober,
		TranscodeMgr: transcodeMgr,
		JobQueue:     jobQueue,
		Bus:          bus,
		StreamTokens: streamTokens,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming responses run indefinitely
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
}
