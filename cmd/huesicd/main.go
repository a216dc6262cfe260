package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
	sse "github.com/r3labs/sse/v2"
	"github.com/spf13/viper"

	"github.com/nbrennan/huesic/internal/artwork"
	"github.com/nbrennan/huesic/internal/config"
	"github.com/nbrennan/huesic/internal/engine"
	"github.com/nbrennan/huesic/internal/hue"
	"github.com/nbrennan/huesic/internal/repos"
	"github.com/nbrennan/huesic/internal/server"
	"github.com/nbrennan/huesic/internal/session"
	"github.com/nbrennan/huesic/internal/spotify"
)

func main() {

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           log.InfoLevel,
		ReportTimestamp: true,
		ReportCaller:    true,
	})
	logger.Info("huesicd starting")

	// read the config file
	config.InitialiseConfig()

	db, err := sql.Open("sqlite3", viper.GetString("dbPath"))
	if err != nil {
		logger.Fatal(err)
	}
	defer db.Close()

	repo, err := repos.NewStateRepo(logger, db)
	if err != nil {
		logger.Fatal(err)
	}

	// create/wire up services
	sess := session.NewSession(logger, repo)

	bridgeKey, err := repo.LoadBridgeCredential()
	if err != nil {
		logger.Error(err)
	}
	bridge := hue.NewClient(logger, viper.GetString("bridgeIp"), bridgeKey, repo)
	if bridgeKey != "" {
		sess.MarkBridgePaired(true)
	}

	playback := spotify.NewClient(
		logger,
		viper.GetString("spotify.clientId"),
		viper.GetString("spotify.clientSecret"),
		viper.GetString("spotify.redirectUri"),
		repo,
	)
	if playback.Authorized() {
		sess.MarkServiceAuthorized(true)
	}

	eng := engine.NewEngine(logger, sess, playback, bridge, artwork.NewFetcher(logger), artwork.NewExtractor(logger))
	eng.PollInterval = config.PollInterval()
	eng.Recorder = repo

	// listen for bridge connectivity events as soon as a credential exists,
	// whether restored at boot or obtained by pairing later on
	eventChannel := make(chan *sse.Event)
	var consumer *hue.EventConsumer
	subscribeEvents := func(applicationKey string) {
		consumer = hue.NewEventConsumer(logger, viper.GetString("bridgeIp"), applicationKey)
		consumer.Subscribe(eventChannel)
	}
	if bridgeKey != "" {
		subscribeEvents(bridgeKey)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start the sync loop
	go eng.Run(ctx, eventChannel)

	// start the configuration surface
	srv := server.NewServer(logger, sess, bridge, playback, repo, eng)
	srv.OnPaired = func() {
		subscribeEvents(bridge.ApplicationKey())
	}
	httpServer := &http.Server{Addr: viper.GetString("listenAddr"), Handler: srv.Router()}
	go func() {
		logger.Info("configuration surface listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(err)
		}
	}()

	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	<-quitChannel

	// cleanup before exit
	cancel()
	_ = httpServer.Shutdown(context.Background())
	if consumer != nil {
		consumer.Unsubscribe()
	}
	logger.Info("huesicd is closing")
}
