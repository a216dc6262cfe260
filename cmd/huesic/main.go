package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nbrennan/huesic/internal/artwork"
	"github.com/nbrennan/huesic/internal/config"
	"github.com/nbrennan/huesic/internal/engine"
	"github.com/nbrennan/huesic/internal/hue"
	"github.com/nbrennan/huesic/internal/models"
	"github.com/nbrennan/huesic/internal/repos"
	"github.com/nbrennan/huesic/internal/session"
	"github.com/nbrennan/huesic/internal/spotify"
	"github.com/nbrennan/huesic/internal/tui"
)

func main() {

	// the terminal belongs to the UI, log to a rotating file instead
	logger := log.NewWithOptions(&lumberjack.Logger{
		Filename: "logs/huesic.log",
		MaxAge:   3,
	}, log.Options{
		Level:      log.InfoLevel,
		TimeFormat: "2006/01/02 15:04:05",
	})
	logger.Info("huesic starting")

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

	statusChannel := make(chan models.EngineStatus, 1)

	eng := engine.NewEngine(logger, sess, playback, bridge, artwork.NewFetcher(logger), artwork.NewExtractor(logger))
	eng.PollInterval = config.PollInterval()
	eng.Recorder = repo
	eng.StatusChannel = statusChannel

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start the sync loop
	go eng.Run(ctx, nil)

	// run the terminal UI
	ui := tui.NewTui()
	go func() {
		if err := ui.Run(); err != nil {
			logger.Error(err)
		}
		cancel()
	}()

	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case status := <-statusChannel:
			ui.Refresh(status)
		case <-ctx.Done():
			logger.Info("huesic is closing")
			return
		case <-quitChannel:
			// cleanup before exit
			cancel()
			ui.Quit()
			logger.Info("huesic is closing")
			return
		}
	}
}
