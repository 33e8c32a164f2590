// cmd/api/main.go serves the read-only HTTP API: active lobby listings,
// lobby detail lookups, cached map stats, and the live lobby-event feed.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/sc2arcade/watcher/internal/api"
	"github.com/sc2arcade/watcher/internal/cache"
	"github.com/sc2arcade/watcher/internal/database"
	"github.com/sc2arcade/watcher/internal/middleware"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	database.ConnectDB()
	defer database.DB.Close()

	if err := cache.ConnectRedis(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := api.NewFeedHub(logger)
	go func() {
		if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("feed hub stopped")
		}
	}()

	logMW := middleware.LogMiddleware(logger)
	mux := http.NewServeMux()
	mux.Handle("/lobbies/active", logMW(api.ActiveLobbiesHandler(logger)))
	mux.Handle("/lobbies/feed", logMW(hub.Handler()))
	mux.Handle("/lobbies/", logMW(api.LobbyDetailHandler(logger)))
	mux.Handle("/maps/", logMW(api.MapStatsHandler(logger)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)

	errc := make(chan error, 1)
	go func() {
		errc <- http.ListenAndServe(addr, mux)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errc:
		log.Printf("failed to serve: %v", err)
	case sig := <-sigs:
		log.Printf("terminating: %v", sig)
	}
}
