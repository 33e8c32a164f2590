// cmd/watcher/main.go runs the lobby watcher: the reconciliation loop that
// tracks open game lobbies, posts and maintains subscription notifications,
// and publishes lifecycle events for the API feed.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/sc2arcade/watcher/internal/cache"
	"github.com/sc2arcade/watcher/internal/database"
	"github.com/sc2arcade/watcher/internal/discord"
	"github.com/sc2arcade/watcher/internal/reporter"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	database.ConnectDB()
	defer database.DB.Close()

	if err := cache.ConnectRedis(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		log.Fatal("DISCORD_TOKEN is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		log.Fatalf("failed to create discord session: %v", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	if err := session.Open(); err != nil {
		log.Fatalf("failed to open discord session: %v", err)
	}
	defer session.Close()

	gateway := discord.NewGateway(session, logger)
	rep := reporter.New(database.Store{}, gateway, logger)
	if ms, err := strconv.Atoi(os.Getenv("REPORTER_TICK_MS")); err == nil && ms > 0 {
		rep.TickInterval = time.Duration(ms) * time.Millisecond
	}
	rep.PublishFn = func(ev reporter.LobbyEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cache.PublishLobbyEvent(ctx, ev); err != nil {
			logger.WithError(err).Warn("failed to publish lobby event")
		}
	}

	discord.NewBot(session, rep, os.Getenv("DISCORD_PREFIX"), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rep.Load(ctx); err != nil {
		log.Fatalf("failed to load reporter state: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- rep.Run(ctx)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errc:
		log.Printf("reporter stopped: %v", err)
	case sig := <-sigs:
		log.Printf("terminating: %v", sig)
		// let the in-flight tick finish before the deferred closes tear
		// down the session and the pool
		cancel()
		log.Printf("reporter stopped: %v", <-errc)
	}
}
