// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sc2arcade/watcher/internal/models"
	"github.com/sc2arcade/watcher/internal/reporter"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// DefaultEventChannel is the pub/sub channel carrying lobby lifecycle events
// from the watcher process to the API feed.
var DefaultEventChannel = "arcade_lobby_events"

// LobbyEventRecord is the wire form of a lobby lifecycle event.
type LobbyEventRecord struct {
	Type      reporter.LobbyEventType `json:"type"`
	Lobby     *models.GameLobby       `json:"lobby"`
	Timestamp int64                   `json:"timestamp"`
}

// ConnectRedis initializes the global Redis client with environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis() error {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// PublishLobbyEvent serializes the event to JSON and publishes it on the
// event channel. This does not block the calling logic (other than a quick
// network send).
func PublishLobbyEvent(ctx context.Context, ev reporter.LobbyEvent) error {
	record := LobbyEventRecord{
		Type:      ev.Type,
		Lobby:     ev.Lobby,
		Timestamp: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal LobbyEventRecord: %w", err)
	}

	channel := getEnv("LOBBY_EVENT_CHANNEL", DefaultEventChannel)
	if err := Rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel '%s': %w", channel, err)
	}
	return nil
}

// SubscribeLobbyEvents subscribes to the event channel and delivers decoded
// records on the returned channel until ctx is cancelled. Records that fail
// to decode are dropped.
func SubscribeLobbyEvents(ctx context.Context) (<-chan LobbyEventRecord, error) {
	channel := getEnv("LOBBY_EVENT_CHANNEL", DefaultEventChannel)
	sub := Rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to Redis channel '%s': %w", channel, err)
	}

	out := make(chan LobbyEventRecord, 64)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var record LobbyEventRecord
				if err := json.Unmarshal([]byte(msg.Payload), &record); err != nil {
					continue
				}
				select {
				case out <- record:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// GetMapStats returns the cached stats payload for a map, or redis.Nil when
// the key is absent or expired.
func GetMapStats(ctx context.Context, regionID models.Region, mapID int) ([]byte, error) {
	return Rdb.Get(ctx, mapStatsKey(regionID, mapID)).Bytes()
}

// SetMapStats caches a stats payload with the given TTL.
func SetMapStats(ctx context.Context, regionID models.Region, mapID int, payload []byte, ttl time.Duration) error {
	return Rdb.Set(ctx, mapStatsKey(regionID, mapID), payload, ttl).Err()
}

func mapStatsKey(regionID models.Region, mapID int) string {
	return fmt.Sprintf("arcade:mapstats:%d:%d", regionID, mapID)
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
