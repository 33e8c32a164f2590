// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sc2arcade/watcher/internal/cache"
	"github.com/sc2arcade/watcher/internal/database"
	"github.com/sc2arcade/watcher/internal/models"
)

const mapStatsTTL = 5 * time.Minute

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ActiveLobbiesHandler returns every currently open lobby with full detail.
func ActiveLobbiesHandler(logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lobbies, err := database.FetchOpenLobbiesExcluding(r.Context(), nil)
		if err != nil {
			logger.WithError(err).Error("failed to fetch active lobbies")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if lobbies == nil {
			lobbies = []*models.GameLobby{}
		}
		writeJSON(w, http.StatusOK, lobbies)
	}
}

// LobbyDetailHandler resolves /lobbies/{regionId}/{bnetBucketId}/{bnetRecordId}
// to full lobby detail, including closed lobbies.
func LobbyDetailHandler(logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/lobbies/"), "/")
		if len(parts) != 3 {
			writeError(w, http.StatusBadRequest, "expected /lobbies/{regionId}/{bnetBucketId}/{bnetRecordId}")
			return
		}
		regionID, err1 := strconv.Atoi(parts[0])
		bucketID, err2 := strconv.Atoi(parts[1])
		recordID, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil {
			writeError(w, http.StatusBadRequest, "lobby handle segments must be numeric")
			return
		}

		results, err := database.SearchLobbies(r.Context(), database.LobbyQuery{
			Handle: &database.LobbyHandleParams{
				RegionID: models.Region(regionID),
				BucketID: bucketID,
				RecordID: recordID,
			},
		})
		if err != nil {
			logger.WithError(err).Error("lobby lookup failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if len(results) == 0 {
			writeError(w, http.StatusNotFound, "lobby not found")
			return
		}
		// refetch by id to attach slots and join history
		detailed, err := database.FetchLobbiesByIDs(r.Context(), []int64{results[0].ID})
		if err != nil || len(detailed) == 0 {
			logger.WithError(err).Error("lobby detail fetch failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, detailed[0])
	}
}

// MapStatsHandler serves /maps/{regionId}/{mapId}/stats: weekly aggregates in
// column-array form, cached in redis.
func MapStatsHandler(logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/maps/"), "/")
		if len(parts) != 3 || parts[2] != "stats" {
			writeError(w, http.StatusBadRequest, "expected /maps/{regionId}/{mapId}/stats")
			return
		}
		regionID, err1 := strconv.Atoi(parts[0])
		mapID, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			writeError(w, http.StatusBadRequest, "region and map ids must be numeric")
			return
		}
		region := models.Region(regionID)

		if payload, err := cache.GetMapStats(r.Context(), region, mapID); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(payload)
			return
		} else if !errors.Is(err, redis.Nil) {
			logger.WithError(err).Warn("map stats cache read failed")
		}

		stats, err := database.FetchMapWeeklyStats(r.Context(), region, mapID)
		if err != nil {
			logger.WithError(err).Error("map stats query failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		payload, err := json.Marshal(stats)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if err := cache.SetMapStats(r.Context(), region, mapID, payload, mapStatsTTL); err != nil {
			logger.WithError(err).Warn("map stats cache write failed")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}
}
