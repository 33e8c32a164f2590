package database

import (
	"context"

	"github.com/sc2arcade/watcher/internal/models"
)

// MapWeeklyStats is the column-array shape served by the map stats endpoint:
// parallel series, one element per weekly period, zero-filled for weeks with
// no recorded activity.
type MapWeeklyStats struct {
	Date                    []string  `json:"date"`
	LobbiesHosted           []int     `json:"lobbiesHosted"`
	LobbiesStarted          []int     `json:"lobbiesStarted"`
	ParticipantsTotal       []int     `json:"participantsTotal"`
	ParticipantsUniqueTotal []int     `json:"participantsUniqueTotal"`
	PendingTimeAverage      []float64 `json:"pendingTimeAverage"`
}

type statsPeriod struct {
	ID   int64
	Date string
}

type statsPeriodRow struct {
	PeriodID                int64
	LobbiesHosted           int
	LobbiesStarted          int
	ParticipantsTotal       int
	ParticipantsUniqueTotal int
	PendingTimeAverage      float64
}

// FetchMapWeeklyStats assembles the weekly stat series for one map.
func FetchMapWeeklyStats(ctx context.Context, regionID models.Region, mapID int) (*MapWeeklyStats, error) {
	periodQ := `
		SELECT id, (date_from + (length - 1) * INTERVAL '1 day')::date::text
		FROM stats_periods
		WHERE length = 7
		ORDER BY date_from
	`
	rows, err := DB.Query(ctx, periodQ)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []statsPeriod
	var periodIDs []int64
	for rows.Next() {
		var p statsPeriod
		if err := rows.Scan(&p.ID, &p.Date); err != nil {
			return nil, err
		}
		periods = append(periods, p)
		periodIDs = append(periodIDs, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(periods) == 0 {
		return &MapWeeklyStats{}, nil
	}

	mapQ := `
		SELECT period_id, lobbies_hosted, lobbies_started,
		       participants_total, participants_unique_total, pending_time_average
		FROM stats_period_maps
		WHERE region_id = $1 AND map_bnet_id = $2 AND period_id = ANY($3)
	`
	mapRows, err := DB.Query(ctx, mapQ, regionID, mapID, periodIDs)
	if err != nil {
		return nil, err
	}
	defer mapRows.Close()

	byPeriod := make(map[int64]statsPeriodRow)
	for mapRows.Next() {
		var r statsPeriodRow
		err := mapRows.Scan(
			&r.PeriodID, &r.LobbiesHosted, &r.LobbiesStarted,
			&r.ParticipantsTotal, &r.ParticipantsUniqueTotal, &r.PendingTimeAverage,
		)
		if err != nil {
			return nil, err
		}
		byPeriod[r.PeriodID] = r
	}
	if err := mapRows.Err(); err != nil {
		return nil, err
	}

	return assembleStatsSeries(periods, byPeriod), nil
}

// assembleStatsSeries turns per-period rows into parallel column arrays in
// period order, filling gaps with zeroes.
func assembleStatsSeries(periods []statsPeriod, byPeriod map[int64]statsPeriodRow) *MapWeeklyStats {
	out := &MapWeeklyStats{}
	for _, p := range periods {
		r := byPeriod[p.ID]
		out.Date = append(out.Date, p.Date)
		out.LobbiesHosted = append(out.LobbiesHosted, r.LobbiesHosted)
		out.LobbiesStarted = append(out.LobbiesStarted, r.LobbiesStarted)
		out.ParticipantsTotal = append(out.ParticipantsTotal, r.ParticipantsTotal)
		out.ParticipantsUniqueTotal = append(out.ParticipantsUniqueTotal, r.ParticipantsUniqueTotal)
		out.PendingTimeAverage = append(out.PendingTimeAverage, r.PendingTimeAverage)
	}
	return out
}
