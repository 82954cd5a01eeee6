// Package database defines the insertions and transactions to the database
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"chatgate/internal/shared"

	"go.uber.org/zap"
)

type DailyStats struct {
	Date             string
	UserID           uint64
	Model            string
	Provider         string
	StreamCount      uint64
	Chunks           uint64
	TimeToFirstChunk int64
	TotalTime        int64
	CanceledStreams  uint64
}

// SaveStreams persists individual stream records and upserts the daily
// per-model aggregates.
func SaveStreams(db *sql.DB, usages map[string]*shared.StreamUsage, log *zap.SugaredLogger) error {
	requestSQLStr := `INSERT INTO chat_request (
            user_id, request_id, model, provider,
            chunks, time_to_first_chunk, total_time,
            completed, canceled, created_at
        ) VALUES`

	statsSQLStr := `INSERT INTO daily_stats (
		date, user_id, model, provider, stream_count, chunks, time_to_first_chunk, total_time, canceled_streams
	) VALUES`

	today := time.Now().Format("2006-01-02")

	aggregated := make(map[string]*DailyStats)

	requestVals := []any{}
	statsVals := []any{}

	if len(usages) == 0 {
		return nil
	}

	for id, su := range usages {
		key := su.Model
		if _, ok := aggregated[key]; !ok {
			aggregated[key] = &DailyStats{
				UserID:   su.UserID,
				Model:    su.Model,
				Provider: su.Provider,
			}
		}
		existing := aggregated[key]
		existing.StreamCount += 1
		existing.Chunks += su.Chunks
		if su.Canceled {
			existing.CanceledStreams += 1
		} else {
			existing.TimeToFirstChunk += su.TimeToFirstChunk.Milliseconds()
			existing.TotalTime += su.TotalTime.Milliseconds()
		}
		requestSQLStr += "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?),"
		requestVals = append(requestVals,
			su.UserID, id, su.Model, su.Provider,
			su.Chunks, su.TimeToFirstChunk.Milliseconds(), su.TotalTime.Milliseconds(),
			su.Completed, su.Canceled,
			su.CreatedAt,
		)
	}

	for _, val := range aggregated {
		statsSQLStr += "(?, ?, ?, ?, ?, ?, ?, ?, ?),"
		statsVals = append(statsVals, today, val.UserID, val.Model, val.Provider, val.StreamCount, val.Chunks, val.TimeToFirstChunk, val.TotalTime, val.CanceledStreams)
	}

	requestSQLStr = strings.TrimSuffix(requestSQLStr, ",")
	statsSQLStr = strings.TrimSuffix(statsSQLStr, ",")
	statsSQLStr += ` ON DUPLICATE KEY UPDATE
		stream_count = stream_count + VALUES(stream_count),
		chunks = chunks + VALUES(chunks),
		time_to_first_chunk = time_to_first_chunk + VALUES(time_to_first_chunk),
		total_time = total_time + VALUES(total_time),
		canceled_streams = canceled_streams + VALUES(canceled_streams)`

	if _, err := db.Exec(requestSQLStr, requestVals...); err != nil {
		return fmt.Errorf("failed to save stream records: %w", err)
	}

	if _, err := db.Exec(statsSQLStr, statsVals...); err != nil {
		return fmt.Errorf("failed to save daily stats: %w", err)
	}

	return nil
}

// RecentDailyStats serves the admin stats surface.
func RecentDailyStats(ctx context.Context, db *sql.DB, days int) ([]DailyStats, error) {
	rows, err := db.QueryContext(ctx, `
	SELECT date, user_id, model, provider, stream_count, chunks, time_to_first_chunk, total_time, canceled_streams
	FROM daily_stats
	WHERE date >= DATE_SUB(CURDATE(), INTERVAL ? DAY)
	ORDER BY date DESC, model ASC`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []DailyStats
	for rows.Next() {
		var s DailyStats
		if err := rows.Scan(&s.Date, &s.UserID, &s.Model, &s.Provider, &s.StreamCount, &s.Chunks, &s.TimeToFirstChunk, &s.TotalTime, &s.CanceledStreams); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

type ChatRequestRecord struct {
	RequestID        string
	Model            string
	Provider         string
	Chunks           uint64
	TimeToFirstChunk int64
	TotalTime        int64
	Completed        bool
	Canceled         bool
	CreatedAt        time.Time
}

// RecentRequestsForUser serves the admin per-user request view.
func RecentRequestsForUser(ctx context.Context, db *sql.DB, userID uint64, limit int) ([]ChatRequestRecord, error) {
	rows, err := db.QueryContext(ctx, `
	SELECT request_id, model, provider, chunks, time_to_first_chunk, total_time, completed, canceled, created_at
	FROM chat_request
	WHERE user_id = ?
	ORDER BY created_at DESC
	LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ChatRequestRecord
	for rows.Next() {
		var r ChatRequestRecord
		if err := rows.Scan(&r.RequestID, &r.Model, &r.Provider, &r.Chunks, &r.TimeToFirstChunk, &r.TotalTime, &r.Completed, &r.Canceled, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
