// Package buckets batches per-user stream usage before persisting it
package buckets

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"chatgate/internal/database"
	"chatgate/internal/metrics"
	"chatgate/internal/shared"

	"go.uber.org/zap"
)

type UsageCache struct {
	buckets       map[uint64]*bucket
	killedBuckets map[uint64]*bucket
	mu            sync.Mutex
	log           *zap.SugaredLogger
	db            *sql.DB
}

type bucket struct {
	mu       sync.Mutex
	userID   uint64
	usages   map[string]*shared.StreamUsage
	inflight uint64
	timer    *time.Timer
}

func NewUsageCache(log *zap.SugaredLogger, db *sql.DB) *UsageCache {
	return &UsageCache{
		db:            db,
		log:           log,
		buckets:       map[uint64]*bucket{},
		killedBuckets: map[uint64]*bucket{},
	}
}

func (c *UsageCache) Shutdown() {
	c.log.Info("Shutting down usage cache")
	wg := sync.WaitGroup{}
	for {
		c.mu.Lock()
		total := uint64(0)
		for _, b := range c.buckets {
			if b.timer != nil {
				b.timer.Stop()
			}
			total += b.inflight
		}
		c.mu.Unlock()
		if total == 0 {
			break
		}
		time.Sleep(1 * time.Second)
	}
	c.mu.Lock()
	users := make([]uint64, 0, len(c.buckets))
	for id := range c.buckets {
		users = append(users, id)
	}
	c.mu.Unlock()
	for _, id := range users {
		wg.Add(1)
		go func(userID uint64) {
			c.Flush(userID)
			wg.Done()
		}(id)
	}
	wg.Wait()
}

func (c *UsageCache) AddInFlight(userID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.getBucket(userID)
	b.mu.Lock()
	b.inflight++
	metrics.InflightStreams.WithLabelValues(fmt.Sprintf("%d", userID)).Set(float64(b.inflight))
	b.mu.Unlock()
}

func (c *UsageCache) RemoveInFlight(userID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.getBucket(userID)
	b.mu.Lock()
	b.inflight--
	metrics.InflightStreams.WithLabelValues(fmt.Sprintf("%d", userID)).Set(float64(b.inflight))
	b.mu.Unlock()
}

func (b *bucket) addStream(c *UsageCache, su *shared.StreamUsage, requestID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.usages[requestID] = su

	// Fresh bucket: register the interval flush.
	if b.timer == nil {
		c.log.Info("Registering flush for bucket")
		b.timer = time.AfterFunc(shared.BucketFlushInterval, func() {
			retry := c.Flush(b.userID)
			for retry != 0 {
				c.log.Warn("Flush requested retry, waiting...")
				time.Sleep(retry)
				retry = c.Flush(b.userID)
			}
		})
	}

	status := "success"
	if !su.Completed {
		status = "incomplete"
	}
	if su.Canceled {
		status = "canceled"
		metrics.CanceledStreams.WithLabelValues(su.Model, fmt.Sprintf("%d", su.UserID)).Inc()
	}
	metrics.StreamCount.WithLabelValues(su.Model, su.Provider, status).Inc()
	metrics.StreamChunks.WithLabelValues(su.Model, su.Provider).Add(float64(su.Chunks))
	metrics.StreamDuration.WithLabelValues(su.Model, su.Provider).Observe(su.TotalTime.Seconds())
	if su.TimeToFirstChunk != 0 {
		metrics.TimeToFirstChunk.WithLabelValues(su.Model, su.Provider).Observe(su.TimeToFirstChunk.Seconds())
	}

	// No more inflight streams for the user: flush right away.
	if b.inflight >= 1 {
		return
	}
	if ok := b.timer.Stop(); !ok {
		c.log.Info("Flush is already executing")
		return
	}
	go func() {
		retry := c.Flush(b.userID)
		for retry != 0 {
			c.log.Warn("Flush requested retry, waiting...")
			time.Sleep(retry)
			retry = c.Flush(b.userID)
		}
	}()
}

func (c *UsageCache) getBucket(userID uint64) *bucket {
	b, ok := c.buckets[userID]
	if !ok {
		b = &bucket{usages: map[string]*shared.StreamUsage{}, userID: userID}
		c.buckets[userID] = b
	}
	return b
}

func (c *UsageCache) AddStreamToBucket(userID uint64, su *shared.StreamUsage, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bucket := c.getBucket(userID)
	bucket.addStream(c, su, id)
}

// Flush persists and clears the user's bucket. A non-zero return asks the
// caller to retry after that delay.
func (c *UsageCache) Flush(userID uint64) time.Duration {
	c.mu.Lock()
	b, ok := c.buckets[userID]
	if !ok {
		c.mu.Unlock()
		return 0
	}

	if _, ok = c.killedBuckets[userID]; ok {
		c.mu.Unlock()
		return shared.BucketRetryDelay
	}
	c.killedBuckets[userID] = b
	delete(c.buckets, userID)
	if b.inflight != 0 {
		c.buckets[userID] = &bucket{
			userID:   userID,
			inflight: b.inflight,
			usages:   map[string]*shared.StreamUsage{},
		}
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.killedBuckets, userID)
		c.mu.Unlock()
	}()

	if len(b.usages) == 0 {
		return 0
	}

	var err error
	for range shared.MaxFlushRetries {
		err = database.SaveStreams(c.db, b.usages, c.log)
		if err == nil {
			c.log.Infow("Flushed bucket", "user_id", userID, "streams", len(b.usages))
			return 0
		}
		c.log.Errorw("Failed to insert stream records", "error", err)
		time.Sleep(5 * time.Second)
	}
	c.log.Errorw("Giving up on bucket flush", "error", err, "user_id", userID)
	metrics.ErrorCount.WithLabelValues("unknown", "unknown", fmt.Sprintf("%d", userID), "save_streams").Inc()
	return 0
}
