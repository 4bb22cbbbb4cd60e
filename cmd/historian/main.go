// cmd/historian/main.go is an asynchronous service that pops game-action
// records from the Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/unoserve/unoserve/internal/cache"
)

type historian struct {
	logger *logrus.Logger
	rdb    *redis.Client
	pool   *pgxpool.Pool
	queue  string

	batchSize  int
	flushDelay time.Duration

	mu    sync.Mutex
	batch []cache.GameActionRecord
}

func main() {
	logger := logrus.New()

	hs := &historian{
		logger:     logger,
		queue:      getEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName),
		batchSize:  getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		flushDelay: time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
	}

	hs.rdb = redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		DB:   getEnvInt("REDIS_DB", 0),
	})

	pool, err := pgxpool.New(context.Background(), os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.Fatalf("connect database: %v", err)
	}
	hs.pool = pool
	if err := hs.initSchema(context.Background()); err != nil {
		logger.Fatalf("init schema: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go hs.flushLoop(ctx)
	logger.Info("historian service started")
	hs.readRedisLoop(ctx)
	hs.flush(context.Background()) // drain what is left before exit
	logger.Info("historian shutting down")
}

func (hs *historian) initSchema(ctx context.Context) error {
	_, err := hs.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS game_actions (
			id             BIGSERIAL PRIMARY KEY,
			room_id        BIGINT NOT NULL,
			actor_username TEXT,
			action_type    TEXT NOT NULL,
			action_payload JSONB,
			ts             TIMESTAMPTZ NOT NULL
		)`)
	return err
}

// readRedisLoop pops records with BLPop until the context is cancelled.
func (hs *historian) readRedisLoop(ctx context.Context) {
	for {
		res, err := hs.rdb.BLPop(ctx, 3*time.Second, hs.queue).Result()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				hs.logger.WithError(err).Error("blpop failed")
			}
			continue
		}
		if len(res) < 2 {
			continue
		}

		var record cache.GameActionRecord
		if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
			hs.logger.WithError(err).Warn("invalid action record")
			continue
		}

		hs.mu.Lock()
		hs.batch = append(hs.batch, record)
		full := len(hs.batch) >= hs.batchSize
		hs.mu.Unlock()
		if full {
			hs.flush(ctx)
		}
	}
}

// flushLoop persists partial batches on a fixed cadence.
func (hs *historian) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hs.flush(ctx)
		}
	}
}

func (hs *historian) flush(ctx context.Context) {
	hs.mu.Lock()
	batch := hs.batch
	hs.batch = nil
	hs.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	err := pgx.BeginTxFunc(ctx, hs.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batch {
			payload, _ := json.Marshal(rec.ActionPayload)
			if _, err := tx.Exec(ctx,
				`INSERT INTO game_actions (room_id, actor_username, action_type, action_payload, ts)
				 VALUES ($1, $2, $3, $4, $5)`,
				rec.RoomID, rec.ActorUsername, rec.ActionType, payload, time.Unix(rec.Timestamp, 0),
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		hs.logger.WithError(err).Errorf("failed to persist %d action record(s)", len(batch))
		return
	}
	hs.logger.Debugf("persisted %d action record(s)", len(batch))
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

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
