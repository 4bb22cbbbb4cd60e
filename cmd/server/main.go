// cmd/server/main.go
package main

import (
	"context"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/unoserve/unoserve/internal/auth"
	"github.com/unoserve/unoserve/internal/cache"
	"github.com/unoserve/unoserve/internal/database"
	"github.com/unoserve/unoserve/internal/room"
	"github.com/unoserve/unoserve/internal/server"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if err := auth.Init(); err != nil {
		logger.Fatalf("auth init: %v", err)
	}

	// Persistence is optional at startup: without it the server still runs,
	// and account operations answer ERROR until it comes back.
	var accounts server.AccountStore
	if url := os.Getenv("DATABASE_URL"); url != "" {
		store, err := database.Connect(context.Background(), url)
		if err != nil {
			logger.WithError(err).Warn("database unavailable, account operations disabled")
		} else {
			if err := store.Init(context.Background()); err != nil {
				logger.WithError(err).Warn("database schema init failed")
			}
			accounts = store
			defer store.Close()
		}
	} else {
		logger.Warn("DATABASE_URL not set, account operations disabled")
	}

	var historian room.ActionLogger
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		h, err := cache.Connect(addr, getEnvInt("REDIS_DB", 0), os.Getenv("HISTORIAN_QUEUE_NAME"), logger)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, action history disabled")
		} else {
			historian = h
			defer h.Close()
		}
	}

	srv := server.New(logger, accounts, historian)

	host := getEnv("HOST", "127.0.0.1")
	port := getEnvInt("PORT", 12345)
	l, err := server.Listen(host, port, 50, logger)
	if err != nil {
		logger.Fatalf("listen: %v", err)
	}
	if err := srv.Serve(l); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
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
