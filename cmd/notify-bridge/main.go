package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/rentora/backend/internal/config"
	"github.com/rentora/backend/internal/db"
	"github.com/rentora/backend/internal/events"
)

// Notify Bridge is a small service that subscribes to notification intents
// on Redis and forwards them to the external delivery service (email / push).

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)

	log.Info("notify-bridge started")

	_ = subscriber.Subscribe(ctx, events.ChannelNotify, func(intent events.Intent) {
		log.Info("forwarding notification intent",
			zap.String("user_id", intent.UserID.String()),
			zap.String("event_type", intent.EventType),
		)
		forward(cfg.NotifyServiceURL, intent, log)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}

func forward(baseURL string, intent events.Intent, log *zap.Logger) {
	body, _ := json.Marshal(intent)

	url := fmt.Sprintf("%s/internal/notify", strings.TrimRight(baseURL, "/"))
	resp, err := http.Post(url, "application/json", strings.NewReader(string(body)))
	if err != nil {
		log.Warn("failed to forward notification", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn("notify service returned non-200", zap.Int("status", resp.StatusCode))
	}
}
