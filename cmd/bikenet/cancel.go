package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/LdDl/bikenet"
)

// cancelWatcher cancels a run once '<prefix><task id>' key appears in Redis
type cancelWatcher struct {
	client *redis.Client
	key    string
	poll   time.Duration
	logger *zap.Logger
}

func newCancelWatcher(cfg bikenet.RedisConfig, taskID string, logger *zap.Logger) *cancelWatcher {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	poll := cfg.Poll
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &cancelWatcher{
		client: client,
		key:    cfg.KeyPrefix + taskID,
		poll:   poll,
		logger: logger,
	}
}

// Watch returns context cancelled either with parent or on cancellation request. Stop releases the watcher
func (w *cancelWatcher) Watch(parent context.Context) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(w.poll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := w.client.Exists(ctx, w.key).Result()
				if err != nil {
					if ctx.Err() == nil {
						w.logger.Warn("Can't poll cancellation flag", zap.String("key", w.key), zap.Error(err))
					}
					continue
				}
				if n > 0 {
					w.logger.Warn("cancellation requested", zap.String("key", w.key))
					cancel()
					return
				}
			}
		}
	}()
	return ctx, func() {
		cancel()
		<-done
		if err := w.client.Close(); err != nil {
			w.logger.Warn("Can't close redis client", zap.Error(err))
		}
	}
}
