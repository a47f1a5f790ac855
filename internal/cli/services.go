package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mr1hm/go-alert-dispatch/internal/audience"
	"github.com/mr1hm/go-alert-dispatch/internal/channel"
	"github.com/mr1hm/go-alert-dispatch/internal/config"
	"github.com/mr1hm/go-alert-dispatch/internal/dispatch"
	"github.com/mr1hm/go-alert-dispatch/internal/drill"
	"github.com/mr1hm/go-alert-dispatch/internal/feed"
	"github.com/mr1hm/go-alert-dispatch/internal/models"
	"github.com/mr1hm/go-alert-dispatch/internal/progress"
	"github.com/mr1hm/go-alert-dispatch/internal/repository"
)

// services is the wired dependency graph shared by every command.
type services struct {
	db      *repository.SQLiteDB
	feed    *feed.Broadcaster
	engine  *dispatch.Engine
	drills  *drill.Bridge
	counter progress.Counter
	redis   *progress.RedisCounter
}

func openDB(path string) (*repository.SQLiteDB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("error creating data directory: %w", err)
			}
		}
	}
	return repository.NewSQLiteDB(path)
}

func newServices(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services, error) {
	db, err := openDB(cfg.DB.Path)
	if err != nil {
		return nil, err
	}

	s := &services{
		db:      db,
		feed:    feed.NewBroadcaster(),
		counter: db,
	}

	if cfg.Progress.RedisAddr != "" {
		rc := progress.NewRedisCounter(progress.RedisOptions{
			Addr:     cfg.Progress.RedisAddr,
			Password: cfg.Progress.RedisPassword,
			DB:       cfg.Progress.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rc.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, keeping sender progress in sqlite", "addr", cfg.Progress.RedisAddr, "error", err)
			rc.Close()
		} else {
			s.redis = rc
			s.counter = rc
		}
	}

	s.engine = dispatch.NewEngine(dispatch.Options{
		Store:     db,
		Ledger:    db,
		Resolver:  audience.NewResolver(db),
		Adapters:  buildAdapters(cfg, logger),
		Counter:   s.counter,
		Publisher: s.feed,
		Workers:   cfg.Worker.Count,
		Buffer:    cfg.Worker.BufferSize,
		Logger:    logger,
	})
	s.drills = drill.NewBridge(db, s.engine, cfg.Drill.Grace, logger)

	return s, nil
}

// buildAdapters registers a real transport for every medium. An unconfigured
// transport records its attempts as failed unless log-only delivery is on.
func buildAdapters(cfg *config.Config, logger *slog.Logger) channel.Registry {
	email := channel.Adapter(channel.NewEmailAdapter(channel.EmailOptions{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Security: cfg.SMTP.Security,
		Timeout:  cfg.SMTP.Timeout,
		Logger:   logger,
	}))
	sms := channel.Adapter(channel.NewSMSAdapter(channel.SMSOptions{
		GatewayURL: cfg.SMS.GatewayURL,
		Secret:     cfg.SMS.Secret,
		RatePerSec: cfg.SMS.RatePerSec,
		Timeout:    cfg.SMS.Timeout,
		Logger:     logger,
	}))
	push := channel.Adapter(channel.NewPushAdapter(channel.PushOptions{
		ServiceURL: cfg.Push.ServiceURL,
		Token:      cfg.Push.Token,
		Timeout:    cfg.Push.Timeout,
		Logger:     logger,
	}))

	unconfigured := map[models.DeliveryMethod]bool{
		models.DeliveryEmail: cfg.SMTP.Host == "",
		models.DeliverySMS:   cfg.SMS.GatewayURL == "",
		models.DeliveryPush:  cfg.Push.ServiceURL == "",
	}

	adapters := []channel.Adapter{email, sms, push}
	for i, a := range adapters {
		if !unconfigured[a.Kind()] {
			continue
		}
		if cfg.Delivery.LogOnly {
			logger.Warn("transport not configured, logging deliveries instead", "channel", a.Kind())
			adapters[i] = channel.NewLogAdapter(a.Kind(), logger)
		} else {
			logger.Warn("transport not configured, deliveries will fail", "channel", a.Kind())
		}
	}

	return channel.NewRegistry(adapters...)
}

// alertsSent reads the sender counter from whichever store holds it.
func (s *services) alertsSent(ctx context.Context, senderID string) (int64, error) {
	if r, ok := s.counter.(progress.Reader); ok {
		return r.AlertsSent(ctx, senderID)
	}
	return 0, nil
}

func (s *services) Close() {
	s.feed.Close()
	if s.redis != nil {
		s.redis.Close()
	}
	s.db.Close()
}
