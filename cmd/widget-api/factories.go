package main

import (
	"fmt"
	"time"

	"github.com/BearBump/DispatchBox/config"
	"github.com/BearBump/DispatchBox/internal/broker/kafka"
	"github.com/BearBump/DispatchBox/internal/cache/rediscache"
	"github.com/BearBump/DispatchBox/internal/integrations/dispatch"
	"github.com/BearBump/DispatchBox/internal/integrations/dispatch/dostavistahttp"
	"github.com/BearBump/DispatchBox/internal/integrations/dispatch/fake"
	"github.com/BearBump/DispatchBox/internal/services/widget"
)

type widgetFactories struct {
	newDispatcher func(cfg *config.Config) dispatch.Client
	newStore      func(cfg *config.Config) (store widget.StateStore, closeFn func(), err error)
	newEvents     func(cfg *config.Config) (sink widget.EventSink, closeFn func())
	newLimiter    func(cfg *config.Config) (limiter widget.RateLimiter, closeFn func())
}

func defaultWidgetFactories() widgetFactories {
	return widgetFactories{
		newDispatcher: func(cfg *config.Config) dispatch.Client {
			// Для демо без доступа к Dostavista: локальный fake.
			if cfg.Dispatch.Mode == "fake" {
				return fake.New()
			}
			timeout := time.Duration(cfg.Dispatch.TimeoutMs) * time.Millisecond
			return dostavistahttp.New(cfg.Dispatch.APIURL, timeout)
		},
		newStore: func(cfg *config.Config) (widget.StateStore, func(), error) {
			if cfg.Redis.Host == "" {
				return widget.NewMemoryStore(), nil, nil
			}
			ttl := time.Duration(cfg.Widget.StateTTLSeconds) * time.Second
			if ttl <= 0 {
				ttl = 24 * time.Hour
			}
			rc := rediscache.New(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
			return rediscache.NewStateStore(rc, ttl), func() { _ = rc.Close() }, nil
		},
		newEvents: func(cfg *config.Config) (widget.EventSink, func()) {
			if cfg.Kafka.Host == "" {
				return nil, nil
			}
			topic := cfg.Kafka.ControlStateTopicName
			if topic == "" {
				topic = "control.state"
			}
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			p := kafka.NewProducer(brokers)
			return kafka.NewStateEvents(p, topic), func() { _ = p.Close() }
		},
		newLimiter: func(cfg *config.Config) (widget.RateLimiter, func()) {
			if cfg.Redis.Host == "" || cfg.Dispatch.SubmitRateLimitPerMinute <= 0 {
				return nil, nil
			}
			rl := rediscache.NewRateLimiter(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
			return rl, func() { _ = rl.Close() }
		},
	}
}
