package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/DispatchBox/config"
	"github.com/BearBump/DispatchBox/internal/broker/kafka"
	"github.com/BearBump/DispatchBox/internal/cache/rediscache"
	"github.com/BearBump/DispatchBox/internal/services/journal"
	"github.com/BearBump/DispatchBox/internal/storage/pgjournal"
)

type orderJournalApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     orderJournalOpts
	svc      *journal.Service
	consumer *kafka.Consumer
	closeDB  func()
	closeRC  func()
}

func mustBootstrapOrderJournal() *orderJournalApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.Journal.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8081"
	}
	consumerGroup := cfg.Journal.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "order-journal"
	}
	topic := cfg.Kafka.ControlStateTopicName
	if topic == "" {
		topic = "control.state"
	}
	cacheTTL := time.Duration(cfg.Journal.LastStateTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	rc := rediscache.New(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
	svc := journal.New(st, rc, cacheTTL)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &orderJournalApp{
		ctx:    ctx,
		cancel: cancel,
		opts: orderJournalOpts{
			httpAddr:      httpAddr,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		svc:      svc,
		consumer: consumer,
		closeDB:  st.Close,
		closeRC:  func() { _ = rc.Close() },
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgjournal.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgjournal.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *orderJournalApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeRC != nil {
		a.closeRC()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *orderJournalApp) Run() error {
	return runOrderJournal(a.ctx, a.opts, a.svc, a.consumer)
}
