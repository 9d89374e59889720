package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-plant-market/internal/config"
	kafkax "github.com/ariefcatur/go-plant-market/internal/kafka"
	"github.com/ariefcatur/go-plant-market/internal/logx"
	"github.com/ariefcatur/go-plant-market/internal/notify"
	"github.com/ariefcatur/go-plant-market/internal/orders"
	"github.com/ariefcatur/go-plant-market/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logx.Fatal().Err(err).Msg("load config")
	}
	service := cfg.ServiceName + "-notifier"
	logx.Init(cfg.Environment, service)

	if !cfg.EventsEnabled() {
		logx.Fatal().Msg("KAFKA_BROKERS must be set for the notifier")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := redisx.New(ctx, cfg.RedisAddr)
	if err != nil {
		logx.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis connect")
	}
	defer rdb.Close()

	svc := &notify.Service{
		Dedup: &redisx.Deduper{RDB: rdb, Service: "notifier"},
		Sink:  notify.LogSink{},
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, cfg.NotifierWorkers,
		orders.TopicOrderPlaced, orders.TopicOrderStatusChanged)

	logx.Info().
		Str("group", cfg.NotifierGroup).
		Int("workers", cfg.NotifierWorkers).
		Strs("topics", []string{orders.TopicOrderPlaced, orders.TopicOrderStatusChanged}).
		Msg("notifier consumer started")
	if err := cons.Start(ctx, svc.HandleMessage); err != nil && ctx.Err() == nil {
		logx.Error().Err(err).Msg("consumer exit")
		os.Exit(1)
	}
	logx.Info().Msg("notifier stopped")
}
