package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"taxi-realtime/internal/shared/config"
	"taxi-realtime/internal/shared/mq"
	"taxi-realtime/internal/shared/util"
	"taxi-realtime/internal/trip/domain"
)

// trip-events tails the trip exchange and logs every event it sees.
func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	queue := flag.String("queue", "", "durable queue to consume from; empty for a temporary one")
	keys := flag.String("keys", "trip.*", "comma separated routing keys")
	flag.Parse()

	log := util.New()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Config", fmt.Errorf("failed to load configuration: %w", err))
	}

	conn, ch, err := mq.ConnectToRMQ(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal("RabbitMQ", err)
	}
	defer conn.Close()
	defer ch.Close()

	if err := mq.NewPublisher(ch, cfg.RabbitMQ.Exchange).DeclareExchange(); err != nil {
		log.Fatal("RabbitMQ", fmt.Errorf("failed to declare exchange: %w", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := mq.NewEventConsumer(ch, cfg.RabbitMQ.Exchange, *queue, strings.Split(*keys, ","),
		func(ctx context.Context, e domain.TripEvent) error {
			driver := "-"
			if e.Trip.Driver != nil {
				driver = e.Trip.Driver.ID
			}
			log.Info("TripEvents", fmt.Sprintf("%s [nk=%s, status=%s, driver=%s, riders=%d, at=%s]",
				e.Type, e.Trip.NK, e.Trip.Status, driver, len(e.Trip.Riders), e.Timestamp.Format("15:04:05.000")))
			return nil
		}, log)

	if err := consumer.Start(ctx); err != nil {
		log.Fatal("TripEvents", err)
	}

	<-ctx.Done()
	log.OK("TripEvents", "stopped")
}
