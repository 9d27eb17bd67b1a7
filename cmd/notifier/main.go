// Command notifier consumes send_tickets jobs and delivers the tickets of
// paid orders to their owners.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.Log, os.Stdout)

	db, err := database.Open(database.Params{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer db.Close()

	dispatcher := &queue.Dispatcher{
		Orders:    repository.NewOrderRepo(db),
		Users:     repository.NewUserRepo(db),
		Tickets:   repository.NewIssuedTicketRepo(db),
		Logs:      repository.NewDeliveryLogRepo(db),
		Deliverer: queue.NewFileDeliverer(cfg.Notify.DeliveryLogDir),
		Log:       logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("notifier starting (transport=%s)", cfg.Notify.Transport)
	switch cfg.Notify.Transport {
	case "kafka":
		c, err := queue.NewKafkaConsumer(queue.ParseBrokers(cfg.Notify.KafkaBrokers), cfg.Notify.KafkaGroup, logger)
		if err != nil {
			log.Fatalf("kafka consumer: %v", err)
		}
		defer c.Close()
		err = c.Run(ctx, dispatcher)
		if err != nil && ctx.Err() == nil {
			log.Fatal(err)
		}
	case "none":
		log.Fatal("NOTIFY_TRANSPORT=none has no queue to consume")
	default:
		c := queue.NewRabbitConsumer(cfg.Notify.RabbitURL, 10, logger)
		if err := c.Run(ctx, dispatcher); err != nil && ctx.Err() == nil {
			log.Fatal(err)
		}
	}
	log.Printf("notifier stopped")
}
