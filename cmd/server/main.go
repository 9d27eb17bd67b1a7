package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/realtime"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/router"
	"github.com/iliyamo/event-ticketing/internal/service"
	"github.com/iliyamo/event-ticketing/internal/utils"
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
	if cfg.AutoMigrate {
		if err := database.Migrate(context.Background(), db); err != nil {
			log.Fatalf("db migrate: %v", err)
		}
	}

	events := repository.NewEventRepo(db)
	orders := repository.NewOrderRepo(db)
	types := repository.NewTicketTypeRepo(db)
	tickets := repository.NewIssuedTicketRepo(db)
	vouchers := repository.NewVoucherRepo(db)
	settlements := repository.NewSettlementRepo(db, orders, types, tickets, vouchers)

	publisher, closePublisher := newPublisher(cfg.Notify)
	defer closePublisher()
	breaker := utils.NewCircuitBreaker("notify-"+cfg.Notify.Transport, utils.BreakerSettings{})
	notifier := queue.NewBreakerPublisher(publisher, breaker)

	var feed service.DoorFeed = realtime.Noop{}
	if cfg.DoorFeed.PublishKey != "" {
		feed = realtime.NewPubNubFeed(cfg.DoorFeed.PublishKey, cfg.DoorFeed.SubscribeKey, cfg.DoorFeed.UserID)
	}

	sc := cfg.Settlement
	settler := service.NewSettler(settlements, notifier, logger, service.SettlementOptions{
		EnforceCapacity:       sc.EnforceCapacity,
		EnforceVoucherLimit:   sc.EnforceVoucherLimit,
		PublishTimeout:        cfg.Notify.PublishTimeout,
		MaxInvitationQuantity: sc.InviteMaxQuantity,
	})
	bulk := service.NewBulkSettler(settler, sc.BulkDelay, sc.BulkMax)
	voucherSvc := service.NewVoucherService(vouchers)
	checkout := service.NewCheckout(events, types, orders, voucherSvc, service.CheckoutLimits{
		MaxLineQuantity:  cfg.Checkout.MaxLineQuantity,
		MaxOrderQuantity: cfg.Checkout.MaxOrderQuantity,
	})
	checkIn := service.NewCheckIn(tickets, feed, logger)
	reconciler := service.NewReconciler(settler, service.ReconcileOptions{
		Interval:    sc.ReconcileInterval,
		Grace:       sc.ReconcileGrace,
		Batch:       sc.ReconcileBatch,
		MaxAttempts: sc.ReconcileMaxAttempts,
	}, logger)

	// Redis is optional: without it redemption is not rate limited and
	// availability is not cached.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, rate limit and cache disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true

	router.RegisterRoutes(e, db)
	router.RegisterPublic(e,
		handler.NewAvailabilityHandler(events, types),
		handler.NewVoucherHandler(voucherSvc),
		config.LoadCacheConfig(), rdb)
	router.RegisterCustomer(e, handler.NewCheckoutHandler(checkout), cfg.JWTSecret)
	router.RegisterStaff(e,
		handler.NewOrderHandler(settler, bulk),
		handler.NewCheckInHandler(checkIn),
		cfg.JWTSecret, config.LoadRateLimitConfig(), rdb)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go reconciler.Run(ctx)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, notify=%s)", addr, cfg.Env, cfg.Notify.Transport)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// newPublisher selects the send_tickets transport.
func newPublisher(nc config.NotifyConfig) (queue.Publisher, func()) {
	switch nc.Transport {
	case "kafka":
		p, err := queue.NewKafkaPublisher(queue.ParseBrokers(nc.KafkaBrokers))
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		return p, func() { _ = p.Close() }
	case "none":
		return queue.LogPublisher{}, func() {}
	default:
		p := queue.NewRabbitPublisher(nc.RabbitURL)
		return p, func() { _ = p.Close() }
	}
}
