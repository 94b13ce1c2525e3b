package main

import (
	"log"

	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"

	"github.com/kudulodge/reservation-service/config"
	"github.com/kudulodge/reservation-service/internal/handler"
	"github.com/kudulodge/reservation-service/internal/middleware"
	"github.com/kudulodge/reservation-service/internal/payment"
	"github.com/kudulodge/reservation-service/internal/repository"
	"github.com/kudulodge/reservation-service/internal/service"
	"github.com/kudulodge/reservation-service/pkg/cache"
	"github.com/kudulodge/reservation-service/pkg/database"
	"github.com/kudulodge/reservation-service/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()

	db := database.NewPostgresDB(cfg.DSN())

	// RabbitMQ publisher: reservation and payment events for downstream
	// consumers. Best-effort, the service runs without a broker.
	var publisher service.EventPublisher
	if mq, err := rabbitmq.NewPublisher(cfg.RabbitURL); err != nil {
		log.Printf("[RabbitMQ] unavailable, event publishing disabled: %v", err)
	} else {
		defer mq.Close()
		publisher = mq
	}

	// Redis: webhook-event dedup. Optional, nil disables it.
	redisClient := cache.NewRedisClient(cfg.RedisAddr)

	// Repositories
	reservationRepo := repository.NewReservationRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	counterRepo := repository.NewCounterRepository(db)
	paymentEventRepo := repository.NewPaymentEventRepository(db)

	// Services
	reservationSvc := service.NewReservationService(
		reservationRepo, roomRepo, packageRepo, counterRepo, paymentEventRepo,
		publisher, cfg.ReservationSeed, cfg.MinChargeAmount,
	)
	provider := payment.NewHTTPProvider(cfg.PaymentAPIBase, cfg.PaymentAPIKey)
	paymentSvc := service.NewPaymentService(
		reservationRepo, paymentEventRepo, provider, redisClient,
		publisher, cfg.WebhookSecret, cfg.MinChargeAmount,
	)

	// Echo
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Printf("%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok", "service": "reservation-service"})
	})

	handler.NewReservationHandler(reservationSvc, cfg.JWTSecret).RegisterRoutes(e)
	handler.NewPaymentHandler(paymentSvc, cfg.JWTSecret).RegisterRoutes(e)

	log.Printf("Reservation Service starting on :%s", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
