package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rerolab/config"
	"rerolab/handlers"
	"rerolab/middleware"
	"rerolab/routes"
	"rerolab/services/booking"
	"rerolab/services/connection"
	"rerolab/services/session"
	"rerolab/services/stream"
	"rerolab/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger := utils.GetLogger()
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session: stored credential first, then configured login.
	var credentials session.CredentialStore = session.NewMemoryCredentialStore()
	if client := utils.GetSessionCacheClient(); client != nil {
		redisStore := session.NewRedisCredentialStore(client, cfg.LabEmail)
		redisStore.Key = cfg.SessionKey
		credentials = redisStore
	}
	holder := session.NewHolder(nil)
	sessionService := session.NewSessionService(session.NewHTTPAuthClient(cfg.AuthURL), credentials, holder, logger.Named("session"))

	bootCtx, bootCancel := context.WithTimeout(ctx, 15*time.Second)
	if sess, err := sessionService.Bootstrap(bootCtx, cfg.LabEmail, cfg.LabPassword); err != nil {
		logger.Sugar().Warnf("main: running without a lab session, booking is read-only: %v", err)
	} else {
		logger.Sugar().Infof("main: acting as %s", sess.Identity)
	}
	bootCancel()

	reconnect := connection.Policy{BaseDelay: cfg.ReconnectBaseDelay, MaxAttempts: cfg.ReconnectMaxAttempts}

	// Booking channel and store.
	bookingDialer := connection.NewWebsocketDialer(func() http.Header {
		h := http.Header{}
		if sess, ok := holder.Current(); ok {
			h.Set("Authorization", "Bearer "+sess.Credential)
		}
		return h
	})
	var store *booking.Store
	bookingConn := connection.NewManager(bookingDialer,
		connection.HandlerFuncs{
			Open:    func() { store.OnOpen() },
			Message: func(p []byte) { store.OnMessage(p) },
			Close:   func() { store.OnClose() },
			Error:   func(err error) { store.OnError(err) },
			Exhausted: func() {
				logger.Sugar().Warnf("main: booking channel gave up after %d attempts; POST /connection/retry to reconnect", cfg.ReconnectMaxAttempts)
			},
		},
		connection.WithName("booking"),
		connection.WithPolicy(reconnect),
		connection.WithLogger(logger),
	)
	store = booking.NewStore(bookingConn, holder,
		booking.WithLogger(logger.Named("booking")),
		booking.WithPendingTimeout(cfg.PendingTimeout),
	)

	// Media channel.
	streamController, err := stream.NewController(connection.NewWebsocketDialer(nil), cfg.StreamURL,
		stream.WithPolicy(stream.Policy{
			Floor:   cfg.StreamMinQuality,
			Ceiling: cfg.StreamMaxQuality,
			Step:    cfg.StreamQualityStep,
			Low:     cfg.StreamLowFPS,
			High:    cfg.StreamHighFPS,
		}),
		stream.WithInitialQuality(cfg.StreamInitialQuality),
		stream.WithWindow(cfg.StreamWindow),
		stream.WithTick(cfg.StreamTick),
		stream.WithReconnectPolicy(reconnect),
		stream.WithLogger(logger.Named("stream")),
	)
	if err != nil {
		logger.Sugar().Fatalf("main: invalid stream settings: %v", err)
	}

	hub := handlers.NewHub(logger.Named("hub"))
	updates, unsubscribe := store.Subscribe()
	defer unsubscribe()

	go store.Run(ctx)
	go bookingConn.Run(ctx)
	go streamController.Run(ctx)
	go hub.Run(ctx)
	go hub.Forward(ctx, updates)

	bookingConn.Open(cfg.BookingURL)
	streamController.Start()

	probes := map[string]utils.HealthProbe{}
	if client := utils.SessionCacheClient; client != nil {
		probes["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	utils.StartHealthMonitor(ctx, time.Minute, probes)

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin))

	bookingHandler := handlers.NewBookingHandler(store, bookingConn)
	streamHandler := handlers.NewStreamHandler(streamController)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	healthHandler := &handlers.HealthHandler{Booking: bookingConn, Stream: streamController}

	// Assemble the handler bundle.
	handlerBundle := &handlers.HandlerBundle{
		Sessions: holder,

		GetSlotsHandler:    bookingHandler.GetSlotsHandler,
		RefreshHandler:     bookingHandler.RefreshHandler,
		BookSlotHandler:    bookingHandler.BookSlotHandler,
		CancelSlotHandler:  bookingHandler.CancelSlotHandler,
		RetryHandler:       bookingHandler.RetryHandler,
		DisconnectHandler:  bookingHandler.DisconnectHandler,
		SlotsSocketHandler: hub.Handler(func() interface{} { return bookingHandler.Snapshot() }),

		GetFrameHandler:       streamHandler.GetFrameHandler,
		GetStreamStatsHandler: streamHandler.GetStreamStatsHandler,
		StartStreamHandler:    streamHandler.StartStreamHandler,
		StopStreamHandler:     streamHandler.StopStreamHandler,

		GetSessionHandler: sessionHandler.GetSessionHandler,
		LoginHandler:      sessionHandler.LoginHandler,
		RegisterHandler:   sessionHandler.RegisterHandler,
		LogoutHandler:     sessionHandler.LogoutHandler,

		HealthHandler: healthHandler.GetHealthHandler,
	}

	routes.RegisterRoutes(router, handlerBundle, splitOrigins(cfg.CORSOrigins))

	srv := &http.Server{
		Addr:    "127.0.0.1:" + cfg.APIPort,
		Handler: router,
	}

	logger.Sugar().Infof("main: local API listening on %s", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}

	cancel()
	<-bookingConn.Done()
	<-streamController.Done()
	logger.Sugar().Info("main: stopped gracefully")
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
