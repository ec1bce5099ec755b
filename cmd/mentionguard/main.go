package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	discordclient "mentionguard/clients/discord"
	"mentionguard/config"
	"mentionguard/db"
	"mentionguard/handlers"
	"mentionguard/metrics"
	"mentionguard/middleware"
	"mentionguard/services/audit"
	"mentionguard/services/monitoringconfigs"
	"mentionguard/usecases/mentions"
	"mentionguard/utils"
)

func main() {
	if err := run(); err != nil {
		log.Printf("❌ Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	// One process per bot identity
	processLock, err := utils.NewProcessLock(cfg.LockDir, cfg.DiscordConfig.BotToken)
	if err != nil {
		return err
	}
	if err := processLock.TryLock(); err != nil {
		return err
	}
	defer func() {
		if err := processLock.Unlock(); err != nil {
			log.Printf("⚠️ Failed to release process lock: %v", err)
		}
	}()

	alertMiddleware := middleware.NewErrorAlertMiddleware(middleware.SlackAlertConfig{
		WebhookURL:  cfg.AlertsConfig.SlackWebhookURL,
		Environment: cfg.Environment,
		AppName:     "mentionguard",
		LogsURL:     cfg.ServerLogsURL,
	})

	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	monitoringConfigsRepo := db.NewPostgresMonitoringConfigsRepository(dbConn, cfg.DatabaseSchema)
	auditRecordsRepo := db.NewPostgresAuditRecordsRepository(dbConn, cfg.DatabaseSchema)

	monitoringConfigsService := monitoringconfigs.NewMonitoringConfigsService(dbConn, monitoringConfigsRepo)
	auditService := audit.NewAuditService(auditRecordsRepo)

	session, err := discordgo.New("Bot " + cfg.DiscordConfig.BotToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	// rate limits surface as errors so fixes can apply their own single retry
	session.ShouldRetryOnRateLimit = false

	guildClient := discordclient.NewDiscordClient(session)
	mentionsUseCase := mentions.NewMentionsUseCase(guildClient, monitoringConfigsService, auditService, mentions.Options{
		GateInitialTimeout:     cfg.GateConfig.InitialTimeout,
		GateFinalTimeout:       cfg.GateConfig.FinalTimeout,
		MonitorDefaultInterval: cfg.MonitoringConfig.DefaultInterval,
		MonitorWorkers:         cfg.MonitoringConfig.Workers,
		RateLimitRetryDelay:    cfg.FixConfig.RateLimitRetryDelay,
		MentionRoleName:        cfg.FixConfig.MentionRoleName,
		BackgroundTaskWrapper:  alertMiddleware.WrapBackgroundTask,
		Metrics:                metrics.NewMetrics(prometheus.DefaultRegisterer),
	})
	defer mentionsUseCase.Close()

	discordHandler := handlers.NewDiscordEventsHandler(session, cfg.DiscordConfig.AppID, mentionsUseCase)
	mentionsUseCase.OnFixSessionFinished(discordHandler.HandleFixSessionFinished)

	if err := discordHandler.StartBot(); err != nil {
		return err
	}
	defer discordHandler.StopBot()

	if err := mentionsUseCase.StartMonitoring(context.Background()); err != nil {
		return err
	}

	router := mux.NewRouter()
	handlers.NewStatusHTTPHandler(mentionsUseCase).SetupEndpoints(router)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	allowedOrigins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           alertMiddleware.HTTPMiddleware(c.Handler(router)),
		ReadHeaderTimeout: 30 * time.Second,
	}

	return handleGracefulShutdown(server)
}

func handleGracefulShutdown(server *http.Server) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("✅ Listening on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ Server error: %v", err)
		}
	}()

	<-stop
	log.Printf("🛑 Shutdown signal received, cleaning up...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Server shutdown error: %v", err)
		return err
	}

	log.Printf("✅ Server stopped gracefully")
	return nil
}
