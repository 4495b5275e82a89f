package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netshield-detector/api/internal/handlers"
	"netshield-detector/internal/aggregator"
	"netshield-detector/internal/alert"
	"netshield-detector/internal/classifier"
	"netshield-detector/internal/pipeline"
	"netshield-detector/internal/simulator"
	"netshield-detector/internal/storage"
	"netshield-detector/internal/utils"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		configFile = flag.String("config", "configs/netshield.yaml", "Configuration file path (YAML)")
		port       = flag.String("port", "", "API server port (overrides config)")
	)
	flag.Parse()

	config, err := utils.LoadConfig(*configFile)
	if err != nil {
		log.Printf("Failed to load config %s: %v", *configFile, err)
		log.Println("Using default configuration...")
		config = utils.GetDefaultConfig()
	}
	if *port != "" {
		config.Application.APIPort = *port
	}

	logger := utils.NewLogger(config.Logging)

	// Metrics exporter on its own listener
	exporter, err := alert.NewPrometheusExporter(config.Application.MetricsPort, logger)
	if err != nil {
		logger.Fatalf("Failed to create Prometheus exporter: %v", err)
	}
	exporterCtx, exporterCancel := context.WithCancel(context.Background())
	defer exporterCancel()
	go func() {
		if err := exporter.Start(exporterCtx); err != nil {
			logger.Errorf("Prometheus exporter error: %v", err)
		}
	}()
	metrics := exporter.GetMetrics()

	store := storage.NewMemoryStore(logger)

	cls := classifier.NewRuleClassifier(config.Classifier, logger)

	deduper := aggregator.NewDeduper(
		config.Aggregator.DedupCapacity,
		config.Alerting.VolumeThreshold,
		time.Duration(config.Alerting.WindowSeconds)*time.Second,
		logger,
	)

	dispatcher := alert.NewDispatcher(logger, metrics)
	registerNotifiers(dispatcher, config, logger)

	processor := pipeline.NewProcessor(cls, store, deduper, dispatcher, metrics, logger)

	// Optional durable mirror
	if config.Mongo.Enabled {
		durable, err := storage.NewMongoStore(
			config.Mongo.URL,
			config.Mongo.Database,
			time.Duration(config.Mongo.TimeoutSeconds)*time.Second,
			logger,
		)
		if err != nil {
			logger.Warnf("Failed to connect to MongoDB: %v", err)
			logger.Warn("Alerts will not be durably persisted")
		} else {
			defer durable.Close()
			processor.SetDurableStore(durable)
			logger.Infof("Mirroring writes to MongoDB at %s/%s", config.Mongo.URL, config.Mongo.Database)
		}
	}

	// Drain the in-process notification stream so the buffer never fills;
	// registered notifiers already deliver externally.
	go func() {
		for notification := range dispatcher.Channel() {
			logger.Debugf("Notification emitted: [%s] %s", notification.Kind, notification.Message)
		}
	}()

	generator := simulator.NewGenerator(0)
	h := handlers.NewHandlers(store, processor, cls, generator, config, logger)

	router := mux.NewRouter()
	router.Use(handlers.CORSMiddleware)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Classification endpoints
	api.HandleFunc("/classify", h.Classify).Methods("POST", "OPTIONS")
	api.HandleFunc("/demo", h.Demo).Methods("GET", "OPTIONS")

	// Alerts endpoints
	api.HandleFunc("/alerts/top-sources", h.GetTopSources).Methods("GET")
	api.HandleFunc("/alerts/top-types", h.GetTopTypes).Methods("GET")
	api.HandleFunc("/stream/alerts", h.StreamAlerts).Methods("GET")
	api.HandleFunc("/stream/stats", h.StreamStats).Methods("GET")
	api.HandleFunc("/alerts", h.GetAlerts).Methods("GET")
	api.HandleFunc("/alerts/{id}", h.GetAlert).Methods("GET")

	// Traffic stats
	api.HandleFunc("/stats/traffic", h.GetTrafficStats).Methods("GET")

	// Blocklist endpoints
	api.HandleFunc("/blocked/{id}/unblock", h.UnblockIP).Methods("POST", "OPTIONS")
	api.HandleFunc("/blocked", h.GetBlockedIPs).Methods("GET")
	api.HandleFunc("/blocked", h.BlockIP).Methods("POST", "OPTIONS")

	// Rules
	api.HandleFunc("/rules", h.GetRules).Methods("GET")

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	addr := fmt.Sprintf(":%s", config.Application.APIPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
	}

	logger.Infof("API server starting on port %s", config.Application.APIPort)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down API server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}

func registerNotifiers(dispatcher *alert.Dispatcher, config *utils.Config, logger *logrus.Logger) {
	if !config.Alerting.Enabled {
		logger.Warn("Alerting is disabled; notifications will not be delivered")
		return
	}

	if config.Alerting.Channels.Log {
		dispatcher.RegisterNotifier(alert.NewLogNotifier(logger))
	}

	if config.Alerting.Channels.Telegram && config.Alerting.Telegram.Enabled {
		dispatcher.RegisterNotifier(alert.NewTelegramNotifierWithTemplate(
			config.Alerting.Telegram.BotToken,
			config.Alerting.Telegram.ChatID,
			config.Alerting.Telegram.ParseMode,
			config.Alerting.Telegram.Enabled,
			config.Alerting.Telegram.MessageTemplate,
			logger,
		))
	}

	if config.Alerting.Channels.Webhook && config.Alerting.Webhook.Enabled {
		dispatcher.RegisterNotifier(alert.NewWebhookNotifier(
			config.Alerting.Webhook.URL,
			config.Alerting.Webhook.Enabled,
			logger,
		))
	}
}
