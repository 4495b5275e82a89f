package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netshield-detector/internal/aggregator"
	"netshield-detector/internal/alert"
	"netshield-detector/internal/classifier"
	"netshield-detector/internal/pipeline"
	"netshield-detector/internal/simulator"
	"netshield-detector/internal/storage"
	"netshield-detector/internal/utils"

	"github.com/sirupsen/logrus"
)

func main() {
	var (
		configFile = flag.String("config", "configs/netshield.yaml", "Configuration file path (YAML)")
		interval   = flag.Duration("interval", 2*time.Second, "Delay between synthetic submissions")
		duration   = flag.Duration("duration", 0, "Stop after this long (0 = run until interrupted)")
		seed       = flag.Int64("seed", 0, "Random seed for the traffic generator (0 = clock)")
	)
	flag.Parse()

	config, err := utils.LoadConfig(*configFile)
	if err != nil {
		fmt.Printf("Failed to load config %s: %v\n", *configFile, err)
		fmt.Println("Using default configuration...")
		config = utils.GetDefaultConfig()
	}

	logger := utils.NewLogger(config.Logging)

	store := storage.NewMemoryStore(logger)
	cls := classifier.NewRuleClassifier(config.Classifier, logger)
	deduper := aggregator.NewDeduper(
		config.Aggregator.DedupCapacity,
		config.Alerting.VolumeThreshold,
		time.Duration(config.Alerting.WindowSeconds)*time.Second,
		logger,
	)
	metrics := alert.NewMetrics()
	dispatcher := alert.NewDispatcher(logger, metrics)
	if config.Alerting.Enabled && config.Alerting.Channels.Log {
		dispatcher.RegisterNotifier(alert.NewLogNotifier(logger))
	}
	processor := pipeline.NewProcessor(cls, store, deduper, dispatcher, metrics, logger)
	generator := simulator.NewGenerator(*seed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping traffic simulation...")
		cancel()
	}()

	go func() {
		for notification := range dispatcher.Channel() {
			timestamp := notification.Timestamp.Format("2006-01-02 15:04:05")
			fmt.Printf("\n[%s] %s - %s\n", timestamp, notification.Kind, notification.Message)
		}
	}()

	fmt.Println("Traffic simulation started!")
	fmt.Printf("Submitting one synthetic flow every %s\n\n", *interval)

	run(ctx, processor, generator, *interval, logger)
}

func run(ctx context.Context, processor *pipeline.Processor, generator *simulator.Generator, interval time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			family := generator.RandomFamily()
			features := generator.FeatureVector(family)
			result, err := processor.Submit(ctx, features, generator.RandomIP(), generator.RandomIP())
			if err != nil {
				logger.Errorf("Failed to process synthetic flow: %v", err)
				continue
			}
			if result.Verdict.IsMalicious {
				fmt.Printf("%s attack detected (severity %s, confidence %.2f)\n",
					result.Verdict.AttackType, result.Verdict.Severity, result.Verdict.Confidence)
			}
		case <-ctx.Done():
			fmt.Println("Traffic simulation stopped")
			return
		}
	}
}
