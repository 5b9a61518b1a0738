package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/himanishpuri/PulseRate/internal/config"
	"github.com/himanishpuri/PulseRate/internal/stream"
	"github.com/himanishpuri/PulseRate/pkg/logger"
	"github.com/himanishpuri/PulseRate/pkg/pulserate"
	"github.com/himanishpuri/PulseRate/pkg/pulserate/ppg"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("PULSE_CONFIG"), "Path to a YAML config file")
		natsURL    = flag.String("nats", "", "NATS url (overrides config)")
		label      = flag.String("label", "nats", "Session label")
	)
	flag.Parse()

	log := logger.GetLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *natsURL != "" {
		cfg.NATS.URL = *natsURL
	}

	service, err := pulserate.NewService(
		pulserate.WithDBPath(cfg.Storage.DBPath),
		pulserate.WithSampleRate(cfg.Monitor.SampleRate),
		pulserate.WithWindowSize(ppg.WindowSizeFor(cfg.Monitor.SampleRate, cfg.Monitor.WindowSeconds)),
		pulserate.WithSmoothingWindow(cfg.Monitor.SmoothingWindow),
		pulserate.WithComputeInterval(cfg.Monitor.ComputeInterval),
		pulserate.WithLogger(log),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	session, err := service.StartSession(*label, "nats")
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	nc, err := stream.Connect(cfg.NATS.URL, "pulserate-processor")
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer nc.Drain()

	// Samples are stamped on arrival. Within a batch they are spread back
	// over the sample period so peaks keep their spacing.
	clock := ppg.NewClock()
	period := uint32(1000 / cfg.Monitor.SampleRate)
	var mu sync.Mutex

	_, err = stream.SubscribeSamples(nc, cfg.NATS.SamplesSubject, func(values []float64) {
		mu.Lock()
		defer mu.Unlock()

		now := clock.Now()
		n := len(values)
		for i, v := range values {
			ts := now - ppg.Ticks(uint32(n-1-i)*period)
			if err := service.AppendSample(session.ID, v, ts); err != nil {
				log.Errorf("Append failed: %v", err)
				return
			}
		}
	}, func(err error) {
		log.Warnf("Dropping malformed batch: %v", err)
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.Monitor.ComputeInterval)
	defer ticker.Stop()

	log.Infof("Processor running: session %s, %s -> %s", session.ID, cfg.NATS.SamplesSubject, cfg.NATS.RateSubject)

	for {
		select {
		case <-ctx.Done():
			log.Infof("Processor stopping")
			return

		case <-ticker.C:
			msg := stream.RateMessage{SessionID: session.ID, Ts: time.Now().UnixMilli()}

			reading, err := service.EstimateHeartRate(session.ID)
			if err != nil {
				log.Errorf("Estimate failed: %v", err)
				continue
			}
			if reading == nil {
				log.Infof("Recalculating...")
			} else {
				msg.BPM = reading.BPM
				msg.PeakCount = reading.PeakCount
				msg.OK = true
				log.Infof("Heart Rate: %.1f BPM", reading.BPM)
			}

			if err := stream.PublishRate(nc, cfg.NATS.RateSubject, msg); err != nil {
				log.Errorf("Publish failed: %v", err)
			}
		}
	}
}
